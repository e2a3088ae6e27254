package server

import (
	"errors"
	"fmt"
	"math"

	"github.com/omegabytes/ecologits-go/common"
)

const (
	// confidenceZ is the z-score of a two-sided 95% confidence interval.
	confidenceZ = 1.96

	secondsPerHour = 3600
)

// ErrInvalidServer is wrapped by every ServerInfra validation failure.
var ErrInvalidServer = errors.New("invalid server infrastructure")

// ServerInfra represents server overall infrastructure used to train LLMs or execute user requests.
// Some climate impact is attributed to training or serving requests and some is attributed to server
// construction and operation. The latter is called embodied impact.
type ServerInfra struct {
	AvailableGPUCount  int     `json:"available_gpu_count"  yaml:"available_gpu_count"`
	PowerConsumptionKW float64 `json:"power_consumption_kw" yaml:"power_consumption_kw"`
	EmbodiedImpactADPe float64 `json:"embodied_impact_adpe" yaml:"embodied_impact_adpe"`
	EmbodiedImpactGWP  float64 `json:"embodied_impact_gwp"  yaml:"embodied_impact_gwp"`
	EmbodiedImpactPE   float64 `json:"embodied_impact_pe"   yaml:"embodied_impact_pe"`
	// HardwareLifespan is the rated service life of the server and its GPUs in seconds.
	HardwareLifespan int64   `json:"hardware_lifespan" yaml:"hardware_lifespan"`
	DatacenterPUE    float64 `json:"datacenter_pue"    yaml:"datacenter_pue"`
	GPU              GPU     `json:"gpu"               yaml:"gpu"`
}

// GPU represents a GPU contained in a server that is used train LLMs or execute user requests.
// Some climate impact is attributed to training or serving requests and some is attributed to GPU
// manufacturing, operation, and disposal. The latter is called embodied impact.
//
// Energy and latency coefficients come from a linear regression of per-token energy (kWh) and
// latency (s) against the active parameter count in billions.
type GPU struct {
	EnergyAlpha        float64 `json:"energy_alpha"         yaml:"energy_alpha"`
	EnergyBeta         float64 `json:"energy_beta"          yaml:"energy_beta"`
	EnergyStdev        float64 `json:"energy_stdev"         yaml:"energy_stdev"`
	LatencyAlpha       float64 `json:"latency_alpha"        yaml:"latency_alpha"`
	LatencyBeta        float64 `json:"latency_beta"         yaml:"latency_beta"`
	LatencyStdev       float64 `json:"latency_stdev"        yaml:"latency_stdev"`
	AvailMemoryGB      float64 `json:"avail_memory_gb"      yaml:"avail_memory_gb"`
	EmbodiedImpactADPe float64 `json:"embodied_impact_adpe" yaml:"embodied_impact_adpe"`
	EmbodiedImpactGWP  float64 `json:"embodied_impact_gwp"  yaml:"embodied_impact_gwp"`
	EmbodiedImpactPE   float64 `json:"embodied_impact_pe"   yaml:"embodied_impact_pe"`
}

// GenericServerInfra returns a server with default values for energy and latency parameters.
func GenericServerInfra() ServerInfra {
	const (
		serverGPUCount           = 8
		serverPowerKW            = 1
		serverEmbodiedImpactGWP  = 3000
		serverEmbodiedImpactADPe = 0.24
		serverEmbodiedImpactPE   = 38000
		hardwareLifespan         = 5 * 365 * 24 * 60 * 60
		datacenterPUE            = 1.2
	)

	return ServerInfra{
		AvailableGPUCount:  serverGPUCount,
		PowerConsumptionKW: serverPowerKW,
		EmbodiedImpactADPe: serverEmbodiedImpactADPe,
		EmbodiedImpactGWP:  serverEmbodiedImpactGWP,
		EmbodiedImpactPE:   serverEmbodiedImpactPE,
		HardwareLifespan:   hardwareLifespan,
		DatacenterPUE:      datacenterPUE,
		GPU:                GenericGPU(),
	}
}

// GenericGPU returns a GPU with default values for energy and latency parameters.
func GenericGPU() GPU {
	const (
		gpuEnergyAlpha        = 8.91e-8
		gpuEnergyBeta         = 1.43e-6
		gpuEnergyStdev        = 5.19e-7
		gpuLatencyAlpha       = 8.02e-4
		gpuLatencyBeta        = 2.23e-2
		gpuLatencyStdev       = 7.00e-6
		gpuMemoryGB           = 80
		gpuEmbodiedImpactGWP  = 143
		gpuEmbodiedImpactADPe = 5.1e-3
		gpuEmbodiedImpactPE   = 1828
	)

	return GPU{
		EnergyAlpha:        gpuEnergyAlpha,
		EnergyBeta:         gpuEnergyBeta,
		EnergyStdev:        gpuEnergyStdev,
		LatencyAlpha:       gpuLatencyAlpha,
		LatencyBeta:        gpuLatencyBeta,
		LatencyStdev:       gpuLatencyStdev,
		AvailMemoryGB:      gpuMemoryGB,
		EmbodiedImpactADPe: gpuEmbodiedImpactADPe,
		EmbodiedImpactGWP:  gpuEmbodiedImpactGWP,
		EmbodiedImpactPE:   gpuEmbodiedImpactPE,
	}
}

// Validate checks that every coefficient is a finite, non-negative number and that the
// divisors used by the formulas (GPUs per server, lifespan, GPU memory) are non-zero.
func (s *ServerInfra) Validate() error {
	if s.AvailableGPUCount <= 0 {
		return fmt.Errorf("%w: AvailableGPUCount must be greater than 0", ErrInvalidServer)
	}
	if s.HardwareLifespan <= 0 {
		return fmt.Errorf("%w: HardwareLifespan must be greater than 0", ErrInvalidServer)
	}
	if !positive(s.GPU.AvailMemoryGB) {
		return fmt.Errorf("%w: AvailMemoryGB must be greater than 0", ErrInvalidServer)
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"PowerConsumptionKW", s.PowerConsumptionKW},
		{"EmbodiedImpactADPe", s.EmbodiedImpactADPe},
		{"EmbodiedImpactGWP", s.EmbodiedImpactGWP},
		{"EmbodiedImpactPE", s.EmbodiedImpactPE},
		{"DatacenterPUE", s.DatacenterPUE},
		{"GPU.EnergyAlpha", s.GPU.EnergyAlpha},
		{"GPU.EnergyBeta", s.GPU.EnergyBeta},
		{"GPU.EnergyStdev", s.GPU.EnergyStdev},
		{"GPU.LatencyAlpha", s.GPU.LatencyAlpha},
		{"GPU.LatencyBeta", s.GPU.LatencyBeta},
		{"GPU.LatencyStdev", s.GPU.LatencyStdev},
		{"GPU.EmbodiedImpactADPe", s.GPU.EmbodiedImpactADPe},
		{"GPU.EmbodiedImpactGWP", s.GPU.EmbodiedImpactGWP},
		{"GPU.EmbodiedImpactPE", s.GPU.EmbodiedImpactPE},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return fmt.Errorf("%w: %s must be a finite non-negative number", ErrInvalidServer, f.name)
		}
	}
	return nil
}

// GPUEnergy returns the 95% confidence interval of the energy consumption of a single GPU in kWh.
//
// Args:
//   - modelActiveParamCount: Number of active parameters of the model (in billions).
//   - outputTokenCount: Number of generated tokens.
func (s *ServerInfra) GPUEnergy(modelActiveParamCount, outputTokenCount float64) common.RangeValue {
	return regressionInterval(
		s.GPU.EnergyAlpha, s.GPU.EnergyBeta, s.GPU.EnergyStdev, modelActiveParamCount, outputTokenCount)
}

// GenerationLatency returns the token generation latency in seconds.
//
// The modeled interval is used only while its upper bound stays below the measured request
// latency. Otherwise the request is latency bound and the measured value is returned as a
// degenerate range.
//
// Args:
//   - modelActiveParamCount: Number of active parameters of the model (in billions).
//   - outputTokenCount: Number of generated tokens.
//   - requestLatency: Measured request latency (upper bound) in seconds, +Inf when unknown.
func (s *ServerInfra) GenerationLatency(
	modelActiveParamCount float64,
	outputTokenCount float64,
	requestLatency float64,
) common.RangeValue {
	interval := regressionInterval(
		s.GPU.LatencyAlpha, s.GPU.LatencyBeta, s.GPU.LatencyStdev, modelActiveParamCount, outputTokenCount)
	if interval.LessThan(requestLatency) {
		return interval
	}
	return common.Scalar(requestLatency)
}

// FitsGPURequiredCount reports whether the GPU count needed for modelRequiredMemory can be
// represented. GPURequiredCount must only be called when it does.
func (s *ServerInfra) FitsGPURequiredCount(modelRequiredMemory float64) bool {
	return math.Ceil(modelRequiredMemory/s.GPU.AvailMemoryGB) < math.MaxInt
}

// GPURequiredCount returns the number of GPUs required to load the model, rounding up. At least one
// GPU is always required.
func (s *ServerInfra) GPURequiredCount(modelRequiredMemory float64) int {
	count := int(math.Ceil(modelRequiredMemory / s.GPU.AvailMemoryGB))
	if count < 1 {
		return 1
	}
	return count
}

// ServerEnergy returns the energy consumption of the server in kWh, excluding GPUs, for the share
// of the server occupied by the request.
func (s *ServerInfra) ServerEnergy(generationLatency common.RangeValue, gpuRequiredCount int) common.RangeValue {
	return generationLatency.
		Multiply(s.PowerConsumptionKW).
		Divide(secondsPerHour).
		Multiply(s.gpuShare(gpuRequiredCount))
}

// RequestEnergy returns the energy consumption of the request in kWh.
//
// Args:
//   - serverEnergy: Energy consumption of the server in kWh.
//   - gpuRequiredCount: Number of required GPUs to load the model.
//   - gpuEnergy: Energy consumption of a single GPU in kWh.
func (s *ServerInfra) RequestEnergy(
	serverEnergy common.RangeValue,
	gpuRequiredCount int,
	gpuEnergy common.RangeValue,
) common.RangeValue {
	return serverEnergy.
		Add(gpuEnergy.Multiply(float64(gpuRequiredCount))).
		Multiply(s.DatacenterPUE)
}

// ServerGPUEmbodied returns the embodied impact of the GPUs and server share used by the request.
func (s *ServerInfra) ServerGPUEmbodied(serverEmbodied, gpuEmbodied float64, gpuRequiredCount int) float64 {
	return s.gpuShare(gpuRequiredCount)*serverEmbodied + float64(gpuRequiredCount)*gpuEmbodied
}

// RequestEmbodied amortizes an embodied impact over the hardware lifespan and attributes the part
// matching the generation latency to the request.
func (s *ServerInfra) RequestEmbodied(serverGPUEmbodied float64, generationLatency common.RangeValue) common.RangeValue {
	return generationLatency.
		Divide(float64(s.HardwareLifespan)).
		Multiply(serverGPUEmbodied)
}

func (s *ServerInfra) gpuShare(gpuRequiredCount int) float64 {
	return float64(gpuRequiredCount) / float64(s.AvailableGPUCount)
}

func regressionInterval(alpha, beta, stdev, modelActiveParamCount, outputTokenCount float64) common.RangeValue {
	perTokenMean := alpha*modelActiveParamCount + beta
	lower := outputTokenCount * (perTokenMean - confidenceZ*stdev)
	upper := outputTokenCount * (perTokenMean + confidenceZ*stdev)
	return common.RangeValue{
		Min: math.Max(0, lower),
		Max: upper,
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
