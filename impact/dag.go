package impact

import (
	"github.com/omegabytes/ecologits-go/aimodel"
	"github.com/omegabytes/ecologits-go/common"
	"github.com/omegabytes/ecologits-go/request"
	"github.com/omegabytes/ecologits-go/server"
)

// Stages holds every intermediate quantity of one evaluation of the pipeline.
type Stages struct {
	GPUEnergy           common.RangeValue `json:"gpu_energy"`           // kWh
	GenerationLatency   common.RangeValue `json:"generation_latency"`   // s
	ModelRequiredMemory float64           `json:"model_required_memory"` // GB
	GPURequiredCount    int               `json:"gpu_required_count"`
	ServerEnergy        common.RangeValue `json:"server_energy"`  // kWh
	RequestEnergy       common.RangeValue `json:"request_energy"` // kWh
	GWP                 DimensionStages   `json:"gwp"`
	ADPe                DimensionStages   `json:"adpe"`
	PE                  DimensionStages   `json:"pe"`
}

// DimensionStages holds the quantities computed for each impact dimension.
type DimensionStages struct {
	Usage             common.RangeValue `json:"usage"`
	ServerGPUEmbodied float64           `json:"server_gpu_embodied"`
	Embodied          common.RangeValue `json:"embodied"`
}

// dimension selects the coefficients and stage slots of one impact dimension.
type dimension struct {
	mixFactor      func(request.ElectricityMix) float64
	serverEmbodied func(*server.ServerInfra) float64
	gpuEmbodied    func(*server.ServerInfra) float64
	stages         func(*Stages) *DimensionStages
}

var dimensions = []dimension{gwpDimension, adpeDimension, peDimension}

// output indexes the seven quantities merged across parameter boundaries.
type output int

const (
	requestEnergy output = iota
	usageGWP
	usageADPe
	usagePE
	embodiedGWP
	embodiedADPe
	embodiedPE
	outputCount
)

type outputs [outputCount]common.RangeValue

func (s *Stages) outputs() outputs {
	return outputs{
		requestEnergy: s.RequestEnergy,
		usageGWP:      s.GWP.Usage,
		usageADPe:     s.ADPe.Usage,
		usagePE:       s.PE.Usage,
		embodiedGWP:   s.GWP.Embodied,
		embodiedADPe:  s.ADPe.Embodied,
		embodiedPE:    s.PE.Embodied,
	}
}

// union merges two evaluations field by field into enclosing ranges.
func (o outputs) union(other outputs) outputs {
	var merged outputs
	for i := range o {
		merged[i] = o[i].Union(other[i])
	}
	return merged
}

// Evaluate runs the pipeline once for scalar active and total parameter counts (in billions).
// Inputs are assumed valid; ComputeImpacts validates them before calling Evaluate.
func Evaluate(modelActiveParamCount, modelTotalParamCount float64, req request.Request, c Coefficients) Stages {
	srv := &c.Server
	outputTokenCount := float64(req.OutputTokenCount)

	var s Stages
	s.GPUEnergy = srv.GPUEnergy(modelActiveParamCount, outputTokenCount)
	s.GenerationLatency = srv.GenerationLatency(modelActiveParamCount, outputTokenCount, req.Latency)
	s.ModelRequiredMemory = aimodel.ModelRequiredMemory(modelTotalParamCount, c.ModelQuantizationBits)
	s.GPURequiredCount = srv.GPURequiredCount(s.ModelRequiredMemory)
	s.ServerEnergy = srv.ServerEnergy(s.GenerationLatency, s.GPURequiredCount)
	s.RequestEnergy = srv.RequestEnergy(s.ServerEnergy, s.GPURequiredCount, s.GPUEnergy)

	for _, d := range dimensions {
		ds := d.stages(&s)
		ds.Usage = s.RequestEnergy.Multiply(d.mixFactor(req.ElectricityMix))
		ds.ServerGPUEmbodied = srv.ServerGPUEmbodied(d.serverEmbodied(srv), d.gpuEmbodied(srv), s.GPURequiredCount)
		ds.Embodied = srv.RequestEmbodied(ds.ServerGPUEmbodied, s.GenerationLatency)
	}
	return s
}
