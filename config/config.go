// Package config loads estimator settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/omegabytes/ecologits-go/impact"
	"github.com/omegabytes/ecologits-go/request"
	"github.com/omegabytes/ecologits-go/server"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Data         DataConfig         `yaml:"data"`
	Coefficients CoefficientsConfig `yaml:"coefficients"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"ECOLOGITS_LOG_LEVEL"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"ECOLOGITS_LOG_FORMAT"` // "json" or "console"
}

// DataConfig points at reference data replacing the bundled tables. Empty paths keep the bundled data.
type DataConfig struct {
	ModelsPath           string `yaml:"models_path"            env:"ECOLOGITS_MODELS_PATH"`
	ElectricityMixesPath string `yaml:"electricity_mixes_path" env:"ECOLOGITS_ELECTRICITY_MIXES_PATH"`
	DefaultZone          string `yaml:"default_zone"           env:"ECOLOGITS_DEFAULT_ZONE"`
}

// CoefficientsConfig overrides the impact coefficients field by field.
type CoefficientsConfig struct {
	ModelQuantizationBits float64 `yaml:"model_quantization_bits" env:"ECOLOGITS_MODEL_QUANTIZATION_BITS"`

	GPUEnergyAlpha        float64 `yaml:"gpu_energy_alpha"         env:"ECOLOGITS_GPU_ENERGY_ALPHA"`
	GPUEnergyBeta         float64 `yaml:"gpu_energy_beta"          env:"ECOLOGITS_GPU_ENERGY_BETA"`
	GPUEnergyStdev        float64 `yaml:"gpu_energy_stdev"         env:"ECOLOGITS_GPU_ENERGY_STDEV"`
	GPULatencyAlpha       float64 `yaml:"gpu_latency_alpha"        env:"ECOLOGITS_GPU_LATENCY_ALPHA"`
	GPULatencyBeta        float64 `yaml:"gpu_latency_beta"         env:"ECOLOGITS_GPU_LATENCY_BETA"`
	GPULatencyStdev       float64 `yaml:"gpu_latency_stdev"        env:"ECOLOGITS_GPU_LATENCY_STDEV"`
	GPUMemoryGB           float64 `yaml:"gpu_memory_gb"            env:"ECOLOGITS_GPU_MEMORY_GB"`
	GPUEmbodiedImpactGWP  float64 `yaml:"gpu_embodied_impact_gwp"  env:"ECOLOGITS_GPU_EMBODIED_IMPACT_GWP"`
	GPUEmbodiedImpactADPe float64 `yaml:"gpu_embodied_impact_adpe" env:"ECOLOGITS_GPU_EMBODIED_IMPACT_ADPE"`
	GPUEmbodiedImpactPE   float64 `yaml:"gpu_embodied_impact_pe"   env:"ECOLOGITS_GPU_EMBODIED_IMPACT_PE"`

	ServerGPUCount           int     `yaml:"server_gpu_count"            env:"ECOLOGITS_SERVER_GPU_COUNT"`
	ServerPowerKW            float64 `yaml:"server_power_kw"             env:"ECOLOGITS_SERVER_POWER_KW"`
	ServerEmbodiedImpactGWP  float64 `yaml:"server_embodied_impact_gwp"  env:"ECOLOGITS_SERVER_EMBODIED_IMPACT_GWP"`
	ServerEmbodiedImpactADPe float64 `yaml:"server_embodied_impact_adpe" env:"ECOLOGITS_SERVER_EMBODIED_IMPACT_ADPE"`
	ServerEmbodiedImpactPE   float64 `yaml:"server_embodied_impact_pe"   env:"ECOLOGITS_SERVER_EMBODIED_IMPACT_PE"`
	HardwareLifespanSeconds  int64   `yaml:"hardware_lifespan_seconds"   env:"ECOLOGITS_HARDWARE_LIFESPAN_SECONDS"`
	DatacenterPUE            float64 `yaml:"datacenter_pue"              env:"ECOLOGITS_DATACENTER_PUE"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Data: DataConfig{
			DefaultZone: request.DefaultZone,
		},
		Coefficients: FromCoefficients(impact.DefaultCoefficients()),
	}
}

// Load builds the configuration. Later sources win: defaults, the YAML file at path (skipped when
// path is empty), then .env and process environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load(".env")

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks logging settings and coefficients.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	if c.Data.DefaultZone == "" {
		return errors.New("default zone cannot be empty")
	}

	coefficients := c.Coefficients.ToCoefficients()
	if err := coefficients.Validate(); err != nil {
		return fmt.Errorf("invalid coefficients: %w", err)
	}
	return nil
}

// FromCoefficients flattens impact coefficients.
func FromCoefficients(c impact.Coefficients) CoefficientsConfig {
	return CoefficientsConfig{
		ModelQuantizationBits:    c.ModelQuantizationBits,
		GPUEnergyAlpha:           c.Server.GPU.EnergyAlpha,
		GPUEnergyBeta:            c.Server.GPU.EnergyBeta,
		GPUEnergyStdev:           c.Server.GPU.EnergyStdev,
		GPULatencyAlpha:          c.Server.GPU.LatencyAlpha,
		GPULatencyBeta:           c.Server.GPU.LatencyBeta,
		GPULatencyStdev:          c.Server.GPU.LatencyStdev,
		GPUMemoryGB:              c.Server.GPU.AvailMemoryGB,
		GPUEmbodiedImpactGWP:     c.Server.GPU.EmbodiedImpactGWP,
		GPUEmbodiedImpactADPe:    c.Server.GPU.EmbodiedImpactADPe,
		GPUEmbodiedImpactPE:      c.Server.GPU.EmbodiedImpactPE,
		ServerGPUCount:           c.Server.AvailableGPUCount,
		ServerPowerKW:            c.Server.PowerConsumptionKW,
		ServerEmbodiedImpactGWP:  c.Server.EmbodiedImpactGWP,
		ServerEmbodiedImpactADPe: c.Server.EmbodiedImpactADPe,
		ServerEmbodiedImpactPE:   c.Server.EmbodiedImpactPE,
		HardwareLifespanSeconds:  c.Server.HardwareLifespan,
		DatacenterPUE:            c.Server.DatacenterPUE,
	}
}

// ToCoefficients returns the impact coefficients described by the configuration.
func (c CoefficientsConfig) ToCoefficients() impact.Coefficients {
	return impact.Coefficients{
		ModelQuantizationBits: c.ModelQuantizationBits,
		Server: server.ServerInfra{
			AvailableGPUCount:  c.ServerGPUCount,
			PowerConsumptionKW: c.ServerPowerKW,
			EmbodiedImpactADPe: c.ServerEmbodiedImpactADPe,
			EmbodiedImpactGWP:  c.ServerEmbodiedImpactGWP,
			EmbodiedImpactPE:   c.ServerEmbodiedImpactPE,
			HardwareLifespan:   c.HardwareLifespanSeconds,
			DatacenterPUE:      c.DatacenterPUE,
			GPU: server.GPU{
				EnergyAlpha:        c.GPUEnergyAlpha,
				EnergyBeta:         c.GPUEnergyBeta,
				EnergyStdev:        c.GPUEnergyStdev,
				LatencyAlpha:       c.GPULatencyAlpha,
				LatencyBeta:        c.GPULatencyBeta,
				LatencyStdev:       c.GPULatencyStdev,
				AvailMemoryGB:      c.GPUMemoryGB,
				EmbodiedImpactADPe: c.GPUEmbodiedImpactADPe,
				EmbodiedImpactGWP:  c.GPUEmbodiedImpactGWP,
				EmbodiedImpactPE:   c.GPUEmbodiedImpactPE,
			},
		},
	}
}
