package config

import "go.uber.org/dig"

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	Logging      LoggingConfig
	Data         DataConfig
	Coefficients CoefficientsConfig
}

// ParseDependenciesConfig splits the configuration into the sections consumers depend on.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Logging:      cfg.Logging,
		Data:         cfg.Data,
		Coefficients: cfg.Coefficients,
	}
}
