package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"go.uber.org/dig"

	ecologits "github.com/omegabytes/ecologits-go"
	"github.com/omegabytes/ecologits-go/aimodel"
	"github.com/omegabytes/ecologits-go/config"
	"github.com/omegabytes/ecologits-go/logging"
	"github.com/omegabytes/ecologits-go/request"
)

func buildContainer(configPath string, logOutput io.Writer) (*dig.Container, error) {
	container := dig.New()

	providers := []struct {
		name        string
		constructor any
	}{
		{"config", func() (*config.Config, error) { return config.Load(configPath) }},
		{"config dependencies", config.ParseDependenciesConfig},
		{"logger", func(cfg config.LoggingConfig) (zerolog.Logger, error) { return logging.New(cfg, logOutput) }},
		{"model catalog", newCatalog},
		{"electricity mixes", newElectricityMixes},
		{"estimator", newEstimator},
	}
	for _, p := range providers {
		if err := container.Provide(p.constructor); err != nil {
			return nil, fmt.Errorf("failed to provide %s: %w", p.name, err)
		}
	}

	return container, nil
}

func newCatalog(data config.DataConfig, logger zerolog.Logger) (*aimodel.Catalog, error) {
	if data.ModelsPath == "" {
		return aimodel.DefaultCatalog()
	}
	return aimodel.FetchAIModels(data.ModelsPath, logger)
}

func newElectricityMixes(data config.DataConfig, logger zerolog.Logger) (*request.ElectricityMixes, error) {
	if data.ElectricityMixesPath == "" {
		return request.DefaultElectricityMixes()
	}
	return request.LoadElectricityMixesFile(data.ElectricityMixesPath, logger)
}

func newEstimator(
	catalog *aimodel.Catalog,
	mixes *request.ElectricityMixes,
	data config.DataConfig,
	coefficients config.CoefficientsConfig,
	logger zerolog.Logger,
) (*ecologits.Estimator, error) {
	return ecologits.New(
		ecologits.WithCatalog(catalog),
		ecologits.WithElectricityMixes(mixes),
		ecologits.WithDefaultZone(data.DefaultZone),
		ecologits.WithCoefficients(coefficients.ToCoefficients()),
		ecologits.WithLogger(logger),
	)
}
