// Package ecologits estimates the environmental impacts of LLM inference requests.
package ecologits

import (
	"fmt"

	"github.com/omegabytes/ecologits-go/aimodel"
	"github.com/omegabytes/ecologits-go/impact"
	"github.com/omegabytes/ecologits-go/request"
	"github.com/rs/zerolog"
)

// Estimator resolves models and electricity mixes and computes request impacts.
type Estimator struct {
	catalog      *aimodel.Catalog
	mixes        *request.ElectricityMixes
	coefficients impact.Coefficients
	defaultZone  string
	logger       zerolog.Logger
}

// Estimation is the result of Estimate.
type Estimation struct {
	Provider aimodel.Provider  `json:"provider"`
	Model    string            `json:"model"`
	Zone     string            `json:"zone"`
	Impacts  impact.Impacts    `json:"impacts"`
	Warnings []aimodel.Warning `json:"warnings"`
}

type Option func(*Estimator)

func WithCatalog(c *aimodel.Catalog) Option {
	return func(e *Estimator) { e.catalog = c }
}

func WithElectricityMixes(m *request.ElectricityMixes) Option {
	return func(e *Estimator) { e.mixes = m }
}

func WithCoefficients(c impact.Coefficients) Option {
	return func(e *Estimator) { e.coefficients = c }
}

// WithDefaultZone sets the zone used when a call passes an empty zone.
func WithDefaultZone(zone string) Option {
	return func(e *Estimator) { e.defaultZone = zone }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Estimator) { e.logger = l }
}

// New returns an Estimator. Anything not set by an option falls back to the bundled data
// and the default coefficients.
func New(opts ...Option) (*Estimator, error) {
	e := &Estimator{
		coefficients: impact.DefaultCoefficients(),
		defaultZone:  request.DefaultZone,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.catalog == nil {
		catalog, err := aimodel.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("failed to load default model catalog: %w", err)
		}
		e.catalog = catalog
	}
	if e.mixes == nil {
		mixes, err := request.DefaultElectricityMixes()
		if err != nil {
			return nil, fmt.Errorf("failed to load default electricity mixes: %w", err)
		}
		e.mixes = mixes
	}
	if err := e.coefficients.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", impact.ErrInvalidInput, err)
	}
	if _, err := e.mixes.GetElectricityMix(e.defaultZone); err != nil {
		return nil, fmt.Errorf("invalid default zone: %w", err)
	}
	return e, nil
}

// NewLLM returns the catalog entry for a model, resolving aliases.
func (e *Estimator) NewLLM(provider, modelName string) (*aimodel.AIModel, error) {
	return e.catalog.Find(provider, modelName)
}

// NewRequest builds a request for model running in zone. An empty zone selects the default zone.
func (e *Estimator) NewRequest(model *aimodel.AIModel, outputTokenCount int64, requestLatency float64, zone string) (request.Request, error) {
	if zone == "" {
		zone = e.defaultZone
	}
	mix, err := e.mixes.GetElectricityMix(zone)
	if err != nil {
		return request.Request{}, err
	}

	req := request.New(model.ActiveParamCount(), model.TotalParamCount(), outputTokenCount, mix)
	req.Latency = requestLatency
	return req, nil
}

// Estimate computes the impacts of one request to provider's model and reports the model's warnings.
// requestLatency is in seconds; pass math.Inf(1) when it is unknown.
func (e *Estimator) Estimate(provider, modelName string, outputTokenCount int64, requestLatency float64, zone string) (Estimation, error) {
	model, err := e.NewLLM(provider, modelName)
	if err != nil {
		return Estimation{}, err
	}

	req, err := e.NewRequest(model, outputTokenCount, requestLatency, zone)
	if err != nil {
		return Estimation{}, err
	}

	e.logger.Debug().
		Str("provider", string(model.Provider())).
		Str("model", model.Name()).
		Str("zone", req.ElectricityMix.Zone).
		Stringer("active_params", req.ActiveParamCount).
		Stringer("total_params", req.TotalParamCount).
		Int64("output_tokens", outputTokenCount).
		Float64("latency", requestLatency).
		Msg("computing impacts")

	impacts, err := impact.ComputeImpacts(req, e.coefficients)
	if err != nil {
		return Estimation{}, err
	}

	e.logger.Debug().
		Stringer("energy", impacts.Energy).
		Stringer("gwp", impacts.GWP).
		Msg("computed impacts")

	return Estimation{
		Provider: model.Provider(),
		Model:    model.Name(),
		Zone:     req.ElectricityMix.Zone,
		Impacts:  impacts,
		Warnings: model.Warnings(),
	}, nil
}

// LLMImpacts computes the impacts of one request to provider's model.
func (e *Estimator) LLMImpacts(provider, modelName string, outputTokenCount int64, requestLatency float64, zone string) (impact.Impacts, error) {
	estimation, err := e.Estimate(provider, modelName, outputTokenCount, requestLatency, zone)
	if err != nil {
		return impact.Impacts{}, err
	}
	return estimation.Impacts, nil
}

// LLMImpacts computes impacts with the bundled data and default coefficients.
func LLMImpacts(provider, modelName string, outputTokenCount int64, requestLatency float64, zone string) (impact.Impacts, error) {
	e, err := New()
	if err != nil {
		return impact.Impacts{}, err
	}
	return e.LLMImpacts(provider, modelName, outputTokenCount, requestLatency, zone)
}
