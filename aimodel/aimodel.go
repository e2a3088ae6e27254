package aimodel

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/omegabytes/ecologits-go/common"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"
)

// memoryOverhead accounts for KV-cache and runtime buffers on top of the raw weights.
const memoryOverhead = 1.2

var (
	// ErrModelNotFound is returned when no model matches a provider and name.
	ErrModelNotFound = errors.New("model not found")

	errUnexpectedType = errors.New("unexpected type")
)

//go:embed data/models.json
var modelsJSON []byte

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

type Provider string

const (
	Anthropic      Provider = "anthropic"
	Mistralai      Provider = "mistralai"
	OpenAI         Provider = "openai"
	HuggingfaceHub Provider = "huggingface_hub"
	Cohere         Provider = "cohere"
	Google         Provider = "google"
)

type ArchitectureType string

const (
	DENSE ArchitectureType = "dense"
	MOE   ArchitectureType = "moe"
)

type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Alias struct {
	Provider Provider `json:"provider"`
	Name     string   `json:"name"`
	Alias    string   `json:"alias"`
}

// Parameters holds parameter counts in billions. Dense models use the same value for both.
type Parameters struct {
	Total  common.RangeValue `json:"total"`
	Active common.RangeValue `json:"active"`
}

type Architecture struct {
	Type       ArchitectureType `json:"type"`
	Parameters Parameters       `json:"parameters"`
}

type AIModel struct {
	name         string
	provider     Provider
	architecture Architecture
	warnings     []Warning
	sources      []string
}

func (a *AIModel) Provider() Provider {
	return a.provider
}

func (a *AIModel) Name() string {
	return a.name
}

func (a *AIModel) Architecture() Architecture {
	return a.architecture
}

func (a *AIModel) Sources() []string {
	return a.sources
}

func (a *AIModel) Warnings() []Warning {
	return a.warnings
}

// ActiveParamCount returns the number of parameters used per generated token, in billions.
func (a *AIModel) ActiveParamCount() common.RangeValue {
	return a.architecture.Parameters.Active
}

// TotalParamCount returns the number of parameters loaded in memory, in billions.
func (a *AIModel) TotalParamCount() common.RangeValue {
	return a.architecture.Parameters.Total
}

// ModelRequiredMemory computes the required memory to load the model on GPU.
//
// Args:
//   - modelTotalParamCount: Number of parameters of the model (in billions).
//   - modelQuantizationBits: Number of bits used to represent the model weights.
//
// Returns:
//
//	The amount of required GPU memory to load the model, in GB.
func ModelRequiredMemory(modelTotalParamCount, modelQuantizationBits float64) float64 {
	return memoryOverhead * modelTotalParamCount * modelQuantizationBits / 8
}

type catalogKey struct {
	provider Provider
	name     string
}

// Catalog is an immutable set of models and aliases, safe for concurrent readers.
type Catalog struct {
	models  []AIModel
	index   map[catalogKey]int
	aliases map[catalogKey]string
}

// Models returns the catalog models ordered by provider then name.
func (c *Catalog) Models() []AIModel {
	models := make([]AIModel, len(c.models))
	copy(models, c.models)
	sort.Slice(models, func(i, j int) bool {
		if models[i].provider != models[j].provider {
			return models[i].provider < models[j].provider
		}
		return models[i].name < models[j].name
	})
	return models
}

// Aliases returns the alias entries of the catalog.
func (c *Catalog) Aliases() []Alias {
	aliases := make([]Alias, 0, len(c.aliases))
	for k, v := range c.aliases {
		aliases = append(aliases, Alias{Provider: k.provider, Name: k.name, Alias: v})
	}
	sort.Slice(aliases, func(i, j int) bool {
		if aliases[i].Provider != aliases[j].Provider {
			return aliases[i].Provider < aliases[j].Provider
		}
		return aliases[i].Name < aliases[j].Name
	})
	return aliases
}

// Find resolves aliases and returns the model published by provider under name.
func (c *Catalog) Find(provider, name string) (*AIModel, error) {
	switch {
	case name == "":
		return nil, errors.New("name cannot be empty")
	case provider == "":
		return nil, errors.New("provider cannot be empty")
	}

	key := catalogKey{provider: Provider(provider), name: name}
	if alias, ok := c.aliases[key]; ok {
		key.name = alias
	}
	i, ok := c.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: could not find model `%s` for %s provider", ErrModelNotFound, name, provider)
	}
	model := c.models[i]
	return &model, nil
}

// DefaultCatalog returns the catalog bundled with the module. It is parsed once.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseAIModels(modelsJSON, zerolog.Nop())
	})
	return defaultCatalog, defaultCatalogErr
}

// FetchAIModels reads a model catalog from a JSON file.
func FetchAIModels(source string, logger zerolog.Logger) (*Catalog, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseAIModels(data, logger)
}

// ParseAIModels parses a model catalog document of the form {"aliases": [...], "models": [...]}.
func ParseAIModels(data []byte, logger zerolog.Logger) (*Catalog, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}

	catalog := &Catalog{
		index:   make(map[catalogKey]int),
		aliases: make(map[catalogKey]string),
	}

	for i, m := range v.GetArray("models") {
		model, err := parseAIModel(m)
		if err != nil {
			return nil, fmt.Errorf("failed to parse model %d: %w", i, err)
		}
		key := catalogKey{provider: model.provider, name: model.name}
		if _, dup := catalog.index[key]; dup {
			logger.Warn().Str("provider", string(model.provider)).Str("name", model.name).Msg("duplicate model, keeping first")
			continue
		}
		catalog.index[key] = len(catalog.models)
		catalog.models = append(catalog.models, model)
	}

	for _, a := range v.GetArray("aliases") {
		provider := string(a.GetStringBytes("provider"))
		name := string(a.GetStringBytes("name"))
		alias := string(a.GetStringBytes("alias"))
		if provider == "" || name == "" || alias == "" {
			logger.Warn().Str("alias", a.String()).Msg("skipping incomplete alias")
			continue
		}
		catalog.aliases[catalogKey{provider: Provider(provider), name: name}] = alias
	}

	logger.Info().Int("models", len(catalog.models)).Int("aliases", len(catalog.aliases)).Msg("loaded AI model data")
	return catalog, nil
}

func parseAIModel(v *fastjson.Value) (AIModel, error) {
	name := string(v.GetStringBytes("name"))
	provider := string(v.GetStringBytes("provider"))
	switch {
	case name == "":
		return AIModel{}, errors.New("name cannot be empty")
	case provider == "":
		return AIModel{}, errors.New("provider cannot be empty")
	}

	architecture, err := parseArchitecture(v.Get("architecture"))
	if err != nil {
		return AIModel{}, fmt.Errorf("model %s/%s: %w", provider, name, err)
	}

	return AIModel{
		name:         name,
		provider:     Provider(provider),
		architecture: architecture,
		warnings:     parseWarnings(v.GetArray("warnings")),
		sources:      parseStringArray(v.GetArray("sources")),
	}, nil
}

func parseArchitecture(v *fastjson.Value) (Architecture, error) {
	if v == nil {
		return Architecture{}, errors.New("architecture is missing")
	}

	archType := ArchitectureType(v.GetStringBytes("type"))
	params := v.Get("parameters")
	if params == nil {
		return Architecture{}, errors.New("architecture parameters are missing")
	}

	switch archType {
	case DENSE:
		count, err := parseRangeValue(params)
		if err != nil {
			return Architecture{}, fmt.Errorf("parameters: %w", err)
		}
		return Architecture{Type: DENSE, Parameters: Parameters{Total: count, Active: count}}, nil
	case MOE:
		total, err := parseRangeValue(params.Get("total"))
		if err != nil {
			return Architecture{}, fmt.Errorf("parameters.total: %w", err)
		}
		active, err := parseRangeValue(params.Get("active"))
		if err != nil {
			return Architecture{}, fmt.Errorf("parameters.active: %w", err)
		}
		return Architecture{Type: MOE, Parameters: Parameters{Total: total, Active: active}}, nil
	default:
		return Architecture{}, fmt.Errorf("%w: architecture type %q", errUnexpectedType, archType)
	}
}

// parseRangeValue accepts either a number or a {"min", "max"} object. An object with a single
// bound is read as a degenerate range on that bound.
func parseRangeValue(v *fastjson.Value) (common.RangeValue, error) {
	if v == nil {
		return common.RangeValue{}, errors.New("value is missing")
	}

	switch v.Type() {
	case fastjson.TypeNumber:
		f, err := v.Float64()
		if err != nil {
			return common.RangeValue{}, err
		}
		return common.Scalar(f), nil
	case fastjson.TypeObject:
		minV, maxV := v.Get("min"), v.Get("max")
		if minV == nil && maxV == nil {
			return common.RangeValue{}, fmt.Errorf("%w: range needs min or max", errUnexpectedType)
		}
		if minV == nil {
			minV = maxV
		}
		if maxV == nil {
			maxV = minV
		}
		lower, err := minV.Float64()
		if err != nil {
			return common.RangeValue{}, fmt.Errorf("%w: range min: %w", errUnexpectedType, err)
		}
		upper, err := maxV.Float64()
		if err != nil {
			return common.RangeValue{}, fmt.Errorf("%w: range max: %w", errUnexpectedType, err)
		}
		return common.NewRangeValue(lower, upper)
	default:
		return common.RangeValue{}, fmt.Errorf("%w: %s", errUnexpectedType, v.Type())
	}
}

func parseWarnings(values []*fastjson.Value) []Warning {
	warnings := make([]Warning, 0, len(values))
	for _, v := range values {
		warnings = append(warnings, Warning{
			Code:    string(v.GetStringBytes("code")),
			Message: string(v.GetStringBytes("message")),
		})
	}
	return warnings
}

func parseStringArray(values []*fastjson.Value) []string {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		if b, err := v.StringBytes(); err == nil {
			strs = append(strs, string(b))
		}
	}
	return strs
}
