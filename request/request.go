package request

import (
	"errors"
	"fmt"
	"math"

	"github.com/omegabytes/ecologits-go/common"
)

// ErrInvalidRequest is wrapped by every Request validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// Request holds everything the impact pipeline needs to know about one inference request.
type Request struct {
	// ActiveParamCount is the number of parameters used per token, in billions.
	ActiveParamCount common.RangeValue `json:"active_param_count"`
	// TotalParamCount is the number of parameters loaded in memory, in billions.
	TotalParamCount  common.RangeValue `json:"total_param_count"`
	OutputTokenCount int64             `json:"output_token_count"`
	// Latency is the measured request latency in seconds. +Inf means unconstrained and
	// cannot be encoded as JSON.
	Latency        float64        `json:"latency"`
	ElectricityMix ElectricityMix `json:"electricity_mix"`
}

// ElectricityMix holds the impact factors of one kWh of electricity in a given zone.
type ElectricityMix struct {
	Zone string  `json:"zone"`
	ADPe float64 `json:"adpe"` // kgSbeq / kWh
	PE   float64 `json:"pe"`   // MJ / kWh
	GWP  float64 `json:"gwp"`  // kgCO2eq / kWh
}

// New returns a Request with an unconstrained latency.
func New(activeParamCount, totalParamCount common.RangeValue, outputTokenCount int64, mix ElectricityMix) Request {
	return Request{
		ActiveParamCount: activeParamCount,
		TotalParamCount:  totalParamCount,
		OutputTokenCount: outputTokenCount,
		Latency:          math.Inf(1),
		ElectricityMix:   mix,
	}
}

// Validate rejects inputs that would make the pipeline produce NaN or meaningless values.
func (r *Request) Validate() error {
	if err := validateParamCount("ActiveParamCount", r.ActiveParamCount); err != nil {
		return err
	}
	if err := validateParamCount("TotalParamCount", r.TotalParamCount); err != nil {
		return err
	}
	if r.OutputTokenCount <= 0 {
		return fmt.Errorf("%w: OutputTokenCount must be greater than 0", ErrInvalidRequest)
	}
	if math.IsNaN(r.Latency) || r.Latency <= 0 {
		return fmt.Errorf("%w: Latency must be greater than 0", ErrInvalidRequest)
	}
	return r.ElectricityMix.Validate()
}

// Validate checks that every factor is a finite, non-negative number.
func (m ElectricityMix) Validate() error {
	factors := []struct {
		name  string
		value float64
	}{
		{"ADPe", m.ADPe},
		{"PE", m.PE},
		{"GWP", m.GWP},
	}
	for _, f := range factors {
		if !finiteNonNegative(f.value) {
			return fmt.Errorf("%w: electricity mix %s must be a finite non-negative number", ErrInvalidRequest, f.name)
		}
	}
	return nil
}

func validateParamCount(name string, r common.RangeValue) error {
	if !finiteNonNegative(r.Min) || !finiteNonNegative(r.Max) {
		return fmt.Errorf("%w: %s must be a finite non-negative number", ErrInvalidRequest, name)
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRequest, name, err)
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
