/*
Package impact provides utilities for calculating the environmental and energy impact of using generative AI models.

The computation is a pure function of a request and a set of hardware coefficients: it performs no I/O and keeps
no state between calls.
*/
package impact

import (
	"errors"
	"fmt"

	"github.com/omegabytes/ecologits-go/common"
)

var (
	// ErrInvalidInput is wrapped by every validation failure of ComputeImpacts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrKindMismatch is returned when adding impact values of different types.
	ErrKindMismatch = errors.New("impact type mismatch")
)

// Type identifies the dimension of an impact value.
type Type string

const (
	TypeEnergy Type = "energy"
	TypeGWP    Type = "GWP"
	TypeADPe   Type = "ADPe"
	TypePE     Type = "PE"
)

// Value is an impact estimate in a given dimension and unit.
type Value struct {
	Type  Type              `json:"type"`
	Name  string            `json:"name"`
	Unit  string            `json:"unit"`
	Value common.RangeValue `json:"value"`
}

// Add sums two values of the same type. Adding values of different types is a programming error
// reported as ErrKindMismatch.
func (v Value) Add(other Value) (Value, error) {
	if v.Type != other.Type {
		return Value{}, fmt.Errorf("%w: cannot add %s with %s", ErrKindMismatch, v.Type, other.Type)
	}
	return Value{
		Type:  v.Type,
		Name:  v.Name,
		Unit:  v.Unit,
		Value: v.Value.Add(other.Value),
	}, nil
}

// Mean returns the midpoint of the estimate.
func (v Value) Mean() float64 {
	return v.Value.Mean()
}

func (v Value) String() string {
	return fmt.Sprintf("%s %s", v.Value, v.Unit)
}

// Usage holds the operational impacts of the electricity consumed by the request.
type Usage struct {
	Energy Value `json:"energy"`
	GWP    Value `json:"gwp"`
	ADPe   Value `json:"adpe"`
	PE     Value `json:"pe"`
}

// Embodied holds the manufacturing impacts of the hardware attributed to the request.
type Embodied struct {
	GWP  Value `json:"gwp"`
	ADPe Value `json:"adpe"`
	PE   Value `json:"pe"`
}

// Impacts is the result of ComputeImpacts. GWP, ADPe and PE are usage plus embodied totals.
type Impacts struct {
	Energy   Value    `json:"energy"`
	GWP      Value    `json:"gwp"`
	ADPe     Value    `json:"adpe"`
	PE       Value    `json:"pe"`
	Usage    Usage    `json:"usage"`
	Embodied Embodied `json:"embodied"`
}

// assemble sums usage and embodied impacts per dimension.
func assemble(out outputs) (Impacts, error) {
	energy := NewEnergy(out[requestEnergy])
	usage := Usage{
		Energy: energy,
		GWP:    NewGWP(out[usageGWP]),
		ADPe:   NewADPe(out[usageADPe]),
		PE:     NewPE(out[usagePE]),
	}
	embodied := Embodied{
		GWP:  NewGWP(out[embodiedGWP]),
		ADPe: NewADPe(out[embodiedADPe]),
		PE:   NewPE(out[embodiedPE]),
	}

	gwp, err := usage.GWP.Add(embodied.GWP)
	if err != nil {
		return Impacts{}, fmt.Errorf("failed to total GWP: %w", err)
	}
	adpe, err := usage.ADPe.Add(embodied.ADPe)
	if err != nil {
		return Impacts{}, fmt.Errorf("failed to total ADPe: %w", err)
	}
	pe, err := usage.PE.Add(embodied.PE)
	if err != nil {
		return Impacts{}, fmt.Errorf("failed to total PE: %w", err)
	}

	return Impacts{
		Energy:   energy,
		GWP:      gwp,
		ADPe:     adpe,
		PE:       pe,
		Usage:    usage,
		Embodied: embodied,
	}, nil
}
