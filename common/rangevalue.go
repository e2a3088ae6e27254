/*
Package common holds the value types shared by the model catalog, the hardware formulas and the impact pipeline.
*/
package common

import (
	"errors"
	"fmt"
	"math"
)

// RangeValue is an inclusive interval used to carry the uncertainty of an estimate.
// A scalar v is represented by the degenerate range {v, v}.
//
// Multiplication pairs lower bounds together and upper bounds together. This only holds
// because every modeled quantity is non-negative and grows with its inputs; it is not a
// general interval product and must be revisited if negative coefficients are ever allowed.
type RangeValue struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Scalar returns the degenerate range {v, v}.
func Scalar(v float64) RangeValue {
	return RangeValue{Min: v, Max: v}
}

// NewRangeValue returns {lower, upper} or an error when lower > upper.
func NewRangeValue(lower, upper float64) (RangeValue, error) {
	r := RangeValue{Min: lower, Max: upper}
	if err := r.Validate(); err != nil {
		return RangeValue{}, err
	}
	return r, nil
}

// Mean returns the midpoint of the range.
func (r RangeValue) Mean() float64 {
	return (r.Min + r.Max) / 2
}

// IsScalar reports whether the range is degenerate.
func (r RangeValue) IsScalar() bool {
	return r.Min == r.Max
}

// Add returns {r.Min+o.Min, r.Max+o.Max}.
func (r RangeValue) Add(o RangeValue) RangeValue {
	return RangeValue{Min: r.Min + o.Min, Max: r.Max + o.Max}
}

// AddScalar adds v to both bounds.
func (r RangeValue) AddScalar(v float64) RangeValue {
	return r.Add(Scalar(v))
}

// Multiply scales both bounds by v.
func (r RangeValue) Multiply(v float64) RangeValue {
	return r.MultiplyRange(Scalar(v))
}

// MultiplyRange returns {r.Min*o.Min, r.Max*o.Max}.
func (r RangeValue) MultiplyRange(o RangeValue) RangeValue {
	return RangeValue{Min: r.Min * o.Min, Max: r.Max * o.Max}
}

// Divide divides both bounds by v. Division by zero is not trapped.
func (r RangeValue) Divide(v float64) RangeValue {
	return RangeValue{Min: r.Min / v, Max: r.Max / v}
}

// LessThan reports whether the whole range lies below v.
func (r RangeValue) LessThan(v float64) bool {
	return r.Max < v
}

// Union returns the smallest range enclosing both r and o.
func (r RangeValue) Union(o RangeValue) RangeValue {
	return RangeValue{Min: math.Min(r.Min, o.Min), Max: math.Max(r.Max, o.Max)}
}

// Validate checks that both bounds are numbers and that Min <= Max.
func (r RangeValue) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return errors.New("range bounds must not be NaN")
	}
	if r.Min > r.Max {
		return fmt.Errorf("range min %g must not exceed max %g", r.Min, r.Max)
	}
	return nil
}

func (r RangeValue) String() string {
	if r.IsScalar() {
		return fmt.Sprintf("%g", r.Min)
	}
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}
