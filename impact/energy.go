package impact

import "github.com/omegabytes/ecologits-go/common"

// NewEnergy returns an energy value in kWh.
func NewEnergy(v common.RangeValue) Value {
	return Value{Type: TypeEnergy, Name: "Energy", Unit: "kWh", Value: v}
}
