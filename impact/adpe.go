package impact

import (
	"github.com/omegabytes/ecologits-go/common"
	"github.com/omegabytes/ecologits-go/request"
	"github.com/omegabytes/ecologits-go/server"
)

// NewADPe returns an Abiotic Depletion Potential for Elements (ADPe) value in kgSbeq.
func NewADPe(v common.RangeValue) Value {
	return Value{Type: TypeADPe, Name: "Abiotic Depletion Potential (elements)", Unit: "kgSbeq", Value: v}
}

var adpeDimension = dimension{
	// kgSbeq / kWh
	mixFactor:      func(m request.ElectricityMix) float64 { return m.ADPe },
	serverEmbodied: func(s *server.ServerInfra) float64 { return s.EmbodiedImpactADPe },
	gpuEmbodied:    func(s *server.ServerInfra) float64 { return s.GPU.EmbodiedImpactADPe },
	stages:         func(s *Stages) *DimensionStages { return &s.ADPe },
}
