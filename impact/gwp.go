package impact

import (
	"github.com/omegabytes/ecologits-go/common"
	"github.com/omegabytes/ecologits-go/request"
	"github.com/omegabytes/ecologits-go/server"
)

// NewGWP returns a Global Warming Potential (GWP) value in kgCO2eq.
func NewGWP(v common.RangeValue) Value {
	return Value{Type: TypeGWP, Name: "Global Warming Potential", Unit: "kgCO2eq", Value: v}
}

var gwpDimension = dimension{
	// kgCO2eq / kWh
	mixFactor:      func(m request.ElectricityMix) float64 { return m.GWP },
	serverEmbodied: func(s *server.ServerInfra) float64 { return s.EmbodiedImpactGWP },
	gpuEmbodied:    func(s *server.ServerInfra) float64 { return s.GPU.EmbodiedImpactGWP },
	stages:         func(s *Stages) *DimensionStages { return &s.GWP },
}
