package impact

import (
	"github.com/omegabytes/ecologits-go/common"
	"github.com/omegabytes/ecologits-go/request"
	"github.com/omegabytes/ecologits-go/server"
)

// NewPE returns a Primary Energy (PE) value in MJ.
func NewPE(v common.RangeValue) Value {
	return Value{Type: TypePE, Name: "Primary Energy", Unit: "MJ", Value: v}
}

var peDimension = dimension{
	// MJ / kWh
	mixFactor:      func(m request.ElectricityMix) float64 { return m.PE },
	serverEmbodied: func(s *server.ServerInfra) float64 { return s.EmbodiedImpactPE },
	gpuEmbodied:    func(s *server.ServerInfra) float64 { return s.GPU.EmbodiedImpactPE },
	stages:         func(s *Stages) *DimensionStages { return &s.PE },
}
