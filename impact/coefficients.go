package impact

import (
	"errors"
	"math"

	"github.com/omegabytes/ecologits-go/server"
)

// Coefficients are the empirical and physical constants used by the pipeline.
// Start from DefaultCoefficients and override individual fields as needed.
type Coefficients struct {
	// ModelQuantizationBits is the number of bits used to store each model weight.
	ModelQuantizationBits float64            `json:"model_quantization_bits" yaml:"model_quantization_bits"`
	Server                server.ServerInfra `json:"server"                  yaml:"server"`
}

// DefaultCoefficients returns the reference coefficients.
func DefaultCoefficients() Coefficients {
	const modelQuantizationBits = 4

	return Coefficients{
		ModelQuantizationBits: modelQuantizationBits,
		Server:                server.GenericServerInfra(),
	}
}

// Validate checks every coefficient. GPUs per server and the hardware lifespan are divisors and
// must not be zero.
func (c *Coefficients) Validate() error {
	if math.IsNaN(c.ModelQuantizationBits) || math.IsInf(c.ModelQuantizationBits, 0) || c.ModelQuantizationBits <= 0 {
		return errors.New("ModelQuantizationBits must be greater than 0")
	}
	return c.Server.Validate()
}
