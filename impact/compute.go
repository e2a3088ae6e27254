package impact

import (
	"fmt"

	"github.com/omegabytes/ecologits-go/aimodel"
	"github.com/omegabytes/ecologits-go/request"
)

// ComputeImpacts computes the environmental and energy impact of one inference request.
//
// When the active or total parameter count is a range, the pipeline is evaluated at the lower
// bounds and at the upper bounds of both counts, and each output is the smallest range enclosing
// the two evaluations. Scalar counts need a single evaluation.
//
// Either a complete Impacts or an error is returned, never a partial result.
func ComputeImpacts(req request.Request, c Coefficients) (Impacts, error) {
	if err := c.Validate(); err != nil {
		return Impacts{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := req.Validate(); err != nil {
		return Impacts{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	active, total := req.ActiveParamCount, req.TotalParamCount
	// the GPU count grows with the total parameter count, so the upper bound is the worst case
	if !c.Server.FitsGPURequiredCount(aimodel.ModelRequiredMemory(total.Max, c.ModelQuantizationBits)) {
		return Impacts{}, fmt.Errorf("%w: TotalParamCount %g needs more GPUs than can be counted", ErrInvalidInput, total.Max)
	}

	lower := Evaluate(active.Min, total.Min, req, c)
	out := lower.outputs()
	if !active.IsScalar() || !total.IsScalar() {
		upper := Evaluate(active.Max, total.Max, req, c)
		out = out.union(upper.outputs())
	}

	impacts, err := assemble(out)
	if err != nil {
		return Impacts{}, fmt.Errorf("failed to assemble impacts: %w", err)
	}
	return impacts, nil
}
