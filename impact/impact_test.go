package impact

import (
	"errors"
	"math"
	"testing"

	"github.com/omegabytes/ecologits-go/common"
	"github.com/omegabytes/ecologits-go/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

// worldMix is the world average electricity mix.
var worldMix = request.ElectricityMix{Zone: "WOR", ADPe: 7.37708e-08, PE: 9.988852, GWP: 0.590478}

func assertRangeInEpsilon(t *testing.T, want, got common.RangeValue, msgAndArgs ...any) {
	t.Helper()
	if want.Min == 0 {
		assert.InDelta(t, want.Min, got.Min, 1e-18, msgAndArgs...)
	} else {
		assert.InEpsilon(t, want.Min, got.Min, epsilon, msgAndArgs...)
	}
	assert.InEpsilon(t, want.Max, got.Max, epsilon, msgAndArgs...)
}

func newRequest(active, total common.RangeValue, outputTokenCount int64) request.Request {
	return request.New(active, total, outputTokenCount, worldMix)
}

func TestValue_Add(t *testing.T) {
	tests := []struct {
		name          string
		a             Value
		b             Value
		want          Value
		expectedError error
	}{
		{
			name: "should add values of the same type",
			a:    NewGWP(common.RangeValue{Min: 1, Max: 2}),
			b:    NewGWP(common.RangeValue{Min: 3, Max: 4}),
			want: NewGWP(common.RangeValue{Min: 4, Max: 6}),
		},
		{
			name:          "should return error when types differ",
			a:             NewGWP(common.Scalar(1)),
			b:             NewPE(common.Scalar(1)),
			expectedError: ErrKindMismatch,
		},
		{
			name:          "should return error when adding energy to ADPe",
			a:             NewEnergy(common.Scalar(1)),
			b:             NewADPe(common.Scalar(1)),
			expectedError: ErrKindMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Add(tt.b)
			if tt.expectedError != nil {
				assert.True(t, errors.Is(err, tt.expectedError))
				assert.Equal(t, Value{}, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_Constructors(t *testing.T) {
	v := common.Scalar(1)
	tests := []struct {
		got      Value
		wantType Type
		wantUnit string
	}{
		{NewEnergy(v), TypeEnergy, "kWh"},
		{NewGWP(v), TypeGWP, "kgCO2eq"},
		{NewADPe(v), TypeADPe, "kgSbeq"},
		{NewPE(v), TypePE, "MJ"},
	}
	for _, tt := range tests {
		t.Run(string(tt.wantType), func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.got.Type)
			assert.Equal(t, tt.wantUnit, tt.got.Unit)
			assert.NotEmpty(t, tt.got.Name)
			assert.Equal(t, 1.0, tt.got.Mean())
		})
	}
	assert.Equal(t, "[1, 3] MJ", NewPE(common.RangeValue{Min: 1, Max: 3}).String())
}

func TestDefaultCoefficients(t *testing.T) {
	c := DefaultCoefficients()
	assert.Equal(t, 4.0, c.ModelQuantizationBits)
	assert.Equal(t, 8, c.Server.AvailableGPUCount)
	assert.Equal(t, 1.2, c.Server.DatacenterPUE)
	assert.NoError(t, c.Validate())
}

func TestComputeImpacts_Dense70B(t *testing.T) {
	req := newRequest(common.Scalar(70), common.Scalar(70), 1000)

	got, err := ComputeImpacts(req, DefaultCoefficients())
	require.NoError(t, err)

	assertRangeInEpsilon(t, common.RangeValue{Min: 0.011247473666666667, Max: 0.013689993}, got.Energy.Value, "energy")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.006641385755746, Max: 0.008083639686654}, got.Usage.GWP.Value, "usage gwp")
	assertRangeInEpsilon(t, common.RangeValue{Min: 8.297351303689333e-10, Max: 1.0099217356044e-09}, got.Usage.ADPe.Value, "usage adpe")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.11234934983023066, Max: 0.136747313958036}, got.Usage.PE.Value, "usage pe")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.00025764087417554543, Max: 0.0002577310182648402}, got.Embodied.GWP.Value, "embodied gwp")
	assertRangeInEpsilon(t, common.RangeValue{Min: 1.745790479452055e-08, Max: 1.7464013013698628e-08}, got.Embodied.ADPe.Value, "embodied adpe")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.0032717406763064436, Max: 0.0032728854018264837}, got.Embodied.PE.Value, "embodied pe")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.006899026629921545, Max: 0.00834137070491884}, got.GWP.Value, "gwp")
	assertRangeInEpsilon(t, common.RangeValue{Min: 1.828763992488948e-08, Max: 1.847393474930303e-08}, got.ADPe.Value, "adpe")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.1156210905065371, Max: 0.14002019935986249}, got.PE.Value, "pe")

	assert.Equal(t, got.Energy, got.Usage.Energy)
	assert.Equal(t, TypeGWP, got.GWP.Type)
	assert.Equal(t, TypeEnergy, got.Energy.Type)
}

func TestComputeImpacts_MixtureOfExperts(t *testing.T) {
	req := newRequest(common.Scalar(22), common.Scalar(141), 1000)

	stages := Evaluate(22, 141, req, DefaultCoefficients())
	// sized on total parameters: 1.2 * 141 * 4 / 8 = 84.6 GB on 80 GB GPUs
	assert.InDelta(t, 84.6, stages.ModelRequiredMemory, 1e-9)
	assert.Equal(t, 2, stages.GPURequiredCount)
	// latency driven by active parameters
	assertRangeInEpsilon(t, common.RangeValue{Min: 39.930279999999996, Max: 39.95772}, stages.GenerationLatency)

	got, err := ComputeImpacts(req, DefaultCoefficients())
	require.NoError(t, err)
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.009022627333333333, Max: 0.013907666}, got.Energy.Value, "energy")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.0055900156193458, Max: 0.008474703769340388}, got.GWP.Value, "gwp")
	assertRangeInEpsilon(t, common.RangeValue{Min: 1.8442785888536658e-08, Max: 1.8815375537363757e-08}, got.ADPe.Value, "adpe")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.09345726419594716, Max: 0.1422554819025979}, got.PE.Value, "pe")
}

func TestComputeImpacts_LatencyCap(t *testing.T) {
	req := newRequest(common.Scalar(70), common.Scalar(70), 1000)
	// modeled latency is ~78.4s, well above the measured 10s
	req.Latency = 10

	stages := Evaluate(70, 70, req, DefaultCoefficients())
	assert.Equal(t, common.RangeValue{Min: 10, Max: 10}, stages.GenerationLatency)

	got, err := ComputeImpacts(req, DefaultCoefficients())
	require.NoError(t, err)
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.008396378666666666, Max: 0.010837754666666666}, got.Energy.Value, "energy")
	assertRangeInEpsilon(t, common.RangeValue{Min: 3.285134449518011e-05, Max: 3.285134449518011e-05}, got.Embodied.GWP.Value, "embodied gwp")
	assertRangeInEpsilon(t, common.RangeValue{Min: 0.0049907282268311795, Max: 0.006432307044559179}, got.GWP.Value, "gwp")
}

func TestComputeImpacts_RangeExpansion(t *testing.T) {
	active := common.RangeValue{Min: 55, Max: 220}
	total := common.RangeValue{Min: 440, Max: 1320}
	req := newRequest(active, total, 500)
	c := DefaultCoefficients()

	got, err := ComputeImpacts(req, c)
	require.NoError(t, err)

	lower := Evaluate(active.Min, total.Min, req, c)
	upper := Evaluate(active.Max, total.Max, req, c)
	assert.Equal(t, 4, lower.GPURequiredCount)
	assert.Equal(t, 10, upper.GPURequiredCount)

	t.Run("should span both boundary evaluations", func(t *testing.T) {
		assert.Equal(t, lower.RequestEnergy.Union(upper.RequestEnergy), got.Energy.Value)
		assert.Equal(t, lower.GWP.Usage.Union(upper.GWP.Usage), got.Usage.GWP.Value)
		assert.Equal(t, lower.ADPe.Usage.Union(upper.ADPe.Usage), got.Usage.ADPe.Value)
		assert.Equal(t, lower.PE.Usage.Union(upper.PE.Usage), got.Usage.PE.Value)
		assert.Equal(t, lower.GWP.Embodied.Union(upper.GWP.Embodied), got.Embodied.GWP.Value)
		assert.Equal(t, lower.ADPe.Embodied.Union(upper.ADPe.Embodied), got.Embodied.ADPe.Value)
		assert.Equal(t, lower.PE.Embodied.Union(upper.PE.Embodied), got.Embodied.PE.Value)
	})

	t.Run("should match reference values", func(t *testing.T) {
		assertRangeInEpsilon(t, common.RangeValue{Min: 0.018284847333333333, Max: 0.173702465}, got.Energy.Value, "energy")
		assertRangeInEpsilon(t, common.RangeValue{Min: 0.011233041497187686, Max: 0.10583214759097928}, got.GWP.Value, "gwp")
		assertRangeInEpsilon(t, common.RangeValue{Min: 3.090887548689074e-08, Max: 2.3402978281872057e-07}, got.ADPe.Value, "adpe")
		assertRangeInEpsilon(t, common.RangeValue{Min: 0.188184394507722, Max: 1.7765456594331175}, got.PE.Value, "pe")
	})
}

func TestComputeImpacts_RangeOnActiveOnly(t *testing.T) {
	c := DefaultCoefficients()
	ranged := newRequest(common.RangeValue{Min: 10, Max: 20}, common.Scalar(70), 200)

	got, err := ComputeImpacts(ranged, c)
	require.NoError(t, err)

	lo, err := ComputeImpacts(newRequest(common.Scalar(10), common.Scalar(70), 200), c)
	require.NoError(t, err)
	hi, err := ComputeImpacts(newRequest(common.Scalar(20), common.Scalar(70), 200), c)
	require.NoError(t, err)

	assert.Equal(t, lo.Energy.Value.Min, got.Energy.Value.Min)
	assert.Equal(t, hi.Energy.Value.Max, got.Energy.Value.Max)
	assert.LessOrEqual(t, got.Energy.Value.Min, lo.Energy.Value.Max)
	assert.GreaterOrEqual(t, got.Energy.Value.Max, hi.Energy.Value.Min)
}

func TestComputeImpacts_ScalarNeedsOneEvaluation(t *testing.T) {
	c := DefaultCoefficients()
	req := newRequest(common.Scalar(70), common.Scalar(70), 1000)

	got, err := ComputeImpacts(req, c)
	require.NoError(t, err)

	stages := Evaluate(70, 70, req, c)
	assert.Equal(t, stages.RequestEnergy, got.Energy.Value)
	assert.Equal(t, stages.PE.Embodied, got.Embodied.PE.Value)
}

func TestComputeImpacts_Idempotent(t *testing.T) {
	req := newRequest(common.RangeValue{Min: 5, Max: 20}, common.RangeValue{Min: 40, Max: 120}, 321)
	req.Latency = 7.5

	first, err := ComputeImpacts(req, DefaultCoefficients())
	require.NoError(t, err)
	second, err := ComputeImpacts(req, DefaultCoefficients())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeImpacts_MonotonicInOutputTokens(t *testing.T) {
	c := DefaultCoefficients()
	previous := 0.0
	for _, tokens := range []int64{1, 10, 100, 500, 1000, 5000, 20000} {
		got, err := ComputeImpacts(newRequest(common.Scalar(70), common.Scalar(70), tokens), c)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Energy.Value.Max, previous, "tokens=%d", tokens)
		previous = got.Energy.Value.Max
	}
}

func TestEvaluate_RangesAreOrdered(t *testing.T) {
	c := DefaultCoefficients()
	for _, params := range []float64{0, 0.5, 1, 7.3, 70, 141, 1320} {
		for _, tokens := range []int64{1, 10, 1000} {
			for _, latency := range []float64{0.01, 1, 60, math.Inf(1)} {
				req := newRequest(common.Scalar(params), common.Scalar(params), tokens)
				req.Latency = latency
				s := Evaluate(params, params, req, c)

				ranges := map[string]common.RangeValue{
					"gpu energy":         s.GPUEnergy,
					"generation latency": s.GenerationLatency,
					"server energy":      s.ServerEnergy,
					"request energy":     s.RequestEnergy,
					"usage gwp":          s.GWP.Usage,
					"usage adpe":         s.ADPe.Usage,
					"usage pe":           s.PE.Usage,
					"embodied gwp":       s.GWP.Embodied,
					"embodied adpe":      s.ADPe.Embodied,
					"embodied pe":        s.PE.Embodied,
				}
				for name, r := range ranges {
					assert.NoError(t, r.Validate(), "%s params=%g tokens=%d latency=%g", name, params, tokens, latency)
					assert.GreaterOrEqual(t, r.Min, 0.0, name)
				}
				assert.GreaterOrEqual(t, s.GPURequiredCount, 1)
			}
		}
	}
}

func TestComputeImpacts_InvalidInput(t *testing.T) {
	tests := []struct {
		name          string
		mutateReq     func(r *request.Request)
		mutateCoeffs  func(c *Coefficients)
		expectedError string
	}{
		{
			name:          "should return error when output token count is 0",
			mutateReq:     func(r *request.Request) { r.OutputTokenCount = 0 },
			expectedError: "invalid input: invalid request: OutputTokenCount must be greater than 0",
		},
		{
			name:          "should return error when active parameter count is NaN",
			mutateReq:     func(r *request.Request) { r.ActiveParamCount = common.Scalar(math.NaN()) },
			expectedError: "invalid input: invalid request: ActiveParamCount must be a finite non-negative number",
		},
		{
			name:          "should return error when the GPU count does not fit an int",
			mutateReq:     func(r *request.Request) { r.TotalParamCount = common.Scalar(1e300) },
			expectedError: "invalid input: TotalParamCount 1e+300 needs more GPUs than can be counted",
		},
		{
			name:          "should return error when only the upper total bound overflows the GPU count",
			mutateReq:     func(r *request.Request) { r.TotalParamCount = common.RangeValue{Min: 70, Max: 1e300} },
			expectedError: "invalid input: TotalParamCount 1e+300 needs more GPUs than can be counted",
		},
		{
			name:          "should return error when GPUs per server is 0",
			mutateCoeffs:  func(c *Coefficients) { c.Server.AvailableGPUCount = 0 },
			expectedError: "invalid input: invalid server infrastructure: AvailableGPUCount must be greater than 0",
		},
		{
			name:          "should return error when hardware lifespan is 0",
			mutateCoeffs:  func(c *Coefficients) { c.Server.HardwareLifespan = 0 },
			expectedError: "invalid input: invalid server infrastructure: HardwareLifespan must be greater than 0",
		},
		{
			name:          "should return error when quantization bits are negative",
			mutateCoeffs:  func(c *Coefficients) { c.ModelQuantizationBits = -4 },
			expectedError: "invalid input: ModelQuantizationBits must be greater than 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(common.Scalar(70), common.Scalar(70), 1000)
			c := DefaultCoefficients()
			if tt.mutateReq != nil {
				tt.mutateReq(&req)
			}
			if tt.mutateCoeffs != nil {
				tt.mutateCoeffs(&c)
			}

			got, err := ComputeImpacts(req, c)
			assert.EqualError(t, err, tt.expectedError)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			assert.Equal(t, Impacts{}, got)
		})
	}
}

func TestComputeImpacts_CoefficientOverride(t *testing.T) {
	req := newRequest(common.Scalar(70), common.Scalar(70), 1000)

	base, err := ComputeImpacts(req, DefaultCoefficients())
	require.NoError(t, err)

	c := DefaultCoefficients()
	c.Server.DatacenterPUE = 2.4
	doubled, err := ComputeImpacts(req, c)
	require.NoError(t, err)

	assert.InEpsilon(t, 2*base.Energy.Value.Min, doubled.Energy.Value.Min, epsilon)
	assert.InEpsilon(t, 2*base.Energy.Value.Max, doubled.Energy.Value.Max, epsilon)
	// embodied impacts do not depend on PUE
	assert.Equal(t, base.Embodied, doubled.Embodied)
}
