package request

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/omegabytes/ecologits-go/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return New(common.Scalar(70), common.Scalar(70), 1000, ElectricityMix{ADPe: 1e-8, PE: 10, GWP: 0.5})
}

func TestNew(t *testing.T) {
	r := validRequest()
	assert.True(t, math.IsInf(r.Latency, 1))
	assert.NoError(t, r.Validate())
}

func TestRequest_JSON(t *testing.T) {
	r := New(common.RangeValue{Min: 5, Max: 20}, common.Scalar(70), 250, ElectricityMix{Zone: "FRA", ADPe: 1e-8, PE: 10, GWP: 0.5})
	r.Latency = 2.5

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"active_param_count": {"min": 5, "max": 20},
		"total_param_count": {"min": 70, "max": 70},
		"output_token_count": 250,
		"latency": 2.5,
		"electricity_mix": {"zone": "FRA", "adpe": 1e-8, "pe": 10, "gwp": 0.5}
	}`, string(data))
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(r *Request)
		expectedError string
	}{
		{
			name:          "should return error when OutputTokenCount is 0",
			mutate:        func(r *Request) { r.OutputTokenCount = 0 },
			expectedError: "invalid request: OutputTokenCount must be greater than 0",
		},
		{
			name:          "should return error when Latency is 0",
			mutate:        func(r *Request) { r.Latency = 0 },
			expectedError: "invalid request: Latency must be greater than 0",
		},
		{
			name:          "should return error when Latency is NaN",
			mutate:        func(r *Request) { r.Latency = math.NaN() },
			expectedError: "invalid request: Latency must be greater than 0",
		},
		{
			name:          "should return error when ActiveParamCount is negative",
			mutate:        func(r *Request) { r.ActiveParamCount = common.Scalar(-1) },
			expectedError: "invalid request: ActiveParamCount must be a finite non-negative number",
		},
		{
			name:          "should return error when TotalParamCount is infinite",
			mutate:        func(r *Request) { r.TotalParamCount = common.RangeValue{Min: 1, Max: math.Inf(1)} },
			expectedError: "invalid request: TotalParamCount must be a finite non-negative number",
		},
		{
			name:          "should return error when a param range is inverted",
			mutate:        func(r *Request) { r.ActiveParamCount = common.RangeValue{Min: 20, Max: 10} },
			expectedError: "invalid request: ActiveParamCount: range min 20 must not exceed max 10",
		},
		{
			name:          "should return error when an electricity mix factor is negative",
			mutate:        func(r *Request) { r.ElectricityMix.GWP = -0.1 },
			expectedError: "invalid request: electricity mix GWP must be a finite non-negative number",
		},
		{
			name:   "should accept a finite request latency",
			mutate: func(r *Request) { r.Latency = 2.5 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.expectedError)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}

func TestDefaultElectricityMixes(t *testing.T) {
	mixes, err := DefaultElectricityMixes()
	require.NoError(t, err)

	t.Run("should contain the default zone", func(t *testing.T) {
		mix, err := mixes.GetElectricityMix(DefaultZone)
		require.NoError(t, err)
		assert.Equal(t, DefaultZone, mix.Zone)
		assert.NoError(t, mix.Validate())
	})

	t.Run("should return not found for unknown zones", func(t *testing.T) {
		_, err := mixes.GetElectricityMix("ATLANTIS")
		assert.ErrorIs(t, err, ErrElectricityMixNotFound)
		assert.EqualError(t, err, "electricity mix not found: could not find electricity mix for zone `ATLANTIS`")
	})

	t.Run("should list zones in order", func(t *testing.T) {
		zones := mixes.Zones()
		assert.Contains(t, zones, "WOR")
		assert.IsIncreasing(t, zones)
	})
}

func TestLoadElectricityMixes(t *testing.T) {
	tests := []struct {
		name          string
		csv           string
		want          map[string]ElectricityMix
		expectedError string
	}{
		{
			name: "should parse valid rows",
			csv:  "name,adpe,pe,gwp\nAAA,1e-08,10.5,0.25\nBBB,2e-08,11,0.5\n",
			want: map[string]ElectricityMix{
				"AAA": {Zone: "AAA", ADPe: 1e-08, PE: 10.5, GWP: 0.25},
				"BBB": {Zone: "BBB", ADPe: 2e-08, PE: 11, GWP: 0.5},
			},
		},
		{
			name: "should skip malformed and negative rows",
			csv:  "name,adpe,pe,gwp\nAAA,1e-08,10.5,0.25\nBAD,x,1,1\nSHORT,1\nNEG,1,1,-1\n,1,1,1\n",
			want: map[string]ElectricityMix{
				"AAA": {Zone: "AAA", ADPe: 1e-08, PE: 10.5, GWP: 0.25},
			},
		},
		{
			name:          "should return error when input is empty",
			csv:           "",
			expectedError: "failed to read electricity mixes header: EOF",
		},
		{
			name:          "should return error when no row is valid",
			csv:           "name,adpe,pe,gwp\nBAD,x,1,1\n",
			expectedError: "no electricity mixes found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadElectricityMixes(strings.NewReader(tt.csv), zerolog.Nop())
			if tt.expectedError != "" {
				assert.EqualError(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.mixes)
		})
	}
}

func TestLoadElectricityMixes_LogsSkippedRows(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	_, err := LoadElectricityMixes(strings.NewReader("name,adpe,pe,gwp\nAAA,1,1,1\nBAD,x,1,1\n"), logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "skipping invalid electricity mix row")
}

func TestLoadElectricityMixesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixes.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,adpe,pe,gwp\nZZZ,1e-08,1,0.1\n"), 0o600))

	mixes, err := LoadElectricityMixesFile(path, zerolog.Nop())
	require.NoError(t, err)
	mix, err := mixes.GetElectricityMix("ZZZ")
	require.NoError(t, err)
	assert.Equal(t, 0.1, mix.GWP)

	_, err = LoadElectricityMixesFile(filepath.Join(t.TempDir(), "missing.csv"), zerolog.Nop())
	assert.Error(t, err)
}
