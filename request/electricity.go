package request

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultZone is the world average electricity mix.
const DefaultZone = "WOR"

// CSV column indices for electricity mixes.
const (
	colZone = 0 // name
	colADPe = 1 // adpe
	colPE   = 2 // pe
	colGWP  = 3 // gwp
)

// ErrElectricityMixNotFound is returned when a zone has no electricity mix.
var ErrElectricityMixNotFound = errors.New("electricity mix not found")

//go:embed data/electricity_mixes.csv
var electricityMixesCSV string

var (
	defaultMixes     *ElectricityMixes
	defaultMixesErr  error
	defaultMixesOnce sync.Once
)

// ElectricityMixes is an immutable table of electricity mixes keyed by zone code.
type ElectricityMixes struct {
	mixes map[string]ElectricityMix
}

// DefaultElectricityMixes returns the table bundled with the module. It is parsed once.
func DefaultElectricityMixes() (*ElectricityMixes, error) {
	defaultMixesOnce.Do(func() {
		defaultMixes, defaultMixesErr = LoadElectricityMixes(strings.NewReader(electricityMixesCSV), zerolog.Nop())
	})
	return defaultMixes, defaultMixesErr
}

// LoadElectricityMixesFile reads an electricity mix table from a CSV file with a
// "name,adpe,pe,gwp" header.
func LoadElectricityMixesFile(path string, logger zerolog.Logger) (*ElectricityMixes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open electricity mixes file: %w", err)
	}
	defer f.Close()

	return LoadElectricityMixes(f, logger)
}

// LoadElectricityMixes parses an electricity mix table. Malformed rows are skipped with a warning.
func LoadElectricityMixes(r io.Reader, logger zerolog.Logger) (*ElectricityMixes, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Skip header row
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read electricity mixes header: %w", err)
	}

	mixes := make(map[string]ElectricityMix)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn().Err(err).Msg("skipping malformed electricity mix row")
			continue
		}

		mix, err := parseElectricityMix(record)
		if err != nil {
			logger.Warn().Err(err).Strs("record", record).Msg("skipping invalid electricity mix row")
			continue
		}
		mixes[mix.Zone] = mix
	}

	if len(mixes) == 0 {
		return nil, errors.New("no electricity mixes found")
	}

	logger.Debug().Int("count", len(mixes)).Msg("loaded electricity mixes")
	return &ElectricityMixes{mixes: mixes}, nil
}

// GetElectricityMix returns the electricity mix of the given zone code.
func (e *ElectricityMixes) GetElectricityMix(zone string) (ElectricityMix, error) {
	mix, ok := e.mixes[zone]
	if !ok {
		return ElectricityMix{}, fmt.Errorf("%w: could not find electricity mix for zone `%s`", ErrElectricityMixNotFound, zone)
	}
	return mix, nil
}

// Zones returns the known zone codes in lexical order.
func (e *ElectricityMixes) Zones() []string {
	zones := make([]string, 0, len(e.mixes))
	for zone := range e.mixes {
		zones = append(zones, zone)
	}
	sort.Strings(zones)
	return zones
}

func parseElectricityMix(record []string) (ElectricityMix, error) {
	if len(record) <= colGWP {
		return ElectricityMix{}, fmt.Errorf("expected 4 columns, got %d", len(record))
	}

	zone := strings.TrimSpace(record[colZone])
	if zone == "" {
		return ElectricityMix{}, errors.New("zone cannot be empty")
	}

	var factors [3]float64
	for i, col := range []int{colADPe, colPE, colGWP} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return ElectricityMix{}, fmt.Errorf("failed to parse column %d: %w", col, err)
		}
		factors[i] = v
	}

	mix := ElectricityMix{Zone: zone, ADPe: factors[0], PE: factors[1], GWP: factors[2]}
	if err := mix.Validate(); err != nil {
		return ElectricityMix{}, err
	}
	return mix, nil
}
