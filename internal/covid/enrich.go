package covid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kpritch24/johns-hopkins-covid19/internal/errors"
)

// EnrichStats reports the lookup coverage of an enrichment pass.
type EnrichStats struct {
	Records   int
	Matched   int
	Unmatched int
}

// LookupStats reports what parsing the population lookup table produced.
type LookupStats struct {
	SourceRows        int
	RegionRows        int
	MissingPopulation int
}

type lookupKey struct {
	province string
	country  string
}

// ParsePopulationLookup extracts region-level population rows from the
// raw UID lookup table. The table also carries US county-level rows
// (non-empty Admin2); only region-level rows key the global enrichment,
// so county rows are skipped. A row with an empty population cell is kept
// with a nil population.
func ParsePopulationLookup(table *RawTable) ([]PopulationRow, LookupStats, error) {
	stats := LookupStats{}
	if table == nil || len(table.Header) == 0 {
		return nil, stats, errors.NewSchemaError("population lookup: empty raw table", nil)
	}

	colIndex := make(map[string]int, len(table.Header))
	for i, name := range table.Header {
		colIndex[strings.TrimSpace(name)] = i
	}

	required := []string{"Province_State", "Country_Region", "Population"}
	for _, name := range required {
		if _, ok := colIndex[name]; !ok {
			return nil, stats, errors.NewSchemaError(
				fmt.Sprintf("population lookup: missing column %q", name), nil)
		}
	}
	admin2Idx := -1
	if idx, ok := colIndex["Admin2"]; ok {
		admin2Idx = idx
	}

	stats.SourceRows = len(table.Rows)

	rows := make([]PopulationRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		if admin2Idx >= 0 && cell(row, admin2Idx) != "" {
			continue // county-level row, not a region
		}

		var population *float64
		raw := cell(row, colIndex["Population"])
		if raw == "" {
			stats.MissingPopulation++
		} else if v, err := strconv.ParseFloat(raw, 64); err == nil {
			population = &v
		} else {
			stats.MissingPopulation++
		}

		rows = append(rows, PopulationRow{
			ProvinceState: cell(row, colIndex["Province_State"]),
			CountryRegion: cell(row, colIndex["Country_Region"]),
			Population:    population,
		})
	}
	stats.RegionRows = len(rows)

	return rows, stats, nil
}

// PopulationEnsurer guarantees a unified table carries population before
// aggregation, hiding whether the source needed an external lookup (the
// global tables) or already carried population inline (the US tables).
type PopulationEnsurer interface {
	EnsurePopulation(table *UnifiedTable) (*UnifiedTable, EnrichStats)
}

// InlinePopulation is the ensurer for sources whose rows already carry
// population. It only recomputes coverage stats and composite keys.
type InlinePopulation struct{}

// EnsurePopulation implements PopulationEnsurer.
func (InlinePopulation) EnsurePopulation(table *UnifiedTable) (*UnifiedTable, EnrichStats) {
	return EnrichPopulation(table, nil)
}

// LookupPopulation is the ensurer backed by the UID population lookup.
type LookupPopulation struct {
	Rows []PopulationRow
}

// EnsurePopulation implements PopulationEnsurer.
func (l LookupPopulation) EnsurePopulation(table *UnifiedTable) (*UnifiedTable, EnrichStats) {
	return EnrichPopulation(table, l.Rows)
}

// EnrichPopulation left-joins population figures onto a unified table
// keyed on (province/state, country) and recomputes the composite key.
// Records with no lookup match keep a nil population; downstream
// per-capita math propagates the nil instead of dividing by zero. The
// input table is not modified.
func EnrichPopulation(table *UnifiedTable, lookup []PopulationRow) (*UnifiedTable, EnrichStats) {
	stats := EnrichStats{Records: len(table.Records)}

	populations := make(map[lookupKey]*float64, len(lookup))
	for _, row := range lookup {
		populations[lookupKey{row.ProvinceState, row.CountryRegion}] = row.Population
	}

	records := make([]UnifiedRecord, len(table.Records))
	for i, rec := range table.Records {
		if rec.Population == nil {
			if pop, ok := populations[lookupKey{rec.ProvinceState, rec.CountryRegion}]; ok && pop != nil {
				v := *pop
				rec.Population = &v
			}
		}
		if rec.Population != nil {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
		rec.CompositeKey = CompositeKey(rec.ProvinceState, rec.CountryRegion)
		records[i] = rec
	}

	return &UnifiedTable{Name: table.Name, Records: records}, stats
}
