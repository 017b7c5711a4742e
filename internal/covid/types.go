package covid

import (
	"time"
)

// Per-capita scales used for derived rate columns.
const (
	PerMillion  = 1e6
	PerThousand = 1e3
)

// RawTable is a decoded CSV source table: a header row plus data rows,
// exactly as published. Interpretation of the columns happens in the
// pipeline stages, never at load time.
type RawTable struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Observation is one long-form row produced by melting a wide table:
// the identity of a reporting unit, one date column label, and the
// cumulative metric value from that cell.
type Observation struct {
	City          string
	ProvinceState string
	CountryRegion string
	DateLabel     string // raw month/day/2-digit-year column label
	Value         float64
	Population    *float64 // carried only by the US deaths source
}

// LongTable holds the melted form of one source table.
type LongTable struct {
	Metric       string // "cases" or "deaths"
	Observations []Observation
}

// UnifiedRecord is the outer-join of a cases and a deaths observation for
// one (identity, date) key. A metric missing on one side stays nil and is
// filtered downstream, not rejected.
type UnifiedRecord struct {
	City          string    `json:"city,omitempty"`
	ProvinceState string    `json:"province_state"`
	CountryRegion string    `json:"country_region"`
	Date          time.Time `json:"date"`
	Cases         *float64  `json:"cases"`
	Deaths        *float64  `json:"deaths"`
	Population    *float64  `json:"population"`
	CompositeKey  string    `json:"composite_key"`
}

// UnifiedTable is an ordered set of unified records.
type UnifiedTable struct {
	Name    string
	Records []UnifiedRecord
}

// PopulationRow is one entry of the population lookup table, keyed on
// (province/state, country). Some small territories have no population
// figure; those stay nil.
type PopulationRow struct {
	ProvinceState string
	CountryRegion string
	Population    *float64
}

// RegionDay is one row of the by-state-day aggregate: summed cumulative
// metrics for a (province/state, country, date) group with per-million
// rates. Delta columns are nil until DeriveRegionDeltas runs, and stay
// nil on the first observation of each series.
type RegionDay struct {
	ProvinceState    string    `json:"province_state"`
	CountryRegion    string    `json:"country_region"`
	Date             time.Time `json:"date"`
	Cases            float64   `json:"cases"`
	Deaths           float64   `json:"deaths"`
	Population       float64   `json:"population"`
	CasesPerMillion  *float64  `json:"cases_per_million"`
	DeathsPerMillion *float64  `json:"deaths_per_million"`
	NewCases         *float64  `json:"new_cases"`
	NewDeaths        *float64  `json:"new_deaths"`
}

// CountryDay is one row of the by-country-day aggregate. Rates are
// recomputed from the re-summed numerators and denominators, never
// averaged from finer-grained rates.
type CountryDay struct {
	CountryRegion    string    `json:"country_region"`
	Date             time.Time `json:"date"`
	Cases            float64   `json:"cases"`
	Deaths           float64   `json:"deaths"`
	Population       float64   `json:"population"`
	CasesPerMillion  *float64  `json:"cases_per_million"`
	DeathsPerMillion *float64  `json:"deaths_per_million"`
	NewCases         *float64  `json:"new_cases"`
	NewDeaths        *float64  `json:"new_deaths"`
}

// StateSummary is the single-row-per-state view: the maximum observed
// cumulative metrics across all dates (the latest value for well-formed
// cumulative input) with per-thousand rates.
type StateSummary struct {
	ProvinceState     string  `json:"province_state"`
	Cases             float64 `json:"cases"`
	Deaths            float64 `json:"deaths"`
	Population        float64 `json:"population"`
	CasesPerThousand  float64 `json:"cases_per_thousand"`
	DeathsPerThousand float64 `json:"deaths_per_thousand"`
}

// CompositeKey synthesizes the stable geographic-unit key: "province,
// country", or just the country when the province segment is empty (no
// stray separator).
func CompositeKey(provinceState, countryRegion string) string {
	if provinceState == "" {
		return countryRegion
	}
	return provinceState + ", " + countryRegion
}

// RatePer computes count*scale/population, or nil when the population is
// missing or non-positive. Per-capita rates are never infinite and never
// silently zero.
func RatePer(count float64, population *float64, scale float64) *float64 {
	if population == nil || *population <= 0 {
		return nil
	}
	rate := count * scale / *population
	return &rate
}

// Float returns a pointer to v. Convenience for literals.
func Float(v float64) *float64 {
	return &v
}
