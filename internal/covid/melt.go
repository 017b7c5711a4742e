package covid

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kpritch24/johns-hopkins-covid19/internal/errors"
)

// DateLabelLayout is the month/day/2-digit-year form used for the date
// column labels of the published wide tables, e.g. "1/22/20".
const DateLabelLayout = "1/2/06"

// SourceSchema maps the columns of one raw wide table onto long-form
// identity fields. Identity columns are an explicit allow-list; anything
// not named here and not a date column must appear in DroppedColumns or
// the table is rejected, so upstream schema drift surfaces as an error
// instead of leaking columns forward.
type SourceSchema struct {
	Name             string
	CityColumn       string // optional sub-state identity (US Admin2)
	ProvinceColumn   string
	CountryColumn    string
	PopulationColumn string // optional, only the US deaths source has it
	DroppedColumns   []string
}

// Schemas for the four published time-series tables.
var (
	USCasesSchema = SourceSchema{
		Name:           "us_cases",
		CityColumn:     "Admin2",
		ProvinceColumn: "Province_State",
		CountryColumn:  "Country_Region",
		DroppedColumns: []string{"UID", "iso2", "iso3", "code3", "FIPS", "Lat", "Long_", "Combined_Key"},
	}

	USDeathsSchema = SourceSchema{
		Name:             "us_deaths",
		CityColumn:       "Admin2",
		ProvinceColumn:   "Province_State",
		CountryColumn:    "Country_Region",
		PopulationColumn: "Population",
		DroppedColumns:   []string{"UID", "iso2", "iso3", "code3", "FIPS", "Lat", "Long_", "Combined_Key"},
	}

	GlobalCasesSchema = SourceSchema{
		Name:           "global_cases",
		ProvinceColumn: "Province/State",
		CountryColumn:  "Country/Region",
		DroppedColumns: []string{"Lat", "Long"},
	}

	GlobalDeathsSchema = SourceSchema{
		Name:           "global_deaths",
		ProvinceColumn: "Province/State",
		CountryColumn:  "Country/Region",
		DroppedColumns: []string{"Lat", "Long"},
	}
)

// MeltStats reports what a single melt produced and what it had to drop.
type MeltStats struct {
	SourceRows       int
	DateColumns      int
	Observations     int
	DroppedBadValues int
}

// Melt converts a raw wide table into long form: one observation per
// (source row, date column) cell. Identity values are repeated verbatim
// across the emitted observations of a source row, and the textual order
// of the date columns is preserved per row. Cells whose value fails to
// parse are skipped and counted, never emitted as zero.
func Melt(table *RawTable, schema SourceSchema, metric string) (*LongTable, MeltStats, error) {
	stats := MeltStats{}
	if table == nil || len(table.Header) == 0 {
		return nil, stats, errors.NewSchemaError(fmt.Sprintf("%s: empty raw table", schema.Name), nil)
	}

	colIndex := make(map[string]int, len(table.Header))
	for i, name := range table.Header {
		colIndex[strings.TrimSpace(name)] = i
	}

	provinceIdx, ok := colIndex[schema.ProvinceColumn]
	if !ok {
		return nil, stats, errors.NewSchemaError(
			fmt.Sprintf("%s: missing identity column %q", schema.Name, schema.ProvinceColumn), nil)
	}
	countryIdx, ok := colIndex[schema.CountryColumn]
	if !ok {
		return nil, stats, errors.NewSchemaError(
			fmt.Sprintf("%s: missing identity column %q", schema.Name, schema.CountryColumn), nil)
	}

	cityIdx := -1
	if schema.CityColumn != "" {
		if cityIdx, ok = colIndex[schema.CityColumn]; !ok {
			return nil, stats, errors.NewSchemaError(
				fmt.Sprintf("%s: missing identity column %q", schema.Name, schema.CityColumn), nil)
		}
	}
	populationIdx := -1
	if schema.PopulationColumn != "" {
		if populationIdx, ok = colIndex[schema.PopulationColumn]; !ok {
			return nil, stats, errors.NewSchemaError(
				fmt.Sprintf("%s: missing column %q", schema.Name, schema.PopulationColumn), nil)
		}
	}

	dropped := make(map[string]bool, len(schema.DroppedColumns))
	for _, name := range schema.DroppedColumns {
		dropped[name] = true
	}
	identity := map[int]bool{provinceIdx: true, countryIdx: true}
	if cityIdx >= 0 {
		identity[cityIdx] = true
	}
	if populationIdx >= 0 {
		identity[populationIdx] = true
	}

	// Classify the remaining columns. Everything that is neither identity
	// nor explicitly dropped must be a date column.
	type dateColumn struct {
		index int
		label string
	}
	var dateColumns []dateColumn
	for i, name := range table.Header {
		name = strings.TrimSpace(name)
		if identity[i] || dropped[name] {
			continue
		}
		if _, err := time.Parse(DateLabelLayout, name); err != nil {
			return nil, stats, errors.NewSchemaError(
				fmt.Sprintf("%s: unexpected column %q is neither identity nor a date", schema.Name, name), nil)
		}
		dateColumns = append(dateColumns, dateColumn{index: i, label: name})
	}
	if len(dateColumns) == 0 {
		return nil, stats, errors.NewSchemaError(fmt.Sprintf("%s: no date columns found", schema.Name), nil)
	}

	stats.SourceRows = len(table.Rows)
	stats.DateColumns = len(dateColumns)

	observations := make([]Observation, 0, len(table.Rows)*len(dateColumns))
	for _, row := range table.Rows {
		var population *float64
		if populationIdx >= 0 && populationIdx < len(row) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[populationIdx]), 64); err == nil {
				population = &v
			}
		}

		city := ""
		if cityIdx >= 0 && cityIdx < len(row) {
			city = strings.TrimSpace(row[cityIdx])
		}
		province := cell(row, provinceIdx)
		country := cell(row, countryIdx)

		for _, dc := range dateColumns {
			raw := cell(row, dc.index)
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				stats.DroppedBadValues++
				continue
			}
			observations = append(observations, Observation{
				City:          city,
				ProvinceState: province,
				CountryRegion: country,
				DateLabel:     dc.label,
				Value:         value,
				Population:    population,
			})
		}
	}
	stats.Observations = len(observations)

	return &LongTable{Metric: metric, Observations: observations}, stats, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
