package exporter

import (
	"context"
	"strconv"

	"github.com/kpritch24/johns-hopkins-covid19/internal/config"
	"github.com/kpritch24/johns-hopkins-covid19/internal/covid"
	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
	"github.com/kpritch24/johns-hopkins-covid19/internal/regression"
)

// dateFormat is the calendar-date form used in exported tables.
const dateFormat = "2006-01-02"

// TableSet renders one pipeline run (and, when the model fit succeeded,
// its predictions) into named tabular outputs.
type TableSet struct {
	results *covid.Results
	model   *regression.Model
	eval    *regression.Evaluation
}

// NewTableSet bundles pipeline results with an optional fitted model.
// A nil model is allowed: the transformation tables stay exportable even
// when the regression step failed.
func NewTableSet(results *covid.Results, model *regression.Model, eval *regression.Evaluation) *TableSet {
	return &TableSet{results: results, model: model, eval: eval}
}

// Table is one named, ordered tabular output.
type Table struct {
	Name    string
	Headers []string
	Records [][]string
}

// Tables renders the five derived tables in a stable order.
func (t *TableSet) Tables() []Table {
	return []Table{
		t.unifiedTable("unified_us", t.results.UnifiedUS),
		t.unifiedTable("unified_global", t.results.UnifiedGlobal),
		t.regionDayTable(),
		t.countryDayTable(),
		t.stateSummaryTable(),
	}
}

// WriteCSVs writes every table to its well-known reports path.
func (t *TableSet) WriteCSVs(ctx context.Context, w *CSVWriter, paths *config.Paths) error {
	logger := infrastructure.LoggerWithContext(ctx)

	destinations := map[string]string{
		"unified_us":     paths.UnifiedUSCSV,
		"unified_global": paths.UnifiedGlobalCSV,
		"us_region_day":  paths.RegionDayCSV,
		"us_country_day": paths.CountryDayCSV,
		"state_summary":  paths.StateSummaryCSV,
	}

	for _, table := range t.Tables() {
		if err := w.WriteSimpleCSV(destinations[table.Name], table.Headers, table.Records); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "exported derived tables", "reports_dir", paths.ReportsDir)
	return nil
}

func (t *TableSet) unifiedTable(name string, table *covid.UnifiedTable) Table {
	headers := []string{"city", "province_state", "country_region", "date",
		"cases", "deaths", "population", "composite_key"}

	records := make([][]string, 0, len(table.Records))
	for _, rec := range table.Records {
		records = append(records, []string{
			rec.City,
			rec.ProvinceState,
			rec.CountryRegion,
			rec.Date.Format(dateFormat),
			formatOptional(rec.Cases),
			formatOptional(rec.Deaths),
			formatOptional(rec.Population),
			rec.CompositeKey,
		})
	}
	return Table{Name: name, Headers: headers, Records: records}
}

func (t *TableSet) regionDayTable() Table {
	headers := []string{"province_state", "country_region", "date", "cases", "deaths",
		"population", "cases_per_million", "deaths_per_million", "new_cases", "new_deaths"}

	records := make([][]string, 0, len(t.results.USRegionDays))
	for _, rd := range t.results.USRegionDays {
		records = append(records, []string{
			rd.ProvinceState,
			rd.CountryRegion,
			rd.Date.Format(dateFormat),
			formatFloat(rd.Cases),
			formatFloat(rd.Deaths),
			formatFloat(rd.Population),
			formatOptional(rd.CasesPerMillion),
			formatOptional(rd.DeathsPerMillion),
			formatOptional(rd.NewCases),
			formatOptional(rd.NewDeaths),
		})
	}
	return Table{Name: "us_region_day", Headers: headers, Records: records}
}

func (t *TableSet) countryDayTable() Table {
	headers := []string{"country_region", "date", "cases", "deaths", "population",
		"cases_per_million", "deaths_per_million", "new_cases", "new_deaths"}

	records := make([][]string, 0, len(t.results.USCountryDays))
	for _, cd := range t.results.USCountryDays {
		records = append(records, []string{
			cd.CountryRegion,
			cd.Date.Format(dateFormat),
			formatFloat(cd.Cases),
			formatFloat(cd.Deaths),
			formatFloat(cd.Population),
			formatOptional(cd.CasesPerMillion),
			formatOptional(cd.DeathsPerMillion),
			formatOptional(cd.NewCases),
			formatOptional(cd.NewDeaths),
		})
	}
	return Table{Name: "us_country_day", Headers: headers, Records: records}
}

// stateSummaryTable includes the model's prediction and residual columns
// when a fitted model is present; the columns stay empty otherwise.
func (t *TableSet) stateSummaryTable() Table {
	headers := []string{"province_state", "cases", "deaths", "population",
		"cases_per_thousand", "deaths_per_thousand",
		"predicted_deaths_per_thousand", "residual"}

	records := make([][]string, 0, len(t.results.StateSummaries))
	for i, s := range t.results.StateSummaries {
		predicted, residual := "", ""
		if t.eval != nil && i < len(t.eval.Predictions) {
			predicted = formatFloat(t.eval.Predictions[i])
			residual = formatFloat(t.eval.Residuals[i])
		}
		records = append(records, []string{
			s.ProvinceState,
			formatFloat(s.Cases),
			formatFloat(s.Deaths),
			formatFloat(s.Population),
			formatFloat(s.CasesPerThousand),
			formatFloat(s.DeathsPerThousand),
			predicted,
			residual,
		})
	}
	return Table{Name: "state_summary", Headers: headers, Records: records}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptional renders a missing value as an empty cell, never as zero.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
