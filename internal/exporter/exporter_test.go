package exporter

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kpritch24/johns-hopkins-covid19/internal/config"
	"github.com/kpritch24/johns-hopkins-covid19/internal/covid"
	"github.com/kpritch24/johns-hopkins-covid19/internal/regression"
)

func fixtureResults() *covid.Results {
	day1 := time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2020, 1, 23, 0, 0, 0, 0, time.UTC)

	return &covid.Results{
		UnifiedUS: &covid.UnifiedTable{
			Name: "unified_us",
			Records: []covid.UnifiedRecord{
				{
					City: "Autauga", ProvinceState: "Alabama", CountryRegion: "US",
					Date: day1, Cases: covid.Float(10), Deaths: covid.Float(1),
					Population: covid.Float(55000), CompositeKey: "Alabama, US",
				},
				{
					City: "Autauga", ProvinceState: "Alabama", CountryRegion: "US",
					Date: day2, Cases: covid.Float(12), Deaths: nil,
					Population: covid.Float(55000), CompositeKey: "Alabama, US",
				},
			},
		},
		UnifiedGlobal: &covid.UnifiedTable{
			Name: "unified_global",
			Records: []covid.UnifiedRecord{
				{
					ProvinceState: "", CountryRegion: "Iceland",
					Date: day1, Cases: covid.Float(3), Deaths: covid.Float(0),
					Population: nil, CompositeKey: "Iceland",
				},
			},
		},
		USRegionDays: []covid.RegionDay{
			{
				ProvinceState: "Alabama", CountryRegion: "US", Date: day1,
				Cases: 10, Deaths: 1, Population: 55000,
				CasesPerMillion:  covid.RatePer(10, covid.Float(55000), covid.PerMillion),
				DeathsPerMillion: covid.RatePer(1, covid.Float(55000), covid.PerMillion),
			},
		},
		USCountryDays: []covid.CountryDay{
			{
				CountryRegion: "US", Date: day1,
				Cases: 10, Deaths: 1, Population: 55000,
				NewCases: covid.Float(5),
			},
		},
		StateSummaries: []covid.StateSummary{
			{
				ProvinceState: "Alabama", Cases: 12, Deaths: 1, Population: 55000,
				CasesPerThousand: 12 * covid.PerThousand / 55000,
				DeathsPerThousand: 1 * covid.PerThousand / 55000,
			},
		},
	}
}

func fixtureModel() (*regression.Model, *regression.Evaluation) {
	model := &regression.Model{Intercept: 0.01, Slope: 0.02, N: 1}
	eval := &regression.Evaluation{
		RMSE:        0.001,
		RSquared:    0.9,
		Predictions: []float64{0.0143636363636},
		Residuals:   []float64{0.0038181818182},
	}
	return model, eval
}

func TestTables_OrderAndShape(t *testing.T) {
	set := NewTableSet(fixtureResults(), nil, nil)
	tables := set.Tables()

	require.Len(t, tables, 5)
	names := make([]string, 0, len(tables))
	for _, tbl := range tables {
		names = append(names, tbl.Name)
		for _, rec := range tbl.Records {
			assert.Len(t, rec, len(tbl.Headers), "ragged record in %s", tbl.Name)
		}
	}
	assert.Equal(t, []string{
		"unified_us", "unified_global", "us_region_day", "us_country_day", "state_summary",
	}, names)
}

func TestTables_MissingValuesStayEmpty(t *testing.T) {
	set := NewTableSet(fixtureResults(), nil, nil)
	tables := set.Tables()

	// Second US record has no deaths observation
	unified := tables[0]
	assert.Equal(t, "", unified.Records[1][5])
	assert.Equal(t, "12", unified.Records[1][4])

	// Iceland has no population
	global := tables[1]
	assert.Equal(t, "", global.Records[0][6])

	// No model: prediction and residual columns stay empty
	summary := tables[4]
	assert.Equal(t, "", summary.Records[0][6])
	assert.Equal(t, "", summary.Records[0][7])
}

func TestTables_ModelColumns(t *testing.T) {
	model, eval := fixtureModel()
	set := NewTableSet(fixtureResults(), model, eval)

	summary := set.Tables()[4]
	assert.Equal(t, "0.0143636363636", summary.Records[0][6])
	assert.Equal(t, "0.0038181818182", summary.Records[0][7])
}

func TestWriteCSVs(t *testing.T) {
	paths, err := config.NewPaths(t.TempDir(), filepath.Join(t.TempDir(), "logs"))
	require.NoError(t, err)

	set := NewTableSet(fixtureResults(), nil, nil)
	require.NoError(t, set.WriteCSVs(context.Background(), NewCSVWriter(nil), paths))

	data, err := os.ReadFile(paths.StateSummaryCSV)
	require.NoError(t, err)

	// BOM prefix for Excel, then the header row
	content := strings.TrimPrefix(string(data), "\xEF\xBB\xBF")
	assert.NotEqual(t, string(data), content, "expected UTF-8 BOM")

	reader := csv.NewReader(strings.NewReader(content))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "province_state", rows[0][0])
	assert.Equal(t, "Alabama", rows[1][0])
	assert.Equal(t, "12", rows[1][1])

	for _, path := range []string{
		paths.UnifiedUSCSV, paths.UnifiedGlobalCSV,
		paths.RegionDayCSV, paths.CountryDayCSV,
	} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "analysis.xlsx")

	model, eval := fixtureModel()
	set := NewTableSet(fixtureResults(), model, eval)
	require.NoError(t, set.WriteWorkbook(context.Background(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.ElementsMatch(t, []string{
		"unified_us", "unified_global", "us_region_day",
		"us_country_day", "state_summary", "model",
	}, sheets)

	value, err := f.GetCellValue("state_summary", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Alabama", value)

	slope, err := f.GetCellValue("model", "B3")
	require.NoError(t, err)
	assert.Equal(t, "0.02", slope)
}

func TestWriteWorkbook_NoModelSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.xlsx")

	set := NewTableSet(fixtureResults(), nil, nil)
	require.NoError(t, set.WriteWorkbook(context.Background(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.NotContains(t, f.GetSheetList(), "model")
}
