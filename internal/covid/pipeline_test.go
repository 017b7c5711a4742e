package covid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kpritch24/johns-hopkins-covid19/internal/errors"
)

// syntheticRawTables builds a 2-state, 3-date US dataset (two counties in
// Alpha, one in Beta) plus a 2-region global dataset and a lookup table.
func syntheticRawTables() RawTables {
	usHeader := []string{
		"UID", "iso2", "iso3", "code3", "FIPS", "Admin2", "Province_State",
		"Country_Region", "Lat", "Long_", "Combined_Key", "1/22/20", "1/23/20", "1/24/20",
	}
	usDeathsHeader := append(append([]string{}, usHeader[:11]...),
		"Population", "1/22/20", "1/23/20", "1/24/20")

	usCases := &RawTable{Name: "us_cases", Header: usHeader, Rows: [][]string{
		{"1", "US", "USA", "840", "1", "Ann", "Alpha", "US", "0", "0", "Ann, Alpha, US", "10", "15", "20"},
		{"2", "US", "USA", "840", "2", "Bow", "Alpha", "US", "0", "0", "Bow, Alpha, US", "0", "5", "10"},
		{"3", "US", "USA", "840", "3", "Cam", "Beta", "US", "0", "0", "Cam, Beta, US", "4", "8", "16"},
	}}
	usDeaths := &RawTable{Name: "us_deaths", Header: usDeathsHeader, Rows: [][]string{
		{"1", "US", "USA", "840", "1", "Ann", "Alpha", "US", "0", "0", "Ann, Alpha, US", "60000", "1", "2", "3"},
		{"2", "US", "USA", "840", "2", "Bow", "Alpha", "US", "0", "0", "Bow, Alpha, US", "40000", "0", "0", "1"},
		{"3", "US", "USA", "840", "3", "Cam", "Beta", "US", "0", "0", "Cam, Beta, US", "50000", "0", "1", "2"},
	}}

	globalHeader := []string{"Province/State", "Country/Region", "Lat", "Long", "1/22/20", "1/23/20", "1/24/20"}
	globalCases := &RawTable{Name: "global_cases", Header: globalHeader, Rows: [][]string{
		{"Hubei", "China", "0", "0", "444", "555", "666"},
		{"", "Iceland", "0", "0", "0", "1", "2"},
	}}
	globalDeaths := &RawTable{Name: "global_deaths", Header: globalHeader, Rows: [][]string{
		{"Hubei", "China", "0", "0", "17", "18", "19"},
		{"", "Iceland", "0", "0", "0", "0", "0"},
	}}

	lookup := &RawTable{Name: "lookup", Header: []string{
		"UID", "Admin2", "Province_State", "Country_Region", "Population",
	}, Rows: [][]string{
		{"156", "", "Hubei", "China", "59170000"},
		{"352", "", "", "Iceland", "341250"},
		{"840", "Ann", "Alpha", "US", "60000"},
	}}

	return RawTables{
		USCases:      usCases,
		USDeaths:     usDeaths,
		GlobalCases:  globalCases,
		GlobalDeaths: globalDeaths,
		Lookup:       lookup,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	results, err := Run(context.Background(), syntheticRawTables())
	require.NoError(t, err)

	// Melt shape: R rows x D date columns per source.
	assert.Equal(t, 9, results.Stats.USCasesMelt.Observations)
	assert.Equal(t, 9, results.Stats.USDeathsMelt.Observations)
	assert.Equal(t, 6, results.Stats.GlobalCasesMelt.Observations)

	// The join is total here: every key exists on both sides.
	assert.Equal(t, 9, results.Stats.USCombine.Matched)
	assert.Zero(t, results.Stats.USCombine.DroppedBadDates)

	// Bow/Alpha on 1/22 has zero cases and is onset-filtered, so Alpha's
	// first region-day sums only Ann: cases 10, population 60000.
	require.NotEmpty(t, results.USRegionDays)
	alphaFirst := results.USRegionDays[0]
	assert.Equal(t, "Alpha", alphaFirst.ProvinceState)
	assert.Equal(t, 10.0, alphaFirst.Cases)
	assert.Equal(t, 60000.0, alphaFirst.Population)

	// Day 2 sums both Alpha counties.
	alphaSecond := results.USRegionDays[1]
	assert.Equal(t, 20.0, alphaSecond.Cases)
	assert.Equal(t, 100000.0, alphaSecond.Population)

	// Country-day re-sums the states.
	require.Len(t, results.USCountryDays, 3)
	assert.Equal(t, "US", results.USCountryDays[0].CountryRegion)
	assert.Equal(t, 14.0, results.USCountryDays[0].Cases) // 10 (Ann) + 4 (Cam)

	// Deltas: first row of each state series is nil.
	assert.Nil(t, results.USRegionDays[0].NewCases)
	require.NotNil(t, results.USRegionDays[1].NewCases)
	assert.Equal(t, 10.0, *results.USRegionDays[1].NewCases)

	// State summary: max cumulative values and per-thousand rates.
	require.Len(t, results.StateSummaries, 2)
	alpha := results.StateSummaries[0]
	assert.Equal(t, "Alpha", alpha.ProvinceState)
	assert.Equal(t, 30.0, alpha.Cases)       // 20 + 10 on the last day
	assert.Equal(t, 4.0, alpha.Deaths)       // 3 + 1 on the last day
	assert.Equal(t, 100000.0, alpha.Population)
	assert.InDelta(t, 30.0*1e3/100000.0, alpha.CasesPerThousand, 1e-12)
	assert.InDelta(t, 4.0*1e3/100000.0, alpha.DeathsPerThousand, 1e-12)

	beta := results.StateSummaries[1]
	assert.Equal(t, "Beta", beta.ProvinceState)
	assert.InDelta(t, 16.0*1e3/50000.0, beta.CasesPerThousand, 1e-12)

	// Global enrichment: Hubei and Iceland got population from the lookup.
	var hubei, iceland *UnifiedRecord
	for i := range results.UnifiedGlobal.Records {
		rec := &results.UnifiedGlobal.Records[i]
		switch rec.CompositeKey {
		case "Hubei, China":
			hubei = rec
		case "Iceland":
			iceland = rec
		}
	}
	require.NotNil(t, hubei)
	require.NotNil(t, hubei.Population)
	assert.Equal(t, 59170000.0, *hubei.Population)
	require.NotNil(t, iceland)
	require.NotNil(t, iceland.Population)

	// Global country-day exists for both countries, onset-filtered.
	countries := map[string]bool{}
	for _, cd := range results.GlobalCountryDays {
		countries[cd.CountryRegion] = true
	}
	assert.True(t, countries["China"])
	assert.True(t, countries["Iceland"])
}

func TestRun_MissingInputIsSchemaError(t *testing.T) {
	raw := syntheticRawTables()
	raw.Lookup = nil

	_, err := Run(context.Background(), raw)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}

func TestRun_InputsNotMutated(t *testing.T) {
	raw := syntheticRawTables()
	originalCell := raw.USCases.Rows[0][11]

	_, err := Run(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, originalCell, raw.USCases.Rows[0][11])
}
