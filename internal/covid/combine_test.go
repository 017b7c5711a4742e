package covid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(city, province, country, label string, value float64) Observation {
	return Observation{
		City:          city,
		ProvinceState: province,
		CountryRegion: country,
		DateLabel:     label,
		Value:         value,
	}
}

func TestCombine_FullOuterJoin(t *testing.T) {
	cases := &LongTable{Metric: "cases", Observations: []Observation{
		obs("Autauga", "Alabama", "US", "1/22/20", 5),
		obs("Autauga", "Alabama", "US", "1/23/20", 7),
		obs("Baldwin", "Alabama", "US", "1/22/20", 2), // cases-only key
	}}
	deaths := &LongTable{Metric: "deaths", Observations: []Observation{
		obs("Autauga", "Alabama", "US", "1/22/20", 1),
		obs("Autauga", "Alabama", "US", "1/23/20", 1),
		obs("Mobile", "Alabama", "US", "1/22/20", 3), // deaths-only key
	}}

	unified, stats := Combine("unified_us", cases, deaths)

	// One output row per key appearing in either input.
	assert.Len(t, unified.Records, 4)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.CasesOnly)
	assert.Equal(t, 1, stats.DeathsOnly)
	assert.Zero(t, stats.DroppedBadDates)

	byKey := map[string]UnifiedRecord{}
	for _, rec := range unified.Records {
		byKey[rec.City+"|"+rec.Date.Format("2006-01-02")] = rec
	}

	matched := byKey["Autauga|2020-01-22"]
	require.NotNil(t, matched.Cases)
	require.NotNil(t, matched.Deaths)
	assert.Equal(t, 5.0, *matched.Cases)
	assert.Equal(t, 1.0, *matched.Deaths)

	casesOnly := byKey["Baldwin|2020-01-22"]
	require.NotNil(t, casesOnly.Cases)
	assert.Nil(t, casesOnly.Deaths)

	deathsOnly := byKey["Mobile|2020-01-22"]
	assert.Nil(t, deathsOnly.Cases)
	require.NotNil(t, deathsOnly.Deaths)
	assert.Equal(t, 3.0, *deathsOnly.Deaths)
}

func TestCombine_DateParsing(t *testing.T) {
	cases := &LongTable{Metric: "cases", Observations: []Observation{
		obs("", "Hubei", "China", "1/22/20", 444),
	}}

	unified, _ := Combine("unified_global", cases, &LongTable{Metric: "deaths"})

	require.Len(t, unified.Records, 1)
	assert.Equal(t, time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC), unified.Records[0].Date)
}

func TestCombine_BadDateDroppedAndCounted(t *testing.T) {
	cases := &LongTable{Metric: "cases", Observations: []Observation{
		obs("", "Hubei", "China", "not-a-date", 444),
		obs("", "Hubei", "China", "1/23/20", 445),
	}}

	unified, stats := Combine("unified_global", cases, &LongTable{Metric: "deaths"})

	assert.Len(t, unified.Records, 1)
	assert.Equal(t, 1, stats.DroppedBadDates)
}

func TestCombine_PopulationFromDeathsSide(t *testing.T) {
	cases := &LongTable{Metric: "cases", Observations: []Observation{
		obs("Autauga", "Alabama", "US", "1/22/20", 5),
	}}
	deathObs := obs("Autauga", "Alabama", "US", "1/22/20", 1)
	deathObs.Population = Float(55869)
	deaths := &LongTable{Metric: "deaths", Observations: []Observation{deathObs}}

	unified, _ := Combine("unified_us", cases, deaths)

	require.Len(t, unified.Records, 1)
	require.NotNil(t, unified.Records[0].Population)
	assert.Equal(t, 55869.0, *unified.Records[0].Population)
}

func TestCombine_CompositeKey(t *testing.T) {
	cases := &LongTable{Metric: "cases", Observations: []Observation{
		obs("", "Hubei", "China", "1/22/20", 444),
		obs("", "", "Afghanistan", "1/22/20", 0),
	}}

	unified, _ := Combine("unified_global", cases, &LongTable{Metric: "deaths"})

	keys := map[string]bool{}
	for _, rec := range unified.Records {
		keys[rec.CompositeKey] = true
	}
	assert.True(t, keys["Hubei, China"])
	// Empty province omits the segment entirely, no stray separator.
	assert.True(t, keys["Afghanistan"])
}

func TestCombine_DeterministicOrder(t *testing.T) {
	cases := &LongTable{Metric: "cases", Observations: []Observation{
		obs("", "Victoria", "Australia", "1/23/20", 1),
		obs("", "Hubei", "China", "1/22/20", 444),
		obs("", "Victoria", "Australia", "1/22/20", 0),
	}}

	unified, _ := Combine("unified_global", cases, &LongTable{Metric: "deaths"})

	require.Len(t, unified.Records, 3)
	assert.Equal(t, "Australia", unified.Records[0].CountryRegion)
	assert.True(t, unified.Records[0].Date.Before(unified.Records[1].Date))
	assert.Equal(t, "China", unified.Records[2].CountryRegion)
}
