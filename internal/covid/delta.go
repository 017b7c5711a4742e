package covid

import (
	"sort"
)

// DeriveRegionDeltas returns a copy of the region-day table with
// day-over-day new-case and new-death columns filled in. Within each
// (province/state, country) series sorted by date ascending,
// new = current minus previous; the first observation of each series has
// no predecessor and its deltas stay nil, never zero and never the
// cumulative value itself. N rows across G series yield exactly G nil
// deltas.
func DeriveRegionDeltas(days []RegionDay) []RegionDay {
	result := make([]RegionDay, len(days))
	copy(result, days)

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.ProvinceState != b.ProvinceState {
			return a.ProvinceState < b.ProvinceState
		}
		if a.CountryRegion != b.CountryRegion {
			return a.CountryRegion < b.CountryRegion
		}
		return a.Date.Before(b.Date)
	})

	var prev *RegionDay
	for i := range result {
		cur := &result[i]
		if prev != nil && prev.ProvinceState == cur.ProvinceState && prev.CountryRegion == cur.CountryRegion {
			cur.NewCases = Float(cur.Cases - prev.Cases)
			cur.NewDeaths = Float(cur.Deaths - prev.Deaths)
		} else {
			cur.NewCases = nil
			cur.NewDeaths = nil
		}
		prev = cur
	}

	return result
}

// DeriveCountryDeltas is DeriveRegionDeltas for the by-country-day table,
// with (country) as the series key.
func DeriveCountryDeltas(days []CountryDay) []CountryDay {
	result := make([]CountryDay, len(days))
	copy(result, days)

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CountryRegion != b.CountryRegion {
			return a.CountryRegion < b.CountryRegion
		}
		return a.Date.Before(b.Date)
	})

	var prev *CountryDay
	for i := range result {
		cur := &result[i]
		if prev != nil && prev.CountryRegion == cur.CountryRegion {
			cur.NewCases = Float(cur.Cases - prev.Cases)
			cur.NewDeaths = Float(cur.Deaths - prev.Deaths)
		} else {
			cur.NewCases = nil
			cur.NewDeaths = nil
		}
		prev = cur
	}

	return result
}
