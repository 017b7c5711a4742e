package covid

import (
	"context"
	"sort"

	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
)

// SummaryStats reports what SummarizeStates observed and filtered.
type SummaryStats struct {
	States              int
	SkippedNoCases      int
	SkippedNoPopulation int
	NonMonotonicSeries  int
}

// FilterOnset drops records whose cumulative case count is missing or
// non-positive. Zero-case rows are placeholders from before onset, not
// observations, and would distort per-capita baselines.
func FilterOnset(records []UnifiedRecord) []UnifiedRecord {
	kept := make([]UnifiedRecord, 0, len(records))
	for _, rec := range records {
		if rec.Cases != nil && *rec.Cases > 0 {
			kept = append(kept, rec)
		}
	}
	return kept
}

type regionDayKey struct {
	province string
	country  string
	date     int64
}

// AggregateRegionDay groups onset-filtered unified records by
// (province/state, country, date) and sums cases, deaths, and population.
// Where several cities share a (state, country, date), all three metrics
// sum; population repeating per city in the source schema can double-count,
// an accepted limitation inherited from the published tables.
func AggregateRegionDay(table *UnifiedTable) []RegionDay {
	grouped := make(map[regionDayKey]*RegionDay)

	for _, rec := range FilterOnset(table.Records) {
		key := regionDayKey{rec.ProvinceState, rec.CountryRegion, rec.Date.Unix()}
		day, ok := grouped[key]
		if !ok {
			day = &RegionDay{
				ProvinceState: rec.ProvinceState,
				CountryRegion: rec.CountryRegion,
				Date:          rec.Date,
			}
			grouped[key] = day
		}
		day.Cases += *rec.Cases
		if rec.Deaths != nil {
			day.Deaths += *rec.Deaths
		}
		if rec.Population != nil {
			day.Population += *rec.Population
		}
	}

	days := make([]RegionDay, 0, len(grouped))
	for _, day := range grouped {
		population := day.Population
		day.CasesPerMillion = RatePer(day.Cases, &population, PerMillion)
		day.DeathsPerMillion = RatePer(day.Deaths, &population, PerMillion)
		days = append(days, *day)
	}

	sort.Slice(days, func(i, j int) bool {
		a, b := days[i], days[j]
		if a.ProvinceState != b.ProvinceState {
			return a.ProvinceState < b.ProvinceState
		}
		if a.CountryRegion != b.CountryRegion {
			return a.CountryRegion < b.CountryRegion
		}
		return a.Date.Before(b.Date)
	})

	return days
}

type countryDayKey struct {
	country string
	date    int64
}

// AggregateCountryDay regroups region-day rows by (country, date). The
// base metrics re-sum and the rates are recomputed from the sums; ratios
// are never averaged.
func AggregateCountryDay(days []RegionDay) []CountryDay {
	grouped := make(map[countryDayKey]*CountryDay)

	for _, rd := range days {
		key := countryDayKey{rd.CountryRegion, rd.Date.Unix()}
		day, ok := grouped[key]
		if !ok {
			day = &CountryDay{CountryRegion: rd.CountryRegion, Date: rd.Date}
			grouped[key] = day
		}
		day.Cases += rd.Cases
		day.Deaths += rd.Deaths
		day.Population += rd.Population
	}

	result := make([]CountryDay, 0, len(grouped))
	for _, day := range grouped {
		population := day.Population
		day.CasesPerMillion = RatePer(day.Cases, &population, PerMillion)
		day.DeathsPerMillion = RatePer(day.Deaths, &population, PerMillion)
		result = append(result, *day)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CountryRegion != b.CountryRegion {
			return a.CountryRegion < b.CountryRegion
		}
		return a.Date.Before(b.Date)
	})

	return result
}

// SummarizeStates collapses region-day rows to one row per state, taking
// the maximum observed cumulative cases, deaths, and population. For
// well-formed cumulative series the max is the most recent value; a
// series that dips is reported as a data-quality warning (the published
// tables occasionally contain reporting corrections) and counted, but
// still summarized by its max. States without positive cases and
// population are filtered out.
func SummarizeStates(ctx context.Context, days []RegionDay) ([]StateSummary, SummaryStats) {
	logger := infrastructure.LoggerWithContext(ctx)
	stats := SummaryStats{}

	type stateAccum struct {
		summary     StateSummary
		lastCountry string
		lastCases   float64
		dipped      bool
	}

	grouped := make(map[string]*stateAccum)
	var order []string

	// Region-day input is sorted by (state, country, date), so scanning in
	// order doubles as the monotonicity check per series.
	for _, rd := range days {
		acc, ok := grouped[rd.ProvinceState]
		if !ok {
			acc = &stateAccum{summary: StateSummary{ProvinceState: rd.ProvinceState}}
			grouped[rd.ProvinceState] = acc
			order = append(order, rd.ProvinceState)
		}
		if rd.CountryRegion == acc.lastCountry && rd.Cases < acc.lastCases && !acc.dipped {
			acc.dipped = true
			stats.NonMonotonicSeries++
			logger.WarnContext(ctx, "non-monotonic cumulative series",
				"province_state", rd.ProvinceState,
				"date", rd.Date.Format("2006-01-02"),
				"cases", rd.Cases,
				"previous_cases", acc.lastCases)
		}
		acc.lastCountry = rd.CountryRegion
		acc.lastCases = rd.Cases

		acc.summary.Cases = max(acc.summary.Cases, rd.Cases)
		acc.summary.Deaths = max(acc.summary.Deaths, rd.Deaths)
		acc.summary.Population = max(acc.summary.Population, rd.Population)
	}

	summaries := make([]StateSummary, 0, len(grouped))
	for _, state := range order {
		s := grouped[state].summary
		if s.Cases <= 0 {
			stats.SkippedNoCases++
			continue
		}
		if s.Population <= 0 {
			stats.SkippedNoPopulation++
			continue
		}
		s.CasesPerThousand = s.Cases * PerThousand / s.Population
		s.DeathsPerThousand = s.Deaths * PerThousand / s.Population
		summaries = append(summaries, s)
	}
	stats.States = len(summaries)

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ProvinceState < summaries[j].ProvinceState
	})

	return summaries, stats
}
