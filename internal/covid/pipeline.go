package covid

import (
	"context"

	"github.com/kpritch24/johns-hopkins-covid19/internal/errors"
	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
)

// RawTables bundles the five raw inputs a pipeline run requires. All five
// must be present; the pipeline has no partial or degraded mode.
type RawTables struct {
	USCases      *RawTable
	USDeaths     *RawTable
	GlobalCases  *RawTable
	GlobalDeaths *RawTable
	Lookup       *RawTable
}

// PipelineStats collects the per-stage side information: dropped rows,
// join coverage, lookup misses, and data-quality warnings. Nothing is
// dropped without being counted here.
type PipelineStats struct {
	USCasesMelt      MeltStats
	USDeathsMelt     MeltStats
	GlobalCasesMelt  MeltStats
	GlobalDeathsMelt MeltStats

	USCombine     CombineStats
	GlobalCombine CombineStats

	Lookup       LookupStats
	USEnrich     EnrichStats
	GlobalEnrich EnrichStats

	Summary SummaryStats
}

// Results carries the derived tables of one pipeline run. Every table is
// an independently owned value; no stage output is mutated by a later
// stage.
type Results struct {
	UnifiedUS     *UnifiedTable
	UnifiedGlobal *UnifiedTable

	USRegionDays     []RegionDay
	USCountryDays    []CountryDay
	GlobalCountryDays []CountryDay
	StateSummaries   []StateSummary

	Stats PipelineStats
}

// Run executes the full transformation pipeline: melt the four wide
// tables, outer-join cases and deaths per granularity, attach population,
// aggregate by state-day and country-day, derive day-over-day deltas, and
// summarize per state. The regression model is fit by the caller on
// StateSummaries so a degenerate model never invalidates the tables.
func Run(ctx context.Context, raw RawTables) (*Results, error) {
	logger := infrastructure.LoggerWithContext(ctx)

	if raw.USCases == nil || raw.USDeaths == nil || raw.GlobalCases == nil ||
		raw.GlobalDeaths == nil || raw.Lookup == nil {
		return nil, errors.NewSchemaError("pipeline requires all four time-series tables plus the population lookup", nil)
	}

	stats := PipelineStats{}

	usCasesLong, meltStats, err := Melt(raw.USCases, USCasesSchema, "cases")
	if err != nil {
		return nil, err
	}
	stats.USCasesMelt = meltStats

	usDeathsLong, meltStats, err := Melt(raw.USDeaths, USDeathsSchema, "deaths")
	if err != nil {
		return nil, err
	}
	stats.USDeathsMelt = meltStats

	globalCasesLong, meltStats, err := Melt(raw.GlobalCases, GlobalCasesSchema, "cases")
	if err != nil {
		return nil, err
	}
	stats.GlobalCasesMelt = meltStats

	globalDeathsLong, meltStats, err := Melt(raw.GlobalDeaths, GlobalDeathsSchema, "deaths")
	if err != nil {
		return nil, err
	}
	stats.GlobalDeathsMelt = meltStats

	logger.InfoContext(ctx, "melted raw tables",
		"us_case_observations", stats.USCasesMelt.Observations,
		"us_death_observations", stats.USDeathsMelt.Observations,
		"global_case_observations", stats.GlobalCasesMelt.Observations,
		"global_death_observations", stats.GlobalDeathsMelt.Observations)

	unifiedUS, combineStats := Combine("unified_us", usCasesLong, usDeathsLong)
	stats.USCombine = combineStats
	if combineStats.DroppedBadDates > 0 {
		logger.WarnContext(ctx, "dropped rows with unparseable dates",
			"table", unifiedUS.Name, "dropped", combineStats.DroppedBadDates)
	}

	unifiedGlobal, combineStats := Combine("unified_global", globalCasesLong, globalDeathsLong)
	stats.GlobalCombine = combineStats
	if combineStats.DroppedBadDates > 0 {
		logger.WarnContext(ctx, "dropped rows with unparseable dates",
			"table", unifiedGlobal.Name, "dropped", combineStats.DroppedBadDates)
	}

	lookup, lookupStats, err := ParsePopulationLookup(raw.Lookup)
	if err != nil {
		return nil, err
	}
	stats.Lookup = lookupStats

	// The US tables carry population inline, the global tables need the
	// lookup; behind the ensurer both arrive at the aggregator the same way.
	unifiedUS, stats.USEnrich = InlinePopulation{}.EnsurePopulation(unifiedUS)
	unifiedGlobal, stats.GlobalEnrich = LookupPopulation{Rows: lookup}.EnsurePopulation(unifiedGlobal)

	logger.InfoContext(ctx, "combined and enriched",
		"unified_us_records", len(unifiedUS.Records),
		"unified_global_records", len(unifiedGlobal.Records),
		"global_population_unmatched", stats.GlobalEnrich.Unmatched)

	usRegionDays := DeriveRegionDeltas(AggregateRegionDay(unifiedUS))
	usCountryDays := DeriveCountryDeltas(AggregateCountryDay(AggregateRegionDay(unifiedUS)))
	globalCountryDays := DeriveCountryDeltas(AggregateCountryDay(AggregateRegionDay(unifiedGlobal)))

	summaries, summaryStats := SummarizeStates(ctx, AggregateRegionDay(unifiedUS))
	stats.Summary = summaryStats

	logger.InfoContext(ctx, "aggregated",
		"us_region_days", len(usRegionDays),
		"us_country_days", len(usCountryDays),
		"global_country_days", len(globalCountryDays),
		"state_summaries", len(summaries),
		"non_monotonic_series", summaryStats.NonMonotonicSeries)

	return &Results{
		UnifiedUS:         unifiedUS,
		UnifiedGlobal:     unifiedGlobal,
		USRegionDays:      usRegionDays,
		USCountryDays:     usCountryDays,
		GlobalCountryDays: globalCountryDays,
		StateSummaries:    summaries,
		Stats:             stats,
	}, nil
}
