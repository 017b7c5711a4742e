package covid

import (
	"sort"
	"time"
)

// CombineStats reports the join coverage of a Combine call.
type CombineStats struct {
	CaseObservations  int
	DeathObservations int
	Matched           int
	CasesOnly         int
	DeathsOnly        int
	DroppedBadDates   int
}

type unifiedKey struct {
	city      string
	province  string
	country   string
	dateLabel string
}

// Combine full-outer-joins a cases and a deaths long table on
// (identity columns, date label) and parses the date labels into calendar
// dates. A key present on only one side yields a record with the missing
// metric nil; rows whose date label does not parse are dropped and
// counted, never kept as null dates.
func Combine(name string, cases, deaths *LongTable) (*UnifiedTable, CombineStats) {
	stats := CombineStats{}

	joined := make(map[unifiedKey]*UnifiedRecord)

	upsert := func(obs Observation) *UnifiedRecord {
		key := unifiedKey{obs.City, obs.ProvinceState, obs.CountryRegion, obs.DateLabel}
		rec, ok := joined[key]
		if !ok {
			rec = &UnifiedRecord{
				City:          obs.City,
				ProvinceState: obs.ProvinceState,
				CountryRegion: obs.CountryRegion,
				CompositeKey:  CompositeKey(obs.ProvinceState, obs.CountryRegion),
			}
			joined[key] = rec
		}
		if rec.Population == nil && obs.Population != nil {
			rec.Population = obs.Population
		}
		return rec
	}

	if cases != nil {
		stats.CaseObservations = len(cases.Observations)
		for _, obs := range cases.Observations {
			v := obs.Value
			upsert(obs).Cases = &v
		}
	}
	if deaths != nil {
		stats.DeathObservations = len(deaths.Observations)
		for _, obs := range deaths.Observations {
			v := obs.Value
			upsert(obs).Deaths = &v
		}
	}

	// Date labels repeat across every reporting unit; parse each distinct
	// label once.
	parsedDates := make(map[string]time.Time)
	badDates := make(map[string]bool)

	records := make([]UnifiedRecord, 0, len(joined))
	for key, rec := range joined {
		date, ok := parsedDates[key.dateLabel]
		if !ok && !badDates[key.dateLabel] {
			var err error
			date, err = time.Parse(DateLabelLayout, key.dateLabel)
			if err != nil {
				badDates[key.dateLabel] = true
			} else {
				parsedDates[key.dateLabel] = date
			}
		}
		if badDates[key.dateLabel] {
			stats.DroppedBadDates++
			continue
		}
		rec.Date = date

		switch {
		case rec.Cases != nil && rec.Deaths != nil:
			stats.Matched++
		case rec.Cases != nil:
			stats.CasesOnly++
		default:
			stats.DeathsOnly++
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.CountryRegion != b.CountryRegion {
			return a.CountryRegion < b.CountryRegion
		}
		if a.ProvinceState != b.ProvinceState {
			return a.ProvinceState < b.ProvinceState
		}
		if a.City != b.City {
			return a.City < b.City
		}
		return a.Date.Before(b.Date)
	})

	return &UnifiedTable{Name: name, Records: records}, stats
}
