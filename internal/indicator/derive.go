// Package indicator derives the per-country indicator table from the WHO
// case/death time series and vaccination snapshot.
package indicator

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hmgu-urban/covid19-cartograms/internal/who"
)

// DateMatch selects how the cutoff-date filter treats countries that did not
// report on the cutoff date itself.
type DateMatch string

const (
	// MatchStrict keeps only rows whose report date equals the cutoff.
	// Countries on a different reporting cadence are dropped.
	MatchStrict DateMatch = "strict"
	// MatchNearest keeps, per country, the latest row at or before the
	// cutoff.
	MatchNearest DateMatch = "nearest"
)

// Vaccination is a cleaned vaccination row with its population estimate.
type Vaccination struct {
	Country             string
	ISO3                string
	EstimatedPopulation float64
	PerHundred          float64
}

// Row is the joined per-country indicator table. Population-dependent rates
// are invalid when the country has no usable vaccination row; the fatality
// rate is invalid when cumulative cases are zero.
type Row struct {
	Country          string
	ISO3             string
	CumulativeCases  int64
	CumulativeDeaths int64

	Population    sql.NullFloat64
	Coverage      sql.NullFloat64 // doses per 100 population
	InfectionRate sql.NullFloat64 // % of population ever infected
	MortalityRate sql.NullFloat64 // % of population dead of COVID-19
	FatalityRate  sql.NullFloat64 // % of cases that were fatal
}

// CleanVaccination drops rows without a dose count or with a non-positive
// per-100 figure, then estimates each country's population from coverage:
// a country that administered N doses at D doses per 100 people has
// N / (D/100) inhabitants.
func CleanVaccination(records []who.VaccinationRecord) []Vaccination {
	var out []Vaccination
	for _, rec := range records {
		if !rec.TotalVaccinations.Valid || !rec.PerHundred.Valid {
			continue
		}
		if rec.PerHundred.Float64 <= 0 {
			continue
		}
		out = append(out, Vaccination{
			Country:             rec.Country,
			ISO3:                rec.ISO3,
			EstimatedPopulation: rec.TotalVaccinations.Float64 / (rec.PerHundred.Float64 / 100),
			PerHundred:          rec.PerHundred.Float64,
		})
	}
	return out
}

// FilterLatest reduces the case time series to one row per country at the
// cutoff date, per the configured match mode.
func FilterLatest(records []who.CaseRecord, cutoff time.Time, match DateMatch) []who.CaseRecord {
	if match == MatchStrict {
		var out []who.CaseRecord
		for _, rec := range records {
			if rec.Date.Equal(cutoff) {
				out = append(out, rec)
			}
		}
		return out
	}

	// Nearest mode: latest report at or before the cutoff, per country.
	latest := make(map[string]who.CaseRecord)
	var order []string
	for _, rec := range records {
		if rec.Date.After(cutoff) {
			continue
		}
		key := joinKey(rec.ISO3, rec.Country)
		prev, ok := latest[key]
		if !ok {
			order = append(order, key)
			latest[key] = rec
			continue
		}
		if rec.Date.After(prev.Date) {
			latest[key] = rec
		}
	}
	out := make([]who.CaseRecord, 0, len(order))
	for _, key := range order {
		out = append(out, latest[key])
	}
	return out
}

// Derive left-joins the filtered case rows to the cleaned vaccination rows
// and computes the four indicators. Join misses leave the population-derived
// rates invalid rather than erroring; downstream stages drop those countries
// per indicator.
func Derive(cases []who.CaseRecord, vax []Vaccination) []Row {
	byISO3 := make(map[string]Vaccination, len(vax))
	byName := make(map[string]Vaccination, len(vax))
	for _, v := range vax {
		if v.ISO3 != "" {
			byISO3[strings.ToUpper(v.ISO3)] = v
		}
		byName[nameKey(v.Country)] = v
	}

	rows := make([]Row, 0, len(cases))
	for _, c := range cases {
		row := Row{
			Country:          c.Country,
			ISO3:             c.ISO3,
			CumulativeCases:  c.CumulativeCases,
			CumulativeDeaths: c.CumulativeDeaths,
		}

		v, ok := byISO3[strings.ToUpper(c.ISO3)]
		if !ok && c.ISO3 == "" {
			// The WHO case feed carries no ISO3 column; fall back to the
			// normalized country name only in that case.
			v, ok = byName[nameKey(c.Country)]
		}
		if ok {
			row.ISO3 = v.ISO3
			row.Population = sql.NullFloat64{Float64: v.EstimatedPopulation, Valid: true}
			row.Coverage = sql.NullFloat64{Float64: v.PerHundred, Valid: true}
			if v.EstimatedPopulation > 0 {
				row.InfectionRate = sql.NullFloat64{
					Float64: 100 * float64(c.CumulativeCases) / v.EstimatedPopulation,
					Valid:   true,
				}
				row.MortalityRate = sql.NullFloat64{
					Float64: 100 * float64(c.CumulativeDeaths) / v.EstimatedPopulation,
					Valid:   true,
				}
			}
		}

		if c.CumulativeCases > 0 {
			row.FatalityRate = sql.NullFloat64{
				Float64: 100 * float64(c.CumulativeDeaths) / float64(c.CumulativeCases),
				Valid:   true,
			}
		}

		rows = append(rows, row)
	}
	return rows
}

// joinKey identifies a country within a single dataset: uppercased ISO3
// where available, uppercased country name otherwise.
func joinKey(iso3, country string) string {
	if iso3 != "" {
		return strings.ToUpper(iso3)
	}
	return nameKey(country)
}

func nameKey(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
