// Package who loads the public WHO COVID-19 datasets from delimited files
// into typed in-memory tables.
package who

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// SchemaError reports a required column missing from a dataset header.
type SchemaError struct {
	File   string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: required column %q not found", e.File, e.Column)
}

// CaseRecord is one (country, date) row of the WHO case/death time series.
// The WHO feed keys rows by country name and a two-letter country code; an
// ISO3 column is carried when the file provides one but is usually empty.
type CaseRecord struct {
	Country          string
	ISO3             string
	Date             time.Time
	CumulativeCases  int64
	CumulativeDeaths int64
}

const caseDateLayout = "2006-01-02"

// LoadCases parses the WHO global case/death CSV. Rows with an empty
// cumulative count are treated as zero, matching the source feed's habit of
// leaving early-pandemic cells blank.
func LoadCases(path string) ([]CaseRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cases: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read cases header: %w", err)
	}
	cols := indexColumns(header)

	required := []string{"Date_reported", "Country", "Cumulative_cases", "Cumulative_deaths"}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, &SchemaError{File: path, Column: c}
		}
	}
	iso3Col, hasISO3 := cols["ISO3"]

	var records []CaseRecord
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read cases row %d: %w", line, err)
		}

		date, err := time.Parse(caseDateLayout, field(row, cols["Date_reported"]))
		if err != nil {
			return nil, fmt.Errorf("cases row %d: parse date: %w", line, err)
		}
		cases, err := parseCount(field(row, cols["Cumulative_cases"]))
		if err != nil {
			return nil, fmt.Errorf("cases row %d: parse cumulative cases: %w", line, err)
		}
		deaths, err := parseCount(field(row, cols["Cumulative_deaths"]))
		if err != nil {
			return nil, fmt.Errorf("cases row %d: parse cumulative deaths: %w", line, err)
		}

		rec := CaseRecord{
			Country:          strings.TrimSpace(field(row, cols["Country"])),
			Date:             date,
			CumulativeCases:  cases,
			CumulativeDeaths: deaths,
		}
		if hasISO3 {
			rec.ISO3 = strings.ToUpper(strings.TrimSpace(field(row, iso3Col)))
		}
		records = append(records, rec)
	}
	return records, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		// The WHO files occasionally ship with a UTF-8 BOM on the first
		// column name.
		name = strings.TrimPrefix(strings.TrimSpace(name), "\uFEFF")
		cols[name] = i
	}
	return cols
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
