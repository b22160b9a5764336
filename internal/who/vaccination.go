package who

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// VaccinationRecord is one country row of the WHO vaccination snapshot.
// Dose counts are optional: several territories report no vaccination data
// at all, and the downstream cleaning step drops those rows.
type VaccinationRecord struct {
	Country           string
	ISO3              string
	TotalVaccinations sql.NullFloat64
	PerHundred        sql.NullFloat64
}

// LoadVaccinations parses the WHO vaccination-data CSV.
func LoadVaccinations(path string) ([]VaccinationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vaccinations: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read vaccinations header: %w", err)
	}
	cols := indexColumns(header)

	required := []string{"COUNTRY", "ISO3", "TOTAL_VACCINATIONS", "TOTAL_VACCINATIONS_PER100"}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, &SchemaError{File: path, Column: c}
		}
	}

	var records []VaccinationRecord
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read vaccinations row %d: %w", line, err)
		}

		rec := VaccinationRecord{
			Country: strings.TrimSpace(field(row, cols["COUNTRY"])),
			ISO3:    strings.ToUpper(strings.TrimSpace(field(row, cols["ISO3"]))),
		}
		if rec.TotalVaccinations, err = parseOptFloat(field(row, cols["TOTAL_VACCINATIONS"])); err != nil {
			return nil, fmt.Errorf("vaccinations row %d: parse total vaccinations: %w", line, err)
		}
		if rec.PerHundred, err = parseOptFloat(field(row, cols["TOTAL_VACCINATIONS_PER100"])); err != nil {
			return nil, fmt.Errorf("vaccinations row %d: parse per-100: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseOptFloat(s string) (sql.NullFloat64, error) {
	if s == "" {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}
