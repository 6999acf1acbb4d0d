// Package dataset reads, writes, splits and synthesizes labelled shelf-life samples.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"shelflife/internal/models"
)

// TargetColumn holds the label: remaining shelf life in days.
const TargetColumn = "remaining_shelf_life"

// Header is the column order written by WriteCSV.
var Header = []string{"food_type", "storage_type", "temperature", "humidity", "days_stored", TargetColumn}

// Dataset is a set of records with their remaining-days labels.
type Dataset struct {
	Records []models.Record
	Targets []float64
}

// Len returns the number of samples.
func (d Dataset) Len() int {
	return len(d.Records)
}

// LoadCSV parses a labelled CSV with a header row. Columns may appear in any order.
// Empty numeric cells are read as missing values; the label must always be present.
func LoadCSV(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range Header {
		if _, ok := index[col]; !ok {
			return Dataset{}, fmt.Errorf("%w: %s", models.ErrMissingColumn, col)
		}
	}

	var ds Dataset
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}

		rec := models.Record{
			FoodType:    strings.TrimSpace(row[index["food_type"]]),
			StorageType: strings.TrimSpace(row[index["storage_type"]]),
		}
		if rec.Temperature, err = parseOptional(row[index["temperature"]]); err != nil {
			return Dataset{}, fmt.Errorf("line %d temperature: %w", line, err)
		}
		if rec.Humidity, err = parseOptional(row[index["humidity"]]); err != nil {
			return Dataset{}, fmt.Errorf("line %d humidity: %w", line, err)
		}
		if rec.DaysStored, err = parseOptional(row[index["days_stored"]]); err != nil {
			return Dataset{}, fmt.Errorf("line %d days_stored: %w", line, err)
		}

		target, err := strconv.ParseFloat(strings.TrimSpace(row[index[TargetColumn]]), 64)
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d %s: %w", line, TargetColumn, err)
		}

		ds.Records = append(ds.Records, rec)
		ds.Targets = append(ds.Targets, target)
	}

	if ds.Len() == 0 {
		return Dataset{}, fmt.Errorf("dataset has no rows")
	}
	return ds, nil
}

// WriteCSV writes d with Header. Missing values are written as empty cells.
func WriteCSV(w io.Writer, d Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for i, r := range d.Records {
		row := []string{
			r.FoodType,
			r.StorageType,
			formatOptional(r.Temperature),
			formatOptional(r.Humidity),
			formatOptional(r.DaysStored),
			strconv.FormatFloat(d.Targets[i], 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Split shuffles the sample indices with seed and holds out testFraction of them.
func Split(d Dataset, testFraction float64, seed int64) (train, test Dataset) {
	n := d.Len()
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	for k, i := range perm {
		if k < nTest {
			test.Records = append(test.Records, d.Records[i])
			test.Targets = append(test.Targets, d.Targets[i])
		} else {
			train.Records = append(train.Records, d.Records[i])
			train.Targets = append(train.Targets, d.Targets[i])
		}
	}
	return train, test
}

func parseOptional(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

func formatOptional(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
