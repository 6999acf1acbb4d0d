// Package preprocessing encodes categorical columns, imputes missing numeric values and
// standardizes numeric columns. A Preprocessor is fitted once offline and then shared
// read-only by every request.
package preprocessing

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"

	"shelflife/internal/artifact"
	"shelflife/internal/models"
)

// Column names of a raw record.
const (
	ColFoodType    = "food_type"
	ColStorageType = "storage_type"
	ColTemperature = "temperature"
	ColHumidity    = "humidity"
	ColDaysStored  = "days_stored"
)

// ArtifactKind identifies preprocessor envelopes.
const ArtifactKind = "preprocessor"

var (
	CategoricalColumns = []string{ColFoodType, ColStorageType}
	NumericColumns     = []string{ColTemperature, ColHumidity, ColDaysStored}
)

// Encoding maps category strings to integer codes. Classes are sorted; the code of a
// class is its index and code 0 is the fallback for values never seen during fit.
type Encoding struct {
	Classes []string `json:"classes"`
}

// Code returns the code for v, or the fallback code when v was not seen during fit.
func (e Encoding) Code(v string) int {
	i := sort.SearchStrings(e.Classes, v)
	if i < len(e.Classes) && e.Classes[i] == v {
		return i
	}
	return e.FallbackCode()
}

// Known reports whether v was seen during fit.
func (e Encoding) Known(v string) bool {
	i := sort.SearchStrings(e.Classes, v)
	return i < len(e.Classes) && e.Classes[i] == v
}

// FallbackCode is the code assigned to unseen categories.
func (e Encoding) FallbackCode() int {
	return 0
}

// Scaling holds the imputation and standardization statistics of a numeric column.
type Scaling struct {
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// Apply imputes a missing value and standardizes the result.
func (s Scaling) Apply(v float64) float64 {
	if math.IsNaN(v) {
		v = s.Median
	}
	return (v - s.Mean) / s.Scale
}

// Encoded is a preprocessed record.
type Encoded struct {
	FoodType    int
	StorageType int
	Temperature float64
	Humidity    float64
	DaysStored  float64
}

// Preprocessor holds the fitted encoding and scaling state.
type Preprocessor struct {
	encodings map[string]Encoding
	scalings  map[string]Scaling
	fitted    bool
}

// New returns an unfitted preprocessor.
func New() *Preprocessor {
	return &Preprocessor{
		encodings: make(map[string]Encoding),
		scalings:  make(map[string]Scaling),
	}
}

// Fitted reports whether Fit or Load has completed.
func (p *Preprocessor) Fitted() bool {
	return p.fitted
}

// Fit learns encodings and scaling statistics from batch. Scaling statistics are
// computed after imputation.
func (p *Preprocessor) Fit(batch []models.Record) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: empty training batch", models.ErrMissingColumn)
	}

	encodings := make(map[string]Encoding, len(CategoricalColumns))
	for _, col := range CategoricalColumns {
		seen := make(map[string]struct{})
		for _, r := range batch {
			if v := categorical(r, col); v != "" {
				seen[v] = struct{}{}
			}
		}
		if len(seen) == 0 {
			return fmt.Errorf("%w: %s has no values", models.ErrMissingColumn, col)
		}

		classes := make([]string, 0, len(seen))
		for v := range seen {
			classes = append(classes, v)
		}
		sort.Strings(classes)
		encodings[col] = Encoding{Classes: classes}
	}

	scalings := make(map[string]Scaling, len(NumericColumns))
	for _, col := range NumericColumns {
		values := make([]float64, 0, len(batch))
		for _, r := range batch {
			if v := numeric(r, col); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: %s has no values", models.ErrMissingColumn, col)
		}

		med := median(values)
		imputed := make([]float64, len(batch))
		for i, r := range batch {
			v := numeric(r, col)
			if math.IsNaN(v) {
				v = med
			}
			imputed[i] = v
		}

		mean, variance := meanVariance(imputed)
		scale := math.Sqrt(variance)
		if scale == 0 {
			scale = 1
		}
		scalings[col] = Scaling{Median: med, Mean: mean, Scale: scale}
	}

	p.encodings = encodings
	p.scalings = scalings
	p.fitted = true
	return nil
}

// Transform encodes and scales batch. Categories not seen during fit are mapped to the
// fallback code instead of failing.
func (p *Preprocessor) Transform(batch []models.Record) ([]Encoded, error) {
	if !p.fitted {
		return nil, fmt.Errorf("preprocessor transform: %w", models.ErrNotFitted)
	}

	food := p.encodings[ColFoodType]
	storage := p.encodings[ColStorageType]
	temp := p.scalings[ColTemperature]
	hum := p.scalings[ColHumidity]
	days := p.scalings[ColDaysStored]

	out := make([]Encoded, len(batch))
	for i, r := range batch {
		out[i] = Encoded{
			FoodType:    food.Code(r.FoodType),
			StorageType: storage.Code(r.StorageType),
			Temperature: temp.Apply(r.Temperature),
			Humidity:    hum.Apply(r.Humidity),
			DaysStored:  days.Apply(r.DaysStored),
		}
	}
	return out, nil
}

// FitTransform fits on batch and transforms the same batch.
func (p *Preprocessor) FitTransform(batch []models.Record) ([]Encoded, error) {
	if err := p.Fit(batch); err != nil {
		return nil, err
	}
	return p.Transform(batch)
}

// Encoding returns the fitted encoding of a categorical column.
func (p *Preprocessor) Encoding(col string) (Encoding, bool) {
	e, ok := p.encodings[col]
	return e, ok
}

// Scaling returns the fitted statistics of a numeric column.
func (p *Preprocessor) Scaling(col string) (Scaling, bool) {
	s, ok := p.scalings[col]
	return s, ok
}

type state struct {
	Columns   []string            `json:"columns"`
	Encodings map[string]Encoding `json:"encodings"`
	Scalings  map[string]Scaling  `json:"scalings"`
	Fitted    bool                `json:"fitted"`
}

// Save writes the fitted state as one artifact.
func (p *Preprocessor) Save(w io.Writer) error {
	if !p.fitted {
		return fmt.Errorf("preprocessor save: %w", models.ErrNotFitted)
	}

	return artifact.Encode(w, ArtifactKind, state{
		Columns:   columnOrder(),
		Encodings: p.encodings,
		Scalings:  p.scalings,
		Fitted:    p.fitted,
	})
}

// Load restores a preprocessor written by Save. Incomplete state is rejected with
// models.ErrCorruptArtifact.
func Load(r io.Reader) (*Preprocessor, error) {
	var st state
	if err := artifact.Decode(r, ArtifactKind, &st); err != nil {
		return nil, err
	}

	if !st.Fitted {
		return nil, fmt.Errorf("%w: preprocessor artifact is not fitted", models.ErrCorruptArtifact)
	}
	if !slices.Equal(st.Columns, columnOrder()) {
		return nil, fmt.Errorf("%w: preprocessor columns %v, want %v",
			models.ErrCorruptArtifact, st.Columns, columnOrder())
	}
	for _, col := range CategoricalColumns {
		enc, ok := st.Encodings[col]
		if !ok || len(enc.Classes) == 0 {
			return nil, fmt.Errorf("%w: missing encoding for %s", models.ErrCorruptArtifact, col)
		}
		for i := 1; i < len(enc.Classes); i++ {
			if enc.Classes[i-1] >= enc.Classes[i] {
				return nil, fmt.Errorf("%w: encoding for %s is not strictly sorted", models.ErrCorruptArtifact, col)
			}
		}
	}
	for _, col := range NumericColumns {
		sc, ok := st.Scalings[col]
		if !ok {
			return nil, fmt.Errorf("%w: missing scaling for %s", models.ErrCorruptArtifact, col)
		}
		if sc.Scale <= 0 || math.IsInf(sc.Scale, 0) {
			return nil, fmt.Errorf("%w: invalid scale for %s", models.ErrCorruptArtifact, col)
		}
	}

	return &Preprocessor{
		encodings: st.Encodings,
		scalings:  st.Scalings,
		fitted:    true,
	}, nil
}

// columnOrder is the stored column list: categorical columns, then numeric ones.
func columnOrder() []string {
	return append(append([]string{}, CategoricalColumns...), NumericColumns...)
}

func categorical(r models.Record, col string) string {
	switch col {
	case ColFoodType:
		return r.FoodType
	case ColStorageType:
		return r.StorageType
	}
	return ""
}

func numeric(r models.Record, col string) float64 {
	switch col {
	case ColTemperature:
		return r.Temperature
	case ColHumidity:
		return r.Humidity
	case ColDaysStored:
		return r.DaysStored
	}
	return math.NaN()
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// meanVariance returns the mean and population variance of values.
func meanVariance(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, sq / float64(len(values))
}
