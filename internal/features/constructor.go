// Package features turns preprocessed records into the fixed-width vectors the
// estimator is trained on.
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"shelflife/internal/models"
	"shelflife/internal/preprocessing"
)

// Schema is the ordered list of feature names.
type Schema []string

// Equal reports whether both schemas hold the same names in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Fingerprint is a stable hash of the schema.
func (s Schema) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join(s, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Check returns models.ErrSchemaMismatch when trained differs from s.
func (s Schema) Check(trained Schema) error {
	if s.Equal(trained) {
		return nil
	}
	return fmt.Errorf("%w: constructor emits %d features [%s], estimator expects %d [%s]",
		models.ErrSchemaMismatch, len(s), strings.Join(s, ","), len(trained), strings.Join(trained, ","))
}

var schema = Schema{
	"food_type",
	"storage_type",
	"temperature",
	"humidity",
	"days_stored",
	"temp_humidity_interaction",
	"temp_squared",
	"humidity_squared",
	"days_temp_interaction",
	"days_humidity_interaction",
	"storage_temp_interaction",
	"food_storage_combo",
	"temp_deviation",
	"humidity_deviation",
}

// Constructor derives model features. It holds no state.
type Constructor struct{}

// Schema returns a copy of the emitted feature names.
func (Constructor) Schema() Schema {
	return append(Schema(nil), schema...)
}

// Transform builds one feature vector per preprocessed record, in Schema order.
func (Constructor) Transform(batch []preprocessing.Encoded) [][]float64 {
	out := make([][]float64, len(batch))
	for i, e := range batch {
		food := float64(e.FoodType)
		storage := float64(e.StorageType)
		t, h, d := e.Temperature, e.Humidity, e.DaysStored

		out[i] = []float64{
			food,
			storage,
			t,
			h,
			d,
			t * h,
			t * t,
			h * h,
			d * t,
			d * h,
			storage * t,
			food*10 + storage,
			math.Abs(t),
			math.Abs(h),
		}
	}
	return out
}
