package dataset

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"shelflife/internal/models"
)

func TestLoadCSV(t *testing.T) {
	in := `days_stored,food_type,storage_type,temperature,humidity,remaining_shelf_life
3,dairy,refrigerator,4.5,,9.5
1, meat ,freezer,nan,60,120
`
	ds, err := LoadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d rows, want 2", ds.Len())
	}

	first := ds.Records[0]
	if first.FoodType != "dairy" || first.Temperature != 4.5 || first.DaysStored != 3 {
		t.Errorf("first record: %+v", first)
	}
	if !math.IsNaN(first.Humidity) {
		t.Errorf("empty humidity should be NaN, got %v", first.Humidity)
	}
	if ds.Records[1].FoodType != "meat" || !math.IsNaN(ds.Records[1].Temperature) {
		t.Errorf("second record: %+v", ds.Records[1])
	}
	if !reflect.DeepEqual(ds.Targets, []float64{9.5, 120}) {
		t.Errorf("targets: %v", ds.Targets)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		missing bool
	}{
		{"missing column", "food_type,storage_type,temperature,humidity,remaining_shelf_life\ndairy,pantry,1,2,3\n", true},
		{"missing label", "food_type,storage_type,temperature,humidity,days_stored,remaining_shelf_life\ndairy,pantry,1,2,3,\n", false},
		{"bad number", "food_type,storage_type,temperature,humidity,days_stored,remaining_shelf_life\ndairy,pantry,warm,2,3,4\n", false},
		{"no rows", "food_type,storage_type,temperature,humidity,days_stored,remaining_shelf_life\n", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.in))
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, models.ErrMissingColumn); got != tt.missing {
				t.Errorf("ErrMissingColumn: got %v, want %v (%v)", got, tt.missing, err)
			}
		})
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds := Dataset{
		Records: []models.Record{
			{FoodType: "fruits", StorageType: "pantry", Temperature: 21.5, Humidity: math.NaN(), DaysStored: 2},
		},
		Targets: []float64{4.25},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), strings.Join(Header, ",")+"\n") {
		t.Errorf("header: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "fruits,pantry,21.5,,2,4.25") {
		t.Errorf("row: %q", buf.String())
	}

	back, err := LoadCSV(&buf)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if back.Records[0].Temperature != 21.5 || !math.IsNaN(back.Records[0].Humidity) || back.Targets[0] != 4.25 {
		t.Errorf("round trip: %+v %v", back.Records[0], back.Targets)
	}
}

func TestSplit(t *testing.T) {
	ds := Generate(101, 5)

	train, test := Split(ds, 0.2, 42)
	if test.Len() != 21 || train.Len() != 80 {
		t.Errorf("sizes: train %d test %d", train.Len(), test.Len())
	}

	again, _ := Split(ds, 0.2, 42)
	if !reflect.DeepEqual(train, again) {
		t.Error("same seed produced a different split")
	}

	other, _ := Split(ds, 0.2, 43)
	if reflect.DeepEqual(train, other) {
		t.Error("different seeds produced the same split")
	}

	tiny := Generate(1, 1)
	tr, te := Split(tiny, 0.5, 1)
	if tr.Len() != 1 || te.Len() != 0 {
		t.Errorf("single sample: train %d test %d", tr.Len(), te.Len())
	}
}

func TestGenerate(t *testing.T) {
	a := Generate(500, 9)
	b := Generate(500, 9)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different data")
	}

	foods := map[string]bool{}
	for i, r := range a.Records {
		foods[r.FoodType] = true
		if !models.FoodType(r.FoodType).Valid() || !models.StorageType(r.StorageType).Valid() {
			t.Fatalf("row %d has unknown categories: %+v", i, r)
		}
		if a.Targets[i] < 0 || math.IsNaN(a.Targets[i]) {
			t.Fatalf("row %d has target %v", i, a.Targets[i])
		}
		if r.Humidity < 10 || r.Humidity > 100 || r.DaysStored < 0 {
			t.Fatalf("row %d out of range: %+v", i, r)
		}
	}
	if len(foods) != len(models.FoodTypes) {
		t.Errorf("only %d food types generated", len(foods))
	}
}
