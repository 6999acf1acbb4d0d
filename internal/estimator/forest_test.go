package estimator

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"shelflife/internal/artifact"
	"shelflife/internal/features"
	"shelflife/internal/models"

	"go.uber.org/zap"
)

var testSchema = features.Schema{"signal", "noise", "weak"}

// linearData returns y = 2*signal + 0.1*weak with an irrelevant noise column.
func linearData(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		signal := float64(i % 50)
		weak := rng.Float64()
		x[i] = []float64{signal, rng.NormFloat64(), weak}
		y[i] = 2*signal + 0.1*weak
	}
	return x, y
}

func smallParams() Params {
	p := DefaultParams()
	p.NTrees = 20
	p.MaxDepth = 8
	return p
}

func fitted(t *testing.T, x [][]float64, y []float64) *Forest {
	t.Helper()
	f := New(testSchema, smallParams(), zap.NewNop())
	if err := f.Fit(context.Background(), x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return f
}

func TestFitIsDeterministic(t *testing.T) {
	x, y := linearData(200, 1)
	a := fitted(t, x, y)
	b := fitted(t, x, y)

	pa, err := a.Predict(x)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	pb, _ := b.Predict(x)
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("row %d: %v != %v", i, pa[i], pb[i])
		}
	}
}

func TestPredictStaysWithinTargetRange(t *testing.T) {
	x, y := linearData(200, 2)
	f := fitted(t, x, y)

	lo, hi := y[0], y[0]
	for _, v := range y {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	probe := [][]float64{{-100, 0, 0}, {1000, 5, 1}, {25, -3, 0.5}}
	pred, err := f.Predict(probe)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i, p := range pred {
		if p < lo-1e-9 || p > hi+1e-9 {
			t.Errorf("probe %d: %v outside [%v, %v]", i, p, lo, hi)
		}
	}
}

func TestEvaluateOnTrainingData(t *testing.T) {
	x, y := linearData(300, 3)
	f := fitted(t, x, y)

	m, err := f.Evaluate(x, y)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.MAE > 5 {
		t.Errorf("MAE %v is too high for a noiseless target", m.MAE)
	}
	if m.R2 < 0.9 {
		t.Errorf("R2 %v is too low", m.R2)
	}
	if m.RMSE < m.MAE {
		t.Errorf("RMSE %v below MAE %v", m.RMSE, m.MAE)
	}
}

func TestFeatureImportance(t *testing.T) {
	x, y := linearData(300, 4)
	f := fitted(t, x, y)

	all := f.FeatureImportance(0)
	if len(all) != len(testSchema) {
		t.Fatalf("got %d scores, want %d", len(all), len(testSchema))
	}
	if all[0].Feature != "signal" {
		t.Errorf("top feature: got %s, want signal", all[0].Feature)
	}

	var sum float64
	for i, s := range all {
		sum += s.Importance
		if i > 0 && s.Importance > all[i-1].Importance {
			t.Errorf("scores not descending at %d", i)
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances sum to %v, want 1", sum)
	}

	if top := f.FeatureImportance(1); len(top) != 1 || top[0] != all[0] {
		t.Errorf("top 1: got %v", top)
	}
	if big := f.FeatureImportance(10); len(big) != len(testSchema) {
		t.Errorf("topK above width: got %d scores", len(big))
	}
}

func TestPredictErrors(t *testing.T) {
	f := New(testSchema, smallParams(), nil)
	if _, err := f.Predict([][]float64{{1, 2, 3}}); !errors.Is(err, models.ErrNotFitted) {
		t.Errorf("unfitted: got %v, want ErrNotFitted", err)
	}
	if got := f.FeatureImportance(3); len(got) != 0 {
		t.Errorf("unfitted importance: got %v", got)
	}

	x, y := linearData(50, 5)
	f = fitted(t, x, y)
	if _, err := f.Predict([][]float64{{1, 2}}); !errors.Is(err, models.ErrSchemaMismatch) {
		t.Errorf("narrow row: got %v, want ErrSchemaMismatch", err)
	}
}

func TestFitValidation(t *testing.T) {
	f := New(testSchema, smallParams(), nil)
	ctx := context.Background()

	if err := f.Fit(ctx, nil, nil); err == nil {
		t.Error("empty training set should fail")
	}
	if err := f.Fit(ctx, [][]float64{{1, 2, 3}}, []float64{1, 2}); err == nil {
		t.Error("mismatched targets should fail")
	}
	if err := f.Fit(ctx, [][]float64{{1, 2}}, []float64{1}); !errors.Is(err, models.ErrSchemaMismatch) {
		t.Errorf("narrow row: got %v, want ErrSchemaMismatch", err)
	}
}

func TestFitCancelled(t *testing.T) {
	x, y := linearData(100, 6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(testSchema, smallParams(), nil)
	if err := f.Fit(ctx, x, y); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if f.Fitted() {
		t.Error("cancelled fit must not leave trees behind")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	x, y := linearData(150, 7)
	f := fitted(t, x, y)

	var buf bytes.Buffer
	if err := f.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf, testSchema, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want, _ := f.Predict(x)
	got, err := loaded.Predict(x)
	if err != nil {
		t.Fatalf("Predict after load: %v", err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("row %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if loaded.Params() != f.Params() {
		t.Errorf("params: got %+v, want %+v", loaded.Params(), f.Params())
	}
}

func TestLoadSchemaMismatch(t *testing.T) {
	x, y := linearData(60, 8)
	f := fitted(t, x, y)

	var buf bytes.Buffer
	if err := f.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err := Load(&buf, features.Schema{"signal", "weak", "noise"}, nil)
	if !errors.Is(err, models.ErrSchemaMismatch) {
		t.Errorf("got %v, want ErrSchemaMismatch", err)
	}
}

func TestLoadRejectsInvalidTrees(t *testing.T) {
	tests := []struct {
		name  string
		state forestState
	}{
		{
			name:  "no trees",
			state: forestState{Schema: testSchema, Importance: []float64{1, 0, 0}, Fitted: true},
		},
		{
			name: "feature out of range",
			state: forestState{
				Schema:     testSchema,
				Importance: []float64{1, 0, 0},
				Trees:      []*tree{{Nodes: []node{{Feature: 7, Left: 1, Right: 2}, {Feature: leaf}, {Feature: leaf}}}},
				Fitted:     true,
			},
		},
		{
			name: "child points backwards",
			state: forestState{
				Schema:     testSchema,
				Importance: []float64{1, 0, 0},
				Trees:      []*tree{{Nodes: []node{{Feature: 0, Left: 0, Right: 1}, {Feature: leaf}}}},
				Fitted:     true,
			},
		},
		{
			name: "importance width",
			state: forestState{
				Schema:     testSchema,
				Importance: []float64{1},
				Trees:      []*tree{{Nodes: []node{{Feature: leaf, Value: 1}}}},
				Fitted:     true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := artifact.Encode(&buf, ArtifactKind, tt.state); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if _, err := Load(&buf, testSchema, nil); !errors.Is(err, models.ErrCorruptArtifact) {
				t.Errorf("got %v, want ErrCorruptArtifact", err)
			}
		})
	}
}

func TestSaveUnfitted(t *testing.T) {
	var buf bytes.Buffer
	if err := New(testSchema, smallParams(), nil).Save(&buf); !errors.Is(err, models.ErrNotFitted) {
		t.Errorf("got %v, want ErrNotFitted", err)
	}
}
