package estimator

import (
	"context"
	"math"
	"sort"
	"testing"
)

func TestKFoldPartitions(t *testing.T) {
	folds := kFold(23, 5, 42)
	if len(folds) != 5 {
		t.Fatalf("got %d folds, want 5", len(folds))
	}

	var all []int
	for i, f := range folds {
		want := 4
		if i < 3 {
			want = 5
		}
		if len(f) != want {
			t.Errorf("fold %d: got %d samples, want %d", i, len(f), want)
		}
		all = append(all, f...)
	}
	sort.Ints(all)
	for i, v := range all {
		if v != i {
			t.Fatalf("indices are not a partition of 0..22: %v", all)
		}
	}
}

func TestScore(t *testing.T) {
	perfect := score([]float64{1, 2, 3}, []float64{1, 2, 3})
	if perfect.MAE != 0 || perfect.RMSE != 0 || perfect.R2 != 1 {
		t.Errorf("perfect: %+v", perfect)
	}

	m := score([]float64{1, 2, 3, 4}, []float64{2, 2, 3, 2})
	if m.MAE != 0.75 {
		t.Errorf("MAE: got %v, want 0.75", m.MAE)
	}
	if math.Abs(m.RMSE-math.Sqrt(5.0/4)) > 1e-12 {
		t.Errorf("RMSE: got %v", m.RMSE)
	}
	if math.Abs(m.R2-(1-5.0/5)) > 1e-12 {
		t.Errorf("R2: got %v, want 0", m.R2)
	}

	constant := score([]float64{2, 2}, []float64{1, 3})
	if constant.R2 != 0 {
		t.Errorf("constant target with errors: R2 %v, want 0", constant.R2)
	}
}

func TestCrossValidate(t *testing.T) {
	x, y := linearData(120, 9)
	f := New(testSchema, smallParams(), nil)

	cv, err := f.CrossValidate(context.Background(), x, y, 4)
	if err != nil {
		t.Fatalf("CrossValidate: %v", err)
	}
	if cv.MeanMAE <= 0 || math.IsNaN(cv.MeanMAE) || cv.MeanMAE > 10 {
		t.Errorf("mean MAE: %v", cv.MeanMAE)
	}
	if cv.StdMAE < 0 || math.IsNaN(cv.StdMAE) {
		t.Errorf("std MAE: %v", cv.StdMAE)
	}
	if f.Fitted() {
		t.Error("cross validation must not fit the receiver")
	}

	if _, err := f.CrossValidate(context.Background(), x[:3], y[:3], 4); err == nil {
		t.Error("more folds than samples should fail")
	}
	if _, err := f.CrossValidate(context.Background(), x, y, 1); err == nil {
		t.Error("a single fold should fail")
	}
}

func TestTune(t *testing.T) {
	x, y := linearData(80, 10)
	f := New(testSchema, smallParams(), nil)

	space := SearchSpace{
		NTrees:          []int{5, 10},
		MaxDepth:        []int{1, 6},
		MinSamplesSplit: []int{2},
	}
	best, err := f.Tune(context.Background(), x, y, space, 3)
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if best.MaxDepth != 6 {
		t.Errorf("a depth-1 stump should lose on a 50-level target, got depth %d", best.MaxDepth)
	}
	if !f.Fitted() || f.Params() != best {
		t.Errorf("forest should be refitted with the winner, params %+v", f.Params())
	}

	if _, err := f.Tune(context.Background(), x, y, SearchSpace{}, 3); err == nil {
		t.Error("empty search space should fail")
	}
}
