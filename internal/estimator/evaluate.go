package estimator

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
)

// Metrics summarizes prediction error on a labelled set.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// CVResult summarizes k-fold cross-validated MAE.
type CVResult struct {
	MeanMAE float64 `json:"mean_mae"`
	StdMAE  float64 `json:"std_mae"`
}

// SearchSpace is the hyperparameter grid explored by Tune.
type SearchSpace struct {
	NTrees          []int `yaml:"n_trees"`
	MaxDepth        []int `yaml:"max_depth"`
	MinSamplesSplit []int `yaml:"min_samples_split"`
}

// DefaultSearchSpace is the grid used by the training command.
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		NTrees:          []int{50, 100, 200},
		MaxDepth:        []int{10, 15, 0},
		MinSamplesSplit: []int{2, 5},
	}
}

// Evaluate scores the forest on x, y.
func (f *Forest) Evaluate(x [][]float64, y []float64) (Metrics, error) {
	if len(x) != len(y) || len(y) == 0 {
		return Metrics{}, fmt.Errorf("evaluate needs matching non-empty rows and targets")
	}
	pred, err := f.Predict(x)
	if err != nil {
		return Metrics{}, err
	}
	return score(y, pred), nil
}

// CrossValidate trains a fresh forest with the same params on k-1 folds and scores the
// held-out fold, k times.
func (f *Forest) CrossValidate(ctx context.Context, x [][]float64, y []float64, k int) (CVResult, error) {
	return crossValidate(ctx, f, f.params, x, y, k)
}

// Tune grid-searches space by k-fold MAE, keeps the earliest best point on ties and
// refits f on all data with the winner.
func (f *Forest) Tune(ctx context.Context, x [][]float64, y []float64, space SearchSpace, k int) (Params, error) {
	if len(space.NTrees) == 0 || len(space.MaxDepth) == 0 || len(space.MinSamplesSplit) == 0 {
		return Params{}, fmt.Errorf("search space must list at least one value per parameter")
	}

	var (
		best    Params
		bestMAE = math.Inf(1)
	)
	for _, nTrees := range space.NTrees {
		for _, depth := range space.MaxDepth {
			for _, minSplit := range space.MinSamplesSplit {
				candidate := f.params
				candidate.NTrees = nTrees
				candidate.MaxDepth = depth
				candidate.MinSamplesSplit = minSplit
				candidate = candidate.withDefaults()

				cv, err := crossValidate(ctx, f, candidate, x, y, k)
				if err != nil {
					return Params{}, err
				}

				f.logger.Info("Evaluated hyperparameters",
					zap.Int("n_trees", candidate.NTrees),
					zap.Int("max_depth", candidate.MaxDepth),
					zap.Int("min_samples_split", candidate.MinSamplesSplit),
					zap.Float64("cv_mae", cv.MeanMAE))

				if cv.MeanMAE < bestMAE {
					best, bestMAE = candidate, cv.MeanMAE
				}
			}
		}
	}

	f.params = best
	if err := f.Fit(ctx, x, y); err != nil {
		return Params{}, err
	}
	return best, nil
}

func crossValidate(ctx context.Context, base *Forest, params Params, x [][]float64, y []float64, k int) (CVResult, error) {
	if k < 2 {
		return CVResult{}, fmt.Errorf("cross validation needs at least 2 folds, got %d", k)
	}
	if len(y) < k || len(x) != len(y) {
		return CVResult{}, fmt.Errorf("cannot split %d samples into %d folds", len(y), k)
	}

	folds := kFold(len(y), k, params.Seed)
	maes := make([]float64, k)
	for i, test := range folds {
		inTest := make(map[int]bool, len(test))
		for _, j := range test {
			inTest[j] = true
		}

		var trainX, testX [][]float64
		var trainY, testY []float64
		for j := range y {
			if inTest[j] {
				testX = append(testX, x[j])
				testY = append(testY, y[j])
			} else {
				trainX = append(trainX, x[j])
				trainY = append(trainY, y[j])
			}
		}

		model := New(base.schema, params, base.logger)
		if err := model.Fit(ctx, trainX, trainY); err != nil {
			return CVResult{}, fmt.Errorf("fold %d: %w", i, err)
		}
		m, err := model.Evaluate(testX, testY)
		if err != nil {
			return CVResult{}, fmt.Errorf("fold %d: %w", i, err)
		}
		maes[i] = m.MAE
	}

	mean, variance := 0.0, 0.0
	for _, v := range maes {
		mean += v
	}
	mean /= float64(k)
	for _, v := range maes {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(k)

	return CVResult{MeanMAE: mean, StdMAE: math.Sqrt(variance)}, nil
}

// kFold shuffles 0..n-1 with seed and cuts it into k folds; the first n%k folds get one
// extra sample.
func kFold(n, k int, seed int64) [][]int {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	start := 0
	for i := 0; i < k; i++ {
		size := n / k
		if i < n%k {
			size++
		}
		folds[i] = perm[start : start+size]
		start += size
	}
	return folds
}

func score(y, pred []float64) Metrics {
	n := float64(len(y))
	var absSum, sqSum, mean float64
	for i := range y {
		d := y[i] - pred[i]
		absSum += math.Abs(d)
		sqSum += d * d
		mean += y[i]
	}
	mean /= n

	var total float64
	for _, v := range y {
		total += (v - mean) * (v - mean)
	}

	r2 := 0.0
	switch {
	case total > 0:
		r2 = 1 - sqSum/total
	case sqSum == 0:
		r2 = 1
	}

	return Metrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		R2:   r2,
	}
}
