// Package estimator implements the random-forest regressor that maps feature vectors to
// a raw remaining-days estimate.
package estimator

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"shelflife/internal/features"
	"shelflife/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Params configures a forest.
type Params struct {
	NTrees          int     `json:"n_trees" yaml:"n_trees"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"` // 0 means unlimited
	MinSamplesSplit int     `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures     float64 `json:"max_features" yaml:"max_features"` // fraction of features tried per split
	Seed            int64   `json:"seed" yaml:"seed"`
}

// DefaultParams mirrors the configuration the model was originally trained with.
func DefaultParams() Params {
	return Params{
		NTrees:          100,
		MaxDepth:        15,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     1.0,
		Seed:            42,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.NTrees <= 0 {
		p.NTrees = d.NTrees
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = d.MinSamplesSplit
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > 1 {
		p.MaxFeatures = d.MaxFeatures
	}
	return p
}

func (p Params) featuresPerSplit(n int) int {
	m := int(p.MaxFeatures * float64(n))
	if m < 1 {
		m = 1
	}
	if m > n {
		m = n
	}
	return m
}

// Forest is a bagged ensemble of regression trees. After Fit or Load it is read-only
// and safe for concurrent Predict calls.
type Forest struct {
	params     Params
	schema     features.Schema
	trees      []*tree
	importance []float64
	logger     *zap.Logger
}

// New returns an unfitted forest for vectors of the given schema.
func New(schema features.Schema, params Params, logger *zap.Logger) *Forest {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forest{
		params: params.withDefaults(),
		schema: append(features.Schema(nil), schema...),
		logger: logger,
	}
}

// Params returns the configuration the forest was (or will be) fitted with.
func (f *Forest) Params() Params {
	return f.params
}

// Schema returns the feature names the forest expects.
func (f *Forest) Schema() features.Schema {
	return append(features.Schema(nil), f.schema...)
}

// Fitted reports whether the forest holds trained trees.
func (f *Forest) Fitted() bool {
	return len(f.trees) > 0
}

// Fit trains the forest. Each tree draws from its own RNG seeded with Seed+index, so
// the result does not depend on how the trees are scheduled.
func (f *Forest) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := f.checkTraining(x, y); err != nil {
		return err
	}

	trees := make([]*tree, f.params.NTrees)
	importances := make([][]float64, f.params.NTrees)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < f.params.NTrees; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(f.params.Seed + int64(i)))
			trees[i], importances[i] = growTree(x, y, f.params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("forest training cancelled: %w", err)
	}

	f.trees = trees
	f.importance = aggregateImportance(importances, len(f.schema))

	f.logger.Debug("Forest fitted",
		zap.Int("trees", len(trees)),
		zap.Int("samples", len(y)),
		zap.Int("max_depth", f.params.MaxDepth))
	return nil
}

// Predict returns the mean tree prediction for every row. Values are not clamped.
func (f *Forest) Predict(x [][]float64) ([]float64, error) {
	if !f.Fitted() {
		return nil, fmt.Errorf("forest predict: %w", models.ErrNotFitted)
	}

	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(f.schema) {
			return nil, fmt.Errorf("%w: row %d has %d features, forest expects %d",
				models.ErrSchemaMismatch, i, len(row), len(f.schema))
		}
		var sum float64
		for _, t := range f.trees {
			sum += t.predict(row)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out, nil
}

// FeatureImportance returns the topK features by normalized impurity decrease, highest
// first. Equal scores keep schema order. topK <= 0 returns every feature.
func (f *Forest) FeatureImportance(topK int) models.FeatureImportance {
	if !f.Fitted() {
		return models.FeatureImportance{}
	}

	order := make([]int, len(f.importance))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return f.importance[order[a]] > f.importance[order[b]]
	})

	if topK <= 0 || topK > len(order) {
		topK = len(order)
	}
	out := make(models.FeatureImportance, topK)
	for i := 0; i < topK; i++ {
		j := order[i]
		out[i] = models.FeatureScore{Feature: f.schema[j], Importance: f.importance[j]}
	}
	return out
}

func (f *Forest) checkTraining(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("no training samples")
	}
	if len(x) != len(y) {
		return fmt.Errorf("feature rows (%d) and targets (%d) differ", len(x), len(y))
	}
	for i, row := range x {
		if len(row) != len(f.schema) {
			return fmt.Errorf("%w: training row %d has %d features, schema has %d",
				models.ErrSchemaMismatch, i, len(row), len(f.schema))
		}
	}
	return nil
}

// aggregateImportance normalizes each tree's impurity decrease, averages across trees
// and normalizes the result to sum to one.
func aggregateImportance(perTree [][]float64, n int) []float64 {
	total := make([]float64, n)
	for _, imp := range perTree {
		var sum float64
		for _, v := range imp {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for j, v := range imp {
			total[j] += v / sum
		}
	}

	var sum float64
	for _, v := range total {
		sum += v
	}
	if sum > 0 {
		for j := range total {
			total[j] /= sum
		}
	}
	return total
}
