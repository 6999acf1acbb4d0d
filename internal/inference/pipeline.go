// Package inference composes preprocessing, feature construction, the estimator and the
// rule engine into one prediction call.
package inference

import (
	"fmt"
	"math"

	"shelflife/internal/features"
	"shelflife/internal/models"
	"shelflife/internal/preprocessing"
	"shelflife/internal/rules"

	"go.uber.org/zap"
)

// DefaultImportanceTopK is how many features are reported with each result.
const DefaultImportanceTopK = 5

// Estimator is the trained regression model used by the pipeline.
type Estimator interface {
	Predict(x [][]float64) ([]float64, error)
	FeatureImportance(topK int) models.FeatureImportance
	Schema() features.Schema
}

// Config tunes result assembly.
type Config struct {
	ImportanceTopK int `yaml:"importance_top_k"`
}

// Pipeline holds the fitted components. It never mutates them, so one Pipeline can
// serve concurrent requests.
type Pipeline struct {
	preprocessor *preprocessing.Preprocessor
	constructor  features.Constructor
	estimator    Estimator
	engine       *rules.Engine
	topK         int
	logger       *zap.Logger
}

// NewPipeline checks that the components fit together. The estimator must have been
// trained on exactly the schema the constructor emits.
func NewPipeline(pre *preprocessing.Preprocessor, est Estimator, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if pre == nil || !pre.Fitted() {
		return nil, fmt.Errorf("pipeline preprocessor: %w", models.ErrNotFitted)
	}
	if est == nil {
		return nil, fmt.Errorf("pipeline estimator: %w", models.ErrNotFitted)
	}

	constructor := features.Constructor{}
	if err := constructor.Schema().Check(est.Schema()); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	topK := cfg.ImportanceTopK
	if topK <= 0 {
		topK = DefaultImportanceTopK
	}

	return &Pipeline{
		preprocessor: pre,
		constructor:  constructor,
		estimator:    est,
		engine:       rules.NewEngine(),
		topK:         topK,
		logger:       logger,
	}, nil
}

// PredictOne predicts a single item.
func (p *Pipeline) PredictOne(foodType string, temperature, humidity float64, storageType string, daysStored float64) (models.PredictionResult, error) {
	results, err := p.Predict([]models.PredictionInput{{
		FoodType:    foodType,
		StorageType: storageType,
		Temperature: &temperature,
		Humidity:    &humidity,
		DaysStored:  &daysStored,
	}})
	if err != nil {
		return models.PredictionResult{}, err
	}
	return results[0], nil
}

// Predict returns one result per input, in input order. An empty batch yields an empty
// result. Any stage failure fails the whole batch; no partial results are returned.
func (p *Pipeline) Predict(inputs []models.PredictionInput) ([]models.PredictionResult, error) {
	if len(inputs) == 0 {
		return []models.PredictionResult{}, nil
	}

	records := make([]models.Record, len(inputs))
	conditions := make([]rules.Conditions, len(inputs))
	for i, in := range inputs {
		c := normalize(in)
		conditions[i] = c
		records[i] = models.Record{
			FoodType:    in.FoodType,
			StorageType: in.StorageType,
			Temperature: c.Temperature,
			Humidity:    c.Humidity,
			DaysStored:  c.DaysStored,
		}
		if c.FoodType != models.FoodType(in.FoodType) || c.StorageType != models.StorageType(in.StorageType) {
			p.logger.Debug("Defaulted unknown category",
				zap.Int("index", i),
				zap.String("food_type", in.FoodType),
				zap.String("storage_type", in.StorageType))
		}
	}

	encoded, err := p.preprocessor.Transform(records)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}

	raw, err := p.estimator.Predict(p.constructor.Transform(encoded))
	if err != nil {
		return nil, fmt.Errorf("estimation failed: %w", err)
	}
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("estimator returned %d predictions for %d records", len(raw), len(inputs))
	}

	importance := p.estimator.FeatureImportance(p.topK)

	results := make([]models.PredictionResult, len(inputs))
	for i, c := range conditions {
		outcome := p.engine.Evaluate(c, raw[i])
		results[i] = models.PredictionResult{
			FoodType:               c.FoodType,
			StorageType:            c.StorageType,
			Temperature:            c.Temperature,
			Humidity:               c.Humidity,
			DaysStored:             c.DaysStored,
			PredictedRemainingDays: round2(outcome.Adjusted),
			RawPrediction:          round2(raw[i]),
			SafetyClassification:   outcome.Classification,
			Issues:                 outcome.Issues,
			Severity:               outcome.Severity,
			Recommendations:        outcome.Recommendations,
			FeatureImportance:      append(models.FeatureImportance(nil), importance...),
		}

		if len(outcome.Rules) > 0 {
			p.logger.Debug("Storage rules fired",
				zap.Int("index", i),
				zap.Strings("rules", outcome.Rules),
				zap.String("severity", outcome.Severity.String()))
		}
	}

	return results, nil
}

// FeatureImportance exposes the estimator's ranking.
func (p *Pipeline) FeatureImportance(topK int) models.FeatureImportance {
	return p.estimator.FeatureImportance(topK)
}

// Schema is the feature schema shared by constructor and estimator.
func (p *Pipeline) Schema() features.Schema {
	return p.constructor.Schema()
}

// normalize defaults absent numeric fields to zero and unknown categories to the
// default food and storage types. The preprocessor still sees the raw categories so
// unseen values take its fallback code.
func normalize(in models.PredictionInput) rules.Conditions {
	return rules.Conditions{
		FoodType:    models.NormalizeFoodType(in.FoodType),
		StorageType: models.NormalizeStorageType(in.StorageType),
		Temperature: valueOrZero(in.Temperature),
		Humidity:    valueOrZero(in.Humidity),
		DaysStored:  valueOrZero(in.DaysStored),
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return *v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
