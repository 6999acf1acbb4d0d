package inference

import (
	"bytes"
	"context"
	"fmt"

	"shelflife/internal/artifact"
	"shelflife/internal/estimator"
	"shelflife/internal/features"
	"shelflife/internal/preprocessing"

	"go.uber.org/zap"
)

// ArtifactKeys names the stored artifacts of a trained pipeline.
type ArtifactKeys struct {
	Preprocessor string `yaml:"preprocessor"`
	Estimator    string `yaml:"estimator"`
}

// DefaultArtifactKeys are used when the configuration leaves keys empty.
func DefaultArtifactKeys() ArtifactKeys {
	return ArtifactKeys{
		Preprocessor: "preprocessor.json",
		Estimator:    "shelf_life_forest.json",
	}
}

// LoadPreprocessor reads and validates a fitted preprocessor.
func LoadPreprocessor(ctx context.Context, store artifact.Store, key string) (*preprocessing.Preprocessor, error) {
	data, err := store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load preprocessor: %w", err)
	}
	pre, err := preprocessing.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load preprocessor %s: %w", key, err)
	}
	return pre, nil
}

// LoadEstimator reads a fitted forest and checks it against schema.
func LoadEstimator(ctx context.Context, store artifact.Store, key string, schema features.Schema, logger *zap.Logger) (*estimator.Forest, error) {
	data, err := store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load estimator: %w", err)
	}
	forest, err := estimator.Load(bytes.NewReader(data), schema, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load estimator %s: %w", key, err)
	}
	return forest, nil
}

// Load builds a pipeline from stored artifacts.
func Load(ctx context.Context, store artifact.Store, keys ArtifactKeys, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	pre, err := LoadPreprocessor(ctx, store, keys.Preprocessor)
	if err != nil {
		return nil, err
	}

	forest, err := LoadEstimator(ctx, store, keys.Estimator, features.Constructor{}.Schema(), logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Pipeline artifacts loaded",
		zap.String("preprocessor", keys.Preprocessor),
		zap.String("estimator", keys.Estimator),
		zap.Int("trees", forest.Params().NTrees))

	return NewPipeline(pre, forest, cfg, logger)
}

// SaveArtifacts writes a fitted preprocessor and forest to store.
func SaveArtifacts(ctx context.Context, store artifact.Store, keys ArtifactKeys, pre *preprocessing.Preprocessor, forest *estimator.Forest) error {
	var buf bytes.Buffer
	if err := pre.Save(&buf); err != nil {
		return err
	}
	if err := store.Write(ctx, keys.Preprocessor, buf.Bytes()); err != nil {
		return err
	}

	buf.Reset()
	if err := forest.Save(&buf); err != nil {
		return err
	}
	return store.Write(ctx, keys.Estimator, buf.Bytes())
}
