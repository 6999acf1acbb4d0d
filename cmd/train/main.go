package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shelflife/internal/config"
	"shelflife/internal/dataset"
	"shelflife/internal/estimator"
	"shelflife/internal/features"
	"shelflife/internal/inference"
	"shelflife/internal/models"
	"shelflife/internal/preprocessing"
	"shelflife/internal/repository"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config")
	dataPath := flag.String("data", "", "labelled CSV to train on, overrides training.data_path")
	writeData := flag.String("write-data", "", "also write the training dataset to this CSV path")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if *dataPath != "" {
		cfg.Training.DataPath = *dataPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	data, err := loadData(cfg.Training)
	if err != nil {
		logger.Fatal("Failed to load training data", zap.Error(err))
	}
	logger.Info("Training data ready",
		zap.Int("samples", data.Len()),
		zap.String("source", sourceName(cfg.Training)))

	if *writeData != "" {
		if err := writeCSV(*writeData, data); err != nil {
			logger.Fatal("Failed to write dataset", zap.Error(err))
		}
	}

	var runs *repository.TrainingRunRepository
	db, err := repository.Open(cfg.Database.Type, cfg.Database.Path, logger)
	if err != nil {
		logger.Warn("Training run will not be recorded", zap.Error(err))
	} else {
		defer db.Close()
		runs = repository.NewTrainingRunRepository(db, logger)
	}

	schema := features.Constructor{}.Schema()
	var run *models.TrainingRun
	if runs != nil {
		if run, err = runs.Create(ctx, data.Len(), schema.Fingerprint()); err != nil {
			logger.Warn("Failed to record training run", zap.Error(err))
		}
	}

	if err := train(ctx, cfg, data, run, logger); err != nil {
		if run != nil {
			if ferr := runs.Fail(context.Background(), run.ID, err.Error()); ferr != nil {
				logger.Warn("Failed to mark training run failed", zap.Error(ferr))
			}
		}
		logger.Fatal("Training failed", zap.Error(err))
	}

	if run != nil {
		if err := runs.Complete(ctx, run); err != nil {
			logger.Warn("Failed to complete training run", zap.Error(err))
		} else {
			logger.Info("Training run completed", zap.String("run_id", run.ID))
		}
	}
}

// train fits, evaluates and stores the pipeline, filling run with the final params and
// metrics when run is not nil.
func train(ctx context.Context, cfg *config.Config, data dataset.Dataset, run *models.TrainingRun, logger *zap.Logger) error {
	tc := cfg.Training
	trainSet, testSet := dataset.Split(data, tc.TestFraction, tc.Seed)
	logger.Info("Dataset split",
		zap.Int("train", trainSet.Len()),
		zap.Int("test", testSet.Len()))

	pre := preprocessing.New()
	encoded, err := pre.FitTransform(trainSet.Records)
	if err != nil {
		return fmt.Errorf("failed to fit preprocessor: %w", err)
	}

	constructor := features.Constructor{}
	x := constructor.Transform(encoded)
	y := trainSet.Targets

	forest := estimator.New(constructor.Schema(), tc.Params, logger)
	if tc.Tune {
		best, err := forest.Tune(ctx, x, y, tc.Search, tc.CVFolds)
		if err != nil {
			return fmt.Errorf("hyperparameter tuning failed: %w", err)
		}
		logger.Info("Best hyperparameters",
			zap.Int("n_trees", best.NTrees),
			zap.Int("max_depth", best.MaxDepth),
			zap.Int("min_samples_split", best.MinSamplesSplit))
	} else if err := forest.Fit(ctx, x, y); err != nil {
		return fmt.Errorf("failed to fit forest: %w", err)
	}

	testEncoded, err := pre.Transform(testSet.Records)
	if err != nil {
		return fmt.Errorf("failed to transform test set: %w", err)
	}
	metrics, err := forest.Evaluate(constructor.Transform(testEncoded), testSet.Targets)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	logger.Info("Test set performance",
		zap.Float64("mae", metrics.MAE),
		zap.Float64("rmse", metrics.RMSE),
		zap.Float64("r2", metrics.R2))

	cv, err := forest.CrossValidate(ctx, x, y, tc.CVFolds)
	if err != nil {
		return fmt.Errorf("cross validation failed: %w", err)
	}
	logger.Info("Cross validation",
		zap.Int("folds", tc.CVFolds),
		zap.Float64("mean_mae", cv.MeanMAE),
		zap.Float64("std_mae", cv.StdMAE))

	fmt.Println("Top 10 most important features:")
	for i, score := range forest.FeatureImportance(10) {
		fmt.Printf("%2d. %-28s %.4f\n", i+1, score.Feature, score.Importance)
	}

	store, err := cfg.ArtifactStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}
	if err := inference.SaveArtifacts(ctx, store, cfg.Artifacts.Keys, pre, forest); err != nil {
		return fmt.Errorf("failed to save artifacts: %w", err)
	}
	logger.Info("Artifacts saved",
		zap.String("backend", cfg.Artifacts.Backend),
		zap.String("preprocessor", cfg.Artifacts.Keys.Preprocessor),
		zap.String("estimator", cfg.Artifacts.Keys.Estimator))

	if run != nil {
		params, err := json.Marshal(forest.Params())
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		run.Params = string(params)
		run.MAE, run.RMSE, run.R2 = &metrics.MAE, &metrics.RMSE, &metrics.R2
		run.CVMeanMAE, run.CVStdMAE = &cv.MeanMAE, &cv.StdMAE
	}
	return nil
}

func loadData(tc config.Training) (dataset.Dataset, error) {
	if tc.DataPath == "" {
		return dataset.Generate(tc.GenerateSamples, tc.Seed), nil
	}
	f, err := os.Open(tc.DataPath)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return dataset.LoadCSV(f)
}

func writeCSV(path string, data dataset.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func sourceName(tc config.Training) string {
	if tc.DataPath == "" {
		return "synthetic"
	}
	return tc.DataPath
}
