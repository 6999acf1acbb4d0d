package service

import (
	"context"
	"errors"
	"testing"

	"shelflife/internal/features"
	"shelflife/internal/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixedPredictor struct{ days float64 }

func (p fixedPredictor) Predict(inputs []models.PredictionInput) ([]models.PredictionResult, error) {
	out := make([]models.PredictionResult, len(inputs))
	for i, in := range inputs {
		out[i] = models.PredictionResult{
			FoodType:               models.NormalizeFoodType(in.FoodType),
			PredictedRemainingDays: p.days,
			SafetyClassification:   models.Safe,
		}
	}
	return out, nil
}

func (fixedPredictor) FeatureImportance(int) models.FeatureImportance {
	return models.FeatureImportance{{Feature: "days_stored", Importance: 1}}
}

func (fixedPredictor) Schema() features.Schema { return features.Constructor{}.Schema() }

type memoryHistory struct {
	saved []models.PredictionResult
	err   error
}

func (h *memoryHistory) Save(_ context.Context, r models.PredictionResult) (*models.PredictionRecord, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.saved = append(h.saved, r)
	return &models.PredictionRecord{ID: "id", Result: r}, nil
}

func (h *memoryHistory) Get(context.Context, string) (*models.PredictionRecord, error) {
	return nil, models.ErrNotFound
}

func (h *memoryHistory) List(context.Context, int, int) ([]*models.PredictionRecord, error) {
	return nil, nil
}

func (h *memoryHistory) Stats(context.Context) (*models.PredictionStats, error) {
	return &models.PredictionStats{Total: len(h.saved)}, nil
}

type fixedRuns struct{ run *models.TrainingRun }

func (f fixedRuns) Latest(context.Context) (*models.TrainingRun, error) {
	if f.run == nil {
		return nil, models.ErrNotFound
	}
	return f.run, nil
}

func TestPredictBatchRecordsEachResult(t *testing.T) {
	history := &memoryHistory{}
	s := NewShelfLife(fixedPredictor{days: 9}, history, nil, nil, nil, zap.NewNop())

	results, err := s.PredictBatch(context.Background(), []models.PredictionInput{{FoodType: "meat"}, {FoodType: "fruits"}})
	if err != nil {
		t.Fatalf("PredictBatch: %v", err)
	}
	if len(results) != 2 || len(history.saved) != 2 {
		t.Fatalf("results %d, recorded %d", len(results), len(history.saved))
	}
	if history.saved[1].FoodType != models.Fruits {
		t.Errorf("recorded out of order: %+v", history.saved)
	}
}

func TestRecordFailureDoesNotFailPrediction(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	history := &memoryHistory{err: errors.New("disk full")}
	s := NewShelfLife(fixedPredictor{days: 9}, history, nil, nil, nil, zap.New(core))

	r, err := s.Predict(context.Background(), models.PredictionInput{FoodType: "meat"})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if r.PredictedRemainingDays != 9 {
		t.Errorf("result: %+v", r)
	}
	if logs.FilterMessage("Failed to record prediction").Len() != 1 {
		t.Errorf("expected one warning, got %v", logs.All())
	}
}

func TestUnavailableDependencies(t *testing.T) {
	ctx := context.Background()
	s := NewShelfLife(nil, nil, nil, nil, nil, zap.NewNop())

	if _, err := s.Predict(ctx, models.PredictionInput{}); !errors.Is(err, models.ErrNotFitted) {
		t.Errorf("Predict: got %v", err)
	}
	if _, err := s.ModelInfo(ctx); !errors.Is(err, models.ErrNotFitted) {
		t.Errorf("ModelInfo: got %v", err)
	}
	if _, err := s.ListPredictions(ctx, 10, 0); !errors.Is(err, models.ErrUnavailableService) {
		t.Errorf("ListPredictions: got %v", err)
	}
	if _, err := s.VoiceExplain(ctx, models.PredictionInput{}); !errors.Is(err, models.ErrUnavailableService) {
		t.Errorf("VoiceExplain: got %v", err)
	}
	if _, _, err := s.PredictionExplanation(ctx, models.PredictionInput{}); !errors.Is(err, models.ErrUnavailableService) {
		t.Errorf("PredictionExplanation: got %v", err)
	}
	if _, err := s.Chat(ctx, models.ChatRequest{Message: "hi"}); !errors.Is(err, models.ErrUnavailableService) {
		t.Errorf("Chat: got %v", err)
	}

	status := s.Status()
	if status.PipelineLoaded || status.ChatAvailable || status.VoiceAvailable || status.HistoryEnabled {
		t.Errorf("status: %+v", status)
	}
}

func TestModelInfoTrainingRun(t *testing.T) {
	fingerprint := features.Constructor{}.Schema().Fingerprint()
	matching := &models.TrainingRun{ID: "run-1", SchemaHash: fingerprint}
	stale := &models.TrainingRun{ID: "run-0", SchemaHash: "other"}

	info, err := NewShelfLife(fixedPredictor{}, nil, fixedRuns{matching}, nil, nil, zap.NewNop()).ModelInfo(context.Background())
	if err != nil {
		t.Fatalf("ModelInfo: %v", err)
	}
	if info.TrainingRun == nil || info.TrainingRun.ID != "run-1" {
		t.Errorf("training run: %+v", info.TrainingRun)
	}
	if info.SchemaFingerprint != fingerprint || len(info.Features) != len(features.Constructor{}.Schema()) {
		t.Errorf("info: %+v", info)
	}

	info, err = NewShelfLife(fixedPredictor{}, nil, fixedRuns{stale}, nil, nil, zap.NewNop()).ModelInfo(context.Background())
	if err != nil {
		t.Fatalf("ModelInfo: %v", err)
	}
	if info.TrainingRun != nil {
		t.Errorf("stale run attached: %+v", info.TrainingRun)
	}
}
