package service

import (
	"context"
	"fmt"

	"shelflife/internal/features"
	"shelflife/internal/inference"
	"shelflife/internal/models"
	"shelflife/internal/narrative"

	"go.uber.org/zap"
)

// Predictor is the loaded inference pipeline.
type Predictor interface {
	Predict(inputs []models.PredictionInput) ([]models.PredictionResult, error)
	FeatureImportance(topK int) models.FeatureImportance
	Schema() features.Schema
}

// History stores served predictions.
type History interface {
	Save(ctx context.Context, result models.PredictionResult) (*models.PredictionRecord, error)
	Get(ctx context.Context, id string) (*models.PredictionRecord, error)
	List(ctx context.Context, limit, offset int) ([]*models.PredictionRecord, error)
	Stats(ctx context.Context) (*models.PredictionStats, error)
}

// RunSource reports the training run behind the loaded model.
type RunSource interface {
	Latest(ctx context.Context) (*models.TrainingRun, error)
}

// ShelfLife handles prediction business logic. Every dependency except the logger is
// optional; missing ones make their operations report models.ErrUnavailableService,
// and a missing pipeline makes predictions report models.ErrNotFitted.
type ShelfLife struct {
	pipeline Predictor
	history  History
	runs     RunSource
	advisor  *narrative.Advisor
	narrator *narrative.Narrator
	logger   *zap.Logger
}

// NewShelfLife creates a new prediction service
func NewShelfLife(
	pipeline Predictor,
	history History,
	runs RunSource,
	advisor *narrative.Advisor,
	narrator *narrative.Narrator,
	logger *zap.Logger,
) *ShelfLife {
	return &ShelfLife{
		pipeline: pipeline,
		history:  history,
		runs:     runs,
		advisor:  advisor,
		narrator: narrator,
		logger:   logger,
	}
}

// Status lists the optional capabilities and whether each is configured.
type Status struct {
	PipelineLoaded bool `json:"pipeline_loaded"`
	ChatAvailable  bool `json:"chat_available"`
	VoiceAvailable bool `json:"voice_available"`
	HistoryEnabled bool `json:"history_enabled"`
}

// Status reports which capabilities are available.
func (s *ShelfLife) Status() Status {
	return Status{
		PipelineLoaded: s.pipeline != nil,
		ChatAvailable:  s.advisor.Available(),
		VoiceAvailable: s.narrator.Available(),
		HistoryEnabled: s.history != nil,
	}
}

// Predict predicts one item and records it.
func (s *ShelfLife) Predict(ctx context.Context, in models.PredictionInput) (models.PredictionResult, error) {
	results, err := s.PredictBatch(ctx, []models.PredictionInput{in})
	if err != nil {
		return models.PredictionResult{}, err
	}
	return results[0], nil
}

// PredictBatch predicts every item in order and records each result.
func (s *ShelfLife) PredictBatch(ctx context.Context, items []models.PredictionInput) ([]models.PredictionResult, error) {
	if s.pipeline == nil {
		return nil, fmt.Errorf("model not loaded: %w", models.ErrNotFitted)
	}

	results, err := s.pipeline.Predict(items)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	for _, r := range results {
		s.record(ctx, r)
	}

	s.logger.Debug("Predictions served", zap.Int("count", len(results)))
	return results, nil
}

// Explain predicts an item and renders the result as text.
func (s *ShelfLife) Explain(ctx context.Context, in models.PredictionInput) (models.PredictionResult, string, error) {
	result, err := s.Predict(ctx, in)
	if err != nil {
		return models.PredictionResult{}, "", err
	}
	return result, inference.Explain(result), nil
}

// VoiceExplain predicts an item and returns the spoken explanation as MPEG audio.
func (s *ShelfLife) VoiceExplain(ctx context.Context, in models.PredictionInput) ([]byte, error) {
	if !s.narrator.Available() {
		return nil, fmt.Errorf("voice narration: %w", models.ErrUnavailableService)
	}
	result, err := s.Predict(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.narrator.Speak(ctx, result)
}

// Chat answers a free-form question.
func (s *ShelfLife) Chat(ctx context.Context, req models.ChatRequest) (string, error) {
	return s.advisor.Chat(ctx, req.Message, req.Context)
}

// PredictionExplanation predicts an item and asks the advisor about the result.
func (s *ShelfLife) PredictionExplanation(ctx context.Context, in models.PredictionInput) (models.PredictionResult, []models.QuestionAnswer, error) {
	if !s.advisor.Available() {
		return models.PredictionResult{}, nil, fmt.Errorf("chat advisor: %w", models.ErrUnavailableService)
	}
	result, err := s.Predict(ctx, in)
	if err != nil {
		return models.PredictionResult{}, nil, err
	}
	answers, err := s.advisor.PredictionExplanation(ctx, result)
	if err != nil {
		return models.PredictionResult{}, nil, err
	}
	return result, answers, nil
}

// StorageAdvice asks for storage practices for a food type.
func (s *ShelfLife) StorageAdvice(ctx context.Context, req models.StorageAdviceRequest) (string, error) {
	return s.advisor.StorageAdvice(ctx, req.FoodType, req.StorageConditions)
}

// SafetyGuidelines asks for safe storage guidance for a food type.
func (s *ShelfLife) SafetyGuidelines(ctx context.Context, foodType string) (string, error) {
	return s.advisor.SafetyGuidelines(ctx, foodType)
}

// GetPrediction returns a recorded prediction.
func (s *ShelfLife) GetPrediction(ctx context.Context, id string) (*models.PredictionRecord, error) {
	if s.history == nil {
		return nil, fmt.Errorf("prediction history: %w", models.ErrUnavailableService)
	}
	return s.history.Get(ctx, id)
}

// ListPredictions returns recorded predictions, newest first.
func (s *ShelfLife) ListPredictions(ctx context.Context, limit, offset int) ([]*models.PredictionRecord, error) {
	if s.history == nil {
		return nil, fmt.Errorf("prediction history: %w", models.ErrUnavailableService)
	}
	return s.history.List(ctx, limit, offset)
}

// PredictionStats summarizes the recorded predictions.
func (s *ShelfLife) PredictionStats(ctx context.Context) (*models.PredictionStats, error) {
	if s.history == nil {
		return nil, fmt.Errorf("prediction history: %w", models.ErrUnavailableService)
	}
	return s.history.Stats(ctx)
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Features          []string                 `json:"features"`
	SchemaFingerprint string                   `json:"schema_fingerprint"`
	FeatureImportance models.FeatureImportance `json:"feature_importance"`
	TrainingRun       *models.TrainingRun      `json:"training_run,omitempty"`
}

// ModelInfo describes the loaded model and, when known, the run that trained it.
func (s *ShelfLife) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	if s.pipeline == nil {
		return nil, fmt.Errorf("model not loaded: %w", models.ErrNotFitted)
	}

	schema := s.pipeline.Schema()
	info := &ModelInfo{
		Features:          schema,
		SchemaFingerprint: schema.Fingerprint(),
		FeatureImportance: s.pipeline.FeatureImportance(0),
	}

	if s.runs != nil {
		run, err := s.runs.Latest(ctx)
		switch {
		case err == nil && run.SchemaHash == info.SchemaFingerprint:
			info.TrainingRun = run
		case err == nil:
			s.logger.Warn("Latest training run has a different feature schema",
				zap.String("run_id", run.ID))
		default:
			s.logger.Debug("No training run found", zap.Error(err))
		}
	}
	return info, nil
}

// record keeps a result in history. Failures are logged only.
func (s *ShelfLife) record(ctx context.Context, r models.PredictionResult) {
	if s.history == nil {
		return
	}
	rec, err := s.history.Save(ctx, r)
	if err != nil {
		s.logger.Warn("Failed to record prediction", zap.Error(err))
		return
	}
	s.logger.Debug("Prediction recorded", zap.String("id", rec.ID))
}
