package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shelflife/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const trainingRunColumns = `
	id, status, sample_count, params, mae, rmse, r2, cv_mean_mae, cv_std_mae,
	schema_hash, created_at, completed_at, error_message`

// TrainingRunRepository tracks offline training runs.
type TrainingRunRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTrainingRunRepository creates a new repository
func NewTrainingRunRepository(db *sqlx.DB, logger *zap.Logger) *TrainingRunRepository {
	return &TrainingRunRepository{db: db, logger: logger}
}

// Create starts a run in the running state.
func (r *TrainingRunRepository) Create(ctx context.Context, sampleCount int, schemaHash string) (*models.TrainingRun, error) {
	run := &models.TrainingRun{
		ID:          uuid.New().String(),
		Status:      models.RunRunning,
		SampleCount: sampleCount,
		SchemaHash:  schemaHash,
		CreatedAt:   now(),
	}

	query := r.db.Rebind(`
		INSERT INTO training_runs (id, status, sample_count, params, schema_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query, run.ID, run.Status, run.SampleCount, run.Params, run.SchemaHash, run.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create training run: %w", err)
	}

	r.logger.Info("Training run created", zap.String("run_id", run.ID), zap.Int("samples", sampleCount))
	return run, nil
}

// Complete stores the run's final params and metrics and marks it completed.
func (r *TrainingRunRepository) Complete(ctx context.Context, run *models.TrainingRun) error {
	completed := now()
	query := r.db.Rebind(`
		UPDATE training_runs
		SET status = ?, params = ?, mae = ?, rmse = ?, r2 = ?,
		    cv_mean_mae = ?, cv_std_mae = ?, completed_at = ?
		WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query,
		models.RunCompleted, run.Params, run.MAE, run.RMSE, run.R2,
		run.CVMeanMAE, run.CVStdMAE, completed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to complete training run: %w", err)
	}
	if err := expectOne(res, run.ID); err != nil {
		return err
	}

	run.Status = models.RunCompleted
	run.CompletedAt = &completed
	return nil
}

// Fail marks the run failed with msg.
func (r *TrainingRunRepository) Fail(ctx context.Context, id, msg string) error {
	query := r.db.Rebind(`
		UPDATE training_runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query, models.RunFailed, msg, now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark training run failed: %w", err)
	}
	return expectOne(res, id)
}

// Get returns a run or models.ErrNotFound.
func (r *TrainingRunRepository) Get(ctx context.Context, id string) (*models.TrainingRun, error) {
	var run models.TrainingRun
	query := r.db.Rebind(`SELECT ` + trainingRunColumns + ` FROM training_runs WHERE id = ?`)
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("training run %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return &run, nil
}

// Latest returns the most recently completed run.
func (r *TrainingRunRepository) Latest(ctx context.Context) (*models.TrainingRun, error) {
	var run models.TrainingRun
	query := r.db.Rebind(`
		SELECT ` + trainingRunColumns + `
		FROM training_runs
		WHERE status = ?
		ORDER BY completed_at DESC
		LIMIT 1
	`)
	if err := r.db.GetContext(ctx, &run, query, models.RunCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("completed training run: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest training run: %w", err)
	}
	return &run, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("training run %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
