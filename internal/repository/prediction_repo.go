package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shelflife/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PredictionRepository keeps served predictions.
type PredictionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type predictionRow struct {
	ID        string    `db:"id"`
	Result    string    `db:"result"`
	CreatedAt time.Time `db:"created_at"`
}

type countRow struct {
	Label string `db:"label"`
	N     int    `db:"n"`
}

// NewPredictionRepository creates a new repository
func NewPredictionRepository(db *sqlx.DB, logger *zap.Logger) *PredictionRepository {
	return &PredictionRepository{db: db, logger: logger}
}

// Save stores a result under a fresh id.
func (r *PredictionRepository) Save(ctx context.Context, result models.PredictionResult) (*models.PredictionRecord, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction: %w", err)
	}

	rec := &models.PredictionRecord{
		ID:        uuid.New().String(),
		Result:    result,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	query := r.db.Rebind(`
		INSERT INTO predictions (
			id, food_type, storage_type, safety_classification, severity,
			predicted_remaining_days, result, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		string(result.FoodType),
		string(result.StorageType),
		string(result.SafetyClassification),
		result.Severity.String(),
		result.PredictedRemainingDays,
		string(payload),
		rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save prediction: %w", err)
	}
	return rec, nil
}

// Get returns a stored prediction or models.ErrNotFound.
func (r *PredictionRepository) Get(ctx context.Context, id string) (*models.PredictionRecord, error) {
	var row predictionRow
	query := r.db.Rebind(`SELECT id, result, created_at FROM predictions WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("prediction %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return row.record()
}

// List returns the most recent predictions first.
func (r *PredictionRepository) List(ctx context.Context, limit, offset int) ([]*models.PredictionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []predictionRow
	query := r.db.Rebind(`
		SELECT id, result, created_at
		FROM predictions
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`)
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	records := make([]*models.PredictionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Stats counts stored predictions by classification and severity.
func (r *PredictionRepository) Stats(ctx context.Context) (*models.PredictionStats, error) {
	stats := &models.PredictionStats{
		ByClassification: make(map[string]int),
		BySeverity:       make(map[string]int),
	}

	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM predictions`); err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"safety_classification", stats.ByClassification},
		{"severity", stats.BySeverity},
	}
	for _, g := range groups {
		var rows []countRow
		query := fmt.Sprintf(`SELECT %[1]s AS label, COUNT(*) AS n FROM predictions GROUP BY %[1]s`, g.column)
		if err := r.db.SelectContext(ctx, &rows, query); err != nil {
			return nil, fmt.Errorf("failed to group predictions by %s: %w", g.column, err)
		}
		for _, row := range rows {
			g.into[row.Label] = row.N
		}
	}
	return stats, nil
}

func (row predictionRow) record() (*models.PredictionRecord, error) {
	rec := &models.PredictionRecord{ID: row.ID, CreatedAt: row.CreatedAt}
	if err := json.Unmarshal([]byte(row.Result), &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to decode prediction %s: %w", row.ID, err)
	}
	return rec, nil
}
