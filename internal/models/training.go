package models

import "time"

// Training run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// TrainingRun records one offline training of the preprocessor and estimator.
type TrainingRun struct {
	ID           string     `json:"id" db:"id"`
	Status       string     `json:"status" db:"status"`
	SampleCount  int        `json:"sample_count" db:"sample_count"`
	Params       string     `json:"params,omitempty" db:"params"`
	MAE          *float64   `json:"mae,omitempty" db:"mae"`
	RMSE         *float64   `json:"rmse,omitempty" db:"rmse"`
	R2           *float64   `json:"r2,omitempty" db:"r2"`
	CVMeanMAE    *float64   `json:"cv_mean_mae,omitempty" db:"cv_mean_mae"`
	CVStdMAE     *float64   `json:"cv_std_mae,omitempty" db:"cv_std_mae"`
	SchemaHash   string     `json:"schema_hash,omitempty" db:"schema_hash"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
}

// ChatRequest is a free-form question with optional prediction context.
type ChatRequest struct {
	Message string            `json:"message" binding:"required"`
	Context *PredictionResult `json:"context,omitempty"`
}

// StorageAdviceRequest asks for storage practices for a food type.
type StorageAdviceRequest struct {
	FoodType          string            `json:"food_type" binding:"required"`
	StorageConditions StorageConditions `json:"storage_conditions"`
}

// StorageConditions are the optional current conditions sent with an advice request.
type StorageConditions struct {
	StorageType string   `json:"storage_type,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// QuestionAnswer is one answered question of a prediction explanation.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
