package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is one raw observation. NaN in a numeric field marks it as missing.
type Record struct {
	FoodType    string
	StorageType string
	Temperature float64
	Humidity    float64
	DaysStored  float64
}

// PredictionInput is the wire form of a record. Absent numeric fields default to zero.
type PredictionInput struct {
	FoodType    string   `json:"food_type"`
	StorageType string   `json:"storage_type"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	DaysStored  *float64 `json:"days_stored"`
}

// BatchPredictionRequest wraps a list of inputs
type BatchPredictionRequest struct {
	Items []PredictionInput `json:"items"`
}

// Severity ranks the worst storage-condition risk found for a record.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityNone:     "none",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if n == name {
			return s, nil
		}
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SafetyClass is the verdict derived from the adjusted prediction.
type SafetyClass string

const (
	Expired     SafetyClass = "Expired"
	ConsumeSoon SafetyClass = "Consume Soon"
	Safe        SafetyClass = "Safe"
)

// FeatureScore is one entry of a feature importance ranking.
type FeatureScore struct {
	Feature    string
	Importance float64
}

// FeatureImportance is an ordered ranking. It marshals to a JSON object whose keys keep
// the ranking order.
type FeatureImportance []FeatureScore

func (fi FeatureImportance) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, score := range fi {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(score.Feature)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(score.Importance, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (fi *FeatureImportance) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*fi = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("feature importance must be a JSON object")
	}

	var out FeatureImportance
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("feature importance key must be a string")
		}
		var value float64
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("feature importance %q: %w", key, err)
		}
		out = append(out, FeatureScore{Feature: key, Importance: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*fi = out
	return nil
}

// PredictionResult is the full answer for one record.
type PredictionResult struct {
	FoodType               FoodType          `json:"food_type"`
	StorageType            StorageType       `json:"storage_type"`
	Temperature            float64           `json:"temperature"`
	Humidity               float64           `json:"humidity"`
	DaysStored             float64           `json:"days_stored"`
	PredictedRemainingDays float64           `json:"predicted_remaining_days"`
	RawPrediction          float64           `json:"raw_prediction"`
	SafetyClassification   SafetyClass       `json:"safety_classification"`
	Issues                 []string          `json:"issues"`
	Severity               Severity          `json:"severity"`
	Recommendations        []string          `json:"recommendations"`
	FeatureImportance      FeatureImportance `json:"feature_importance"`
}

// PredictionRecord is a served prediction kept in history.
type PredictionRecord struct {
	ID        string           `json:"id" db:"id"`
	Result    PredictionResult `json:"result"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// PredictionStats summarizes the prediction history.
type PredictionStats struct {
	Total            int            `json:"total"`
	ByClassification map[string]int `json:"by_classification"`
	BySeverity       map[string]int `json:"by_severity"`
}
