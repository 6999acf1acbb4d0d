// Package rules corrects a model estimate with food- and storage-specific safety rules.
// Everything here is a pure function of its inputs.
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"shelflife/internal/models"
)

// Conditions describe one stored item.
type Conditions struct {
	FoodType    models.FoodType
	StorageType models.StorageType
	Temperature float64
	Humidity    float64
	DaysStored  float64
}

// Outcome is the result of evaluating every rule stage for one item.
type Outcome struct {
	Rules           []string // names of the detection rules that fired
	Issues          []string
	Severity        models.Severity
	Adjusted        float64
	Classification  models.SafetyClass
	Recommendations []string
}

// effect says how a firing rule combines its severity with the current one.
type effect int

const (
	// override replaces the current severity unconditionally.
	override effect = iota
	// ifNone applies only while nothing has been flagged yet.
	ifNone
	// raise applies when the current severity ranks below the rule's.
	raise
)

func (e effect) apply(current, s models.Severity) models.Severity {
	switch e {
	case override:
		return s
	case ifNone:
		if current == models.SeverityNone {
			return s
		}
	case raise:
		if current < s {
			return s
		}
	}
	return current
}

type rule struct {
	name     string
	applies  func(c Conditions, t FoodThresholds) bool
	issue    func(c Conditions, t FoodThresholds) string
	severity models.Severity
	effect   effect
}

// detectionRules are evaluated in this order; every match contributes an issue.
var detectionRules = []rule{
	{
		name:    "danger_zone",
		applies: func(c Conditions, t FoodThresholds) bool { return c.Temperature > t.DangerZoneTemp },
		issue: func(c Conditions, t FoodThresholds) string {
			return fmt.Sprintf("Temperature (%s°C) exceeds danger zone threshold (%s°C)",
				reading(c.Temperature), limit(t.DangerZoneTemp))
		},
		severity: models.SeverityCritical,
		effect:   override,
	},
	{
		// only when the danger zone rule did not fire
		name: "above_max_temp",
		applies: func(c Conditions, t FoodThresholds) bool {
			return c.Temperature <= t.DangerZoneTemp && c.Temperature > t.MaxTemp
		},
		issue: func(c Conditions, t FoodThresholds) string {
			return fmt.Sprintf("Temperature (%s°C) above recommended maximum (%s°C)",
				reading(c.Temperature), limit(t.MaxTemp))
		},
		severity: models.SeverityHigh,
		effect:   ifNone,
	},
	{
		name:    "above_max_humidity",
		applies: func(c Conditions, t FoodThresholds) bool { return c.Humidity > t.MaxHumidity },
		issue: func(c Conditions, t FoodThresholds) string {
			return fmt.Sprintf("Humidity (%s%%) above recommended maximum (%s%%)",
				reading(c.Humidity), limit(t.MaxHumidity))
		},
		severity: models.SeverityHigh,
		effect:   raise,
	},
	{
		name: "warm_refrigerator",
		applies: func(c Conditions, _ FoodThresholds) bool {
			return c.StorageType == models.Refrigerator && c.Temperature > 8
		},
		issue: func(Conditions, FoodThresholds) string {
			return "Refrigerator temperature too high - rapid bacterial growth risk"
		},
		severity: models.SeverityCritical,
		effect:   override,
	},
	{
		name: "thawing_freezer",
		applies: func(c Conditions, _ FoodThresholds) bool {
			return c.StorageType == models.Freezer && c.Temperature > -5
		},
		issue: func(Conditions, FoodThresholds) string {
			return "Freezer temperature too high - food not properly frozen"
		},
		severity: models.SeverityHigh,
		effect:   ifNone,
	},
	{
		name: "humid_pantry",
		applies: func(c Conditions, _ FoodThresholds) bool {
			return c.StorageType == models.Pantry && c.Humidity > 70
		},
		issue: func(Conditions, FoodThresholds) string {
			return "High pantry humidity - mold growth risk"
		},
		severity: models.SeverityMedium,
		effect:   ifNone,
	},
}

var adjustmentFactors = map[models.Severity]float64{
	models.SeverityCritical: 0.3,
	models.SeverityHigh:     0.5,
	models.SeverityMedium:   0.7,
	models.SeverityNone:     1.0,
}

// Engine evaluates the static rule set. The zero value is ready to use.
type Engine struct{}

// NewEngine returns a rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs issue detection, adjustment, classification and recommendations.
func (e *Engine) Evaluate(c Conditions, raw float64) Outcome {
	fired, issues, severity := detect(c)
	adjusted := AdjustPrediction(raw, severity)
	return Outcome{
		Rules:           fired,
		Issues:          issues,
		Severity:        severity,
		Adjusted:        adjusted,
		Classification:  Classify(adjusted),
		Recommendations: Recommend(c, adjusted),
	}
}

// DetectIssues applies the detection rules in order and returns every issue found with
// the resulting severity.
func (e *Engine) DetectIssues(c Conditions) ([]string, models.Severity) {
	_, issues, severity := detect(c)
	return issues, severity
}

func detect(c Conditions) ([]string, []string, models.Severity) {
	thresholds := ThresholdsFor(c.FoodType)
	var fired []string
	issues := []string{}
	severity := models.SeverityNone

	for _, r := range detectionRules {
		if !r.applies(c, thresholds) {
			continue
		}
		fired = append(fired, r.name)
		issues = append(issues, r.issue(c, thresholds))
		severity = r.effect.apply(severity, r.severity)
	}
	return fired, issues, severity
}

// Factor is the multiplier applied to the raw estimate for a severity.
func Factor(s models.Severity) float64 {
	if f, ok := adjustmentFactors[s]; ok {
		return f
	}
	return 1.0
}

// AdjustPrediction shrinks raw by the severity factor and clamps at zero.
func AdjustPrediction(raw float64, s models.Severity) float64 {
	return math.Max(0, raw*Factor(s))
}

// Classify maps adjusted remaining days to a safety class. The "≤ 2 days" and
// "≤ 7 days" bands share the Consume Soon label.
func Classify(adjusted float64) models.SafetyClass {
	switch {
	case adjusted <= 0:
		return models.Expired
	case adjusted <= 2:
		return models.ConsumeSoon
	case adjusted <= 7:
		return models.ConsumeSoon
	default:
		return models.Safe
	}
}

// Recommendation texts, in checklist order.
const (
	RecConsumeImmediately = "Consume immediately or discard"
	RecLowerFridgeTemp    = "Lower refrigerator temperature to 2-4°C"
	RecReduceHumidity     = "Reduce humidity to prevent mold growth"
	RecRelocate           = "Move to cooler location or refrigerate"
	RecMonitorClosely     = "Monitor closely for signs of spoilage"
)

// Recommend evaluates the checklist independently and returns every match in order.
func Recommend(c Conditions, adjusted float64) []string {
	recs := []string{}
	if adjusted <= 2 {
		recs = append(recs, RecConsumeImmediately)
	}
	if c.Temperature > 10 && c.StorageType == models.Refrigerator {
		recs = append(recs, RecLowerFridgeTemp)
	}
	if c.Humidity > 80 {
		recs = append(recs, RecReduceHumidity)
	}
	if c.StorageType == models.Pantry && c.Temperature > 25 {
		recs = append(recs, RecRelocate)
	}
	if adjusted > 0 && adjusted <= 5 {
		recs = append(recs, RecMonitorClosely)
	}
	return recs
}

// reading formats a measured value, always with a decimal part ("10.0", "72.5").
func reading(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// limit formats a threshold without a trailing ".0".
func limit(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
