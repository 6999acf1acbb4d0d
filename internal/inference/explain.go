package inference

import (
	"fmt"
	"strings"

	"shelflife/internal/models"
	"shelflife/internal/rules"
)

// Explain renders a result as plain text.
func Explain(r models.PredictionResult) string {
	ideal := rules.IdealFor(r.StorageType)

	var b strings.Builder
	fmt.Fprintf(&b, "Food Type: %s\n", r.FoodType)
	fmt.Fprintf(&b, "Storage: %s (ideal %g°C, %g%% humidity)\n", r.StorageType, ideal.IdealTemp, ideal.IdealHumidity)
	fmt.Fprintf(&b, "Current Temperature: %g°C\n", r.Temperature)
	fmt.Fprintf(&b, "Current Humidity: %g%%\n", r.Humidity)
	fmt.Fprintf(&b, "Days Already Stored: %g\n", r.DaysStored)

	fmt.Fprintf(&b, "\nPredicted Remaining Shelf Life: %g days\n", r.PredictedRemainingDays)
	fmt.Fprintf(&b, "Safety Classification: %s", r.SafetyClassification)

	if len(r.Issues) > 0 {
		fmt.Fprintf(&b, "\n\nDetected Issues (%s severity):", r.Severity)
		for _, issue := range r.Issues {
			b.WriteString("\n  - " + issue)
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\n\nRecommendations:")
		for _, rec := range r.Recommendations {
			b.WriteString("\n  - " + rec)
		}
	}

	return b.String()
}
