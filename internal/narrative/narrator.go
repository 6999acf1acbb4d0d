package narrative

import (
	"context"
	"fmt"
	"strings"

	"shelflife/internal/models"

	"go.uber.org/zap"
)

// spokenLimit caps how many issues and recommendations are read aloud.
const spokenLimit = 2

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Narrator reads prediction results aloud.
type Narrator struct {
	voice  Synthesizer
	logger *zap.Logger
}

// NewNarrator creates a narrator. With a nil synthesizer Speak fails with
// models.ErrUnavailableService.
func NewNarrator(voice Synthesizer, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{voice: voice, logger: logger}
}

// Available reports whether a speech backend is configured.
func (n *Narrator) Available() bool {
	return n != nil && n.voice != nil
}

// Speak returns MPEG audio of the spoken explanation of r.
func (n *Narrator) Speak(ctx context.Context, r models.PredictionResult) ([]byte, error) {
	if !n.Available() {
		return nil, models.ErrUnavailableService
	}

	text := SpokenExplanation(r)
	audio, err := n.voice.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	n.logger.Debug("Narrated prediction",
		zap.String("food_type", string(r.FoodType)),
		zap.Int("audio_bytes", len(audio)))
	return audio, nil
}

// SpokenExplanation phrases r as a short paragraph meant to be read aloud.
func SpokenExplanation(r models.PredictionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "For your %s stored in the %s, ", r.FoodType, r.StorageType)
	fmt.Fprintf(&b, "at %g degrees Celsius and %g percent humidity, ", r.Temperature, r.Humidity)
	fmt.Fprintf(&b, "after %g days, ", r.DaysStored)
	fmt.Fprintf(&b, "the predicted remaining shelf life is %g days. ", r.PredictedRemainingDays)

	switch r.SafetyClassification {
	case models.Safe:
		b.WriteString("The food is safe to consume. ")
	case models.ConsumeSoon:
		b.WriteString("You should consume this food soon. ")
	default:
		b.WriteString("This food has likely expired and should be discarded. ")
	}

	if len(r.Issues) > 0 {
		fmt.Fprintf(&b, "I've detected %d issues: ", len(r.Issues))
		for _, issue := range head(r.Issues) {
			b.WriteString(issue + ". ")
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("My recommendations are: ")
		for _, rec := range head(r.Recommendations) {
			b.WriteString(rec + ". ")
		}
	}

	return strings.TrimSpace(b.String())
}

func head(items []string) []string {
	if len(items) > spokenLimit {
		return items[:spokenLimit]
	}
	return items
}
