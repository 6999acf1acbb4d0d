// Package narrative turns predictions into conversational advice and spoken summaries.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"shelflife/internal/models"

	"go.uber.org/zap"
)

// SystemPrompt frames every advisor request.
const SystemPrompt = `You are a food safety and storage expert AI assistant.
Help users with questions about food storage, safety, and shelf life predictions.
Provide clear, practical advice based on food safety guidelines.
Always prioritize safety - when in doubt, recommend discarding food.
Keep responses concise and actionable.`

// ExplanationQuestions are asked about every explained prediction, in order.
var ExplanationQuestions = []string{
	"What are the main factors affecting this prediction?",
	"What should I do with this food item?",
	"How can I extend the shelf life of similar items?",
}

// Completer answers a prompt under a system instruction.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Advisor answers food storage questions through a chat model.
type Advisor struct {
	llm    Completer
	logger *zap.Logger
}

// NewAdvisor creates an advisor. A nil completer yields an advisor whose calls all
// fail with models.ErrUnavailableService.
func NewAdvisor(llm Completer, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{llm: llm, logger: logger}
}

// Available reports whether a chat backend is configured.
func (a *Advisor) Available() bool {
	return a != nil && a.llm != nil
}

// Chat answers message, grounding it in the prediction when one is given.
func (a *Advisor) Chat(ctx context.Context, message string, prediction *models.PredictionResult) (string, error) {
	var contextText string
	if prediction != nil {
		contextText = PredictionContext(*prediction)
	}
	return a.ask(ctx, message, contextText)
}

// PredictionExplanation asks the fixed explanation questions about r. Questions the
// model fails to answer are left out; it errors only when none is answered.
func (a *Advisor) PredictionExplanation(ctx context.Context, r models.PredictionResult) ([]models.QuestionAnswer, error) {
	if !a.Available() {
		return nil, models.ErrUnavailableService
	}

	contextText := PredictionContext(r)
	answers := make([]models.QuestionAnswer, 0, len(ExplanationQuestions))
	var lastErr error
	for _, q := range ExplanationQuestions {
		answer, err := a.ask(ctx, q, contextText)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("Explanation question failed",
				zap.String("question", q),
				zap.Error(err))
			lastErr = err
			continue
		}
		answers = append(answers, models.QuestionAnswer{Question: q, Answer: answer})
	}

	if len(answers) == 0 {
		return nil, fmt.Errorf("failed to explain prediction: %w", lastErr)
	}
	return answers, nil
}

// StorageAdvice asks for storage best practices given the current conditions.
func (a *Advisor) StorageAdvice(ctx context.Context, foodType string, cond models.StorageConditions) (string, error) {
	message := fmt.Sprintf("What are the best storage practices for %s?", foodType)

	storage := cond.StorageType
	if storage == "" {
		storage = "unknown"
	}
	contextText := fmt.Sprintf("Current storage conditions:\n- Storage type: %s\n- Temperature: %s°C\n- Humidity: %s%%",
		storage, optional(cond.Temperature), optional(cond.Humidity))

	return a.ask(ctx, message, contextText)
}

// SafetyGuidelines asks how to store foodType safely and recognize spoilage.
func (a *Advisor) SafetyGuidelines(ctx context.Context, foodType string) (string, error) {
	message := fmt.Sprintf("What are the key safety guidelines for storing %s? How can I tell if it has gone bad?", foodType)
	return a.ask(ctx, message, "")
}

func (a *Advisor) ask(ctx context.Context, message, contextText string) (string, error) {
	if !a.Available() {
		return "", models.ErrUnavailableService
	}

	prompt := message
	if contextText != "" {
		prompt = fmt.Sprintf("Context: %s\n\nQuestion: %s", contextText, message)
	}

	answer, err := a.llm.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return answer, nil
}

// PredictionContext summarizes a result for a chat prompt.
func PredictionContext(r models.PredictionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Food Type: %s\n", r.FoodType)
	fmt.Fprintf(&b, "Storage Type: %s\n", r.StorageType)
	fmt.Fprintf(&b, "Temperature: %g°C\n", r.Temperature)
	fmt.Fprintf(&b, "Humidity: %g%%\n", r.Humidity)
	fmt.Fprintf(&b, "Days Stored: %g\n", r.DaysStored)
	fmt.Fprintf(&b, "Predicted Remaining Days: %g\n", r.PredictedRemainingDays)
	fmt.Fprintf(&b, "Safety Classification: %s", r.SafetyClassification)
	if len(r.Issues) > 0 {
		fmt.Fprintf(&b, "\nDetected Issues (%s): %s", r.Severity, strings.Join(r.Issues, "; "))
	}
	return b.String()
}

func optional(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%g", *v)
}
