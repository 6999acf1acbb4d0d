package chatapi

import (
	"time"

	"go.uber.org/zap"
)

// Endpoint defaults
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	GroqModel         = "llama-3.3-70b-versatile"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenRouterModel   = "anthropic/claude-3-haiku"
)

// Credentials are the per-provider settings taken from configuration. Empty fields
// fall back to the provider defaults.
type Credentials struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
}

// NewGroq creates a client for the Groq API.
func NewGroq(cred Credentials, logger *zap.Logger) (*Client, error) {
	return New(Config{
		Provider:    "groq",
		APIKey:      cred.APIKey,
		Model:       orDefault(cred.Model, GroqModel),
		BaseURL:     orDefault(cred.BaseURL, GroqBaseURL),
		MaxRetries:  orDefaultInt(cred.MaxRetries, 3),
		RetryDelay:  cred.RetryDelay,
		Temperature: 0.7,
		MaxTokens:   500,
	}, logger)
}

// NewOpenRouter creates a client for OpenRouter. The referer and title headers identify
// the app to OpenRouter.
func NewOpenRouter(cred Credentials, logger *zap.Logger) (*Client, error) {
	return New(Config{
		Provider: "openrouter",
		APIKey:   cred.APIKey,
		Model:    orDefault(cred.Model, OpenRouterModel),
		BaseURL:  orDefault(cred.BaseURL, OpenRouterBaseURL),
		Headers: map[string]string{
			"HTTP-Referer": "http://localhost:3000",
			"X-Title":      "Food Shelf Life Predictor",
		},
		MaxRetries:  cred.MaxRetries,
		RetryDelay:  cred.RetryDelay,
		Temperature: 0.7,
		MaxTokens:   500,
	}, logger)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
