// Package gemini adapts the Google Gemini SDK to single-turn completions.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shelflife/internal/chatapi"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash-exp"

var errEmptyReply = errors.New("gemini returned no text")

// Config for Gemini client
type Config struct {
	APIKey     string
	ModelName  string
	MaxRetries int
	RetryDelay time.Duration
}

// Client wraps the Gemini API client
type Client struct {
	sdk    *genai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdk, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("Gemini client initialized", zap.String("model", cfg.ModelName))
	return &Client{
		sdk:    sdk,
		cfg:    cfg,
		logger: logger.With(zap.String("provider", "gemini")),
	}, nil
}

// Complete generates a reply to prompt with system as the system instruction.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	model := c.model(system)

	return chatapi.Retry(ctx, c.cfg.MaxRetries, c.cfg.RetryDelay, c.logger, func(int) (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("gemini API error: %w", err)
		}
		return replyText(resp)
	})
}

func (c *Client) model(system string) *genai.GenerativeModel {
	model := c.sdk.GenerativeModel(c.cfg.ModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	model.SetTemperature(0.7)
	model.SetTopP(0.9)
	model.SetTopK(40)
	model.SetMaxOutputTokens(500)
	return model
}

// replyText joins the text parts of the first candidate.
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyReply
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errEmptyReply
	}
	return strings.TrimSpace(b.String()), nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.sdk.Close()
}

// GetModelInfo describes the configured model.
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "gemini",
		"model":       c.cfg.ModelName,
		"max_retries": c.cfg.MaxRetries,
	}
}
