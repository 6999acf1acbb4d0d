// Package chatapi talks to OpenAI-compatible chat completion endpoints (Groq,
// OpenRouter).
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config describes one OpenAI-compatible endpoint.
type Config struct {
	Provider    string // name used in logs and model info
	APIKey      string
	Model       string
	BaseURL     string
	Headers     map[string]string // sent with every request
	MaxRetries  int
	RetryDelay  time.Duration
	Temperature float64
	MaxTokens   int
}

// Client sends single-turn chat completions.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New validates cfg and creates a client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	if cfg.Model == "" || cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s model and base URL are required", cfg.Provider)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("Chat completion client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(zap.String("provider", cfg.Provider)),
	}, nil
}

// Complete sends prompt under the system instruction and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return Retry(ctx, c.cfg.MaxRetries, c.cfg.RetryDelay, c.logger, func(int) (string, error) {
		return c.post(ctx, body)
	})
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", c.cfg.Provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s API returned status %d: %s", c.cfg.Provider, resp.StatusCode, string(data))
	}

	var out completionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%s API error: %s", c.cfg.Provider, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in %s response", c.cfg.Provider)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetModelInfo describes the endpoint.
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    c.cfg.Provider,
		"model":       c.cfg.Model,
		"base_url":    c.cfg.BaseURL,
		"max_retries": c.cfg.MaxRetries,
	}
}
