// Package voice synthesizes speech through the ElevenLabs text-to-speech API.
package voice

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

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_monolingual_v1"
)

// Config holds ElevenLabs settings.
type Config struct {
	APIKey          string        `yaml:"api_key"`
	VoiceID         string        `yaml:"voice_id"`
	ModelID         string        `yaml:"model_id"`
	BaseURL         string        `yaml:"base_url"`
	Stability       float64       `yaml:"stability"`
	SimilarityBoost float64       `yaml:"similarity_boost"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

// Voice is one entry of the account's voice list.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Client calls the ElevenLabs API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// NewClient creates a client; the API key is required.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs API key is required")
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost == 0 {
		cfg.SimilarityBoost = 0.75
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	logger.Info("ElevenLabs client initialized",
		zap.String("voice_id", cfg.VoiceID),
		zap.String("model_id", cfg.ModelID))

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// Synthesize returns MPEG audio of text spoken with the configured voice.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		audio, err := c.post(ctx, "/text-to-speech/"+c.cfg.VoiceID, body)
		if err == nil {
			c.logger.Debug("Speech synthesized",
				zap.Int("chars", len(text)),
				zap.Int("bytes", len(audio)))
			return audio, nil
		}

		lastErr = err
		c.logger.Warn("ElevenLabs request failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < c.cfg.MaxRetries {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// Voices lists the voices available to the account.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse voices: %w", err)
	}
	return resp.Voices, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs API returned status %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
