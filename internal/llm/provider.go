// Package llm fans chat completions out over several rate-limited providers.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shelflife/internal/chatapi"

	"go.uber.org/zap"
)

// ProviderType names a supported completion backend.
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ProviderConfig holds configuration for a single provider instance.
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	BaseURL    string        `yaml:"base_url"` // OpenAI-compatible providers only
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Per-provider budget, 0 means the free-tier default.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

func (pc ProviderConfig) credentials() chatapi.Credentials {
	return chatapi.Credentials{
		APIKey:     pc.APIKey,
		Model:      pc.ModelName,
		BaseURL:    pc.BaseURL,
		MaxRetries: pc.MaxRetries,
		RetryDelay: pc.RetryDelay,
	}
}

// Provider completes a user prompt under a system instruction.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// RateLimiter is a token bucket refilled evenly over a minute.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute calls.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	return &RateLimiter{
		tokens:     requestsPerMinute,
		maxTokens:  requestsPerMinute,
		refillRate: time.Minute / time.Duration(requestsPerMinute),
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		if refill := int(now.Sub(rl.lastRefill) / rl.refillRate); refill > 0 {
			rl.tokens += refill
			if rl.tokens > rl.maxTokens {
				rl.tokens = rl.maxTokens
			}
			rl.lastRefill = rl.lastRefill.Add(time.Duration(refill) * rl.refillRate)
		}
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := rl.refillRate - now.Sub(rl.lastRefill)
		rl.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RateLimitedProvider wraps a provider with rate limiting.
type RateLimitedProvider struct {
	provider Provider
	limiter  *RateLimiter
	logger   *zap.Logger
}

// NewRateLimitedProvider wraps provider with a requestsPerMinute budget.
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  NewRateLimiter(requestsPerMinute),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.Complete(ctx, system, prompt)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	return p.provider.GetModelInfo()
}
