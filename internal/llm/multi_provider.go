package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"shelflife/internal/chatapi"
	"shelflife/internal/gemini"

	"go.uber.org/zap"
)

// DefaultRequestsPerMinute is conservative for free tiers.
const DefaultRequestsPerMinute = 8

// DefaultMaxFailures is how many consecutive errors a provider may return before the
// client rotates away from it.
const DefaultMaxFailures = 3

// ErrAllProvidersFailed is returned when every provider failed a request.
var ErrAllProvidersFailed = errors.New("all providers failed")

// MultiProviderConfig holds configuration for multiple providers.
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // consecutive failures before switching provider
}

type slot struct {
	provider *RateLimitedProvider
	failures int
}

// MultiProviderClient sends each request to the active provider and rotates to the
// next one after repeated failures or a rate-limit response.
type MultiProviderClient struct {
	mu          sync.Mutex
	slots       []*slot
	active      int
	maxFailures int
	logger      *zap.Logger
}

// NewMultiProviderClient builds every configured provider. Providers that cannot be
// created are skipped; at least one must succeed.
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	var built []*RateLimitedProvider
	for i, pc := range cfg.Providers {
		p, err := newProvider(pc, logger)
		if err != nil {
			logger.Error("Skipping provider",
				zap.String("type", string(pc.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		rpm := pc.RequestsPerMinute
		if rpm == 0 {
			rpm = DefaultRequestsPerMinute
		}
		built = append(built, NewRateLimitedProvider(p, rpm, logger))
		logger.Info("Provider ready",
			zap.String("type", string(pc.Type)),
			zap.Int("requests_per_minute", rpm))
	}

	if len(built) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}
	return newClient(built, cfg.MaxFailures, logger), nil
}

// NewFromProviders wraps already constructed providers, all with the same rate limit.
func NewFromProviders(providers []Provider, requestsPerMinute, maxFailures int, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if requestsPerMinute == 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	wrapped := make([]*RateLimitedProvider, len(providers))
	for i, p := range providers {
		wrapped[i] = NewRateLimitedProvider(p, requestsPerMinute, logger)
	}
	return newClient(wrapped, maxFailures, logger), nil
}

func newClient(providers []*RateLimitedProvider, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	slots := make([]*slot, len(providers))
	for i, p := range providers {
		slots[i] = &slot{provider: p}
	}
	return &MultiProviderClient{slots: slots, maxFailures: maxFailures, logger: logger}
}

func newProvider(pc ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch pc.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:     pc.APIKey,
			ModelName:  pc.ModelName,
			MaxRetries: pc.MaxRetries,
			RetryDelay: pc.RetryDelay,
		}, logger)
	case ProviderGroq:
		return chatapi.NewGroq(pc.credentials(), logger)
	case ProviderOpenRouter:
		return chatapi.NewOpenRouter(pc.credentials(), logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// Complete asks the active provider and falls through to the others, trying each
// provider at most once per call.
func (c *MultiProviderClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	start := c.current()

	var lastErr error
	for attempt := range c.slots {
		index := (start + attempt) % len(c.slots)
		provider := c.slots[index].provider

		text, err := provider.Complete(ctx, system, prompt)
		if err == nil {
			c.succeeded(index)
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		c.logger.Error("Provider failed",
			zap.Int("provider_index", index),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		c.failed(index, isRateLimitError(err))
	}
	return "", fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

func (c *MultiProviderClient) current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *MultiProviderClient) succeeded(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[index].failures = 0
}

// failed counts a failure of provider index and rotates when its budget is spent or
// the provider is rate limited. A concurrent request may already have rotated away.
func (c *MultiProviderClient) failed(index int, rateLimited bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slots[index]
	s.failures++
	if s.failures < c.maxFailures && !rateLimited {
		return
	}
	s.failures = 0
	if c.active != index {
		return
	}
	c.active = (index + 1) % len(c.slots)

	c.logger.Info("Switching provider",
		zap.Int("from_index", index),
		zap.Int("to_index", c.active),
		zap.Bool("rate_limited", rateLimited))
}

func isRateLimitError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// Close closes all providers and returns the last error.
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, s := range c.slots {
		if err := s.provider.Close(); err != nil {
			c.logger.Error("Failed to close provider", zap.Int("index", i), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetModelInfo describes the active provider.
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slots[c.active]
	info := s.provider.GetModelInfo()
	info["provider_index"] = c.active
	info["total_providers"] = len(c.slots)
	info["failure_count"] = s.failures
	return info
}

// GetProvidersInfo describes every provider.
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]interface{}, len(c.slots))
	for i, s := range c.slots {
		info := s.provider.GetModelInfo()
		info["is_current"] = i == c.active
		info["failure_count"] = s.failures
		out[i] = info
	}
	return out
}
