package chatapi

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Retry calls fn up to attempts times, sleeping delay between failures. It stops early
// when ctx is done.
func Retry(ctx context.Context, attempts int, delay time.Duration, logger *zap.Logger, fn func(attempt int) (string, error)) (string, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := fn(attempt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		logger.Warn("Completion attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", attempts),
			zap.Error(err))

		if attempt < attempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
