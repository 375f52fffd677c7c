package resilience

import (
	"context"
	"fmt"
	"time"
)

// BackoffConfig bounds a retried operation.
type BackoffConfig struct {
	MaxAttempts int           // Maximum number of attempts
	Initial     time.Duration // Backoff before the second attempt
	Multiplier  float64       // Exponential growth factor
	Max         time.Duration // Backoff ceiling
}

// DefaultBackoffConfig returns the defaults used for remote session dials.
func DefaultBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		MaxAttempts: 3,
		Initial:     200 * time.Millisecond,
		Multiplier:  2.0,
		Max:         5 * time.Second,
	}
}

// Do runs fn up to MaxAttempts times with exponential backoff between
// attempts, honoring context cancellation while waiting. Returns nil on
// the first success, otherwise the last error.
func Do(ctx context.Context, config *BackoffConfig, fn func() error) error {
	if config == nil {
		config = DefaultBackoffConfig()
	}

	backoff := config.Initial
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * config.Multiplier)
			if backoff > config.Max {
				backoff = config.Max
			}
		}
	}

	return fmt.Errorf("after %d attempts: %w", config.MaxAttempts, lastErr)
}

// Backoff calculates the wait before the given zero-based attempt.
func Backoff(attempt int, config *BackoffConfig) time.Duration {
	if config == nil {
		config = DefaultBackoffConfig()
	}
	backoff := config.Initial
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if backoff > config.Max {
			return config.Max
		}
	}
	return backoff
}
