package services

import (
	"context"
	"fmt"
	"time"

	"currency-features/observability"
)

type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Retryable decides whether a failed attempt is worth repeating. Nil retries every error.
	Retryable func(error) bool
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	Retryable:      IsTransient,
}

// ProviderRetryConfig is the transport retry budget used for price fetches: up to
// maxRetries repeats of transient failures with doubling backoff
func ProviderRetryConfig(maxRetries int, initial, max time.Duration) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: initial,
		MaxBackoff:     max,
		Retryable:      IsTransient,
	}
}

func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if config.Retryable != nil && !config.Retryable(err) {
			return err
		}
		if attempt < config.MaxRetries {
			observability.Warn("retrying after failed attempt",
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"backoff", backoff.String(),
				"error", err)
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
