// Package retry implements bounded exponential backoff for transient failures.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts  int           // Maximum number of attempts including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound on the delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// ProviderConfig returns the retry configuration used for price source HTTP
// calls: short delays so a slow provider does not stall the resolution path.
func ProviderConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
}

// Func is a function that can be retried
type Func func(ctx context.Context, attempt int) error

// WithExponentialBackoff executes fn with exponential backoff, stopping on the
// first success, on context cancellation, or when MaxAttempts is exhausted.
func WithExponentialBackoff(ctx context.Context, config *Config, fn Func) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := fn(ctx, attempt); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
