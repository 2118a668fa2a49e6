package httpfetch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/whalewatch/internal/core/apperr"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        30 * time.Second,
	BackoffMultiple: 2.0,
}

// callWithRetry runs call with exponential backoff. Only retryable kinds
// (rate limited, network) are retried; a Retry-After hint overrides the
// computed delay.
func callWithRetry(ctx context.Context, cfg RetryConfig, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperr.Retryable(err) || attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := calculateBackoff(attempt, cfg)
		if ra := apperr.RetryAfterOf(err); ra > 0 {
			delay = min(ra, cfg.MaxDelay)
		}
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindNetwork, "httpfetch", ctx.Err())
		case <-time.After(delay):
		}
	}
	if cfg.MaxAttempts > 1 && apperr.Retryable(lastErr) {
		return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
	}
	return lastErr
}

func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
