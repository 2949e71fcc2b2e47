package broker

import (
	"context"
	"fmt"
	"time"

	"gold-trader/observability"
)

// RetryConfig bounds the exponential backoff applied to transient brokerage
// failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig matches the brokerage call timeout budget.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// withRetry runs fn with bounded exponential backoff. Only errors classified
// transient are retried; terminal errors return immediately. The returned
// error is always classified.
func withRetry(ctx context.Context, config RetryConfig, operation string, fn func() error) error {
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
			observability.GetMetrics().RecordOrderRetry(operation)
		}

		err := fn()
		if err == nil {
			return nil
		}

		classified := classify(err)
		if !retryable(classified) {
			return classified
		}

		lastErr = classified
		if attempt < config.MaxRetries {
			observability.Warn("retrying brokerage call",
				"operation", operation,
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"error", err)
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
