package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy retries operations that fail with SQLite concurrency errors,
// doubling the delay after each attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns 3 attempts starting at 50ms (50ms, 100ms).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or attempts
// are exhausted. Context cancellation stops the backoff early.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) || i == attempts-1 {
			break
		}

		delay := p.BaseDelay * time.Duration(1<<i)
		slog.Debug("Database locked, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}

	if IsSQLiteConflictError(err) {
		return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
	}
	return err
}
