package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// RetryConfig configures exponential backoff for transient SQLite errors
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
	Multiplier float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns sensible defaults for lock contention
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   500 * time.Millisecond,
		Multiplier: 2.0,
	}
}

// isTransient reports whether the error is worth retrying. SQLite surfaces
// lock contention as SQLITE_BUSY or SQLITE_LOCKED; both drivers include the
// constant name in the error string.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// retryWithBackoff executes a function with exponential backoff retry logic.
// Only transient errors are retried; retry is skipped on context cancellation.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !isTransient(err) {
			return zero, err
		}

		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < config.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}

// execWithRetry runs a statement with transient error retry
func execWithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	_, err := retryWithBackoff(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// beginWithRetry starts a transaction, retrying on lock contention
func beginWithRetry(ctx context.Context, db *sql.DB, config RetryConfig) (*sql.Tx, error) {
	return retryWithBackoff(ctx, config, func() (*sql.Tx, error) {
		return db.BeginTx(ctx, nil)
	})
}
