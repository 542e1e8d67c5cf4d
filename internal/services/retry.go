package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
)

// RetryPolicy controls how transient API failures are retried.
type RetryPolicy struct {
	MaxAttempts  int           // Total attempts including the first
	InitialDelay time.Duration // Backoff delay before the first retry
	MaxDelay     time.Duration // Cap for the backoff delay
	Multiplier   float64       // Exponential backoff multiplier
}

// DefaultRetryPolicy mirrors the historical script behavior: three attempts,
// two second initial delay, doubling each retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// apiError represents a non-2xx response from the provider API.
//
// retryAfter carries the server's Retry-After hint when one was supplied.
type apiError struct {
	status     int
	message    string
	retryAfter time.Duration
}

func (e *apiError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("spotify API error: status %d: %s", e.status, e.message)
	}
	return fmt.Sprintf("spotify API error: status %d", e.status)
}

// retryable reports whether the error is worth retrying: rate limiting and
// server-side failures are transient, other client errors are not.
func (e *apiError) retryable() bool {
	return e.status == 429 || e.status >= 500
}

// retryDelay classifies an error for the retry loop.
//
// Returns the server-supplied delay hint (zero when none) and whether the
// error is retryable at all. Transport-level failures ([url.Error]) are
// retryable unless the context was canceled.
func retryDelay(err error) (time.Duration, bool) {
	var api *apiError
	if errors.As(err, &api) {
		return api.retryAfter, api.retryable()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var transport *url.Error
	if errors.As(err, &transport) {
		return 0, true
	}

	return 0, false
}

// withRetry runs fn, retrying transient failures with exponential backoff.
//
// A successful first attempt performs no delay. The server's Retry-After hint
// takes precedence over the computed backoff. After exhausting attempts the
// final error is wrapped with the attempt count and returned.
func withRetry(ctx context.Context, logger *log.Logger, policy RetryPolicy, op string, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 0 && logger != nil {
				logger.Debug("operation succeeded after retry", "op", op, "attempt", attempt+1)
			}
			return nil
		}

		lastErr = err

		hint, ok := retryDelay(err)
		if !ok {
			return err
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := time.Duration(float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt)))
		if hint > 0 {
			delay = hint
		}
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}

		if logger != nil {
			logger.Warn("transient API failure, retrying",
				"op", op, "attempt", attempt+1, "max_attempts", policy.MaxAttempts, "delay", delay, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, policy.MaxAttempts, lastErr)
}
