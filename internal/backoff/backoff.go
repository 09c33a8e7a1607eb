// Package backoff implements bounded retry with growing wait intervals.
package backoff

import (
	"context"
	"time"
)

// Policy describes how an operation is retried. The wait before attempt n
// (1-indexed) is Interval * n, capped at MaxInterval when set.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Interval is the base wait between attempts.
	Interval time.Duration
	// MaxInterval caps the computed wait. Zero means no cap.
	MaxInterval time.Duration
}

// Operation is the unit of work to retry.
type Operation func(ctx context.Context) error

// IsRetriableFunc reports whether an error warrants another attempt.
type IsRetriableFunc func(err error) bool

// Retry executes op until it succeeds, retries are exhausted, or the context
// is done. A nil isRetriable retries every error. The error returned is the
// one from the last attempt.
func Retry(ctx context.Context, op Operation, policy Policy, isRetriable IsRetriableFunc) error {
	if isRetriable == nil {
		isRetriable = func(error) bool { return true }
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetriable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxRetries {
			break
		}

		wait := policy.Interval * time.Duration(attempt+1)
		if policy.MaxInterval > 0 && wait > policy.MaxInterval {
			wait = policy.MaxInterval
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
	return lastErr
}
