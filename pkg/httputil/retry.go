package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses, truncated
// bodies) with this type so that [Policy.Do] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is wrapped with [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Policy describes a bounded retry with a fixed delay between attempts.
type Policy struct {
	Attempts int           // total attempts, at least 1
	Delay    time.Duration // pause before every attempt after the first

	// OnRetry is called before sleeping ahead of attempt n (2-based) with
	// the error that caused it. Optional.
	OnRetry func(attempt int, err error)
}

// Do executes fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. Returns the last error if all attempts fail, or
// ctx.Err() if the context ends while waiting.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := max(p.Attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			if p.OnRetry != nil {
				p.OnRetry(i+2, lastErr)
			}
			if err := Sleep(ctx, p.Delay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// Sleep pauses for d or until ctx is done, whichever comes first.
// A non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
