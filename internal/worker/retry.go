package worker

import (
	"context"
	"errors"
	"time"
)

const maxAttempts = 3

// retryBaseDelay is the first backoff step; tests shorten it.
var retryBaseDelay = time.Second

// permanentError stops withRetry: retrying cannot change the outcome.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// withRetry calls fn up to attempts times with exponential backoff
// (base, 2·base, …) and returns the last error.
func withRetry(ctx context.Context, attempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := retryBaseDelay * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
	}
	return lastErr
}
