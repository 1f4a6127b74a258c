package paypal

import (
	"context"
	"time"

	"paymux/payerr"
)

const (
	retryMaxAttempts = 3
	retryBaseDelay   = 500 * time.Millisecond
	retryMaxDelay    = 5 * time.Second
)

// withRetry retries transient failures (transport errors, provider API
// errors, rate limits) with exponential backoff: 500ms, 1s, 2s, capped at 5s.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !payerr.Retryable(err) || attempt == retryMaxAttempts-1 {
			return zero, err
		}

		delay := retryBaseDelay << attempt
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}
