package webclient

import (
	"context"
	"net/http"
	"time"
)

// MaxRetryDelay caps the doubling backoff in DoWithRetry.
const MaxRetryDelay = 30 * time.Second

// AttemptFunc performs one try. A nil error with a retryable status still
// counts as a failed attempt.
type AttemptFunc func(ctx context.Context) (*Response, error)

// Retryable reports whether a status code is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry calls fn up to attempts times, backing off from initialDelay and
// doubling each time. It stops early on success, on a non-retryable status,
// or when ctx is done. The last response and error are returned as is.
func DoWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn AttemptFunc) (*Response, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 2 * time.Second
	}
	delay := initialDelay

	var (
		resp *Response
		err  error
	)
	for i := 0; i < attempts; i++ {
		resp, err = fn(ctx)
		if ctx.Err() != nil {
			return resp, ctx.Err()
		}
		if err == nil && !Retryable(resp.StatusCode) {
			return resp, nil
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return resp, ctx.Err()
		case <-t.C:
		}
		if delay < MaxRetryDelay {
			delay *= 2
			if delay > MaxRetryDelay {
				delay = MaxRetryDelay
			}
		}
	}
	return resp, err
}
