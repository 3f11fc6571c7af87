// Package bounded runs calls to slow external services with a per-attempt
// timeout and a single retry on transient failures.
package bounded

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultTimeout = 20 * time.Second
	retryDelay     = 500 * time.Millisecond
)

// Call invokes fn with ctx bounded by timeout. A transient failure is retried
// once; the last error is returned unwrapped.
func Call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	backoff := retry.WithMaxRetries(1, retry.NewConstant(retryDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := fn(attemptCtx)
		if err != nil && ctx.Err() == nil && IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// IsTransient reports whether err looks like a timeout, a network failure or a
// response that declares itself temporary (HTTP 429 and 5xx).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
