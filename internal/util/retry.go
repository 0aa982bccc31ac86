package util

import (
	"context"
	"time"
)

// RetryIf calls fn up to maxAttempts times, doubling the pause after each
// failure starting at baseDelay. Only errors for which retryable reports true
// are retried; any other error is returned at once. A nil retryable retries
// every error. Cancelling ctx stops the wait between attempts.
func RetryIf(ctx context.Context, maxAttempts int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
