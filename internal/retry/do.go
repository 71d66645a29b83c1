package retry

import (
	"context"
	"fmt"
	"time"
)

// Do runs fn, retrying while shouldRetry reports the returned error as
// transient and the policy has retries left. Cancellation is honored between
// attempts; fn itself receives the caller's context and is responsible for
// honoring it mid-attempt. A nil shouldRetry disables retries entirely.
func Do(ctx context.Context, p Policy, shouldRetry func(error) bool, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || shouldRetry == nil || !shouldRetry(err) || attempt >= p.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(p.Delay(attempt + 1)):
		}
	}
}
