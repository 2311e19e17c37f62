package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewFixedRetry waits the same delay between attempts and gives up after
// attempts tries in total. attempts below 1 is treated as 1.
func NewFixedRetry(ctx context.Context, delay time.Duration, attempts int) backoff.BackOffContext {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}
