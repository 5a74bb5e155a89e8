package usecases

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	domainerrors "school-onboarding.backend/internal/domain/errors"
)

// RetryPolicy retries an operation with exponential backoff, but only while
// it fails with a retryable kind (ConcurrentModification, ProviderUnavailable).
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetryPolicy creates a policy; maxAttempts counts the first call.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 10 * time.Millisecond
	}
	return RetryPolicy{maxAttempts: maxAttempts, baseDelay: baseDelay}
}

// NoRetry runs an operation exactly once
func NoRetry() RetryPolicy {
	return NewRetryPolicy(1, 0)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. The last error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.maxAttempts <= 1 {
		return fn(ctx)
	}
	backoff := retry.NewExponential(p.baseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(p.maxAttempts-1), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && domainerrors.Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
