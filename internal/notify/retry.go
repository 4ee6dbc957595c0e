package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// RetryPolicy retries an operation with exponential backoff. MaxRetries is
// the total number of attempts, not the number of retries after the first.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy returns a policy with maxRetries attempts and delays of
// baseDelay, 2*baseDelay, 4*baseDelay, ... between them.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration) *RetryPolicy {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		sleep:      sleepContext,
	}
}

// Do runs fn up to MaxRetries times, backing off between failed attempts.
// No delay follows the final attempt; the last error is returned with the
// attempt count.
func (p *RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.CategoryNotification, err, fmt.Sprintf("%s aborted", op))
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < p.MaxRetries-1 {
			delay := p.BaseDelay << uint(attempt)
			if err := p.sleep(ctx, delay); err != nil {
				return errors.Wrap(errors.CategoryNotification, err, fmt.Sprintf("%s aborted", op))
			}
		}
	}
	return errors.Wrap(errors.CategoryNotification, lastErr,
		fmt.Sprintf("%s failed after %d attempts", op, p.MaxRetries))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
