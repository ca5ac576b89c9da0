package resilience

import (
	"context"
	"time"

	"github.com/harun/tanya/pkg/errorx"
	"github.com/rs/zerolog/log"
)

// RetryPolicy configures exponential backoff retries.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// RetryIf decides whether an error is worth another attempt. Defaults to
	// errorx.IsRetryable.
	RetryIf func(error) bool
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Do runs op until it succeeds, the retry predicate rejects the error, or
// attempts are exhausted. On exhaustion the last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = errorx.IsRetryable
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !retryIf(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		log.Debug().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(lastErr).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.BackoffMultiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}
