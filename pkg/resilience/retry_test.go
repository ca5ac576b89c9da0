package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harun/tanya/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Do(t *testing.T) {
	t.Run("should attempt exactly maxAttempts for a persistently retryable error", func(t *testing.T) {
		policy := RetryPolicy{
			MaxAttempts:       3,
			InitialDelay:      time.Millisecond,
			MaxDelay:          5 * time.Millisecond,
			BackoffMultiplier: 2,
		}

		failure := errorx.New(errorx.CategoryTool, "transient", true, true)
		attempts := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return failure
		})

		assert.Equal(t, 3, attempts)
		// The last error comes back unchanged.
		assert.Same(t, error(failure), err)
	})

	t.Run("should stop immediately on non-retryable error", func(t *testing.T) {
		policy := DefaultRetryPolicy()
		policy.InitialDelay = time.Millisecond

		attempts := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("permanent")
		})

		assert.Equal(t, 1, attempts)
		assert.EqualError(t, err, "permanent")
	})

	t.Run("should succeed mid-sequence", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, BackoffMultiplier: 2}

		attempts := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errorx.New(errorx.CategoryLLM, "flaky", true, true)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("should grow delay by multiplier capped at maxDelay", func(t *testing.T) {
		policy := RetryPolicy{
			MaxAttempts:       4,
			InitialDelay:      10 * time.Millisecond,
			MaxDelay:          20 * time.Millisecond,
			BackoffMultiplier: 2,
		}

		var attemptTimes []time.Time
		_ = policy.Do(context.Background(), func(ctx context.Context) error {
			attemptTimes = append(attemptTimes, time.Now())
			return errorx.New(errorx.CategoryTool, "transient", true, true)
		})

		require.Len(t, attemptTimes, 4)
		var prevGap time.Duration
		for i := 1; i < len(attemptTimes); i++ {
			gap := attemptTimes[i].Sub(attemptTimes[i-1])
			if i > 1 {
				// Each gap is at most previous*multiplier (with scheduling slack),
				// and never beyond maxDelay by much.
				assert.LessOrEqual(t, gap, time.Duration(float64(prevGap)*2)+15*time.Millisecond)
			}
			assert.Less(t, gap, policy.MaxDelay+25*time.Millisecond)
			prevGap = gap
		}
	})

	t.Run("should honor custom predicate", func(t *testing.T) {
		policy := RetryPolicy{
			MaxAttempts:       3,
			InitialDelay:      time.Millisecond,
			BackoffMultiplier: 2,
			RetryIf:           func(err error) bool { return err.Error() == "again" },
		}

		attempts := 0
		_ = policy.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("again")
		})
		assert.Equal(t, 3, attempts)
	})

	t.Run("should stop when context is cancelled between attempts", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, BackoffMultiplier: 2}

		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := policy.Do(ctx, func(ctx context.Context) error {
			attempts++
			return errorx.New(errorx.CategoryTool, "transient", true, true)
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}
