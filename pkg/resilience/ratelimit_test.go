package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("should allow up to maxCalls per window per key", func(t *testing.T) {
		rl := NewRateLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("sess-1"))
		}
		assert.False(t, rl.Allow("sess-1"))

		// Independent key is unaffected.
		assert.True(t, rl.Allow("sess-2"))
	})

	t.Run("should free capacity after the window slides", func(t *testing.T) {
		rl := NewRateLimiter(2, 30*time.Millisecond)

		assert.True(t, rl.Allow("sess-1"))
		assert.True(t, rl.Allow("sess-1"))
		assert.False(t, rl.Allow("sess-1"))

		time.Sleep(40 * time.Millisecond)
		assert.True(t, rl.Allow("sess-1"))
	})
}

func TestRateLimiter_Remaining(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	assert.Equal(t, 5, rl.Remaining("sess-1"))
	rl.Allow("sess-1")
	rl.Allow("sess-1")
	assert.Equal(t, 3, rl.Remaining("sess-1"))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(5, 20*time.Millisecond)

	rl.Allow("sess-1")
	rl.Allow("sess-2")
	assert.Equal(t, 2, rl.KeyCount())

	time.Sleep(30 * time.Millisecond)
	rl.Allow("sess-3")

	removed := rl.Prune()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, rl.KeyCount())
}
