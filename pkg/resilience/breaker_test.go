package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		ResetTimeout:     50 * time.Millisecond,
		MonitoringWindow: time.Second,
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("tool:get_order_history", testBreakerConfig())

	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.CanExecute())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.CanExecute())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker("tool:get_order_history", testBreakerConfig())

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, StateOpen, cb.State())
	require.False(t, cb.CanExecute())

	time.Sleep(60 * time.Millisecond)

	// Exactly the next call transitions to half-open and is allowed through.
	assert.True(t, cb.CanExecute())
	assert.Equal(t, StateHalfOpen, cb.State())

	t.Run("single failure reopens", func(t *testing.T) {
		cb.RecordFailure()
		assert.Equal(t, StateOpen, cb.State())
		assert.False(t, cb.CanExecute())
	})
}

func TestCircuitBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	cb := NewCircuitBreaker("llm:openai", testBreakerConfig())

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)
	require.True(t, cb.CanExecute())
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())

	// Failure counters were reset on close.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SuccessInClosedIsNoop(t *testing.T) {
	cb := NewCircuitBreaker("llm:openai", testBreakerConfig())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_WindowExpiry(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.MonitoringWindow = 40 * time.Millisecond
	cb := NewCircuitBreaker("tool:slow", cfg)

	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(50 * time.Millisecond)

	// Old failures fell out of the window; this one alone cannot open.
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Stats().RecentFailures)
}

func TestBreakerRegistry(t *testing.T) {
	reg := NewBreakerRegistry(testBreakerConfig())

	a := reg.Get("tool:a")
	b := reg.Get("tool:b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, reg.Get("tool:a"))

	for i := 0; i < 3; i++ {
		a.RecordFailure()
	}
	assert.Equal(t, StateOpen, reg.Get("tool:a").State())
	assert.Equal(t, StateClosed, reg.Get("tool:b").State())

	stats := reg.Stats()
	assert.Len(t, stats, 2)

	reg.Reset()
	assert.Equal(t, StateClosed, reg.Get("tool:a").State())
}
