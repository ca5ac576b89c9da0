package resilience

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// CircuitState is the state of a circuit breaker.
type CircuitState string

const (
	StateClosed   CircuitState = "CLOSED"
	StateOpen     CircuitState = "OPEN"
	StateHalfOpen CircuitState = "HALF_OPEN"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold opens the circuit once this many failures accumulate
	// within the monitoring window.
	FailureThreshold int
	// SuccessThreshold closes a half-open circuit after this many
	// consecutive successes.
	SuccessThreshold int
	// ResetTimeout is how long an open circuit rejects calls before the next
	// call probes it.
	ResetTimeout time.Duration
	// MonitoringWindow is the sliding window over which failures count.
	MonitoringWindow time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		MonitoringWindow: time.Minute,
	}
}

// CircuitBreaker isolates one failing dependency. Each tool handle and each
// LLM provider gets an independent breaker from the registry.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu              sync.Mutex
	state           CircuitState
	failures        []time.Time
	halfOpenSuccess int
	lastStateChange time.Time
}

// CircuitStats is a point-in-time view of a breaker's state.
type CircuitStats struct {
	Name            string       `json:"name"`
	State           CircuitState `json:"state"`
	RecentFailures  int          `json:"recent_failures"`
	LastStateChange time.Time    `json:"last_state_change"`
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	if config.MonitoringWindow <= 0 {
		config.MonitoringWindow = DefaultBreakerConfig().MonitoringWindow
	}
	return &CircuitBreaker{
		name:            name,
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// CanExecute reports whether a call may proceed. An open circuit whose reset
// timeout has elapsed transitions to half-open exactly once, lazily, on the
// next call attempt.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.lastStateChange) >= cb.config.ResetTimeout {
			cb.transition(StateHalfOpen)
			return true
		}
		return false
	}
	return true
}

// RecordSuccess feeds a successful call outcome into the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateHalfOpen {
		return
	}
	cb.halfOpenSuccess++
	if cb.halfOpenSuccess >= cb.config.SuccessThreshold {
		cb.failures = nil
		cb.transition(StateClosed)
	}
}

// RecordFailure feeds a failed call outcome into the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	if cb.state == StateHalfOpen {
		// A single probe failure reopens immediately.
		cb.failures = append(cb.failures, now)
		cb.transition(StateOpen)
		return
	}

	cb.failures = append(cb.pruneLocked(now), now)
	if cb.state == StateClosed && len(cb.failures) >= cb.config.FailureThreshold {
		cb.transition(StateOpen)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitStats{
		Name:            cb.name,
		State:           cb.state,
		RecentFailures:  len(cb.pruneLocked(time.Now())),
		LastStateChange: cb.lastStateChange,
	}
}

func (cb *CircuitBreaker) pruneLocked(now time.Time) []time.Time {
	cutoff := now.Add(-cb.config.MonitoringWindow)
	kept := cb.failures[:0]
	for _, ts := range cb.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	cb.failures = kept
	return kept
}

func (cb *CircuitBreaker) transition(next CircuitState) {
	if cb.state == next {
		return
	}

	log.Info().
		Str("breaker", cb.name).
		Str("from", string(cb.state)).
		Str("to", string(next)).
		Msg("Circuit state changed")

	cb.state = next
	cb.lastStateChange = time.Now()
	cb.halfOpenSuccess = 0
}

// BreakerRegistry tracks one breaker per service identifier. Lifecycle is
// process-wide; Reset exists for tests.
type BreakerRegistry struct {
	config   BreakerConfig
	breakers map[string]*CircuitBreaker
	mu       sync.Mutex
}

// NewBreakerRegistry creates a registry that hands out breakers with the
// given configuration.
func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for a service id, creating it on first use.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(name, r.config)
	r.breakers[name] = cb
	return cb
}

// Stats returns snapshots for every tracked breaker.
func (r *BreakerRegistry) Stats() []CircuitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CircuitStats, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb.Stats())
	}
	return out
}

// Reset drops all tracked breakers. Test hook.
func (r *BreakerRegistry) Reset() {
	r.mu.Lock()
	r.breakers = make(map[string]*CircuitBreaker)
	r.mu.Unlock()
}
