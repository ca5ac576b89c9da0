package resilience

import (
	"sync"
	"time"
)

// RateLimiter implements sliding-window rate limiting per key, e.g. per
// session id. Stale timestamps are pruned lazily on each check.
type RateLimiter struct {
	maxCalls int
	window   time.Duration

	mu      sync.Mutex
	buckets map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing maxCalls per window per key.
func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		buckets:  make(map[string][]time.Time),
	}
}

// Allow reports whether a call for key is within the limit and records it if
// so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	kept := rl.buckets[key][:0]
	for _, ts := range rl.buckets[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rl.maxCalls {
		rl.buckets[key] = kept
		return false
	}

	rl.buckets[key] = append(kept, now)
	return true
}

// Remaining returns how many calls key has left in the current window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	count := 0
	for _, ts := range rl.buckets[key] {
		if ts.After(cutoff) {
			count++
		}
	}
	if count >= rl.maxCalls {
		return 0
	}
	return rl.maxCalls - count
}

// Prune drops keys whose entire window has expired. Called periodically by
// the maintenance sweeper so long-idle keys do not accumulate.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	removed := 0
	for key, bucket := range rl.buckets {
		live := false
		for _, ts := range bucket {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// KeyCount returns the number of tracked keys.
func (rl *RateLimiter) KeyCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
