package ratelimit

import (
	"math"
	"sync"
	"time"
)

// bucket is a token bucket for one rate-limit key. Refill is lazy: tokens are
// recomputed from elapsed wall-clock time on every access, so no background
// work is needed per bucket.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	window     time.Duration
}

func newBucket(requests, burst uint32, window time.Duration, now time.Time) *bucket {
	capacity := float64(burst)
	return &bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: float64(requests) / window.Seconds(),
		lastRefill: now,
		window:     window,
	}
}

// consume applies pending refill, then attempts to take one token. The whole
// refill-then-consume step runs under the bucket mutex so concurrent checks
// for the same key serialize only for this short critical section.
func (b *bucket) consume(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	if b.tokens >= 1.0 {
		b.tokens--
		return true
	}
	return false
}

func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		// Clock went backwards; refill is monotonic in wall-clock time only.
		return
	}
	b.tokens = math.Min(b.tokens+elapsed*b.refillRate, b.capacity)
	b.lastRefill = now
}

// retryAfter returns the minimum whole-second wait until one token is
// available, floored at one second.
func (b *bucket) retryAfter() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	needed := 1.0 - b.tokens
	if needed <= 0 {
		return 0
	}
	seconds := int64(math.Ceil(needed / b.refillRate))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// remaining reports the token count after applying pending refill.
func (b *bucket) remaining(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	return b.tokens
}

// expired reports whether the bucket has been idle long enough to be swept.
func (b *bucket) expired(now time.Time, idleMultiple time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastRefill) > idleMultiple
}
