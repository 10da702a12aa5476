// Package ratelimit implements a concurrent per-key token-bucket rate
// limiter. Buckets are created lazily on a key's first request, partitioned
// so checks for different keys never contend, and swept after a long idle
// period to bound memory growth from one-off client identifiers.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
)

// idleSweepMultiple is how many windows a bucket may sit idle before the
// sweeper removes it. Forgetting rate history for long-idle keys is
// acceptable: a cold key should not carry a stale penalty.
const idleSweepMultiple = 10

type Limiter struct {
	cfg          config.RateLimitConfig
	mu           sync.RWMutex
	buckets      map[string]*bucket
	admitted     atomic.Uint64
	timeProvider func() time.Time
}

// Opts carries optional overrides, mainly for deterministic tests.
type Opts struct {
	TimeProvider func() time.Time
}

func NewLimiter(cfg config.RateLimitConfig, opts *Opts) *Limiter {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &Limiter{
		cfg:          cfg,
		buckets:      make(map[string]*bucket),
		timeProvider: timeProvider,
	}
}

// Check admits or rejects one request for the given key. On success exactly
// one token is consumed from that key's bucket; on rejection no token is
// consumed and the error carries the retry delay. A disabled limiter is a
// pure pass-through and never creates a bucket.
func (l *Limiter) Check(key string) error {
	if !l.cfg.Enabled {
		return nil
	}

	now := l.timeProvider()
	b := l.bucketFor(key, now)

	if b.consume(now) {
		l.admitted.Add(1)
		return nil
	}
	return &secerrors.RateLimitExceeded{RetryAfter: b.retryAfter()}
}

func (l *Limiter) bucketFor(key string, now time.Time) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	b = newBucket(l.cfg.RequestsPerWindow, l.cfg.BurstSize, l.cfg.WindowDuration, now)
	l.buckets[key] = b
	return b
}

// Remaining reports the token count currently available for a key, or the
// full burst capacity when the key has no bucket yet.
func (l *Limiter) Remaining(key string) float64 {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if !ok {
		return float64(l.cfg.BurstSize)
	}
	return b.remaining(l.timeProvider())
}

// Stats is a snapshot of limiter activity.
type Stats struct {
	TotalAdmitted uint64
	ActiveBuckets int
}

func (l *Limiter) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		TotalAdmitted: l.admitted.Load(),
		ActiveBuckets: len(l.buckets),
	}
}

// Sweep removes buckets idle beyond idleSweepMultiple windows. It holds the
// map write lock only while deleting, never during an admission check's
// critical section.
func (l *Limiter) Sweep() {
	now := l.timeProvider()
	idle := time.Duration(idleSweepMultiple) * l.cfg.WindowDuration

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.expired(now, idle) {
			delete(l.buckets, key)
		}
	}
}

// StartSweeper runs Sweep on the given interval until the context is
// canceled. It returns a stop function; in-flight Check calls are never
// blocked by the sweeper.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
	return cancel
}
