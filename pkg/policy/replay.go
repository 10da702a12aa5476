package policy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

const (
	nonceHeader     = "X-Nonce"
	timestampHeader = "X-Timestamp"
	// clockSkewLeeway tolerates client clocks slightly ahead of ours.
	clockSkewLeeway = 60 * time.Second
)

// NonceStore records nonces as used. MarkUsed must be atomic: concurrent
// calls for the same key must admit exactly one caller.
type NonceStore interface {
	// MarkUsed returns true if the key was fresh and is now recorded, false
	// if it had been seen before.
	MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReplayPolicy rejects requests that reuse a nonce or carry a timestamp
// outside the accepted window. Requests without a nonce header pass
// untouched; replay protection is opt-in per request.
type ReplayPolicy struct {
	cfg          config.ReplayConfig
	store        NonceStore
	timeProvider func() time.Time
}

// ReplayOpts carries optional overrides, mainly for deterministic tests.
type ReplayOpts struct {
	Store        NonceStore
	TimeProvider func() time.Time
}

func NewReplayPolicy(cfg config.ReplayConfig, opts *ReplayOpts) *ReplayPolicy {
	p := &ReplayPolicy{cfg: cfg, timeProvider: time.Now}
	if opts != nil {
		if opts.Store != nil {
			p.store = opts.Store
		}
		if opts.TimeProvider != nil {
			p.timeProvider = opts.TimeProvider
		}
	}
	if p.store == nil {
		p.store = NewMemoryNonceStore(cfg.MaxNonces, p.timeProvider)
	}
	return p
}

func (p *ReplayPolicy) Check(ctx context.Context, req *types.RequestContext, secCtx *types.SecurityContext) error {
	if !p.cfg.Enabled {
		return nil
	}

	nonce := req.Header(nonceHeader)
	if nonce == "" {
		return nil
	}

	if len(nonce) < 16 || len(nonce) > 256 {
		secCtx.AddThreatScore(30)
		return &secerrors.InvalidInput{Reason: "invalid nonce format or length", Field: "nonce"}
	}
	if !validTokenFormat(nonce) {
		secCtx.AddThreatScore(35)
		return &secerrors.InvalidInput{Reason: "nonce contains invalid characters", Field: "nonce"}
	}

	if ts := req.Header(timestampHeader); ts != "" {
		if err := p.checkTimestamp(ts, secCtx); err != nil {
			return err
		}
	}

	key := secCtx.ClientIP + ":" + nonce
	fresh, err := p.store.MarkUsed(ctx, key, p.cfg.TimestampWindow)
	if err != nil {
		return &secerrors.InternalError{Reason: secerrors.SanitizeMessage(err.Error())}
	}
	if !fresh {
		secCtx.AddThreatScore(80)
		return &secerrors.ReplayDetected{Reason: "nonce already used - request replay detected"}
	}
	return nil
}

func (p *ReplayPolicy) checkTimestamp(raw string, secCtx *types.SecurityContext) error {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		secCtx.AddThreatScore(35)
		return &secerrors.InvalidInput{Reason: "timestamp is not a unix epoch integer", Field: "timestamp"}
	}

	now := p.timeProvider().Unix()
	window := int64(p.cfg.TimestampWindow / time.Second)
	if now > ts+window {
		secCtx.AddThreatScore(50)
		return &secerrors.ReplayDetected{
			Reason: fmt.Sprintf("request timestamp too old (difference %d seconds, max %d)", now-ts, window),
		}
	}
	if ts > now+int64(clockSkewLeeway/time.Second) {
		secCtx.AddThreatScore(35)
		return &secerrors.InvalidInput{Reason: "request timestamp is in the future", Field: "timestamp"}
	}
	return nil
}

// GenerateNonce produces a fresh 32-character hex nonce.
func GenerateNonce() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", &secerrors.InternalError{Reason: "nonce generation failed"}
	}
	return hex.EncodeToString(buf[:]), nil
}

// MemoryNonceStore keeps used nonces in process memory with lazy expiry.
// Suitable for single-instance deployments; multi-instance ones should use
// the Redis store so a replay against a different instance is still caught.
type MemoryNonceStore struct {
	mu           sync.Mutex
	seen         map[string]time.Time
	maxEntries   int
	timeProvider func() time.Time
}

func NewMemoryNonceStore(maxEntries int, timeProvider func() time.Time) *MemoryNonceStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if timeProvider == nil {
		timeProvider = time.Now
	}
	return &MemoryNonceStore{
		seen:         make(map[string]time.Time),
		maxEntries:   maxEntries,
		timeProvider: timeProvider,
	}
}

func (s *MemoryNonceStore) MarkUsed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.timeProvider()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	if len(s.seen) >= s.maxEntries {
		s.evictExpiredLocked(now)
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryNonceStore) evictExpiredLocked(now time.Time) {
	for key, expiry := range s.seen {
		if now.After(expiry) {
			delete(s.seen, key)
		}
	}
}

// RedisNonceStore records nonces in Redis via SETNX so replay detection is
// shared across pipeline instances.
type RedisNonceStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisNonceStore(client redis.UniversalClient, prefix string) *RedisNonceStore {
	if prefix == "" {
		prefix = "nonce:"
	}
	return &RedisNonceStore{client: client, prefix: prefix}
}

func (s *RedisNonceStore) MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
}
