package pipeline

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vantagesec/gatewarden/pkg/metrics"
	"github.com/vantagesec/gatewarden/pkg/policy"
	"github.com/vantagesec/gatewarden/pkg/ratelimit"
	"github.com/vantagesec/gatewarden/pkg/store"
)

// Option injects a collaborator at construction time.
type Option func(*Pipeline)

// WithLimiter replaces the rate limiter built from config.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// WithObserver replaces the default observer chain entirely.
func WithObserver(o metrics.Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithStore adds an async recorder persisting blocked requests to the given
// store, alongside whatever observers are active.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.recorderStore = st }
}

// WithLogger replaces the default logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.timeProvider = now }
}

// WithNonceStore backs the replay stage with a shared nonce store.
func WithNonceStore(ns policy.NonceStore) Option {
	return func(p *Pipeline) { p.nonceStore = ns }
}
