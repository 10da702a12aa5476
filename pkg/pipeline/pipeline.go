// Package pipeline wires the security stages into a single ordered
// evaluation. One Pipeline is built per configuration and shared across all
// requests; each Evaluate call creates a fresh SecurityContext, runs the
// stages in a fixed order and stops at the first blocking error.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vantagesec/gatewarden/pkg/auth"
	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/metrics"
	"github.com/vantagesec/gatewarden/pkg/policy"
	"github.com/vantagesec/gatewarden/pkg/ratelimit"
	"github.com/vantagesec/gatewarden/pkg/store"
	"github.com/vantagesec/gatewarden/pkg/threat"
	"github.com/vantagesec/gatewarden/pkg/types"
	"github.com/vantagesec/gatewarden/pkg/validation"
)

// requestIDHeader is consulted before generating a fresh request id, so
// upstream tracing ids survive the pipeline.
const requestIDHeader = "X-Request-ID"

type Pipeline struct {
	cfg          config.Config
	limiter      *ratelimit.Limiter
	authManager  *auth.Manager
	cors         *policy.CorsPolicy
	transport    *policy.TransportPolicy
	csrf         *policy.CsrfPolicy
	contentType  *policy.ContentTypePolicy
	ipReputation *policy.IPReputationPolicy
	replay       *policy.ReplayPolicy
	constraints  *policy.ConstraintsPolicy
	methods      *policy.MethodPolicy
	cookies      *policy.CookiePolicy
	detector     *threat.Detector
	engine       *validation.Engine
	observer     metrics.Observer
	logger       *logrus.Logger
	timeProvider func() time.Time

	recorderStore store.Store
	nonceStore    policy.NonceStore
	recorder      *metrics.Recorder
}

// New validates the configuration and builds a pipeline with all stages
// wired from it. Options inject collaborators; anything not injected is
// constructed from the config.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:          cfg,
		timeProvider: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logrus.New()
	}
	if p.limiter == nil {
		p.limiter = ratelimit.NewLimiter(cfg.RateLimit, &ratelimit.Opts{TimeProvider: p.timeProvider})
	}
	if p.authManager == nil {
		p.authManager = auth.NewManager(cfg.Auth, p.logger, &auth.Opts{TimeProvider: p.timeProvider})
	}
	if p.replay == nil {
		p.replay = policy.NewReplayPolicy(cfg.Replay, &policy.ReplayOpts{
			Store:        p.nonceStore,
			TimeProvider: p.timeProvider,
		})
	}
	p.cors = policy.NewCorsPolicy(cfg.CORS)
	p.transport = policy.NewTransportPolicy(cfg.HTTPS)
	p.csrf = policy.NewCsrfPolicy(cfg.CSRF)
	p.contentType = policy.NewContentTypePolicy(cfg.ContentType)
	p.ipReputation = policy.NewIPReputationPolicy(cfg.IPReputation)
	p.constraints = policy.NewConstraintsPolicy(cfg.Constraints)
	p.methods = policy.NewMethodPolicy()
	p.cookies = policy.NewCookiePolicy()
	p.detector = threat.NewDetector(cfg.ThreatDetection, p.logger)
	p.engine = validation.NewEngine(cfg.Validation, p.logger)

	var observers metrics.MultiObserver
	if p.observer != nil {
		observers = append(observers, p.observer)
	} else if cfg.Monitoring.Enabled {
		observers = append(observers, metrics.NewLogObserver(p.logger, cfg.Monitoring.LogRequests))
		if cfg.Monitoring.MetricsEnabled {
			observers = append(observers, metrics.NewPrometheusObserver())
		}
	}
	if p.recorderStore != nil {
		p.recorder = metrics.NewRecorder(p.recorderStore, p.logger)
		observers = append(observers, p.recorder)
	}
	if len(observers) == 0 {
		p.observer = metrics.NopObserver{}
	} else {
		p.observer = observers
	}
	return p, nil
}

// Close flushes and stops the async recorder, if one was attached.
func (p *Pipeline) Close() {
	if p.recorder != nil {
		p.recorder.Close()
	}
}

// Evaluate runs every stage against the request. On admission the returned
// context carries the accumulated state (the threat score may be nonzero,
// it is advisory). On rejection the first blocking error is returned
// together with the context as it stood when that stage fired, and the
// observer is notified exactly once.
func (p *Pipeline) Evaluate(ctx context.Context, req *types.RequestContext) (*types.SecurityContext, error) {
	secCtx := types.NewSecurityContext(p.requestID(req), req.ClientIP)
	start := p.timeProvider()

	if err := p.runStages(ctx, req, secCtx); err != nil {
		p.observer.OnRejected(req, secCtx, err)
		return secCtx, err
	}

	p.observer.OnAdmitted(req, secCtx, p.timeProvider().Sub(start))
	return secCtx, nil
}

func (p *Pipeline) runStages(ctx context.Context, req *types.RequestContext, secCtx *types.SecurityContext) error {
	if err := p.limiter.Check(p.rateLimitKey(req)); err != nil {
		return err
	}
	if err := p.constraints.Check(req, secCtx); err != nil {
		return err
	}
	if err := p.methods.Check(req, secCtx); err != nil {
		return err
	}
	if err := p.cookies.Check(req, secCtx); err != nil {
		return err
	}
	if _, err := p.authManager.Authenticate(req, secCtx); err != nil {
		return err
	}
	if err := p.cors.Check(req, secCtx); err != nil {
		return err
	}
	if err := p.transport.Check(req, secCtx); err != nil {
		return err
	}
	if err := p.csrf.Check(req, secCtx); err != nil {
		return err
	}
	if err := p.contentType.Check(req, secCtx); err != nil {
		return err
	}
	if err := p.ipReputation.Check(req, secCtx); err != nil {
		return err
	}
	if err := p.detector.Check(req, secCtx); err != nil {
		return err
	}
	if err := p.engine.ScanRequest(req, secCtx); err != nil {
		return err
	}
	return p.replay.Check(ctx, req, secCtx)
}

// Sanitize exposes the validation engine's escaper for callers that render
// admitted input.
func (p *Pipeline) Sanitize(input string) string {
	return p.engine.Sanitize(input)
}

// GenerateToken issues a JWT through the authentication stage's manager.
func (p *Pipeline) GenerateToken(userID string, roles []string) (string, error) {
	return p.authManager.GenerateToken(userID, roles)
}

// GenerateCSRFToken produces a token the CSRF stage will accept.
func (p *Pipeline) GenerateCSRFToken() (string, error) {
	return p.csrf.GenerateToken()
}

// ResponseHeaders assembles the hardening headers for a response to the
// given request: static security headers, HSTS when the connection is
// secure, and CORS headers for the request origin.
func (p *Pipeline) ResponseHeaders(req *types.RequestContext) map[string]string {
	headers := policy.SecurityHeaders()
	if p.cfg.HTTPS.Enabled && p.transport.ConnectionSecure(req) {
		headers["Strict-Transport-Security"] = p.transport.HSTSHeader()
	}
	if p.cfg.CORS.Enabled {
		for name, value := range p.cors.ResponseHeaders(req.Header("Origin")) {
			headers[name] = value
		}
	}
	return headers
}

// RateLimitStats reports limiter activity for operational surfaces.
func (p *Pipeline) RateLimitStats() ratelimit.Stats {
	return p.limiter.Stats()
}

// StartSweeper launches the limiter's idle-bucket sweeper.
func (p *Pipeline) StartSweeper(ctx context.Context, interval time.Duration) func() {
	return p.limiter.StartSweeper(ctx, interval)
}

func (p *Pipeline) requestID(req *types.RequestContext) string {
	if id := req.Header(requestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// rateLimitKey picks the bucket key: user identity when per-user limiting is
// on and the request carries one, else the client IP. Rate limiting runs
// before authentication, so the identity comes from the request header.
func (p *Pipeline) rateLimitKey(req *types.RequestContext) string {
	if p.cfg.RateLimit.PerUser {
		if user := req.Header("X-User-ID"); user != "" {
			return "user:" + user
		}
	}
	if p.cfg.RateLimit.PerIP {
		return "ip:" + req.ClientIP
	}
	return "global"
}
