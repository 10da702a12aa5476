// Package metrics carries rejection and admission signals out of the
// pipeline: structured logs, Prometheus counters, and an asynchronous
// recorder that persists blocked requests without stalling the hot path.
package metrics

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// Observer receives pipeline outcomes. OnRejected is invoked exactly once
// per rejected request, with the security context as it stood when the
// blocking stage returned.
type Observer interface {
	OnAdmitted(req *types.RequestContext, secCtx *types.SecurityContext, elapsed time.Duration)
	OnRejected(req *types.RequestContext, secCtx *types.SecurityContext, err error)
}

// NopObserver discards all signals.
type NopObserver struct{}

func (NopObserver) OnAdmitted(*types.RequestContext, *types.SecurityContext, time.Duration) {}
func (NopObserver) OnRejected(*types.RequestContext, *types.SecurityContext, error)         {}

// LogObserver writes outcomes as structured log entries.
type LogObserver struct {
	logger      *logrus.Logger
	logRequests bool
}

func NewLogObserver(logger *logrus.Logger, logRequests bool) *LogObserver {
	return &LogObserver{logger: logger, logRequests: logRequests}
}

func (o *LogObserver) OnAdmitted(req *types.RequestContext, secCtx *types.SecurityContext, elapsed time.Duration) {
	if !o.logRequests {
		return
	}
	o.logger.WithFields(logrus.Fields{
		"request_id":   secCtx.RequestID,
		"client_ip":    secCtx.ClientIP,
		"method":       req.Method,
		"path":         req.Path,
		"threat_score": secCtx.ThreatScore,
		"elapsed_ms":   elapsed.Milliseconds(),
	}).Info("request admitted")
}

func (o *LogObserver) OnRejected(req *types.RequestContext, secCtx *types.SecurityContext, err error) {
	o.logger.WithFields(logrus.Fields{
		"request_id":   secCtx.RequestID,
		"client_ip":    secCtx.ClientIP,
		"method":       req.Method,
		"path":         req.Path,
		"threat_score": secCtx.ThreatScore,
		"severity":     string(secCtx.Severity()),
		"kind":         string(secerrors.KindOf(err)),
		"reason":       err.Error(),
	}).Warn("request rejected")
}

// MultiObserver fans out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnAdmitted(req *types.RequestContext, secCtx *types.SecurityContext, elapsed time.Duration) {
	for _, o := range m {
		o.OnAdmitted(req, secCtx, elapsed)
	}
}

func (m MultiObserver) OnRejected(req *types.RequestContext, secCtx *types.SecurityContext, err error) {
	for _, o := range m {
		o.OnRejected(req, secCtx, err)
	}
}
