package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Evaluation latency buckets in milliseconds. The pipeline is in-process
	// so the distribution skews far lower than a proxy's.
	latencyBuckets = []float64{
		0.05, 0.1, 0.25,
		0.5, 1, 2.5,
		5, 10, 25,
		50, 100,
	}

	requestsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewarden_requests_total",
			Help: "Total number of requests evaluated",
		},
		[]string{"method", "outcome"},
	)

	rejectionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewarden_rejections_total",
			Help: "Rejections by error kind",
		},
		[]string{"kind"},
	)

	evaluationLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatewarden_evaluation_latency_ms",
			Help:    "Pipeline evaluation latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"outcome"},
	)

	threatScore = promauto.With(registerer).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewarden_threat_score",
			Help:    "Threat score at end of evaluation",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 80, 100, 150},
		},
	)
)

// Registry exposes the metrics registry for mounting a /metrics handler.
func Registry() *prometheus.Registry {
	return registry
}

// PrometheusObserver publishes pipeline outcomes as Prometheus metrics.
type PrometheusObserver struct{}

func NewPrometheusObserver() *PrometheusObserver {
	return &PrometheusObserver{}
}

func (PrometheusObserver) OnAdmitted(req *types.RequestContext, secCtx *types.SecurityContext, elapsed time.Duration) {
	requestsTotal.WithLabelValues(req.Method, "admitted").Inc()
	evaluationLatency.WithLabelValues("admitted").Observe(float64(elapsed.Microseconds()) / 1000)
	threatScore.Observe(float64(secCtx.ThreatScore))
}

func (PrometheusObserver) OnRejected(req *types.RequestContext, secCtx *types.SecurityContext, err error) {
	requestsTotal.WithLabelValues(req.Method, "rejected").Inc()
	rejectionsTotal.WithLabelValues(string(secerrors.KindOf(err))).Inc()
	evaluationLatency.WithLabelValues("rejected").Observe(float64(secCtx.Elapsed().Microseconds()) / 1000)
	threatScore.Observe(float64(secCtx.ThreatScore))
}
