package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/vantagesec/gatewarden/pkg/store"
	"github.com/vantagesec/gatewarden/pkg/types"
)

const (
	recorderQueueSize  = 1024
	recorderAppendTime = 5 * time.Second
)

// Recorder persists blocked requests asynchronously. Appends go through a
// bounded queue and a circuit breaker; when either saturates the record is
// dropped and counted, never blocking the pipeline's hot path.
type Recorder struct {
	st        store.Store
	breaker   *gobreaker.CircuitBreaker
	logger    *logrus.Logger
	queue     chan store.BlockedRequest
	done      chan struct{}
	closeOnce sync.Once
}

func NewRecorder(st store.Store, logger *logrus.Logger) *Recorder {
	settings := gobreaker.Settings{
		Name:        "blocked-request-store",
		MaxRequests: 5,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	r := &Recorder{
		st:      st,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		queue:   make(chan store.BlockedRequest, recorderQueueSize),
		done:    make(chan struct{}),
	}
	go r.drain()
	return r
}

// OnAdmitted is a no-op; only rejections are persisted.
func (r *Recorder) OnAdmitted(*types.RequestContext, *types.SecurityContext, time.Duration) {}

func (r *Recorder) OnRejected(req *types.RequestContext, secCtx *types.SecurityContext, err error) {
	record := store.NewBlockedRequest(req, secCtx, err)
	select {
	case r.queue <- record:
	default:
		if r.logger != nil {
			r.logger.WithField("request_id", record.ID).Warn("recorder queue full, dropping record")
		}
	}
}

func (r *Recorder) drain() {
	for record := range r.queue {
		rec := record
		_, err := r.breaker.Execute(func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), recorderAppendTime)
			defer cancel()
			return nil, r.st.Append(ctx, rec)
		})
		if err != nil && r.logger != nil {
			r.logger.WithError(err).WithField("request_id", rec.ID).Error("failed to persist blocked request")
		}
	}
	close(r.done)
}

// Close stops the recorder after flushing queued records. Safe to call more
// than once.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
		<-r.done
	})
}
