package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/middleware"
	"github.com/vantagesec/gatewarden/pkg/pipeline"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Monitoring.Enabled = false
	return cfg
}

func newPipeline(t *testing.T, cfg config.Config) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(cfg, pipeline.WithLogger(testLogger()))
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func secureRequest(method, target string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, target, body)
	r.Header.Set("X-Forwarded-Proto", "https")
	return r
}

func TestHandlerAdmitsAndHardens(t *testing.T) {
	p := newPipeline(t, testConfig())

	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	middleware.Handler(p, next).ServeHTTP(rec, secureRequest("GET", "/api/items", nil))

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestHandlerRateLimitResponse(t *testing.T) {
	cfg := testConfig().WithRateLimit(1, time.Minute).WithBurstSize(1)
	p := newPipeline(t, cfg)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := middleware.Handler(p, next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, secureRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, secureRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp secerrors.SafeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", resp.Code)
	assert.Equal(t, "Rate limit exceeded", resp.Error)
	assert.Empty(t, resp.Details, "unauthenticated callers get no details")
	assert.NotEmpty(t, resp.RequestID)
}

func TestHandlerRejectsPlainHTTP(t *testing.T) {
	p := newPipeline(t, testConfig())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run for rejected requests")
	})

	rec := httptest.NewRecorder()
	middleware.Handler(p, next).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusUpgradeRequired, rec.Code)

	var resp secerrors.SafeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "HTTPS_REQUIRED", resp.Code)
}

func TestHandlerClientIPFromForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.IPReputation.BlacklistedIPs = []string{"198.51.100.9"}
	p := newPipeline(t, cfg)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	r := secureRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	rec := httptest.NewRecorder()
	middleware.Handler(p, next).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp secerrors.SafeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "IP_BLOCKED", resp.Code)
}

func TestHandlerRestoresBodyForNext(t *testing.T) {
	p := newPipeline(t, testConfig())

	token, err := p.GenerateCSRFToken()
	require.NoError(t, err)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, readErr := io.ReadAll(r.Body)
		require.NoError(t, readErr)
		seen = string(data)
	})

	r := secureRequest("POST", "/api/items", strings.NewReader(`{"name":"widget"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-CSRF-Token", token)
	rec := httptest.NewRecorder()
	middleware.Handler(p, next).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"name":"widget"}`, seen)
}

func TestHandlerPreservesUpstreamRequestID(t *testing.T) {
	p := newPipeline(t, testConfig())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	r := secureRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "trace-9")
	rec := httptest.NewRecorder()
	middleware.Handler(p, next).ServeHTTP(rec, r)

	assert.Equal(t, "trace-9", rec.Header().Get("X-Request-ID"))
}
