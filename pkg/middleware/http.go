// Package middleware adapts the security pipeline to HTTP transports. Both
// adapters build the transport-agnostic request view, run one Evaluate, and
// either forward the request with hardening headers set or write the safe
// error response for the blocking kind.
package middleware

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/vantagesec/gatewarden/pkg/pipeline"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// maxBufferedBody caps how much request body the adapter reads for
// inspection. Larger bodies are rejected by the payload size check anyway.
const maxBufferedBody = 10 * 1024 * 1024

// Handler wraps next with the pipeline. Rejected requests never reach next.
func Handler(p *pipeline.Pipeline, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := fromHTTPRequest(r)
		if err != nil {
			writeError(w, err, "", false)
			return
		}

		secCtx, err := p.Evaluate(r.Context(), req)
		if err != nil {
			if rl, ok := err.(*secerrors.RateLimitExceeded); ok {
				w.Header().Set("Retry-After", strconv.FormatInt(rl.RetryAfter, 10))
			}
			details := secerrors.ShouldExposeDetails(secCtx.ThreatScore, secCtx.IsAuthenticated())
			writeError(w, err, secCtx.RequestID, details)
			return
		}

		for name, value := range p.ResponseHeaders(req) {
			w.Header().Set(name, value)
		}
		w.Header().Set("X-Request-ID", secCtx.RequestID)
		next.ServeHTTP(w, r)
	})
}

func fromHTTPRequest(r *http.Request) (*types.RequestContext, error) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBufferedBody+1))
		if err != nil {
			return nil, &secerrors.InvalidInput{Reason: "failed to read request body", Field: "body"}
		}
		body = data
		r.Body = io.NopCloser(strings.NewReader(string(data)))
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return &types.RequestContext{
		Method:   r.Method,
		Path:     r.URL.Path,
		Query:    r.URL.Query(),
		Headers:  r.Header,
		Body:     body,
		Scheme:   scheme,
		Proto:    r.Proto,
		ClientIP: clientIP(r),
	}, nil
}

// clientIP takes the first hop of X-Forwarded-For when present, otherwise
// the connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, err error, requestID string, includeDetails bool) {
	resp := secerrors.NewSafeResponse(err, requestID, includeDetails)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(secerrors.StatusCode(err))
	_ = json.NewEncoder(w).Encode(resp)
}
