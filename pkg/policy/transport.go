package policy

import (
	"strconv"
	"strings"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// TransportPolicy enforces the HTTPS requirement and produces the HSTS
// response header.
type TransportPolicy struct {
	cfg config.HTTPSConfig
}

func NewTransportPolicy(cfg config.HTTPSConfig) *TransportPolicy {
	return &TransportPolicy{cfg: cfg}
}

// Check rejects plaintext requests when HTTPS is required. Proxy headers are
// consulted before the scheme so deployments behind TLS-terminating load
// balancers are recognized as secure.
func (p *TransportPolicy) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	if !p.cfg.Enabled || !p.cfg.RequireHTTPS {
		return nil
	}
	if p.ConnectionSecure(req) {
		return nil
	}
	return &secerrors.HttpsRequired{}
}

// ConnectionSecure reports whether any of the recognized indicators mark the
// connection as HTTPS: X-Forwarded-Proto, Cloudflare's CF-Visitor,
// Front-End-Https, or the request scheme itself.
func (p *TransportPolicy) ConnectionSecure(req *types.RequestContext) bool {
	if req.Header("X-Forwarded-Proto") == "https" {
		return true
	}
	if visitor := req.Header("CF-Visitor"); strings.Contains(visitor, `"scheme":"https"`) {
		return true
	}
	if req.Header("Front-End-Https") == "on" {
		return true
	}
	return req.Scheme == "https"
}

// HSTSHeader returns the Strict-Transport-Security value to attach to
// responses served over HTTPS.
func (p *TransportPolicy) HSTSHeader() string {
	var b strings.Builder
	b.WriteString("max-age=")
	b.WriteString(strconv.FormatUint(uint64(p.cfg.HSTSMaxAge), 10))
	if p.cfg.HSTSIncludeSubdomains {
		b.WriteString("; includeSubDomains")
	}
	b.WriteString("; preload")
	return b.String()
}
