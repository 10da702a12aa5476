// Package policy implements the per-request policy stages of the pipeline:
// cross-origin checks, transport requirements, CSRF and content-type
// validation, IP reputation, replay protection and structural constraints.
// Each stage is constructed once from its config section and is safe for
// concurrent use.
package policy

import (
	"strconv"
	"strings"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// safeHeaders are always accepted in preflight header lists regardless of
// configuration.
var safeHeaders = map[string]struct{}{
	"content-type":    {},
	"accept":          {},
	"accept-language": {},
	"accept-encoding": {},
}

type CorsPolicy struct {
	cfg            config.CORSConfig
	origins        map[string]struct{}
	methods        map[string]struct{}
	allowedHeaders map[string]struct{}
}

func NewCorsPolicy(cfg config.CORSConfig) *CorsPolicy {
	origins := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		origins[o] = struct{}{}
	}
	methods := make(map[string]struct{}, len(cfg.AllowMethods))
	for _, m := range cfg.AllowMethods {
		methods[strings.ToUpper(m)] = struct{}{}
	}
	headers := make(map[string]struct{}, len(cfg.AllowHeaders))
	for _, h := range cfg.AllowHeaders {
		headers[strings.ToLower(h)] = struct{}{}
	}
	return &CorsPolicy{cfg: cfg, origins: origins, methods: methods, allowedHeaders: headers}
}

// Check validates the Origin header against the allowlist and, for preflight
// requests, the requested method and header list. Requests without an Origin
// header pass untouched.
func (p *CorsPolicy) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	if !p.cfg.Enabled {
		return nil
	}

	if origin := req.Header("Origin"); origin != "" {
		if !p.OriginAllowed(origin) {
			secCtx.AddThreatScore(20)
			return &secerrors.CorsViolation{Reason: "origin '" + origin + "' is not allowed"}
		}
	}

	if req.Method != "OPTIONS" {
		return nil
	}

	if method := req.Header("Access-Control-Request-Method"); method != "" {
		if _, ok := p.methods[strings.ToUpper(method)]; !ok {
			secCtx.AddThreatScore(15)
			return &secerrors.CorsViolation{Reason: "method '" + method + "' is not allowed"}
		}
	}
	if requested := req.Header("Access-Control-Request-Headers"); requested != "" {
		for _, header := range strings.Split(requested, ",") {
			header = strings.ToLower(strings.TrimSpace(header))
			if !p.headerAllowed(header) {
				secCtx.AddThreatScore(15)
				return &secerrors.CorsViolation{Reason: "header '" + header + "' is not allowed"}
			}
		}
	}
	return nil
}

// OriginAllowed reports whether the given origin passes the allowlist,
// including wildcard-subdomain entries of the form "https://*.example.com".
func (p *CorsPolicy) OriginAllowed(origin string) bool {
	if p.cfg.AllowAllOrigins {
		return true
	}
	if _, ok := p.origins[origin]; ok {
		return true
	}
	for allowed := range p.origins {
		star := strings.Index(allowed, "*.")
		if star < 0 {
			continue
		}
		prefix, domain := allowed[:star], allowed[star+1:]
		if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, domain) {
			return true
		}
	}
	return false
}

func (p *CorsPolicy) headerAllowed(lowered string) bool {
	if _, ok := safeHeaders[lowered]; ok {
		return true
	}
	_, ok := p.allowedHeaders[lowered]
	return ok
}

// ResponseHeaders returns the CORS headers to attach to a response for the
// given request origin. An empty map is returned for disallowed origins.
func (p *CorsPolicy) ResponseHeaders(origin string) map[string]string {
	headers := make(map[string]string)
	if origin == "" || !p.OriginAllowed(origin) {
		return headers
	}

	headers["Access-Control-Allow-Origin"] = origin
	if p.cfg.AllowCredentials {
		headers["Access-Control-Allow-Credentials"] = "true"
	}
	headers["Access-Control-Allow-Methods"] = strings.Join(p.cfg.AllowMethods, ", ")
	headers["Access-Control-Allow-Headers"] = strings.Join(p.cfg.AllowHeaders, ", ")
	if len(p.cfg.ExposeHeaders) > 0 {
		headers["Access-Control-Expose-Headers"] = strings.Join(p.cfg.ExposeHeaders, ", ")
	}
	headers["Access-Control-Max-Age"] = strconv.FormatUint(uint64(p.cfg.MaxAge), 10)
	return headers
}
