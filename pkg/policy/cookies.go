package policy

import (
	"strings"

	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

const (
	maxCookieHeaderSize = 4096
	maxSetCookieSize    = 8192
)

// CookiePolicy validates the request Cookie header and audits Set-Cookie
// values an application intends to send.
type CookiePolicy struct {
	RequireSecure   bool
	RequireHTTPOnly bool
	RequireSameSite bool
}

func NewCookiePolicy() *CookiePolicy {
	return &CookiePolicy{RequireSecure: true, RequireHTTPOnly: true, RequireSameSite: true}
}

// Check rejects malformed or oversized Cookie headers and values carrying
// markup characters.
func (p *CookiePolicy) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	cookie := req.Header("Cookie")
	if cookie == "" {
		return nil
	}

	if strings.ContainsAny(cookie, "\x00\r\n") {
		secCtx.AddThreatScore(35)
		return &secerrors.InvalidInput{Reason: "invalid cookie format detected", Field: "cookie"}
	}
	if len(cookie) > maxCookieHeaderSize {
		secCtx.AddThreatScore(20)
		return &secerrors.InvalidInput{Reason: "cookie value too large", Field: "cookie"}
	}

	for _, pair := range strings.Split(cookie, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if name == "" {
			secCtx.AddThreatScore(25)
			return &secerrors.InvalidInput{Reason: "invalid cookie name", Field: "cookie"}
		}
		if strings.ContainsAny(value, "<>") {
			secCtx.AddThreatScore(30)
			return &secerrors.InvalidInput{Reason: "potential cookie injection detected", Field: "cookie"}
		}
	}
	return nil
}

// AuditSetCookie validates outgoing Set-Cookie values against the configured
// attribute requirements.
func (p *CookiePolicy) AuditSetCookie(values []string, secCtx *types.SecurityContext) error {
	for _, value := range values {
		lower := strings.ToLower(value)

		if p.RequireSecure && !strings.Contains(lower, "secure") {
			secCtx.AddThreatScore(25)
			return &secerrors.InvalidInput{Reason: "set-cookie missing 'Secure' flag", Field: "set-cookie"}
		}
		if p.RequireHTTPOnly && !strings.Contains(lower, "httponly") {
			secCtx.AddThreatScore(20)
			return &secerrors.InvalidInput{Reason: "set-cookie missing 'HttpOnly' flag", Field: "set-cookie"}
		}
		if p.RequireSameSite && !strings.Contains(lower, "samesite") {
			secCtx.AddThreatScore(20)
			return &secerrors.InvalidInput{Reason: "set-cookie missing 'SameSite' attribute", Field: "set-cookie"}
		}
		if strings.Contains(lower, "samesite") {
			if !strings.Contains(lower, "samesite=strict") &&
				!strings.Contains(lower, "samesite=lax") &&
				!strings.Contains(lower, "samesite=none") {
				secCtx.AddThreatScore(15)
				return &secerrors.InvalidInput{Reason: "invalid SameSite value", Field: "set-cookie"}
			}
			if strings.Contains(lower, "samesite=none") && !strings.Contains(lower, "secure") {
				secCtx.AddThreatScore(30)
				return &secerrors.InvalidInput{Reason: "SameSite=None requires Secure flag", Field: "set-cookie"}
			}
		}
		if len(value) > maxSetCookieSize {
			secCtx.AddThreatScore(20)
			return &secerrors.InvalidInput{Reason: "cookie value too large", Field: "set-cookie"}
		}
	}
	return nil
}
