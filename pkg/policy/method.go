package policy

import (
	"fmt"
	"strings"

	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// MethodPolicy restricts requests to an HTTP method allowlist. TRACE and
// CONNECT are rejected even when explicitly allowed.
type MethodPolicy struct {
	allowed map[string]struct{}
}

func NewMethodPolicy(methods ...string) *MethodPolicy {
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}
	}
	allowed := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		allowed[strings.ToUpper(m)] = struct{}{}
	}
	return &MethodPolicy{allowed: allowed}
}

func (p *MethodPolicy) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	method := strings.ToUpper(req.Method)

	if _, ok := p.allowed[method]; !ok {
		secCtx.AddThreatScore(20)
		return &secerrors.InvalidInput{
			Reason: fmt.Sprintf("http method '%s' is not allowed", method),
			Field:  "method",
		}
	}
	if method == "TRACE" || method == "CONNECT" {
		secCtx.AddThreatScore(35)
		return &secerrors.InvalidInput{
			Reason: fmt.Sprintf("http method '%s' is disabled for security reasons", method),
			Field:  "method",
		}
	}
	return nil
}

// Allowed reports whether the method passes the allowlist.
func (p *MethodPolicy) Allowed(method string) bool {
	_, ok := p.allowed[strings.ToUpper(method)]
	return ok
}
