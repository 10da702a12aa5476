package policy

import (
	"fmt"
	"strings"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

var allowedCharsets = []string{"utf-8", "utf-16", "iso-8859-1", "us-ascii"}

// ContentTypePolicy validates the Content-Type of body-carrying requests
// against the configured allowlist.
type ContentTypePolicy struct {
	cfg config.ContentTypeConfig
}

func NewContentTypePolicy(cfg config.ContentTypeConfig) *ContentTypePolicy {
	return &ContentTypePolicy{cfg: cfg}
}

// Check applies to POST, PUT and PATCH only. A missing Content-Type is
// tolerated unless strict mode is on; a present one must be well-formed, in
// the allowlist, and carry an acceptable charset if it declares one.
func (p *ContentTypePolicy) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	if !p.cfg.Enabled {
		return nil
	}
	switch req.Method {
	case "POST", "PUT", "PATCH":
	default:
		return nil
	}

	contentType := req.Header("Content-Type")
	if contentType == "" {
		if p.cfg.StrictMode {
			secCtx.AddThreatScore(20)
			return &secerrors.InvalidInput{Reason: "content-type header required", Field: "content-type"}
		}
		return nil
	}

	if !wellFormedContentType(contentType) {
		secCtx.AddThreatScore(20)
		return &secerrors.InvalidInput{Reason: "invalid content-type format", Field: "content-type"}
	}
	if !p.typeAllowed(contentType) {
		secCtx.AddThreatScore(25)
		return &secerrors.InvalidInput{
			Reason: fmt.Sprintf("content-type '%s' not allowed", contentType),
			Field:  "content-type",
		}
	}
	return p.checkCharset(contentType, secCtx)
}

func (p *ContentTypePolicy) typeAllowed(contentType string) bool {
	base := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, allowed := range p.cfg.AllowedTypes {
		if strings.EqualFold(allowed, base) {
			return true
		}
	}
	return false
}

func wellFormedContentType(contentType string) bool {
	base := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	parts := strings.Split(base, "/")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

func (p *ContentTypePolicy) checkCharset(contentType string, secCtx *types.SecurityContext) error {
	if !strings.Contains(strings.ToLower(contentType), "charset") {
		return nil
	}
	for _, part := range strings.Split(contentType, ";") {
		if !strings.Contains(strings.ToLower(part), "charset") {
			continue
		}
		_, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		charset := strings.Trim(strings.TrimSpace(value), `"`)
		for _, allowed := range allowedCharsets {
			if strings.EqualFold(allowed, charset) {
				return nil
			}
		}
		secCtx.AddThreatScore(15)
		return &secerrors.InvalidInput{
			Reason: fmt.Sprintf("charset '%s' not allowed", charset),
			Field:  "content-type-charset",
		}
	}
	return nil
}
