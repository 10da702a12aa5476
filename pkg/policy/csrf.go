package policy

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

const csrfCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CsrfPolicy validates anti-forgery tokens on state-changing requests.
type CsrfPolicy struct {
	cfg config.CSRFConfig
}

func NewCsrfPolicy(cfg config.CSRFConfig) *CsrfPolicy {
	return &CsrfPolicy{cfg: cfg}
}

// Check requires a well-formed token on POST, PUT, DELETE and PATCH requests,
// taken from the configured header or, failing that, the configured query
// parameter. Safe methods pass untouched.
func (p *CsrfPolicy) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	if !p.cfg.Enabled {
		return nil
	}
	switch req.Method {
	case "POST", "PUT", "DELETE", "PATCH":
	default:
		return nil
	}

	token := req.Header(p.cfg.HeaderName)
	if token == "" {
		token = req.Query.Get(p.cfg.ParamName)
	}
	if token == "" {
		secCtx.AddThreatScore(30)
		return &secerrors.CsrfViolation{Reason: "csrf token missing from request"}
	}
	if !validTokenFormat(token) {
		secCtx.AddThreatScore(40)
		return &secerrors.CsrfViolation{Reason: "invalid csrf token format"}
	}
	return nil
}

// GenerateToken produces a fresh random token of the configured length using
// a CSPRNG.
func (p *CsrfPolicy) GenerateToken() (string, error) {
	length := p.cfg.TokenLength
	if length <= 0 {
		length = 32
	}
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(csrfCharset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", &secerrors.InternalError{Reason: "csrf token generation failed"}
		}
		b.WriteByte(csrfCharset[n.Int64()])
	}
	return b.String(), nil
}

// validTokenFormat accepts alphanumeric tokens of 16 to 256 characters,
// with '-' and '_' permitted. Anything else is treated as tampering.
func validTokenFormat(token string) bool {
	if len(token) < 16 || len(token) > 256 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// SameSiteCompliant reports whether a Set-Cookie value carries an acceptable
// SameSite attribute.
func SameSiteCompliant(cookie string) bool {
	lower := strings.ToLower(cookie)
	return strings.Contains(lower, "samesite=strict") ||
		strings.Contains(lower, "samesite=lax") ||
		strings.Contains(lower, "samesite=none; secure")
}
