package policy

import (
	"fmt"
	"time"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// ConstraintsPolicy enforces structural request limits: URI length, method
// presence, protocol version and the request/connection time budgets.
type ConstraintsPolicy struct {
	cfg config.ConstraintsConfig
}

func NewConstraintsPolicy(cfg config.ConstraintsConfig) *ConstraintsPolicy {
	return &ConstraintsPolicy{cfg: cfg}
}

func (p *ConstraintsPolicy) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	if !p.cfg.Enabled {
		return nil
	}

	if uriLen := len(req.URI()); uriLen > p.cfg.MaxURILength {
		secCtx.AddThreatScore(30)
		return &secerrors.InvalidInput{
			Reason: fmt.Sprintf("uri length %d exceeds maximum %d", uriLen, p.cfg.MaxURILength),
			Field:  "uri",
		}
	}
	if req.Method == "" {
		secCtx.AddThreatScore(25)
		return &secerrors.InvalidInput{Reason: "invalid or missing http method", Field: "method"}
	}
	if req.Proto == "HTTP/0.9" {
		secCtx.AddThreatScore(40)
		return &secerrors.InvalidInput{Reason: "HTTP/0.9 is not supported", Field: "version"}
	}
	return nil
}

// CheckRequestTime rejects requests whose processing has exceeded the
// configured budget.
func (p *ConstraintsPolicy) CheckRequestTime(elapsed time.Duration) error {
	if !p.cfg.Enabled {
		return nil
	}
	if elapsed > p.cfg.MaxRequestTime {
		return &secerrors.RequestTimeout{
			Reason: fmt.Sprintf("request exceeded timeout of %s", p.cfg.MaxRequestTime),
		}
	}
	return nil
}

// CheckConnectionTime rejects connections held open beyond the configured
// limit.
func (p *ConstraintsPolicy) CheckConnectionTime(elapsed time.Duration) error {
	if !p.cfg.Enabled {
		return nil
	}
	if elapsed > p.cfg.MaxConnectionTime {
		return &secerrors.ConnectionTimeout{
			Reason: fmt.Sprintf("connection exceeded timeout of %s", p.cfg.MaxConnectionTime),
		}
	}
	return nil
}
