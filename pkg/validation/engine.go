// Package validation detects known attack-pattern families in request
// fields. Pattern categories are compiled once at engine construction,
// immutable afterwards, and evaluated in a fixed order: the first category
// that matches short-circuits the scan, adds its score weight to the
// request's security context and rejects the input.
package validation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

type Engine struct {
	cfg    config.ValidationConfig
	rules  []rule
	logger *logrus.Logger
}

// NewEngine compiles the enabled categories. Core categories run in the
// order SQL, XSS, command, path traversal; when AdvancedChecks is set a
// second pass appends XXE, NoSQL, LDAP, header and template injection. A
// request containing patterns from several categories is reported under the
// first matching one only; that ordering quirk is load-bearing and kept.
func NewEngine(cfg config.ValidationConfig, logger *logrus.Logger) *Engine {
	var rules []rule
	if cfg.SQLInjectionCheck {
		rules = append(rules, rule{
			category:  CategorySQLInjection,
			reason:    "Potential SQL injection detected",
			weight:    40,
			lowercase: true,
			patterns:  sqlPatterns,
		})
	}
	if cfg.XSSCheck {
		rules = append(rules, rule{
			category:  CategoryXSS,
			reason:    "Potential XSS attack detected",
			weight:    35,
			lowercase: true,
			patterns:  xssPatterns,
		})
	}
	if cfg.CommandInjectionCheck {
		rules = append(rules, rule{
			category: CategoryCommandInjection,
			reason:   "Potential command injection detected",
			weight:   45,
			patterns: commandPatterns,
		})
	}
	if cfg.PathTraversalCheck {
		rules = append(rules, rule{
			category: CategoryPathTraversal,
			reason:   "Potential path traversal detected",
			weight:   30,
			patterns: pathTraversalPatterns,
		})
	}
	if cfg.AdvancedChecks {
		rules = append(rules,
			rule{
				category: CategoryXXE,
				reason:   "Potential XXE attack detected",
				weight:   50,
				patterns: xxePatterns,
			},
			rule{
				category: CategoryNoSQLInjection,
				reason:   "Potential NoSQL injection detected",
				weight:   45,
				patterns: nosqlPatterns,
			},
			rule{
				category: CategoryLDAPInjection,
				reason:   "Potential LDAP injection detected",
				weight:   40,
				patterns: ldapPatterns,
			},
			rule{
				category: CategoryHeaderInjection,
				reason:   "Potential header injection detected",
				weight:   50,
				patterns: headerInjectionPatterns,
			},
			rule{
				category: CategoryTemplateInjection,
				reason:   "Potential template injection detected",
				weight:   45,
				patterns: templateInjectionPatterns,
			},
		)
	}
	return &Engine{cfg: cfg, rules: rules, logger: logger}
}

// Scan checks one string field against the enabled categories in order.
// Empty inputs never match. The first matching category adds its weight to
// the context and aborts the scan.
func (e *Engine) Scan(input, field string, secCtx *types.SecurityContext) error {
	if !e.cfg.Enabled || input == "" {
		return nil
	}

	var lowered string
	for _, r := range e.rules {
		candidate := input
		if r.lowercase {
			if lowered == "" {
				lowered = strings.ToLower(input)
			}
			candidate = lowered
		}
		for _, pattern := range r.patterns {
			if pattern.MatchString(candidate) {
				secCtx.AddThreatScore(r.weight)
				if e.logger != nil {
					e.logger.WithFields(logrus.Fields{
						"category": string(r.category),
						"field":    field,
						"value":    truncate(input, 100),
					}).Warn("threat detected")
				}
				return &secerrors.InvalidInput{Reason: r.reason, Field: field}
			}
		}
	}
	return nil
}

// MatchCategory reports the first category matching the input, without
// touching any context. Used by tests and by callers that only classify.
func (e *Engine) MatchCategory(input string) (Category, bool) {
	lowered := strings.ToLower(input)
	for _, r := range e.rules {
		candidate := input
		if r.lowercase {
			candidate = lowered
		}
		for _, pattern := range r.patterns {
			if pattern.MatchString(candidate) {
				return r.category, true
			}
		}
	}
	return "", false
}

// ScanRequest validates the whole request: size limits first (bounding the
// worst-case matching cost), then the request target, every header value,
// and the query string both raw and URL-decoded once to catch mixed-encoding
// evasion. The first field/category match anywhere aborts the step.
func (e *Engine) ScanRequest(req *types.RequestContext, secCtx *types.SecurityContext) error {
	if !e.cfg.Enabled {
		return nil
	}

	if size := payloadSize(req); size > e.cfg.MaxPayloadSize {
		return &secerrors.InvalidInput{
			Reason: fmt.Sprintf("payload size %d exceeds maximum %d", size, e.cfg.MaxPayloadSize),
			Field:  "body",
		}
	}

	if err := e.Scan(req.URI(), "uri", secCtx); err != nil {
		return err
	}

	for name, values := range req.Headers {
		for _, value := range values {
			if len(value) > e.cfg.MaxHeaderSize {
				return &secerrors.InvalidInput{Reason: "header value too large", Field: name}
			}
			if err := e.Scan(value, name, secCtx); err != nil {
				return err
			}
		}
	}

	if rawQuery := req.Query.Encode(); rawQuery != "" {
		if decoded, err := url.QueryUnescape(rawQuery); err == nil {
			if err := e.Scan(decoded, "query", secCtx); err != nil {
				return err
			}
		}
		if err := e.Scan(rawQuery, "query", secCtx); err != nil {
			return err
		}
	}
	return nil
}

func payloadSize(req *types.RequestContext) int {
	if len(req.Body) > 0 {
		return len(req.Body)
	}
	if cl := req.Header("Content-Length"); cl != "" {
		if size, err := strconv.Atoi(cl); err == nil {
			return size
		}
	}
	return 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
