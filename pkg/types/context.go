package types

import (
	"time"
)

// SecurityContext carries the per-request security state accumulated while a
// request moves through the pipeline. One instance is created at pipeline
// entry, mutated by the stages, and returned to the caller (or handed to the
// observer together with the blocking error). It is owned exclusively by the
// request's call stack and must never be shared across requests.
type SecurityContext struct {
	RequestID   string
	ClientIP    string
	UserID      string
	ThreatScore uint32
	Metadata    map[string]string
	StartedAt   time.Time
}

func NewSecurityContext(requestID, clientIP string) *SecurityContext {
	return &SecurityContext{
		RequestID: requestID,
		ClientIP:  clientIP,
		Metadata:  make(map[string]string),
		StartedAt: time.Now(),
	}
}

// AddThreatScore increases the accumulated threat score. The score is
// monotonically non-decreasing for the lifetime of a request; there is no way
// to lower or reset it.
func (c *SecurityContext) AddThreatScore(points uint32) {
	c.ThreatScore += points
}

// SetUser records the authenticated user identifier once authentication
// resolves an identity.
func (c *SecurityContext) SetUser(userID string) {
	c.UserID = userID
}

func (c *SecurityContext) SetMetadata(key, value string) {
	c.Metadata[key] = value
}

// IsAuthenticated reports whether an identity was resolved for this request.
func (c *SecurityContext) IsAuthenticated() bool {
	return c.UserID != ""
}

// Elapsed returns the wall-clock time since the context was created.
func (c *SecurityContext) Elapsed() time.Duration {
	return time.Since(c.StartedAt)
}

// Severity classifies the accumulated threat score.
func (c *SecurityContext) Severity() Severity {
	return SeverityForScore(c.ThreatScore)
}
