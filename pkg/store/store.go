// Package store persists records of blocked requests for later forensics.
// Three implementations are provided: an in-memory ring for tests and
// single-instance use, a Redis list for shared short-term retention, and a
// Postgres table for durable storage.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vantagesec/gatewarden/pkg/types"
)

// BlockedRequest is the record written whenever the pipeline rejects a
// request.
type BlockedRequest struct {
	ID          string            `json:"id" gorm:"primaryKey"`
	Timestamp   time.Time         `json:"timestamp" gorm:"index"`
	ClientIP    string            `json:"client_ip" gorm:"index"`
	UserAgent   string            `json:"user_agent"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers" gorm:"serializer:json"`
	Payload     string            `json:"payload,omitempty"`
	ThreatScore uint32            `json:"threat_score"`
	BlockReason string            `json:"block_reason"`
	Severity    types.Severity    `json:"severity"`
	UserID      string            `json:"user_id,omitempty"`
	RequestSize int               `json:"request_size"`
}

// NewBlockedRequest assembles a record from the rejected request, the
// security context at rejection time and the blocking error.
func NewBlockedRequest(req *types.RequestContext, secCtx *types.SecurityContext, blockErr error) BlockedRequest {
	headers := make(map[string]string, len(req.Headers))
	size := len(req.Body)
	for name, values := range req.Headers {
		if len(values) > 0 {
			headers[name] = values[0]
		}
		for _, v := range values {
			size += len(name) + len(v)
		}
	}

	userAgent := req.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}

	return BlockedRequest{
		ID:          secCtx.RequestID,
		Timestamp:   time.Now().UTC(),
		ClientIP:    secCtx.ClientIP,
		UserAgent:   userAgent,
		Method:      req.Method,
		URL:         req.URI(),
		Headers:     headers,
		Payload:     string(req.Body),
		ThreatScore: secCtx.ThreatScore,
		BlockReason: blockErr.Error(),
		Severity:    types.SeverityForScore(secCtx.ThreatScore),
		UserID:      secCtx.UserID,
		RequestSize: size,
	}
}

// Stats aggregates the retained records.
type Stats struct {
	TotalBlocked int            `json:"total_blocked"`
	ByReason     map[string]int `json:"by_reason"`
	ByIP         map[string]int `json:"by_ip"`
	BySeverity   map[string]int `json:"by_severity"`
}

// Store is the persistence surface the pipeline's recorder writes to.
type Store interface {
	Append(ctx context.Context, record BlockedRequest) error
	List(ctx context.Context, offset, limit int) ([]BlockedRequest, int, error)
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
}

func statsOf(records []BlockedRequest) Stats {
	stats := Stats{
		TotalBlocked: len(records),
		ByReason:     make(map[string]int),
		ByIP:         make(map[string]int),
		BySeverity:   make(map[string]int),
	}
	for _, r := range records {
		stats.ByReason[r.BlockReason]++
		stats.ByIP[r.ClientIP]++
		stats.BySeverity[string(r.Severity)]++
	}
	return stats
}

func marshalRecord(record BlockedRequest) ([]byte, error) {
	return json.Marshal(record)
}

func unmarshalRecord(data []byte) (BlockedRequest, error) {
	var record BlockedRequest
	err := json.Unmarshal(data, &record)
	return record, err
}
