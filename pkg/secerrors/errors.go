// Package secerrors defines the security error taxonomy shared by every
// pipeline stage. Each kind is a distinct type so callers can match with
// errors.As and map rejections onto transport-appropriate responses without
// parsing messages.
package secerrors

import (
	"fmt"

	"github.com/vantagesec/gatewarden/pkg/types"
)

// Kind identifies a taxonomy entry independent of the message text.
type Kind string

const (
	KindRateLimitExceeded  Kind = "RATE_LIMIT_EXCEEDED"
	KindAuthentication     Kind = "AUTH_FAILED"
	KindAuthorization      Kind = "FORBIDDEN"
	KindInvalidInput       Kind = "BAD_REQUEST"
	KindThreatDetected     Kind = "THREAT_DETECTED"
	KindCorsViolation      Kind = "CORS_VIOLATION"
	KindCsrfViolation      Kind = "CSRF_FAILED"
	KindHttpsRequired      Kind = "HTTPS_REQUIRED"
	KindTransportViolation Kind = "TRANSPORT_VIOLATION"
	KindIpBlocked          Kind = "IP_BLOCKED"
	KindVpnDetected        Kind = "VPN_DETECTED"
	KindProxyDetected      Kind = "PROXY_DETECTED"
	KindRequestTimeout     Kind = "REQUEST_TIMEOUT"
	KindConnectionTimeout  Kind = "CONNECTION_TIMEOUT"
	KindReplayDetected     Kind = "REPLAY_DETECTED"
	KindConfiguration      Kind = "CONFIGURATION_ERROR"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// SecurityError is implemented by every error in the taxonomy.
type SecurityError interface {
	error
	Kind() Kind
}

// RateLimitExceeded is returned when a key's token bucket is empty.
// RetryAfter is the minimum whole-second delay until a token is available.
type RateLimitExceeded struct {
	RetryAfter int64
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %d seconds", e.RetryAfter)
}
func (e *RateLimitExceeded) Kind() Kind { return KindRateLimitExceeded }

type AuthenticationFailed struct {
	Reason string
}

func (e *AuthenticationFailed) Error() string {
	return "authentication failed: " + e.Reason
}
func (e *AuthenticationFailed) Kind() Kind { return KindAuthentication }

type AuthorizationFailed struct {
	Reason string
}

func (e *AuthorizationFailed) Error() string {
	return "authorization failed: " + e.Reason
}
func (e *AuthorizationFailed) Kind() Kind { return KindAuthorization }

// InvalidInput covers both constraint failures (oversized fields, bad
// methods) and pattern-based detections. Field names the request part that
// triggered the rejection.
type InvalidInput struct {
	Reason string
	Field  string
}

func (e *InvalidInput) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid input in %s: %s", e.Field, e.Reason)
	}
	return "invalid input: " + e.Reason
}
func (e *InvalidInput) Kind() Kind { return KindInvalidInput }

type ThreatDetected struct {
	Category string
	Severity types.Severity
}

func (e *ThreatDetected) Error() string {
	return fmt.Sprintf("threat detected: %s (%s)", e.Category, e.Severity)
}
func (e *ThreatDetected) Kind() Kind { return KindThreatDetected }

type CorsViolation struct {
	Reason string
}

func (e *CorsViolation) Error() string { return "cors violation: " + e.Reason }
func (e *CorsViolation) Kind() Kind    { return KindCorsViolation }

type CsrfViolation struct {
	Reason string
}

func (e *CsrfViolation) Error() string { return "csrf violation: " + e.Reason }
func (e *CsrfViolation) Kind() Kind    { return KindCsrfViolation }

type HttpsRequired struct{}

func (e *HttpsRequired) Error() string { return "https connection required" }
func (e *HttpsRequired) Kind() Kind    { return KindHttpsRequired }

type TransportPolicyViolation struct {
	Reason string
}

func (e *TransportPolicyViolation) Error() string {
	return "transport policy violation: " + e.Reason
}
func (e *TransportPolicyViolation) Kind() Kind { return KindTransportViolation }

type IpBlocked struct {
	Reason string
}

func (e *IpBlocked) Error() string { return "ip blocked: " + e.Reason }
func (e *IpBlocked) Kind() Kind    { return KindIpBlocked }

type VpnDetected struct {
	Reason string
}

func (e *VpnDetected) Error() string { return "vpn detected: " + e.Reason }
func (e *VpnDetected) Kind() Kind    { return KindVpnDetected }

type ProxyDetected struct {
	Reason string
}

func (e *ProxyDetected) Error() string { return "proxy detected: " + e.Reason }
func (e *ProxyDetected) Kind() Kind    { return KindProxyDetected }

type RequestTimeout struct {
	Reason string
}

func (e *RequestTimeout) Error() string { return "request timeout: " + e.Reason }
func (e *RequestTimeout) Kind() Kind    { return KindRequestTimeout }

type ConnectionTimeout struct {
	Reason string
}

func (e *ConnectionTimeout) Error() string { return "connection timeout: " + e.Reason }
func (e *ConnectionTimeout) Kind() Kind    { return KindConnectionTimeout }

type ReplayDetected struct {
	Reason string
}

func (e *ReplayDetected) Error() string { return "replay detected: " + e.Reason }
func (e *ReplayDetected) Kind() Kind    { return KindReplayDetected }

// ConfigurationError is the only kind raised before any request is processed.
// It is fatal to pipeline construction.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Reason }
func (e *ConfigurationError) Kind() Kind    { return KindConfiguration }

// InternalError indicates a collaborator malfunction (token codec, store).
// Its message is sanitized before it ever reaches a caller-visible surface.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string { return "internal error: " + e.Reason }
func (e *InternalError) Kind() Kind    { return KindInternal }

// KindOf extracts the taxonomy kind from an arbitrary error, falling back to
// KindInternal for errors that are not part of the taxonomy.
func KindOf(err error) Kind {
	var se SecurityError
	if ok := asSecurityError(err, &se); ok {
		return se.Kind()
	}
	return KindInternal
}

func asSecurityError(err error, target *SecurityError) bool {
	for err != nil {
		if se, ok := err.(SecurityError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
