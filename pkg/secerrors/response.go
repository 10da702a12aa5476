package secerrors

import (
	"net/http"
	"regexp"
	"time"
)

// SafeResponse is the caller-visible shape of a rejection. It deliberately
// carries a generic message per kind; the detailed reason stays with the
// observer and the blocked-request record.
type SafeResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
	Details   string `json:"details,omitempty"`
}

// detailExposureThreshold is the score above which even authenticated
// callers only receive the generic message.
const detailExposureThreshold = 50

// ShouldExposeDetails gates the optional Details field: only authenticated,
// low-threat callers get the human-readable hint.
func ShouldExposeDetails(threatScore uint32, authenticated bool) bool {
	return authenticated && threatScore < detailExposureThreshold
}

// StatusCode maps a taxonomy kind onto an HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization, KindThreatDetected, KindCsrfViolation,
		KindCorsViolation, KindIpBlocked, KindVpnDetected, KindProxyDetected:
		return http.StatusForbidden
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindHttpsRequired, KindTransportViolation:
		return http.StatusUpgradeRequired
	case KindRequestTimeout:
		return http.StatusRequestTimeout
	case KindConnectionTimeout:
		return http.StatusRequestTimeout
	case KindReplayDetected:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var genericMessages = map[Kind][2]string{
	KindRateLimitExceeded:  {"Rate limit exceeded", "Too many requests. Please try again later."},
	KindAuthentication:     {"Authentication failed", "Invalid or missing authentication credentials."},
	KindAuthorization:      {"Forbidden", "You do not have permission to access this resource."},
	KindInvalidInput:       {"Bad request", "The request contains invalid data."},
	KindThreatDetected:     {"Request blocked", "Your request was blocked due to suspicious activity."},
	KindCorsViolation:      {"CORS policy violation", "This request does not meet the CORS policy requirements."},
	KindCsrfViolation:      {"CSRF validation failed", "CSRF token validation failed."},
	KindHttpsRequired:      {"HTTPS required", "This endpoint requires a secure HTTPS connection."},
	KindTransportViolation: {"Transport policy violation", "The request does not meet security requirements."},
	KindIpBlocked:          {"Access denied", "Your IP address does not have access to this resource."},
	KindVpnDetected:        {"Access denied", "VPN access is not allowed."},
	KindProxyDetected:      {"Access denied", "Proxy access is not allowed."},
	KindRequestTimeout:     {"Request timeout", "Your request exceeded the maximum allowed time."},
	KindConnectionTimeout:  {"Connection timeout", "Your connection exceeded the maximum allowed time."},
	KindReplayDetected:     {"Replay attack detected", "Your request appears to be a replay of a previous request."},
}

// NewSafeResponse builds the non-disclosing client payload for a rejection.
// Details are only filled in when includeDetails is true; ConfigurationError
// and InternalError never expose details.
func NewSafeResponse(err error, requestID string, includeDetails bool) SafeResponse {
	kind := KindOf(err)
	msg, details := "Internal server error", ""
	if entry, ok := genericMessages[kind]; ok {
		msg = entry[0]
		if includeDetails {
			details = entry[1]
		}
	} else {
		kind = KindInternal
	}
	return SafeResponse{
		Error:     msg,
		Code:      string(kind),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
		Details:   details,
	}
}

var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[a-z]:/[^/\s]*`),
	regexp.MustCompile(`/(?:home|Users|user|usr|var|etc|root|opt)/[^\s]*`),
	regexp.MustCompile(`(?i)\b(?:home|Users|user|usr|var|etc|root|opt)\b`),
}

// SanitizeMessage strips absolute paths and well-known sensitive directory
// names from a message before it is surfaced outside trusted logging.
func SanitizeMessage(message string) string {
	sanitized := message
	for i := 0; i < len(sanitized); i++ {
		if sanitized[i] == '\\' {
			sanitized = sanitized[:i] + "/" + sanitized[i+1:]
		}
	}
	for _, pattern := range sanitizePatterns {
		sanitized = pattern.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}
