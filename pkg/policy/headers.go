package policy

import "strings"

// SecurityHeaders returns the recommended hardening headers for responses.
// The HSTS header is produced separately by TransportPolicy since it depends
// on configuration.
func SecurityHeaders() map[string]string {
	return map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
		"Permissions-Policy": "geolocation=(), microphone=(), camera=(), payment=(), usb=(), " +
			"magnetometer=(), gyroscope=(), accelerometer=()",
		"Content-Security-Policy": ContentSecurityPolicy(false),
		"Cache-Control":           "no-store, no-cache, must-revalidate, max-age=0, private",
		"Pragma":                  "no-cache",
		"Expires":                 "0",
		"X-Permitted-Cross-Domain-Policies": "none",
	}
}

// ContentSecurityPolicy builds the CSP value; allowExternal relaxes the
// script and style sources to any https origin.
func ContentSecurityPolicy(allowExternal bool) string {
	if allowExternal {
		return "default-src 'self'; script-src 'self' 'unsafe-inline' https:; " +
			"style-src 'self' 'unsafe-inline' https:; img-src 'self' data: https:; " +
			"font-src 'self' https:; connect-src 'self' https:; frame-ancestors 'none'; " +
			"base-uri 'self'; form-action 'self'"
	}
	return "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; font-src 'self'; connect-src 'self'; frame-ancestors 'none'; " +
		"base-uri 'self'; form-action 'self'"
}

// ValidHeaderName reports whether the name is safe to emit, per RFC 7230.
func ValidHeaderName(name string) bool {
	if name == "" || len(name) > 256 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
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

// ValidHeaderValue reports whether the value is free of CRLF injection.
func ValidHeaderValue(value string) bool {
	return !strings.ContainsAny(value, "\r\n\x00")
}

// SanitizeHeaderValue strips the characters that enable header injection.
func SanitizeHeaderValue(value string) string {
	if ValidHeaderValue(value) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\r', '\n', 0:
		default:
			b.WriteByte(value[i])
		}
	}
	return b.String()
}
