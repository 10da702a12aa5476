package types

import (
	"net/url"
	"strings"
)

// RequestContext is the narrow, transport-agnostic view of an inbound request
// that the pipeline consumes. Adapters build it from whatever transport
// library is in use (net/http, fiber); the pipeline itself only ever reads
// method, path, query, headers and the optional body.
type RequestContext struct {
	Method   string
	Path     string
	Query    url.Values
	Headers  map[string][]string
	Body     []byte
	Scheme   string
	Proto    string
	ClientIP string
}

// Header returns the first value for the given header, case-insensitively.
func (r *RequestContext) Header(name string) string {
	if vals, ok := r.Headers[name]; ok && len(vals) > 0 {
		return vals[0]
	}
	for key, vals := range r.Headers {
		if strings.EqualFold(key, name) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// HasHeader reports whether the header is present, case-insensitively.
func (r *RequestContext) HasHeader(name string) bool {
	if _, ok := r.Headers[name]; ok {
		return true
	}
	for key := range r.Headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// URI reconstructs path plus encoded query, the form the validation and
// constraint stages inspect.
func (r *RequestContext) URI() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// UserAgent is a convenience accessor used by bot detection and the
// blocked-request record.
func (r *RequestContext) UserAgent() string {
	return r.Header("User-Agent")
}
