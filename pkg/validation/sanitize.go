package validation

import "strings"

// entities the escaper emits; an ampersand already starting one of these is
// left alone so that re-sanitizing produces identical output.
var knownEntities = []string{"amp;", "lt;", "gt;", "quot;", "#x27;"}

// Sanitize strips null bytes and HTML-escapes the dangerous characters.
// It is a pure function with no scoring side effect and is idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x). When sanitization is disabled in the
// configuration the input passes through unchanged.
func (e *Engine) Sanitize(input string) string {
	if !e.cfg.SanitizeInput {
		return input
	}
	return sanitize(input)
}

func sanitize(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch c {
		case 0:
			// drop null bytes
		case '&':
			if startsEntity(input[i+1:]) {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#x27;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func startsEntity(rest string) bool {
	for _, entity := range knownEntities {
		if strings.HasPrefix(rest, entity) {
			return true
		}
	}
	return false
}
