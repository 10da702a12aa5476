package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vantagesec/gatewarden/pkg/validation"
)

func newSanitizingEngine(t *testing.T) *validation.Engine {
	t.Helper()
	cfg := fullConfig()
	cfg.SanitizeInput = true
	return validation.NewEngine(cfg, testLogger())
}

func TestSanitizeEscapesDangerousCharacters(t *testing.T) {
	engine := newSanitizingEngine(t)

	assert.Equal(t, "&lt;script&gt;", engine.Sanitize("<script>"))
	assert.Equal(t, "a &amp; b", engine.Sanitize("a & b"))
	assert.Equal(t, "&quot;quoted&quot;", engine.Sanitize(`"quoted"`))
	assert.Equal(t, "it&#x27;s", engine.Sanitize("it's"))
}

func TestSanitizeDropsNullBytes(t *testing.T) {
	engine := newSanitizingEngine(t)
	assert.Equal(t, "ab", engine.Sanitize("a\x00b"))
}

func TestSanitizeIdempotent(t *testing.T) {
	engine := newSanitizingEngine(t)

	inputs := []string{
		"<script>alert('x & y')</script>",
		"plain text",
		"already &amp; escaped",
		"&lt;div&gt;",
		`mixed <b>"bold"</b> & 'quotes'`,
		"&unknown; entity",
		"",
	}
	for _, input := range inputs {
		once := engine.Sanitize(input)
		twice := engine.Sanitize(once)
		assert.Equal(t, once, twice, "sanitize not idempotent for %q", input)
	}
}

func TestSanitizeDisabledPassthrough(t *testing.T) {
	cfg := fullConfig()
	cfg.SanitizeInput = false
	engine := validation.NewEngine(cfg, testLogger())

	assert.Equal(t, "<script>", engine.Sanitize("<script>"))
}

func TestSanitizeHasNoScoringSideEffect(t *testing.T) {
	engine := newSanitizingEngine(t)
	secCtx := newContext()

	engine.Sanitize("<script>alert(1)</script>")
	assert.Zero(t, secCtx.ThreatScore)
}
