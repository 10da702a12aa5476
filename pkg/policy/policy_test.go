package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/policy"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
)

func TestTransportRequiresHTTPS(t *testing.T) {
	p := policy.NewTransportPolicy(config.Default().HTTPS)

	plain := request("GET", nil)
	plain.Scheme = "http"
	err := p.Check(plain, newContext())

	var https *secerrors.HttpsRequired
	assert.ErrorAs(t, err, &https)
}

func TestTransportProxyHeadersMarkSecure(t *testing.T) {
	p := policy.NewTransportPolicy(config.Default().HTTPS)

	cases := []map[string]string{
		{"X-Forwarded-Proto": "https"},
		{"CF-Visitor": `{"scheme":"https"}`},
		{"Front-End-Https": "on"},
	}
	for _, headers := range cases {
		req := request("GET", headers)
		req.Scheme = "http"
		assert.NoError(t, p.Check(req, newContext()), "headers: %v", headers)
	}
}

func TestTransportHSTSHeader(t *testing.T) {
	p := policy.NewTransportPolicy(config.Default().HTTPS)
	header := p.HSTSHeader()

	assert.Contains(t, header, "max-age=31536000")
	assert.Contains(t, header, "includeSubDomains")
	assert.Contains(t, header, "preload")
}

func TestContentTypeAllowed(t *testing.T) {
	p := policy.NewContentTypePolicy(config.Default().ContentType)

	ok := request("POST", map[string]string{"Content-Type": "application/json; charset=utf-8"})
	assert.NoError(t, p.Check(ok, newContext()))
}

func TestContentTypeDisallowed(t *testing.T) {
	p := policy.NewContentTypePolicy(config.Default().ContentType)

	secCtx := newContext()
	bad := request("POST", map[string]string{"Content-Type": "application/octet-stream"})
	err := p.Check(bad, secCtx)
	require.Error(t, err)
	assert.Equal(t, uint32(25), secCtx.ThreatScore)
}

func TestContentTypeMalformed(t *testing.T) {
	p := policy.NewContentTypePolicy(config.Default().ContentType)

	bad := request("POST", map[string]string{"Content-Type": "notamimetype"})
	assert.Error(t, p.Check(bad, newContext()))
}

func TestContentTypeBadCharset(t *testing.T) {
	p := policy.NewContentTypePolicy(config.Default().ContentType)

	bad := request("POST", map[string]string{"Content-Type": "application/json; charset=utf-7"})
	err := p.Check(bad, newContext())

	var invalid *secerrors.InvalidInput
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "content-type-charset", invalid.Field)
}

func TestContentTypeMissingStrictVsLenient(t *testing.T) {
	lenient := policy.NewContentTypePolicy(config.Default().ContentType)
	assert.NoError(t, lenient.Check(request("POST", nil), newContext()))

	cfg := config.Default().ContentType
	cfg.StrictMode = true
	strict := policy.NewContentTypePolicy(cfg)
	assert.Error(t, strict.Check(request("POST", nil), newContext()))
}

func TestContentTypeGetIgnored(t *testing.T) {
	p := policy.NewContentTypePolicy(config.Default().ContentType)
	req := request("GET", map[string]string{"Content-Type": "application/octet-stream"})
	assert.NoError(t, p.Check(req, newContext()))
}

func TestIPReputationBlacklist(t *testing.T) {
	cfg := config.Default().IPReputation
	cfg.BlacklistedIPs = []string{"203.0.113.7"}
	p := policy.NewIPReputationPolicy(cfg)

	secCtx := newContext()
	err := p.Check(request("GET", nil), secCtx)
	require.Error(t, err)

	var blocked *secerrors.IpBlocked
	assert.ErrorAs(t, err, &blocked)
	assert.Equal(t, uint32(80), secCtx.ThreatScore)
}

func TestIPReputationWhitelistBypassesHeuristics(t *testing.T) {
	cfg := config.Default().IPReputation
	cfg.WhitelistedIPs = []string{"203.0.113.7"}
	p := policy.NewIPReputationPolicy(cfg)

	// Proxy indicator present but whitelist short-circuits.
	req := request("GET", map[string]string{"Via": "1.1 relay"})
	assert.NoError(t, p.Check(req, newContext()))
}

func TestIPReputationProxyHeaderRejected(t *testing.T) {
	p := policy.NewIPReputationPolicy(config.Default().IPReputation)

	secCtx := newContext()
	req := request("GET", map[string]string{"Via": "1.1 relay"})
	err := p.Check(req, secCtx)

	var proxy *secerrors.ProxyDetected
	require.ErrorAs(t, err, &proxy)
	assert.Equal(t, uint32(20), secCtx.ThreatScore)
}

func TestIPReputationForwardedChainRejected(t *testing.T) {
	p := policy.NewIPReputationPolicy(config.Default().IPReputation)

	secCtx := newContext()
	req := request("GET", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2, 10.0.0.3"})
	err := p.Check(req, secCtx)

	var vpn *secerrors.VpnDetected
	require.ErrorAs(t, err, &vpn)
	assert.Equal(t, uint32(25), secCtx.ThreatScore)
}

func TestIPReputationSingleForwardHopAllowed(t *testing.T) {
	p := policy.NewIPReputationPolicy(config.Default().IPReputation)
	req := request("GET", map[string]string{"X-Forwarded-For": "10.0.0.1"})
	assert.NoError(t, p.Check(req, newContext()))
}

func TestIPReputationAllowFlags(t *testing.T) {
	cfg := config.Default().IPReputation
	cfg.AllowVPN = true
	cfg.AllowProxy = true
	p := policy.NewIPReputationPolicy(cfg)

	req := request("GET", map[string]string{
		"X-Forwarded-For": "10.0.0.1, 10.0.0.2, 10.0.0.3",
		"Via":             "1.1 relay",
	})
	assert.NoError(t, p.Check(req, newContext()))
}

func TestConstraintsURILength(t *testing.T) {
	cfg := config.Default().Constraints
	cfg.MaxURILength = 10
	p := policy.NewConstraintsPolicy(cfg)

	secCtx := newContext()
	req := request("GET", nil)
	req.Path = "/a/very/long/path/that/overflows"
	err := p.Check(req, secCtx)

	var invalid *secerrors.InvalidInput
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "uri", invalid.Field)
	assert.Equal(t, uint32(30), secCtx.ThreatScore)
}

func TestConstraintsMissingMethod(t *testing.T) {
	p := policy.NewConstraintsPolicy(config.Default().Constraints)
	req := request("", nil)
	assert.Error(t, p.Check(req, newContext()))
}

func TestConstraintsAncientProtocol(t *testing.T) {
	p := policy.NewConstraintsPolicy(config.Default().Constraints)

	secCtx := newContext()
	req := request("GET", nil)
	req.Proto = "HTTP/0.9"
	err := p.Check(req, secCtx)
	require.Error(t, err)
	assert.Equal(t, uint32(40), secCtx.ThreatScore)
}

func TestConstraintsTimeBudgets(t *testing.T) {
	p := policy.NewConstraintsPolicy(config.Default().Constraints)

	assert.NoError(t, p.CheckRequestTime(time.Second))
	var reqTimeout *secerrors.RequestTimeout
	assert.ErrorAs(t, p.CheckRequestTime(time.Minute), &reqTimeout)

	assert.NoError(t, p.CheckConnectionTime(time.Minute))
	var connTimeout *secerrors.ConnectionTimeout
	assert.ErrorAs(t, p.CheckConnectionTime(time.Hour), &connTimeout)
}

func TestMethodPolicy(t *testing.T) {
	p := policy.NewMethodPolicy()

	assert.NoError(t, p.Check(request("GET", nil), newContext()))
	assert.True(t, p.Allowed("post"))

	err := p.Check(request("BREW", nil), newContext())
	assert.Error(t, err)
}

func TestMethodPolicyRestricted(t *testing.T) {
	p := policy.NewMethodPolicy("GET", "POST")

	assert.NoError(t, p.Check(request("POST", nil), newContext()))
	assert.Error(t, p.Check(request("DELETE", nil), newContext()))
}

func TestCookiePolicyRequestValidation(t *testing.T) {
	p := policy.NewCookiePolicy()

	ok := request("GET", map[string]string{"Cookie": "sid=abc123; theme=dark"})
	assert.NoError(t, p.Check(ok, newContext()))

	injected := request("GET", map[string]string{"Cookie": "sid=<script>x</script>"})
	assert.Error(t, p.Check(injected, newContext()))
}

func TestCookiePolicyAuditSetCookie(t *testing.T) {
	p := policy.NewCookiePolicy()

	good := []string{"sid=abc; Path=/; SameSite=Strict; Secure; HttpOnly"}
	assert.NoError(t, p.AuditSetCookie(good, newContext()))

	missing := []string{"sid=abc; Path=/"}
	assert.Error(t, p.AuditSetCookie(missing, newContext()))

	noneInsecure := []string{"sid=abc; SameSite=None; HttpOnly"}
	assert.Error(t, p.AuditSetCookie(noneInsecure, newContext()))
}

func TestSecurityHeaderHelpers(t *testing.T) {
	headers := policy.SecurityHeaders()
	assert.Equal(t, "DENY", headers["X-Frame-Options"])
	assert.Equal(t, "nosniff", headers["X-Content-Type-Options"])
	assert.Contains(t, headers["Content-Security-Policy"], "default-src 'self'")

	assert.True(t, policy.ValidHeaderName("X-Custom-Header"))
	assert.False(t, policy.ValidHeaderName("Bad\nHeader"))
	assert.True(t, policy.ValidHeaderValue("safe"))
	assert.False(t, policy.ValidHeaderValue("evil\r\nInjected: yes"))
	assert.Equal(t, "ab", policy.SanitizeHeaderValue("a\r\nb"))
}
