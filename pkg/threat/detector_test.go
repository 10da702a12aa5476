package threat_test

import (
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/threat"
	"github.com/vantagesec/gatewarden/pkg/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func detectorConfig() config.ThreatDetectionConfig {
	cfg := config.Default().ThreatDetection
	cfg.Enabled = true
	cfg.BotDetection = true
	cfg.AnomalyDetection = true
	return cfg
}

func request(userAgent string) *types.RequestContext {
	headers := map[string][]string{}
	if userAgent != "" {
		headers["User-Agent"] = []string{userAgent}
	}
	return &types.RequestContext{
		Method:   "GET",
		Path:     "/",
		Query:    url.Values{},
		Headers:  headers,
		ClientIP: "203.0.113.7",
	}
}

func TestBotUserAgent(t *testing.T) {
	bots := []string{
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
		"curl/8.4.0",
		"python-requests/2.31",
		"Go-http-client/1.1",
		"axios/1.6.0",
	}
	for _, ua := range bots {
		assert.True(t, threat.BotUserAgent(ua), ua)
	}

	browsers := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Version/17.0 Safari/605.1.15",
	}
	for _, ua := range browsers {
		assert.False(t, threat.BotUserAgent(ua), ua)
	}
}

func TestAnalyzeBotIndicator(t *testing.T) {
	d := threat.NewDetector(detectorConfig(), testLogger())
	secCtx := types.NewSecurityContext("req", "203.0.113.7")

	analysis := d.Analyze(request("curl/8.4.0"), secCtx)

	assert.Equal(t, uint32(10), analysis.Indicators[threat.IndicatorBotLike])
	assert.Equal(t, uint32(10), analysis.TotalScore)
	assert.False(t, analysis.IsThreat, "bot alone stays under the threshold")
}

func TestAnalyzeAccumulatedScorePushesOverThreshold(t *testing.T) {
	d := threat.NewDetector(detectorConfig(), testLogger())
	secCtx := types.NewSecurityContext("req", "203.0.113.7")
	secCtx.AddThreatScore(45)

	analysis := d.Analyze(request("curl/8.4.0"), secCtx)

	assert.True(t, analysis.IsThreat)
	assert.Equal(t, uint32(55), analysis.TotalScore)
	assert.Equal(t, uint32(45), analysis.Indicators[threat.IndicatorHighThreatScore])
	assert.Equal(t, types.SeverityHigh, analysis.Severity)
}

func TestAnalyzeDisabledDetector(t *testing.T) {
	cfg := detectorConfig()
	cfg.Enabled = false
	d := threat.NewDetector(cfg, testLogger())

	secCtx := types.NewSecurityContext("req", "203.0.113.7")
	secCtx.AddThreatScore(90)

	analysis := d.Analyze(request("curl/8.4.0"), secCtx)
	assert.False(t, analysis.IsThreat)
	assert.Zero(t, analysis.TotalScore)
}

func TestCheckBlocksOnlyWhenConfigured(t *testing.T) {
	cfg := detectorConfig()
	cfg.BlockSuspicious = false
	advisory := threat.NewDetector(cfg, testLogger())

	secCtx := types.NewSecurityContext("req", "203.0.113.7")
	secCtx.AddThreatScore(45)
	assert.NoError(t, advisory.Check(request("curl/8.4.0"), secCtx))

	cfg.BlockSuspicious = true
	blocking := threat.NewDetector(cfg, testLogger())

	secCtx = types.NewSecurityContext("req", "203.0.113.7")
	secCtx.AddThreatScore(45)
	err := blocking.Check(request("curl/8.4.0"), secCtx)
	require.Error(t, err)

	var detected *secerrors.ThreatDetected
	require.ErrorAs(t, err, &detected)
	assert.Equal(t, "heuristic", detected.Category)
}

func TestCheckCleanRequestPasses(t *testing.T) {
	cfg := detectorConfig()
	cfg.BlockSuspicious = true
	d := threat.NewDetector(cfg, testLogger())

	secCtx := types.NewSecurityContext("req", "203.0.113.7")
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	assert.NoError(t, d.Check(request(ua), secCtx))
}
