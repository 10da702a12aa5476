// Package threat aggregates the heuristic signals that do not belong to any
// single validation category: bot-like user agents and an elevated
// accumulated threat score. The analysis is advisory unless the
// configuration asks for suspicious traffic to be blocked.
package threat

import (
	"strings"

	"github.com/avct/uasurfer"
	"github.com/sirupsen/logrus"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// blockThreshold is the indicator total above which an analysis is
// considered an active threat.
const blockThreshold = 30

// botSubstrings marks the automation clients recognized by substring alone,
// supplementing the structural user-agent parse.
var botSubstrings = []string{
	"bot", "crawler", "spider", "scraper", "curl", "wget",
	"python", "java", "go-http-client", "axios", "node-fetch",
}

// Indicator names one heuristic signal contributing to an analysis.
type Indicator string

const (
	IndicatorBotLike         Indicator = "bot_like"
	IndicatorHighThreatScore Indicator = "high_threat_score"
)

// Analysis is the outcome of one detector pass.
type Analysis struct {
	IsThreat   bool
	Severity   types.Severity
	Indicators map[Indicator]uint32
	TotalScore uint32
}

func newAnalysis() Analysis {
	return Analysis{Severity: types.SeverityLow, Indicators: make(map[Indicator]uint32)}
}

func (a *Analysis) addIndicator(indicator Indicator, score uint32) {
	a.Indicators[indicator] += score
	a.TotalScore += score
	if a.TotalScore > blockThreshold {
		a.IsThreat = true
	}
}

type Detector struct {
	cfg    config.ThreatDetectionConfig
	logger *logrus.Logger
}

func NewDetector(cfg config.ThreatDetectionConfig, logger *logrus.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// Analyze runs the enabled heuristics over the request and the threat score
// accumulated so far. A disabled detector reports a safe analysis.
func (d *Detector) Analyze(req *types.RequestContext, secCtx *types.SecurityContext) Analysis {
	analysis := newAnalysis()
	if !d.cfg.Enabled {
		return analysis
	}

	if d.cfg.BotDetection {
		if ua := req.UserAgent(); ua != "" && BotUserAgent(ua) {
			analysis.addIndicator(IndicatorBotLike, 10)
		}
	}

	if d.cfg.AnomalyDetection && secCtx.ThreatScore > 0 {
		analysis.addIndicator(IndicatorHighThreatScore, secCtx.ThreatScore)
		analysis.Severity = types.SeverityForScore(secCtx.ThreatScore)
	}

	if analysis.IsThreat && d.logger != nil {
		d.logger.WithFields(logrus.Fields{
			"request_id":  secCtx.RequestID,
			"client_ip":   secCtx.ClientIP,
			"total_score": analysis.TotalScore,
			"severity":    string(analysis.Severity),
		}).Warn("suspicious request detected")
	}
	return analysis
}

// Check runs Analyze and converts an active threat into a rejection when
// blocking is configured. Otherwise the analysis only informs the score.
func (d *Detector) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	analysis := d.Analyze(req, secCtx)
	if analysis.IsThreat && d.cfg.BlockSuspicious {
		return &secerrors.ThreatDetected{
			Category: "heuristic",
			Severity: analysis.Severity,
		}
	}
	return nil
}

// BotUserAgent reports whether the user agent looks automated, combining a
// structural parse with the known automation substrings.
func BotUserAgent(userAgent string) bool {
	if uasurfer.Parse(userAgent).IsBot() {
		return true
	}
	lower := strings.ToLower(userAgent)
	for _, pattern := range botSubstrings {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
