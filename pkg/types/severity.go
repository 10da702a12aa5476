package types

// Severity classifies how suspicious a request is, derived from its
// accumulated threat score.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForScore maps an accumulated threat score onto a severity band.
func SeverityForScore(score uint32) Severity {
	switch {
	case score <= 20:
		return SeverityLow
	case score <= 40:
		return SeverityMedium
	case score <= 60:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
