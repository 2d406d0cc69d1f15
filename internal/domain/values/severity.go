package values

import "fmt"

// Severity ranks an individual finding.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// BaseScore is the per-finding scoring base used by the risk scorer.
func (s Severity) BaseScore() float64 {
	switch s {
	case SeverityLow:
		return 10
	case SeverityMedium:
		return 25
	case SeverityHigh:
		return 50
	case SeverityCritical:
		return 75
	default:
		return 25
	}
}

// Escalate steps severity up one level, capped at CRITICAL.
func (s Severity) Escalate() Severity {
	if s >= SeverityCritical {
		return SeverityCritical
	}
	return s + 1
}

func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}

// RiskLevel buckets the overall 0-100 risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelForScore is the single source of truth mapping score to level.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score <= 25:
		return RiskLow
	case score <= 50:
		return RiskModerate
	case score <= 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Recommendation is the hiring guidance derived from the risk level.
type Recommendation string

const (
	RecommendProceed            Recommendation = "proceed"
	RecommendProceedWithCaution Recommendation = "proceed_with_caution"
	RecommendReviewRequired     Recommendation = "review_required"
	RecommendDoNotProceed       Recommendation = "do_not_proceed"
)

func RecommendationForLevel(level RiskLevel) Recommendation {
	switch level {
	case RiskLow:
		return RecommendProceed
	case RiskModerate:
		return RecommendProceedWithCaution
	case RiskHigh:
		return RecommendReviewRequired
	default:
		return RecommendDoNotProceed
	}
}
