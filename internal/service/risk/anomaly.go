package risk

import (
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
)

// DeceptionBand buckets the deception score for reporting.
type DeceptionBand string

const (
	DeceptionNone     DeceptionBand = "none"
	DeceptionLow      DeceptionBand = "low"
	DeceptionModerate DeceptionBand = "moderate"
	DeceptionHigh     DeceptionBand = "high"
	DeceptionCritical DeceptionBand = "critical"
)

// BandForScore maps a deception score onto its band.
func BandForScore(score float64) DeceptionBand {
	switch {
	case score < 0.1:
		return DeceptionNone
	case score < 0.3:
		return DeceptionLow
	case score < 0.5:
		return DeceptionModerate
	case score < 0.75:
		return DeceptionHigh
	default:
		return DeceptionCritical
	}
}

// DeceptionAssessment is the anomaly detector's verdict on whether the
// subject is actively shaping their record.
type DeceptionAssessment struct {
	Score       float64       `json:"score"`
	Band        DeceptionBand `json:"band"`
	Indicators  []string      `json:"indicators,omitempty"`
	Directional bool          `json:"directional"`
	CrossDomain bool          `json:"cross_domain"`
	Systematic  bool          `json:"systematic"`
}

// Per-kind contribution to the base deception score. Identity mismatches and
// impossible timelines dominate; minor date drift barely registers.
var inconsistencyWeights = map[investigation.InconsistencyKind]float64{
	investigation.InconsistencyIdentityMismatch:    0.30,
	investigation.InconsistencyTimelineImpossible:  0.25,
	investigation.InconsistencyCredentialInflation: 0.20,
	investigation.InconsistencyEmploymentGapHidden: 0.15,
	investigation.InconsistencyDateMinor:           0.05,
}

const (
	directionalMultiplier = 1.20
	crossDomainMultiplier = 1.15
	systematicMultiplier  = 1.25

	crossDomainMinTypes = 3
	systematicMinCount  = 4
	systematicKindMin   = 3
)

// AnomalyDetector scores deception from accumulated inconsistencies and the
// hidden-omission class of findings.
type AnomalyDetector struct{}

func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{}
}

func (d *AnomalyDetector) Assess(inconsistencies []investigation.Inconsistency, findings []*investigation.Finding) DeceptionAssessment {
	var a DeceptionAssessment

	var base float64
	directional := 0
	infoTypes := make(map[investigation.InformationType]bool)
	kindCounts := make(map[investigation.InconsistencyKind]int)
	for _, inc := range inconsistencies {
		base += inconsistencyWeights[inc.Kind]
		kindCounts[inc.Kind]++
		infoTypes[inc.InfoType] = true
		if inc.Directional {
			directional++
		}
	}

	// Deception-class findings count even without a recorded contradiction.
	for _, f := range findings {
		if f.SubCategory == SubBehavioralDeception {
			base += 0.15
			a.Indicators = append(a.Indicators, "deception finding: "+f.Summary)
		}
	}

	for kind, n := range kindCounts {
		if n > 0 {
			a.Indicators = append(a.Indicators, string(kind))
		}
	}

	if base > 1 {
		base = 1
	}
	score := base

	if len(inconsistencies) > 0 && directional*2 > len(inconsistencies) {
		a.Directional = true
		score *= directionalMultiplier
	}
	if len(infoTypes) >= crossDomainMinTypes {
		a.CrossDomain = true
		score *= crossDomainMultiplier
	}
	if len(inconsistencies) >= systematicMinCount || maxKindCount(kindCounts) >= systematicKindMin {
		a.Systematic = true
		score *= systematicMultiplier
	}

	if score > 1 {
		score = 1
	}
	a.Score = score
	a.Band = BandForScore(score)
	return a
}

func maxKindCount(counts map[investigation.InconsistencyKind]int) int {
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	return max
}
