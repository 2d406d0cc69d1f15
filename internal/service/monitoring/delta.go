package monitoring

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/service/screening"
)

// connectionRiskThreshold is the propagated-risk change below which network
// movement is noise, not a delta.
const connectionRiskThreshold = 0.2

// DeltaDetector diffs consecutive profile versions of a monitored subject.
type DeltaDetector struct {
	logger *zap.Logger
}

func NewDeltaDetector(logger *zap.Logger) *DeltaDetector {
	return &DeltaDetector{logger: logger}
}

// Compare diffs previous against current. Findings match on their stable
// shape (category, sub-category, summary); IDs are minted per screening and
// never comparable across versions.
func (d *DeltaDetector) Compare(subject *monitoring.Subject, previous, current *entity.Profile) (*monitoring.DeltaReport, error) {
	prev, err := decodeProfile(previous)
	if err != nil {
		return nil, err
	}
	curr, err := decodeProfile(current)
	if err != nil {
		return nil, err
	}

	report := &monitoring.DeltaReport{
		SubjectID:     subject.ID,
		PreviousScore: previous.RiskScore,
		CurrentScore:  current.RiskScore,
	}

	prevByKey := indexFindings(prev.Findings)
	currByKey := indexFindings(curr.Findings)

	for key, f := range currByKey {
		old, existed := prevByKey[key]
		switch {
		case !existed:
			report.Deltas = append(report.Deltas, monitoring.Delta{
				Kind:        monitoring.DeltaNewFinding,
				Severity:    f.Severity,
				Direction:   monitoring.DirectionNegative,
				Description: "new finding: " + f.Summary,
			})
		case old.Severity != f.Severity:
			dir := monitoring.DirectionNegative
			if f.Severity < old.Severity {
				dir = monitoring.DirectionPositive
			}
			report.Deltas = append(report.Deltas, monitoring.Delta{
				Kind:        monitoring.DeltaChangedFinding,
				Severity:    f.Severity,
				Direction:   dir,
				Description: fmt.Sprintf("finding severity %s -> %s: %s", old.Severity, f.Severity, f.Summary),
			})
		}
	}
	for key, f := range prevByKey {
		if _, still := currByKey[key]; !still {
			report.Deltas = append(report.Deltas, monitoring.Delta{
				Kind:        monitoring.DeltaResolvedFinding,
				Severity:    f.Severity,
				Direction:   monitoring.DirectionPositive,
				Description: "resolved finding: " + f.Summary,
			})
		}
	}

	report.Deltas = append(report.Deltas, scoreDelta(previous.RiskScore, current.RiskScore)...)
	report.Deltas = append(report.Deltas, connectionDeltas(prev.Connections, curr.Connections)...)

	report.Escalation = d.escalated(report, prevByKey, currByKey)
	return report, nil
}

func decodeProfile(p *entity.Profile) (*screening.CompiledResult, error) {
	var cr screening.CompiledResult
	if err := json.Unmarshal(p.Findings, &cr); err != nil {
		return nil, fmt.Errorf("decode profile v%d: %w", p.Version, err)
	}
	return &cr, nil
}

func indexFindings(findings []*investigation.Finding) map[string]*investigation.Finding {
	out := make(map[string]*investigation.Finding, len(findings))
	for _, f := range findings {
		out[string(f.Category)+"\x00"+f.SubCategory+"\x00"+f.Summary] = f
	}
	return out
}

func scoreDelta(prev, curr float64) []monitoring.Delta {
	if prev == curr {
		return nil
	}
	dir := monitoring.DirectionNegative
	sev := values.SeverityMedium
	if curr < prev {
		dir = monitoring.DirectionPositive
		sev = values.SeverityLow
	} else if values.RiskLevelForScore(curr) != values.RiskLevelForScore(prev) {
		sev = values.SeverityHigh
	}
	return []monitoring.Delta{{
		Kind:        monitoring.DeltaRiskScore,
		Severity:    sev,
		Direction:   dir,
		Description: fmt.Sprintf("risk score %.1f -> %.1f", prev, curr),
	}}
}

func connectionDeltas(prev, curr screening.ConnectionSummary) []monitoring.Delta {
	var out []monitoring.Delta
	riskShift := curr.MaxPropagatedRisk - prev.MaxPropagatedRisk

	if gained := (curr.D2Count + curr.D3Count) - (prev.D2Count + prev.D3Count); gained > 0 && riskShift >= connectionRiskThreshold {
		out = append(out, monitoring.Delta{
			Kind:        monitoring.DeltaNewConnection,
			Severity:    values.SeverityMedium,
			Direction:   monitoring.DirectionNegative,
			Description: fmt.Sprintf("%d new network connections, propagated risk +%.2f", gained, riskShift),
		})
	}
	if lost := (prev.D2Count + prev.D3Count) - (curr.D2Count + curr.D3Count); lost > 0 && -riskShift >= connectionRiskThreshold {
		out = append(out, monitoring.Delta{
			Kind:        monitoring.DeltaLostConnection,
			Severity:    values.SeverityLow,
			Direction:   monitoring.DirectionPositive,
			Description: fmt.Sprintf("%d network connections dropped, propagated risk %.2f", lost, riskShift),
		})
	}
	if hits := curr.SanctionsHits - prev.SanctionsHits; hits > 0 {
		out = append(out, monitoring.Delta{
			Kind:        monitoring.DeltaNewConnection,
			Severity:    values.SeverityCritical,
			Direction:   monitoring.DirectionNegative,
			Description: fmt.Sprintf("%d new sanctions hits in network", hits),
		})
	}
	return out
}

// escalated flags the report when any new finding is critical, the risk level
// rose, or any existing finding climbed to critical.
func (d *DeltaDetector) escalated(report *monitoring.DeltaReport, prev, curr map[string]*investigation.Finding) bool {
	if values.RiskLevelForScore(report.CurrentScore) != values.RiskLevelForScore(report.PreviousScore) &&
		report.CurrentScore > report.PreviousScore {
		return true
	}
	for key, f := range curr {
		if f.Severity != values.SeverityCritical {
			continue
		}
		old, existed := prev[key]
		if !existed || old.Severity < values.SeverityCritical {
			return true
		}
	}
	return false
}
