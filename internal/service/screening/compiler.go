package screening

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	invsvc "github.com/veriscreen/screening-backend/internal/service/investigation"
	"github.com/veriscreen/screening-backend/internal/service/risk"
)

const keyFindingsPerCategory = 3

// FindingsSummary condenses the finding set for reports.
type FindingsSummary struct {
	TotalCount  int                                                 `json:"total_count"`
	ByCategory  map[investigation.Category]int                      `json:"by_category"`
	BySeverity  map[string]int                                      `json:"by_severity"`
	KeyFindings map[investigation.Category][]*investigation.Finding `json:"key_findings"`
	Narrative   string                                              `json:"narrative"`
}

// TypeSummary is one information type's SAR record for reporting.
type TypeSummary struct {
	Iterations       int     `json:"iterations"`
	Queries          int     `json:"queries"`
	SuccessRate      float64 `json:"success_rate"`
	Confidence       float64 `json:"confidence"`
	CompletionReason string  `json:"completion_reason"`
}

// InvestigationSummary maps each investigated type to its summary.
type InvestigationSummary struct {
	Types               map[investigation.InformationType]TypeSummary `json:"types"`
	AggregateConfidence float64                                       `json:"aggregate_confidence"`
}

// ConnectionSummary condenses the network analysis.
type ConnectionSummary struct {
	D2Count           int     `json:"d2_count"`
	D3Count           int     `json:"d3_count"`
	PEPHits           int     `json:"pep_hits"`
	SanctionsHits     int     `json:"sanctions_hits"`
	ShellMarkers      int     `json:"shell_markers"`
	MaxPropagatedRisk float64 `json:"max_propagated_risk"`
}

// CompiledResult is the internal hand-off from investigation and risk
// analysis to report generation.
type CompiledResult struct {
	Findings      []*investigation.Finding `json:"findings"`
	Summary       FindingsSummary          `json:"summary"`
	Investigation InvestigationSummary     `json:"investigation"`
	Connections   ConnectionSummary        `json:"connections"`
	Risk          risk.RiskScore           `json:"risk"`
	Deception     risk.DeceptionAssessment `json:"deception"`
	Patterns      risk.PatternSummary      `json:"patterns"`
	Warnings      []string                 `json:"warnings,omitempty"`
}

// ScreeningResult is the externally visible result shape.
type ScreeningResult struct {
	OverallScore      float64                        `json:"overall_score"`
	RiskLevel         values.RiskLevel               `json:"risk_level"`
	Recommendation    values.Recommendation          `json:"recommendation"`
	FindingCounts     map[investigation.Category]int `json:"finding_counts"`
	CriticalFindings  int                            `json:"critical_findings"`
	Confidence        float64                        `json:"confidence"`
	DeceptionBand     risk.DeceptionBand             `json:"deception_band"`
	ConnectionSummary ConnectionSummary              `json:"connection_summary"`
	Warnings          []string                       `json:"warnings,omitempty"`
}

// Compiler collapses investigation and risk output into the compiled result.
// Findings below the minimum confidence are dropped from the compiled finding
// set and its summaries; risk scores arrive precomputed over the full set.
type Compiler struct {
	minFindingConfidence float64
}

func NewCompiler(minFindingConfidence float64) *Compiler {
	if minFindingConfidence <= 0 {
		minFindingConfidence = 0.5
	}
	return &Compiler{minFindingConfidence: minFindingConfidence}
}

func (c *Compiler) Compile(inv *invsvc.Result, score risk.RiskScore, deception risk.DeceptionAssessment, patterns risk.PatternSummary, conn risk.ConnectionAnalysis) *CompiledResult {
	kept := make([]*investigation.Finding, 0, len(inv.Findings))
	for _, f := range inv.Findings {
		if f.Confidence.Float() >= c.minFindingConfidence {
			kept = append(kept, f)
		}
	}

	out := &CompiledResult{
		Findings:  kept,
		Summary:   c.summarizeFindings(kept),
		Risk:      score,
		Deception: deception,
		Patterns:  patterns,
		Warnings:  inv.Warnings,
		Connections: ConnectionSummary{
			D2Count:           conn.D2Count,
			D3Count:           conn.D3Count,
			PEPHits:           conn.PEPHits,
			SanctionsHits:     conn.SanctionsHits,
			ShellMarkers:      conn.ShellMarkers,
			MaxPropagatedRisk: conn.SubjectRisk,
		},
		Investigation: InvestigationSummary{
			Types:               make(map[investigation.InformationType]TypeSummary, len(inv.TypeStates)),
			AggregateConfidence: inv.AggregateConfidence.Float(),
		},
	}

	for t, st := range inv.TypeStates {
		queries := 0
		for _, it := range st.Iterations {
			queries += it.QueriesExecuted
		}
		out.Investigation.Types[t] = TypeSummary{
			Iterations:       len(st.Iterations),
			Queries:          queries,
			SuccessRate:      st.Summary.SuccessRate(),
			Confidence:       st.FinalConfidence.Float(),
			CompletionReason: string(st.CompletionReason),
		}
	}
	return out
}

func (c *Compiler) summarizeFindings(findings []*investigation.Finding) FindingsSummary {
	s := FindingsSummary{
		TotalCount:  len(findings),
		ByCategory:  make(map[investigation.Category]int),
		BySeverity:  make(map[string]int),
		KeyFindings: make(map[investigation.Category][]*investigation.Finding),
	}
	for _, f := range findings {
		s.ByCategory[f.Category]++
		s.BySeverity[f.Severity.String()]++
	}

	byCat := make(map[investigation.Category][]*investigation.Finding)
	for _, f := range findings {
		byCat[f.Category] = append(byCat[f.Category], f)
	}
	for cat, group := range byCat {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Severity > group[j].Severity })
		if len(group) > keyFindingsPerCategory {
			group = group[:keyFindingsPerCategory]
		}
		s.KeyFindings[cat] = group
	}

	s.Narrative = narrative(s)
	return s
}

func narrative(s FindingsSummary) string {
	if s.TotalCount == 0 {
		return "No notable findings."
	}
	var parts []string
	for _, cat := range investigation.AllCategories {
		if n := s.ByCategory[cat]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, cat))
		}
	}
	sentence := fmt.Sprintf("%d findings (%s)", s.TotalCount, strings.Join(parts, ", "))
	if n := s.BySeverity[values.SeverityCritical.String()]; n > 0 {
		sentence += fmt.Sprintf("; %d critical", n)
	}
	return sentence + "."
}

// ToScreeningResult projects the compiled result to the external shape.
func (cr *CompiledResult) ToScreeningResult() *ScreeningResult {
	return &ScreeningResult{
		OverallScore:      cr.Risk.Overall,
		RiskLevel:         cr.Risk.Level,
		Recommendation:    cr.Risk.Recommendation,
		FindingCounts:     cr.Summary.ByCategory,
		CriticalFindings:  cr.Summary.BySeverity[values.SeverityCritical.String()],
		Confidence:        cr.Investigation.AggregateConfidence,
		DeceptionBand:     cr.Deception.Band,
		ConnectionSummary: cr.Connections,
		Warnings:          cr.Warnings,
	}
}
