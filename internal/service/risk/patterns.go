package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// PatternSignal is one recognized cross-finding pattern. Signals annotate the
// compiled result; they never feed back into the scorer arithmetic and never
// mutate stored finding severity.
type PatternSignal struct {
	Kind            string          `json:"kind"`
	Description     string          `json:"description"`
	Severity        values.Severity `json:"severity"`
	RelatedFindings []uuid.UUID     `json:"related_findings,omitempty"`
}

const (
	SignalEscalationOverTime = "escalation_over_time"
	SignalBurstActivity      = "burst_activity"
	SignalSystematicRepeat   = "systematic_repeat"
)

// PatternSummary is the recognizer's output for one screening.
type PatternSummary struct {
	Signals []PatternSignal `json:"signals,omitempty"`
}

const (
	burstWindow   = 90 * 24 * time.Hour
	burstMinCount = 3
	repeatMin     = 3
)

// PatternRecognizer finds temporal and structural patterns across findings.
type PatternRecognizer struct{}

func NewPatternRecognizer() *PatternRecognizer {
	return &PatternRecognizer{}
}

func (r *PatternRecognizer) Recognize(findings []*investigation.Finding) PatternSummary {
	var out PatternSummary
	out.Signals = append(out.Signals, r.escalationSignals(findings)...)
	out.Signals = append(out.Signals, r.burstSignals(findings)...)
	out.Signals = append(out.Signals, r.repeatSignals(findings)...)
	return out
}

// escalationSignals fires when a category's dated findings grow strictly more
// severe over time.
func (r *PatternRecognizer) escalationSignals(findings []*investigation.Finding) []PatternSignal {
	byCat := make(map[investigation.Category][]*investigation.Finding)
	for _, f := range findings {
		if f.DiscoveredAt != nil {
			byCat[f.Category] = append(byCat[f.Category], f)
		}
	}

	var signals []PatternSignal
	for cat, group := range byCat {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].DiscoveredAt.Before(*group[j].DiscoveredAt)
		})
		escalating := true
		for i := 1; i < len(group); i++ {
			if group[i].Severity <= group[i-1].Severity {
				escalating = false
				break
			}
		}
		if !escalating {
			continue
		}
		signals = append(signals, PatternSignal{
			Kind:            SignalEscalationOverTime,
			Description:     fmt.Sprintf("%s findings grow more severe over time (%d events)", cat, len(group)),
			Severity:        group[len(group)-1].Severity,
			RelatedFindings: ids(group),
		})
	}
	return signals
}

// burstSignals fires when several findings of one category cluster inside the
// burst window.
func (r *PatternRecognizer) burstSignals(findings []*investigation.Finding) []PatternSignal {
	byCat := make(map[investigation.Category][]*investigation.Finding)
	for _, f := range findings {
		if f.DiscoveredAt != nil {
			byCat[f.Category] = append(byCat[f.Category], f)
		}
	}

	var signals []PatternSignal
	for cat, group := range byCat {
		if len(group) < burstMinCount {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].DiscoveredAt.Before(*group[j].DiscoveredAt)
		})
		for i := 0; i+burstMinCount-1 < len(group); i++ {
			window := group[i : i+burstMinCount]
			if window[len(window)-1].DiscoveredAt.Sub(*window[0].DiscoveredAt) <= burstWindow {
				signals = append(signals, PatternSignal{
					Kind:            SignalBurstActivity,
					Description:     fmt.Sprintf("%d %s findings within %d days", len(window), cat, int(burstWindow.Hours()/24)),
					Severity:        maxSeverity(window),
					RelatedFindings: ids(window),
				})
				break
			}
		}
	}
	return signals
}

// repeatSignals fires on the same sub-category recurring enough to look
// systematic rather than incidental.
func (r *PatternRecognizer) repeatSignals(findings []*investigation.Finding) []PatternSignal {
	bySub := make(map[string][]*investigation.Finding)
	for _, f := range findings {
		if f.SubCategory != "" {
			bySub[f.SubCategory] = append(bySub[f.SubCategory], f)
		}
	}

	var signals []PatternSignal
	for sub, group := range bySub {
		if len(group) < repeatMin {
			continue
		}
		signals = append(signals, PatternSignal{
			Kind:            SignalSystematicRepeat,
			Description:     fmt.Sprintf("%s recurs %d times", sub, len(group)),
			Severity:        maxSeverity(group),
			RelatedFindings: ids(group),
		})
	}
	return signals
}

func ids(group []*investigation.Finding) []uuid.UUID {
	out := make([]uuid.UUID, len(group))
	for i, f := range group {
		out[i] = f.ID
	}
	return out
}

func maxSeverity(group []*investigation.Finding) values.Severity {
	max := values.SeverityLow
	for _, f := range group {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}
