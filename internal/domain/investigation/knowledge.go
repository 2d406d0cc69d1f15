package investigation

import (
	"time"

	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Fact is a single unit of knowledge accumulated during investigation.
// Facts are append-only within a run.
type Fact struct {
	Type           string            `json:"type"` // e.g. "county", "employer"
	Value          string            `json:"value"`
	SourceProvider string            `json:"source_provider"`
	Confidence     values.Confidence `json:"confidence"`
	Iteration      int               `json:"iteration"`
	Corroborated   bool              `json:"corroborated"`
	// EventDate is when the underlying event occurred, when the provider
	// reported one; it feeds the recency factor in risk scoring.
	EventDate *time.Time `json:"event_date,omitempty"`
}

// KnowledgeBase accumulates facts per information type across SAR iterations.
// It is owned by a single SAR orchestrator task; no other task writes to it,
// so it carries no lock.
type KnowledgeBase struct {
	facts map[InformationType][]Fact
}

func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{facts: make(map[InformationType][]Fact)}
}

// Add appends facts for a type and marks corroboration: a fact type seen from
// two or more distinct providers corroborates every fact in that group.
func (kb *KnowledgeBase) Add(t InformationType, facts ...Fact) {
	kb.facts[t] = append(kb.facts[t], facts...)
	kb.markCorroborated(t)
}

func (kb *KnowledgeBase) markCorroborated(t InformationType) {
	providersByFactType := make(map[string]map[string]bool)
	for _, f := range kb.facts[t] {
		if providersByFactType[f.Type] == nil {
			providersByFactType[f.Type] = make(map[string]bool)
		}
		providersByFactType[f.Type][f.SourceProvider] = true
	}
	for i := range kb.facts[t] {
		f := &kb.facts[t][i]
		f.Corroborated = len(providersByFactType[f.Type]) >= 2
	}
}

// Facts returns the facts for a type. Callers must not mutate the slice.
func (kb *KnowledgeBase) Facts(t InformationType) []Fact {
	return kb.facts[t]
}

// FactsOfType filters one type's facts by fact type.
func (kb *KnowledgeBase) FactsOfType(t InformationType, factType string) []Fact {
	var out []Fact
	for _, f := range kb.facts[t] {
		if f.Type == factType {
			out = append(out, f)
		}
	}
	return out
}

// AllFacts returns every fact across types. Order follows phase order.
func (kb *KnowledgeBase) AllFacts() []Fact {
	var out []Fact
	for _, t := range AllTypes() {
		out = append(out, kb.facts[t]...)
	}
	return out
}

// Count returns the number of facts held for a type.
func (kb *KnowledgeBase) Count(t InformationType) int {
	return len(kb.facts[t])
}

// Values returns the distinct values of a fact type across the whole KB,
// used for cross-type enrichment (e.g. counties feeding criminal queries).
func (kb *KnowledgeBase) Values(factType string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range AllTypes() {
		for _, f := range kb.facts[t] {
			if f.Type == factType && !seen[f.Value] {
				seen[f.Value] = true
				out = append(out, f.Value)
			}
		}
	}
	return out
}

// Snapshot deep-copies the KB for checkpointing.
func (kb *KnowledgeBase) Snapshot() map[InformationType][]Fact {
	out := make(map[InformationType][]Fact, len(kb.facts))
	for t, facts := range kb.facts {
		cp := make([]Fact, len(facts))
		copy(cp, facts)
		out[t] = cp
	}
	return out
}

// Restore replaces the KB contents from a checkpoint snapshot.
func (kb *KnowledgeBase) Restore(snapshot map[InformationType][]Fact) {
	kb.facts = make(map[InformationType][]Fact, len(snapshot))
	for t, facts := range snapshot {
		cp := make([]Fact, len(facts))
		copy(cp, facts)
		kb.facts[t] = cp
	}
}
