package investigation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Assessment is the assessor's read of one iteration's results.
type Assessment struct {
	Facts              []investigation.Fact
	Inconsistencies    []investigation.Inconsistency
	Gaps               []Gap
	DiscoveredEntities []investigation.DiscoveredEntity
}

// expectedFactTypes drive gap detection per information type.
var expectedFactTypes = map[investigation.InformationType][]string{
	investigation.InfoIdentity:         {"full_name", "dob", "address", "county", "alias"},
	investigation.InfoEmployment:       {"employer", "title", "tenure"},
	investigation.InfoEducation:        {"institution", "degree", "graduation_year"},
	investigation.InfoCriminal:         {"criminal_record"},
	investigation.InfoCivil:            {"civil_record"},
	investigation.InfoFinancial:        {"credit_event", "bankruptcy"},
	investigation.InfoLicenses:         {"license", "license_status"},
	investigation.InfoRegulatory:       {"regulatory_action"},
	investigation.InfoSanctions:        {"sanctions_hit"},
	investigation.InfoAdverseMedia:     {"media_mention"},
	investigation.InfoDigitalFootprint: {"online_presence", "digital_alias"},
	investigation.InfoNetworkD2:        {"associate", "organization"},
	investigation.InfoNetworkD3:        {"associate", "organization", "extended_tie"},
}

// Assessor extracts facts from normalized provider data and compares them to
// the knowledge base for inconsistencies and gaps. NormalizedData is the only
// provider payload it reads.
type Assessor struct {
	logger *zap.Logger
}

func NewAssessor(logger *zap.Logger) *Assessor {
	return &Assessor{logger: logger}
}

// Assess consumes the executor's results for one (type, iteration).
func (a *Assessor) Assess(t investigation.InformationType, iteration int, results []*investigation.QueryResult, kb *investigation.KnowledgeBase) Assessment {
	var out Assessment

	for _, r := range results {
		if r.Status != investigation.QuerySuccess || r.NormalizedData == nil {
			continue
		}
		facts, entities := a.extract(iteration, r)
		out.Facts = append(out.Facts, facts...)
		out.DiscoveredEntities = append(out.DiscoveredEntities, entities...)
		r.FindingsCount = len(facts)
	}

	out.Inconsistencies = a.detectInconsistencies(t, out.Facts, kb)
	out.Gaps = a.detectGaps(t, out.Facts, kb)
	return out
}

// extract reads the platform-normalized schema: a "facts" list of typed
// values, and for network checks an "entities" list.
func (a *Assessor) extract(iteration int, r *investigation.QueryResult) ([]investigation.Fact, []investigation.DiscoveredEntity) {
	var facts []investigation.Fact
	var entities []investigation.DiscoveredEntity

	if rawFacts, ok := r.NormalizedData["facts"].([]interface{}); ok {
		for _, rf := range rawFacts {
			m, ok := rf.(map[string]interface{})
			if !ok {
				continue
			}
			factType, _ := m["type"].(string)
			value := stringify(m["value"])
			if factType == "" || value == "" {
				continue
			}
			conf := 0.8
			if c, ok := m["confidence"].(float64); ok {
				conf = c
			}
			facts = append(facts, investigation.Fact{
				Type:           factType,
				Value:          value,
				SourceProvider: r.ProviderID,
				Confidence:     values.ClampConfidence(conf),
				Iteration:      iteration,
				EventDate:      parseEventDate(m["date"]),
			})
		}
	}

	if rawEntities, ok := r.NormalizedData["entities"].([]interface{}); ok {
		for _, re := range rawEntities {
			m, ok := re.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			if name == "" {
				continue
			}
			relation, _ := m["relation"].(string)
			degree := 2
			if d, ok := m["degree"].(float64); ok {
				degree = int(d)
			}
			conf := 0.7
			if c, ok := m["confidence"].(float64); ok {
				conf = c
			}
			entities = append(entities, investigation.DiscoveredEntity{
				Name:       name,
				Relation:   relation,
				Degree:     degree,
				Confidence: values.ClampConfidence(conf),
			})
			facts = append(facts, investigation.Fact{
				Type:           "associate",
				Value:          name,
				SourceProvider: r.ProviderID,
				Confidence:     values.ClampConfidence(conf),
				Iteration:      iteration,
			})
		}
	}

	return facts, entities
}

// parseEventDate accepts the two date shapes providers normalize to.
func parseEventDate(v interface{}) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

// detectInconsistencies compares new facts against what the KB already holds
// for the same fact type.
func (a *Assessor) detectInconsistencies(t investigation.InformationType, newFacts []investigation.Fact, kb *investigation.KnowledgeBase) []investigation.Inconsistency {
	var out []investigation.Inconsistency
	for _, nf := range newFacts {
		for _, known := range kb.FactsOfType(t, nf.Type) {
			if known.Value == nf.Value {
				continue
			}
			kind, directional := classifyConflict(nf.Type, known.Value, nf.Value)
			if kind == "" {
				continue
			}
			out = append(out, investigation.Inconsistency{
				Kind:     kind,
				InfoType: t,
				Description: fmt.Sprintf("%s: %q from %s conflicts with known %q",
					nf.Type, nf.Value, nf.SourceProvider, known.Value),
				Directional: directional,
			})
		}
	}
	return out
}

func classifyConflict(factType, known, found string) (investigation.InconsistencyKind, bool) {
	switch factType {
	case "dob", "graduation_year", "tenure":
		if yearDelta(known, found) <= 1 {
			return investigation.InconsistencyDateMinor, false
		}
		return investigation.InconsistencyTimelineImpossible, true
	case "employer", "title":
		return investigation.InconsistencyEmploymentGapHidden, true
	case "degree", "institution", "license":
		return investigation.InconsistencyCredentialInflation, true
	case "full_name", "ssn", "address":
		return investigation.InconsistencyIdentityMismatch, false
	}
	return "", false
}

func yearDelta(a, b string) int {
	ya := leadingYear(a)
	yb := leadingYear(b)
	if ya == 0 || yb == 0 {
		return 100
	}
	if ya > yb {
		return ya - yb
	}
	return yb - ya
}

func leadingYear(s string) int {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	for _, f := range fields {
		if len(f) == 4 {
			if y, err := strconv.Atoi(f); err == nil {
				return y
			}
		}
	}
	return 0
}

// detectGaps reports expected fact categories still absent after this
// iteration.
func (a *Assessor) detectGaps(t investigation.InformationType, newFacts []investigation.Fact, kb *investigation.KnowledgeBase) []Gap {
	present := make(map[string]bool)
	for _, f := range kb.Facts(t) {
		present[f.Type] = true
	}
	for _, f := range newFacts {
		present[f.Type] = true
	}

	var gaps []Gap
	for _, want := range expectedFactTypes[t] {
		if !present[want] {
			gaps = append(gaps, Gap{
				FactType:    want,
				Description: fmt.Sprintf("no %s fact established for %s", want, t),
			})
		}
	}
	return gaps
}
