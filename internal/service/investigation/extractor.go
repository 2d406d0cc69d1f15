package investigation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/service/ai"
	"github.com/veriscreen/screening-backend/internal/service/risk"
)

// adverseFactTypes map the fact types that surface as findings to a summary
// template. Neutral facts (names, addresses, counties) enrich queries but are
// not findings in themselves.
var adverseFactTypes = map[string]string{
	"criminal_record":   "criminal record: %s",
	"civil_record":      "civil record: %s",
	"credit_event":      "credit event: %s",
	"bankruptcy":        "bankruptcy: %s",
	"regulatory_action": "regulatory action: %s",
	"sanctions_hit":     "sanctions screening hit: %s",
	"media_mention":     "adverse media: %s",
	"license_status":    "license status: %s",
}

// license_status only becomes a finding when the status is not clean.
var cleanLicenseStatuses = map[string]bool{"active": true, "valid": true, "current": true, "in good standing": true}

// Extractor turns accumulated facts and inconsistencies into classified,
// severity-rated findings. Rules are authoritative; a configured model can
// propose labels but never bypasses rule revalidation.
type Extractor struct {
	classifier *risk.Classifier
	severity   *risk.SeverityCalculator
	model      ai.Classifier
	logger     *zap.Logger
}

func NewExtractor(classifier *risk.Classifier, severity *risk.SeverityCalculator, model ai.Classifier, logger *zap.Logger) *Extractor {
	if model == nil {
		model = ai.NoopClassifier{}
	}
	return &Extractor{classifier: classifier, severity: severity, model: model, logger: logger}
}

// Extract walks the knowledge base once. Output order follows phase order
// then fact insertion order, and repeated (fact type, value) pairs collapse
// into a single finding that keeps every source.
func (e *Extractor) Extract(ctx context.Context, kb *investigation.KnowledgeBase, inconsistencies []investigation.Inconsistency, role values.RoleCategory) []*investigation.Finding {
	var findings []*investigation.Finding
	seen := make(map[string]*investigation.Finding)

	for _, t := range investigation.AllTypes() {
		for _, f := range kb.Facts(t) {
			template, adverse := adverseFactTypes[f.Type]
			if !adverse {
				continue
			}
			if f.Type == "license_status" && cleanLicenseStatuses[strings.ToLower(f.Value)] {
				continue
			}

			key := f.Type + "\x00" + f.Value
			if prior, ok := seen[key]; ok {
				prior.Sources = appendSource(prior.Sources, f.SourceProvider)
				prior.Corroborated = prior.Corroborated || f.Corroborated
				continue
			}

			finding := e.buildFinding(ctx, fmt.Sprintf(template, f.Value), f, role)
			seen[key] = finding
			findings = append(findings, finding)
		}
	}

	for _, inc := range inconsistencies {
		if inc.Kind == investigation.InconsistencyDateMinor {
			continue // below finding grade; the anomaly detector still sees it
		}
		findings = append(findings, e.buildInconsistencyFinding(inc, role))
	}

	return findings
}

func (e *Extractor) buildFinding(ctx context.Context, summary string, f investigation.Fact, role values.RoleCategory) *investigation.Finding {
	suggestion, err := e.model.SuggestClassification(ctx, summary, "")
	if err != nil {
		suggestion = nil
	}
	cls := e.classifier.Classify(summary, role, suggestion)
	if cls.WasReclassified {
		e.logger.Debug("model label rejected by rules",
			zap.String("suggested", string(cls.OriginalCategory)),
			zap.String("final", string(cls.Category)))
	}

	finding := investigation.NewFinding(cls.Category, values.SeverityMedium, summary)
	finding.SubCategory = cls.SubCategory
	finding.Confidence = f.Confidence
	finding.Corroborated = f.Corroborated
	finding.RelevanceToRole = cls.RoleRelevance
	finding.Sources = appendSource(nil, f.SourceProvider)
	finding.DiscoveredAt = f.EventDate

	decision := e.severity.Calculate(finding, cls, role)
	finding.Severity = decision.Final
	return finding
}

func (e *Extractor) buildInconsistencyFinding(inc investigation.Inconsistency, role values.RoleCategory) *investigation.Finding {
	summary := fmt.Sprintf("inconsistent %s information: %s", inc.InfoType, inc.Description)
	cls := e.classifier.Classify(summary, role, nil)

	finding := investigation.NewFinding(investigation.CategoryBehavioral, values.SeverityMedium, summary)
	finding.SubCategory = risk.SubBehavioralInconsistency
	if inc.Kind == investigation.InconsistencyCredentialInflation {
		finding.Category = investigation.CategoryVerification
		finding.SubCategory = risk.SubVerificationEducation
	}
	finding.Confidence = 0.75
	finding.RelevanceToRole = risk.RoleRelevance(finding.Category, role)

	decision := e.severity.Calculate(finding, cls, role)
	finding.Severity = decision.Final
	return finding
}

func appendSource(sources []string, provider string) []string {
	for _, s := range sources {
		if s == provider {
			return sources
		}
	}
	return append(sources, provider)
}
