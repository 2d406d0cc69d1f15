package risk

import (
	"strings"
	"time"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// patternRule pins a severity to an explicit phrase, ahead of sub-category
// defaults. First match wins; order more specific phrases first.
type patternRule struct {
	pattern  string
	severity values.Severity
}

var severityPatterns = []patternRule{
	// Criminal
	{"felony conviction", values.SeverityCritical},
	{"sexual assault", values.SeverityCritical},
	{"sex offender", values.SeverityCritical},
	{"homicide", values.SeverityCritical},
	{"manslaughter", values.SeverityCritical},
	{"armed robbery", values.SeverityCritical},
	{"kidnapping", values.SeverityCritical},
	{"domestic violence", values.SeverityHigh},
	{"aggravated assault", values.SeverityHigh},
	{"weapons charge", values.SeverityHigh},
	{"drug trafficking", values.SeverityCritical},
	{"drug possession", values.SeverityMedium},
	{"grand theft", values.SeverityHigh},
	{"petty theft", values.SeverityLow},
	{"shoplifting", values.SeverityLow},
	{"wire fraud", values.SeverityCritical},
	{"securities fraud", values.SeverityCritical},
	{"money laundering", values.SeverityCritical},
	{"embezzlement", values.SeverityHigh},
	{"identity theft", values.SeverityHigh},
	{"forgery", values.SeverityHigh},
	{"felony arrest", values.SeverityHigh},
	{"misdemeanor conviction", values.SeverityMedium},
	{"dui conviction", values.SeverityMedium},
	{"reckless driving", values.SeverityLow},
	{"disorderly conduct", values.SeverityLow},
	{"charges dismissed", values.SeverityLow},
	{"expunged", values.SeverityLow},

	// Financial
	{"chapter 7 bankruptcy", values.SeverityHigh},
	{"chapter 11 bankruptcy", values.SeverityMedium},
	{"chapter 13 bankruptcy", values.SeverityMedium},
	{"active bankruptcy", values.SeverityHigh},
	{"discharged bankruptcy", values.SeverityMedium},
	{"tax lien", values.SeverityMedium},
	{"foreclosure", values.SeverityMedium},
	{"civil judgment", values.SeverityMedium},
	{"loan default", values.SeverityMedium},
	{"in collections", values.SeverityLow},

	// Regulatory
	{"ofac match", values.SeverityCritical},
	{"sanctions list", values.SeverityCritical},
	{"sdn list", values.SeverityCritical},
	{"debarred", values.SeverityCritical},
	{"politically exposed person", values.SeverityHigh},
	{"enforcement action", values.SeverityHigh},
	{"cease and desist", values.SeverityHigh},
	{"license revoked", values.SeverityHigh},
	{"license suspended", values.SeverityMedium},
	{"consent order", values.SeverityMedium},

	// Verification and behavioral
	{"identity mismatch", values.SeverityCritical},
	{"ssn mismatch", values.SeverityCritical},
	{"falsified", values.SeverityHigh},
	{"diploma mill", values.SeverityHigh},
	{"degree not verified", values.SeverityMedium},
	{"employment not verified", values.SeverityMedium},
	{"employer denies", values.SeverityHigh},
	{"credential inflation", values.SeverityHigh},
	{"unexplained gap", values.SeverityLow},

	// Network
	{"sanctioned associate", values.SeverityCritical},
	{"organized crime", values.SeverityCritical},
	{"shell company", values.SeverityHigh},
	{"pep associate", values.SeverityMedium},
}

// subCategoryDefaults apply when no explicit pattern hits.
var subCategoryDefaults = map[string]values.Severity{
	SubCriminalFelony:      values.SeverityCritical,
	SubCriminalViolent:     values.SeverityCritical,
	SubCriminalSexual:      values.SeverityCritical,
	SubCriminalFraud:       values.SeverityHigh,
	SubCriminalDrug:        values.SeverityMedium,
	SubCriminalTheft:       values.SeverityMedium,
	SubCriminalDUI:         values.SeverityMedium,
	SubCriminalMisdemeanor: values.SeverityLow,

	SubFinancialBankruptcy:  values.SeverityMedium,
	SubFinancialForeclosure: values.SeverityMedium,
	SubFinancialLien:        values.SeverityMedium,
	SubFinancialJudgment:    values.SeverityMedium,
	SubFinancialDefault:     values.SeverityLow,
	SubFinancialCollection:  values.SeverityLow,

	SubRegulatorySanctions:      values.SeverityCritical,
	SubRegulatoryDebarment:      values.SeverityCritical,
	SubRegulatoryExportControl:  values.SeverityHigh,
	SubRegulatoryEnforcement:    values.SeverityHigh,
	SubRegulatoryPEP:            values.SeverityHigh,
	SubRegulatoryLicenseRevoked: values.SeverityHigh,

	SubReputationScandal:      values.SeverityHigh,
	SubReputationLitigation:   values.SeverityMedium,
	SubReputationAdverseMedia: values.SeverityMedium,
	SubReputationSocialMedia:  values.SeverityLow,

	SubVerificationIdentity:   values.SeverityCritical,
	SubVerificationEmployment: values.SeverityMedium,
	SubVerificationEducation:  values.SeverityMedium,
	SubVerificationLicense:    values.SeverityMedium,
	SubVerificationGap:        values.SeverityLow,

	SubBehavioralDeception:     values.SeverityHigh,
	SubBehavioralInconsistency: values.SeverityMedium,
	SubBehavioralPattern:       values.SeverityMedium,

	SubNetworkSanctionedTie: values.SeverityCritical,
	SubNetworkCriminalTie:   values.SeverityHigh,
	SubNetworkShellCompany:  values.SeverityHigh,
	SubNetworkPEPTie:        values.SeverityMedium,
}

// roleAlignedPairs escalate severity one level when the finding's category
// squarely matches the role's exposure.
var roleAlignedPairs = map[investigation.Category]map[values.RoleCategory]bool{
	investigation.CategoryCriminal: {
		values.RoleGovernment: true, values.RoleSecurity: true,
		values.RoleEducation: true, values.RoleHealthcare: true,
	},
	investigation.CategoryFinancial: {
		values.RoleFinancial: true, values.RoleExecutive: true,
	},
	investigation.CategoryRegulatory: {
		values.RoleFinancial: true, values.RoleGovernment: true,
	},
	investigation.CategoryVerification: {
		values.RoleGovernment: true, values.RoleSecurity: true,
	},
	investigation.CategoryNetwork: {
		values.RoleGovernment: true, values.RoleSecurity: true,
	},
}

// SeverityDecision records how a severity was reached, for audit.
type SeverityDecision struct {
	Initial     values.Severity `json:"initial"`
	Final       values.Severity `json:"final"`
	MatchedRule string          `json:"matched_rule,omitempty"`
	FromDefault bool            `json:"from_default"`
	Adjustments []string        `json:"adjustments,omitempty"`
}

const recencyEscalationWindow = 365 * 24 * time.Hour

// SeverityCalculator resolves final severity: explicit pattern, sub-category
// default, then the configured fallback; role alignment and recency each
// escalate one level.
type SeverityCalculator struct {
	fallback values.Severity
	now      func() time.Time
}

func NewSeverityCalculator() *SeverityCalculator {
	return &SeverityCalculator{fallback: values.SeverityMedium, now: time.Now}
}

func (sc *SeverityCalculator) Calculate(f *investigation.Finding, cls Classification, role values.RoleCategory) SeverityDecision {
	d := SeverityDecision{Initial: sc.fallback, FromDefault: true}

	lower := strings.ToLower(f.Summary + " " + f.Details)
	for _, rule := range severityPatterns {
		if strings.Contains(lower, rule.pattern) {
			d.Initial = rule.severity
			d.MatchedRule = rule.pattern
			d.FromDefault = false
			break
		}
	}
	if d.MatchedRule == "" {
		if sev, ok := subCategoryDefaults[cls.SubCategory]; ok {
			d.Initial = sev
			d.FromDefault = false
		}
	}

	d.Final = d.Initial
	return sc.adjust(d, f, cls, role)
}

func (sc *SeverityCalculator) adjust(d SeverityDecision, f *investigation.Finding, cls Classification, role values.RoleCategory) SeverityDecision {
	if roleAlignedPairs[cls.Category][role] {
		d.Final = d.Final.Escalate()
		d.Adjustments = append(d.Adjustments, "role_alignment")
	}
	if f.DiscoveredAt != nil && sc.now().Sub(*f.DiscoveredAt) <= recencyEscalationWindow {
		d.Final = d.Final.Escalate()
		d.Adjustments = append(d.Adjustments, "recency")
	}
	return d
}
