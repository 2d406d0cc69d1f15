package risk

import (
	"sort"
	"strings"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/service/ai"
)

// Sub-category identifiers. Keyword families below map finding text onto
// these; new ones need a keyword family, a severity default, and (optionally)
// a pattern rule.
const (
	SubCriminalFelony      = "criminal_felony"
	SubCriminalMisdemeanor = "criminal_misdemeanor"
	SubCriminalViolent     = "criminal_violent"
	SubCriminalSexual      = "criminal_sexual"
	SubCriminalDrug        = "criminal_drug"
	SubCriminalTheft       = "criminal_theft"
	SubCriminalFraud       = "criminal_fraud"
	SubCriminalDUI         = "criminal_dui"

	SubFinancialBankruptcy  = "financial_bankruptcy"
	SubFinancialLien        = "financial_lien"
	SubFinancialJudgment    = "financial_judgment"
	SubFinancialDefault     = "financial_default"
	SubFinancialCollection  = "financial_collection"
	SubFinancialForeclosure = "financial_foreclosure"

	SubRegulatorySanctions      = "regulatory_sanctions"
	SubRegulatoryPEP            = "regulatory_pep"
	SubRegulatoryEnforcement    = "regulatory_enforcement"
	SubRegulatoryLicenseRevoked = "regulatory_license_revoked"
	SubRegulatoryDebarment      = "regulatory_debarment"
	SubRegulatoryExportControl  = "regulatory_export_control"

	SubReputationAdverseMedia = "reputation_adverse_media"
	SubReputationLitigation   = "reputation_litigation"
	SubReputationScandal      = "reputation_scandal"
	SubReputationSocialMedia  = "reputation_social_media"

	SubVerificationEmployment = "verification_employment_mismatch"
	SubVerificationEducation  = "verification_education_mismatch"
	SubVerificationIdentity   = "verification_identity_mismatch"
	SubVerificationLicense    = "verification_license_invalid"
	SubVerificationGap        = "verification_gap"

	SubBehavioralDeception     = "behavioral_deception"
	SubBehavioralInconsistency = "behavioral_inconsistency"
	SubBehavioralPattern       = "behavioral_pattern"

	SubNetworkSanctionedTie = "network_sanctioned_associate"
	SubNetworkPEPTie        = "network_pep_associate"
	SubNetworkShellCompany  = "network_shell_company"
	SubNetworkCriminalTie   = "network_criminal_associate"
)

// keywordFamily binds a sub-category to the phrases that evidence it.
type keywordFamily struct {
	category    investigation.Category
	subCategory string
	keywords    []string
}

// Ordered most-specific first: classification takes the family with the most
// keyword hits, ties broken by earlier listing.
var keywordFamilies = []keywordFamily{
	{investigation.CategoryCriminal, SubCriminalSexual, []string{"sex offense", "sex offender", "sexual assault", "indecent"}},
	{investigation.CategoryCriminal, SubCriminalViolent, []string{"assault", "battery", "homicide", "manslaughter", "armed", "weapon", "domestic violence"}},
	{investigation.CategoryCriminal, SubCriminalFraud, []string{"wire fraud", "securities fraud", "embezzlement", "forgery", "money laundering", "identity theft"}},
	{investigation.CategoryCriminal, SubCriminalDrug, []string{"narcotic", "controlled substance", "drug possession", "trafficking"}},
	{investigation.CategoryCriminal, SubCriminalTheft, []string{"theft", "larceny", "burglary", "robbery", "shoplifting", "stolen"}},
	{investigation.CategoryCriminal, SubCriminalDUI, []string{"dui", "dwi", "driving under the influence", "reckless driving"}},
	{investigation.CategoryCriminal, SubCriminalFelony, []string{"felony", "convicted", "conviction", "incarcerat", "imprisonment"}},
	{investigation.CategoryCriminal, SubCriminalMisdemeanor, []string{"misdemeanor", "petty offense", "citation", "disorderly"}},

	{investigation.CategoryFinancial, SubFinancialBankruptcy, []string{"bankruptcy", "chapter 7", "chapter 11", "chapter 13", "insolven"}},
	{investigation.CategoryFinancial, SubFinancialForeclosure, []string{"foreclosure", "repossession"}},
	{investigation.CategoryFinancial, SubFinancialLien, []string{"tax lien", "lien filed", "lienholder"}},
	{investigation.CategoryFinancial, SubFinancialJudgment, []string{"civil judgment", "judgment entered", "monetary judgment"}},
	{investigation.CategoryFinancial, SubFinancialDefault, []string{"loan default", "defaulted", "delinquent"}},
	{investigation.CategoryFinancial, SubFinancialCollection, []string{"collections", "charge-off", "charged off", "past due"}},

	{investigation.CategoryRegulatory, SubRegulatorySanctions, []string{"ofac", "sanctions list", "sanctioned", "sdn list", "embargo"}},
	{investigation.CategoryRegulatory, SubRegulatoryPEP, []string{"politically exposed", "pep", "public official", "state-owned"}},
	{investigation.CategoryRegulatory, SubRegulatoryDebarment, []string{"debarred", "debarment", "excluded parties", "suspension list"}},
	{investigation.CategoryRegulatory, SubRegulatoryExportControl, []string{"export control", "itar", "denied persons"}},
	{investigation.CategoryRegulatory, SubRegulatoryLicenseRevoked, []string{"license revoked", "license suspended", "disbarred", "delicensed"}},
	{investigation.CategoryRegulatory, SubRegulatoryEnforcement, []string{"enforcement action", "consent order", "cease and desist", "regulatory fine", "sec charge", "finra"}},

	{investigation.CategoryReputation, SubReputationScandal, []string{"scandal", "misconduct", "harassment allegation", "resigned amid"}},
	{investigation.CategoryReputation, SubReputationLitigation, []string{"lawsuit", "plaintiff", "defendant", "litigation", "sued"}},
	{investigation.CategoryReputation, SubReputationSocialMedia, []string{"social media post", "offensive post", "online conduct"}},
	{investigation.CategoryReputation, SubReputationAdverseMedia, []string{"adverse media", "negative news", "press coverage", "media report"}},

	{investigation.CategoryVerification, SubVerificationIdentity, []string{"identity mismatch", "ssn mismatch", "name mismatch", "dob mismatch", "unverifiable identity"}},
	{investigation.CategoryVerification, SubVerificationEmployment, []string{"employment not verified", "employer denies", "employment mismatch", "title inflated", "tenure discrepancy"}},
	{investigation.CategoryVerification, SubVerificationEducation, []string{"degree not verified", "diploma mill", "education mismatch", "unaccredited", "credential inflation"}},
	{investigation.CategoryVerification, SubVerificationLicense, []string{"license not found", "license expired", "license invalid"}},
	{investigation.CategoryVerification, SubVerificationGap, []string{"unexplained gap", "employment gap", "undisclosed period"}},

	{investigation.CategoryBehavioral, SubBehavioralDeception, []string{"deception", "falsified", "misrepresent", "concealed", "omitted"}},
	{investigation.CategoryBehavioral, SubBehavioralInconsistency, []string{"inconsistent", "contradict", "conflicting account"}},
	{investigation.CategoryBehavioral, SubBehavioralPattern, []string{"repeated pattern", "recurring", "systematic"}},

	{investigation.CategoryNetwork, SubNetworkSanctionedTie, []string{"sanctioned associate", "associate on sanctions", "sanctioned entity"}},
	{investigation.CategoryNetwork, SubNetworkPEPTie, []string{"pep associate", "politically exposed associate"}},
	{investigation.CategoryNetwork, SubNetworkShellCompany, []string{"shell company", "shell corporation", "nominee director", "no physical presence"}},
	{investigation.CategoryNetwork, SubNetworkCriminalTie, []string{"criminal associate", "organized crime", "known offender"}},
}

// roleRelevance is the (category, role) → [0,1] matrix. Unlisted pairs fall
// back to 0.5.
var roleRelevance = map[investigation.Category]map[values.RoleCategory]float64{
	investigation.CategoryCriminal: {
		values.RoleGovernment: 1.0, values.RoleSecurity: 1.0,
		values.RoleHealthcare: 0.9, values.RoleEducation: 0.9,
		values.RoleFinancial: 0.9, values.RoleExecutive: 0.8,
		values.RoleTransportation: 0.8, values.RoleContractor: 0.7,
		values.RoleStandard: 0.7,
	},
	investigation.CategoryFinancial: {
		values.RoleFinancial: 1.0, values.RoleExecutive: 0.9,
		values.RoleGovernment: 0.8, values.RoleSecurity: 0.7,
		values.RoleStandard: 0.5, values.RoleContractor: 0.5,
		values.RoleHealthcare: 0.5, values.RoleEducation: 0.5,
		values.RoleTransportation: 0.4,
	},
	investigation.CategoryRegulatory: {
		values.RoleFinancial: 1.0, values.RoleGovernment: 1.0,
		values.RoleExecutive: 0.9, values.RoleSecurity: 0.9,
		values.RoleHealthcare: 0.8, values.RoleEducation: 0.6,
		values.RoleTransportation: 0.6, values.RoleStandard: 0.5,
		values.RoleContractor: 0.5,
	},
	investigation.CategoryReputation: {
		values.RoleExecutive: 1.0, values.RoleGovernment: 0.9,
		values.RoleEducation: 0.7, values.RoleFinancial: 0.7,
		values.RoleHealthcare: 0.6, values.RoleSecurity: 0.6,
		values.RoleStandard: 0.4, values.RoleContractor: 0.4,
		values.RoleTransportation: 0.4,
	},
	investigation.CategoryVerification: {
		values.RoleGovernment: 1.0, values.RoleSecurity: 1.0,
		values.RoleHealthcare: 0.9, values.RoleFinancial: 0.9,
		values.RoleExecutive: 0.9, values.RoleEducation: 0.8,
		values.RoleTransportation: 0.8, values.RoleStandard: 0.7,
		values.RoleContractor: 0.7,
	},
	investigation.CategoryBehavioral: {
		values.RoleSecurity: 1.0, values.RoleGovernment: 0.9,
		values.RoleExecutive: 0.8, values.RoleFinancial: 0.8,
		values.RoleHealthcare: 0.7, values.RoleEducation: 0.7,
		values.RoleStandard: 0.6, values.RoleContractor: 0.6,
		values.RoleTransportation: 0.6,
	},
	investigation.CategoryNetwork: {
		values.RoleGovernment: 1.0, values.RoleSecurity: 1.0,
		values.RoleFinancial: 0.9, values.RoleExecutive: 0.8,
		values.RoleStandard: 0.5, values.RoleContractor: 0.5,
		values.RoleHealthcare: 0.5, values.RoleEducation: 0.5,
		values.RoleTransportation: 0.5,
	},
}

// RoleRelevance returns the matrix value for a pair, 0.5 when unlisted.
func RoleRelevance(cat investigation.Category, role values.RoleCategory) float64 {
	if byRole, ok := roleRelevance[cat]; ok {
		if v, ok := byRole[role]; ok {
			return v
		}
	}
	return 0.5
}

// Classification is the classifier's full decision record.
type Classification struct {
	OriginalCategory investigation.Category `json:"original_category,omitempty"`
	Category         investigation.Category `json:"category"`
	SubCategory      string                 `json:"sub_category"`
	Confidence       values.Confidence      `json:"confidence"`
	MatchedKeywords  []string               `json:"matched_keywords,omitempty"`
	RoleRelevance    float64                `json:"role_relevance"`
	WasReclassified  bool                   `json:"was_reclassified"`
}

// Classifier assigns each finding a category and sub-category from keyword
// evidence, folding in a model suggestion only when the rules corroborate it.
type Classifier struct {
	minValidationConfidence float64
}

func NewClassifier(minValidationConfidence float64) *Classifier {
	if minValidationConfidence <= 0 {
		minValidationConfidence = 0.7
	}
	return &Classifier{minValidationConfidence: minValidationConfidence}
}

// Classify scores every keyword family against the text and picks the
// strongest. A model suggestion is honored only when keyword evidence exists
// for its category at or above the validation confidence; otherwise the
// rule-derived category wins and the result is marked reclassified.
func (c *Classifier) Classify(text string, role values.RoleCategory, suggestion *ai.Suggestion) Classification {
	lower := strings.ToLower(text)

	best, bestHits, ruleConf := bestFamily(lower)

	out := Classification{
		Category:    investigation.CategoryBehavioral,
		SubCategory: SubBehavioralPattern,
		Confidence:  values.ClampConfidence(ruleConf),
	}
	if best != nil {
		out.Category = best.category
		out.SubCategory = best.subCategory
		out.MatchedKeywords = bestHits
	}

	if suggestion != nil {
		out.OriginalCategory = suggestion.Category
		if c.validates(lower, suggestion) {
			out.Category = suggestion.Category
			if suggestion.SubCategory != "" {
				out.SubCategory = suggestion.SubCategory
			}
			if suggestion.Confidence > ruleConf {
				out.Confidence = values.ClampConfidence(suggestion.Confidence)
			}
		} else if suggestion.Category != out.Category {
			out.WasReclassified = true
		}
	}

	out.RoleRelevance = RoleRelevance(out.Category, role)
	return out
}

// validates checks that rule-side keyword evidence exists for the suggested
// category with sufficient combined confidence.
func (c *Classifier) validates(lower string, s *ai.Suggestion) bool {
	if s.Confidence < c.minValidationConfidence {
		return false
	}
	for _, fam := range keywordFamilies {
		if fam.category != s.Category {
			continue
		}
		if len(matchKeywords(lower, fam.keywords)) > 0 {
			return true
		}
	}
	return false
}

func bestFamily(lower string) (*keywordFamily, []string, float64) {
	var best *keywordFamily
	var bestHits []string
	for i := range keywordFamilies {
		hits := matchKeywords(lower, keywordFamilies[i].keywords)
		if len(hits) > len(bestHits) {
			best = &keywordFamilies[i]
			bestHits = hits
		}
	}
	if best == nil {
		return nil, nil, 0.3
	}
	// More independent keyword hits, more confidence, topping out at 0.95.
	conf := 0.6 + 0.15*float64(len(bestHits)-1)
	if conf > 0.95 {
		conf = 0.95
	}
	sort.Strings(bestHits)
	return best, bestHits, conf
}

func matchKeywords(lower string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}
