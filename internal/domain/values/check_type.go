package values

import (
	"fmt"
	"strings"
)

// CheckType identifies a background-check product a provider can execute.
type CheckType string

const (
	CheckIdentityVerification CheckType = "identity_verification"
	CheckSSNTrace             CheckType = "ssn_trace"
	CheckCriminalNational     CheckType = "criminal_national"
	CheckCriminalCounty       CheckType = "criminal_county"
	CheckCivilRecords         CheckType = "civil_records"
	CheckCreditReport         CheckType = "credit_report"
	CheckBankruptcy           CheckType = "bankruptcy"
	CheckEmploymentVerify     CheckType = "employment_verification"
	CheckEducationVerify      CheckType = "education_verification"
	CheckLicenseVerify        CheckType = "license_verification"
	CheckRegulatoryScreen     CheckType = "regulatory_screening"
	CheckSanctionsScreen      CheckType = "sanctions_screening"
	CheckPEPScreen            CheckType = "pep_screening"
	CheckAdverseMedia         CheckType = "adverse_media"
	CheckDigitalFootprint     CheckType = "digital_footprint"
	CheckAssociateSearch      CheckType = "associate_search"
	CheckBusinessAffiliation  CheckType = "business_affiliation"
)

// CheckCategory groups check types for cache freshness policy.
type CheckCategory string

const (
	CategoryCriminal   CheckCategory = "criminal"
	CategoryCredit     CheckCategory = "credit"
	CategoryEmployment CheckCategory = "employment"
	CategoryEducation  CheckCategory = "education"
	CategoryIdentity   CheckCategory = "identity"
	CategoryDefault    CheckCategory = "default"
)

// Category maps a check type onto its freshness category.
func (c CheckType) Category() CheckCategory {
	switch c {
	case CheckCriminalNational, CheckCriminalCounty, CheckCivilRecords:
		return CategoryCriminal
	case CheckCreditReport, CheckBankruptcy:
		return CategoryCredit
	case CheckEmploymentVerify:
		return CategoryEmployment
	case CheckEducationVerify:
		return CategoryEducation
	case CheckIdentityVerification, CheckSSNTrace:
		return CategoryIdentity
	default:
		return CategoryDefault
	}
}

func (c CheckType) String() string {
	return string(c)
}

// ParseCheckType validates a check-type string from request intake.
func ParseCheckType(s string) (CheckType, error) {
	ct := CheckType(strings.ToLower(strings.TrimSpace(s)))
	switch ct {
	case CheckIdentityVerification, CheckSSNTrace, CheckCriminalNational,
		CheckCriminalCounty, CheckCivilRecords, CheckCreditReport,
		CheckBankruptcy, CheckEmploymentVerify, CheckEducationVerify,
		CheckLicenseVerify, CheckRegulatoryScreen, CheckSanctionsScreen,
		CheckPEPScreen, CheckAdverseMedia, CheckDigitalFootprint,
		CheckAssociateSearch, CheckBusinessAffiliation:
		return ct, nil
	}
	return "", fmt.Errorf("unknown check type %q", s)
}
