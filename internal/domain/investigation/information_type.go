package investigation

import "github.com/veriscreen/screening-backend/internal/domain/values"

// InformationType is a family of evidence the SAR loop investigates
// independently. Fourteen are defined; each belongs to exactly one phase.
type InformationType string

const (
	InfoIdentity         InformationType = "identity"
	InfoEmployment       InformationType = "employment"
	InfoEducation        InformationType = "education"
	InfoCriminal         InformationType = "criminal"
	InfoCivil            InformationType = "civil"
	InfoFinancial        InformationType = "financial"
	InfoLicenses         InformationType = "licenses"
	InfoRegulatory       InformationType = "regulatory"
	InfoSanctions        InformationType = "sanctions"
	InfoAdverseMedia     InformationType = "adverse_media"
	InfoDigitalFootprint InformationType = "digital_footprint"
	InfoNetworkD2        InformationType = "network_d2"
	InfoNetworkD3        InformationType = "network_d3"
	InfoReconciliation   InformationType = "reconciliation"
)

// Phase groups information types into the five ordered investigation stages.
type Phase string

const (
	PhaseFoundation     Phase = "foundation"
	PhaseRecords        Phase = "records"
	PhaseIntelligence   Phase = "intelligence"
	PhaseNetwork        Phase = "network"
	PhaseReconciliation Phase = "reconciliation"
)

// PhaseOrder is the strict execution order of phases.
var PhaseOrder = []Phase{
	PhaseFoundation,
	PhaseRecords,
	PhaseIntelligence,
	PhaseNetwork,
	PhaseReconciliation,
}

// PhaseTypes lists each phase's information types in execution order.
// Foundation and Network run their types sequentially; Records and
// Intelligence run theirs in parallel.
var PhaseTypes = map[Phase][]InformationType{
	PhaseFoundation:     {InfoIdentity, InfoEmployment, InfoEducation},
	PhaseRecords:        {InfoCriminal, InfoCivil, InfoFinancial, InfoLicenses, InfoRegulatory, InfoSanctions},
	PhaseIntelligence:   {InfoAdverseMedia, InfoDigitalFootprint},
	PhaseNetwork:        {InfoNetworkD2, InfoNetworkD3},
	PhaseReconciliation: {InfoReconciliation},
}

// foundationTypes get a stricter confidence threshold, a higher iteration
// cap and 1.5x weight in the aggregate confidence.
var foundationTypes = map[InformationType]bool{
	InfoIdentity:   true,
	InfoEmployment: true,
	InfoEducation:  true,
}

func (t InformationType) IsFoundation() bool {
	return foundationTypes[t]
}

// RequiresEnhanced reports whether the type is gated to the Enhanced tier.
func (t InformationType) RequiresEnhanced() bool {
	switch t {
	case InfoDigitalFootprint, InfoNetworkD3:
		return true
	}
	return false
}

// CheckTypes maps an information type to the provider check products that can
// produce evidence for it.
func (t InformationType) CheckTypes() []values.CheckType {
	switch t {
	case InfoIdentity:
		return []values.CheckType{values.CheckIdentityVerification, values.CheckSSNTrace}
	case InfoEmployment:
		return []values.CheckType{values.CheckEmploymentVerify}
	case InfoEducation:
		return []values.CheckType{values.CheckEducationVerify}
	case InfoCriminal:
		return []values.CheckType{values.CheckCriminalNational, values.CheckCriminalCounty}
	case InfoCivil:
		return []values.CheckType{values.CheckCivilRecords}
	case InfoFinancial:
		return []values.CheckType{values.CheckCreditReport, values.CheckBankruptcy}
	case InfoLicenses:
		return []values.CheckType{values.CheckLicenseVerify}
	case InfoRegulatory:
		return []values.CheckType{values.CheckRegulatoryScreen, values.CheckPEPScreen}
	case InfoSanctions:
		return []values.CheckType{values.CheckSanctionsScreen}
	case InfoAdverseMedia:
		return []values.CheckType{values.CheckAdverseMedia}
	case InfoDigitalFootprint:
		return []values.CheckType{values.CheckDigitalFootprint}
	case InfoNetworkD2, InfoNetworkD3:
		return []values.CheckType{values.CheckAssociateSearch, values.CheckBusinessAffiliation}
	default:
		return nil
	}
}

// ExpectedFacts is the completeness denominator in the confidence scorer.
func (t InformationType) ExpectedFacts() int {
	switch t {
	case InfoIdentity, InfoReconciliation:
		return 5
	case InfoEmployment, InfoEducation, InfoNetworkD3:
		return 3
	case InfoFinancial, InfoDigitalFootprint, InfoNetworkD2, InfoLicenses:
		return 2
	default:
		return 1
	}
}

// AllTypes returns every information type in phase order.
func AllTypes() []InformationType {
	var out []InformationType
	for _, p := range PhaseOrder {
		out = append(out, PhaseTypes[p]...)
	}
	return out
}
