package compliance

import "github.com/veriscreen/screening-backend/internal/domain/values"

func days(n int) *int { return &n }

// DefaultRules is the built-in jurisdiction ruleset. Deployments layer
// tenant- and contract-specific rules on top; first match in the resolution
// chain wins.
func DefaultRules() []Rule {
	return []Rule{
		// US federal baseline: FCRA seven-year lookback on records checks,
		// consent and disclosure for consumer reports.
		{Locale: values.LocaleUS, CheckType: values.CheckCriminalNational, Permitted: true, LookbackDays: days(7 * 365), RequiresConsent: true, RequiresDisclosure: true},
		{Locale: values.LocaleUS, CheckType: values.CheckCriminalCounty, Permitted: true, LookbackDays: days(7 * 365), RequiresConsent: true, RequiresDisclosure: true},
		{Locale: values.LocaleUS, CheckType: values.CheckCivilRecords, Permitted: true, LookbackDays: days(7 * 365), RequiresConsent: true},
		{Locale: values.LocaleUS, CheckType: values.CheckCreditReport, Permitted: true, RequiresConsent: true, RequiresDisclosure: true,
			PermittedRoles: []values.RoleCategory{values.RoleFinancial, values.RoleExecutive, values.RoleGovernment, values.RoleSecurity}},
		{Locale: values.LocaleUS, CheckType: values.CheckBankruptcy, Permitted: true, LookbackDays: days(10 * 365), RequiresConsent: true},

		// California: stricter lookback and no credit checks for most roles.
		{Locale: values.Locale("US_CA"), CheckType: values.CheckCriminalCounty, Permitted: true, LookbackDays: days(7 * 365), RequiresConsent: true, RequiresDisclosure: true},
		{Locale: values.Locale("US_CA"), CheckType: values.CheckCreditReport, Permitted: false,
			BlockReason: "California ICRAA prohibits employment credit checks outside exempted roles"},

		// EU: GDPR. Credit and criminal data need a lawful basis this
		// platform does not establish.
		{Locale: values.LocaleEU, CheckType: values.CheckCreditReport, Permitted: false,
			BlockReason: "GDPR: employment credit reports lack a lawful basis in EU jurisdictions"},
		{Locale: values.LocaleEU, CheckType: values.CheckCriminalNational, Permitted: false,
			BlockReason: "GDPR Art. 10: criminal conviction data restricted to official authority"},
		{Locale: values.LocaleEU, CheckType: values.CheckDigitalFootprint, Permitted: false,
			BlockReason: "GDPR: digital footprint profiling requires explicit consent basis"},
		{Locale: values.LocaleEU, CheckType: values.CheckSanctionsScreen, Permitted: true},
		{Locale: values.LocaleEU, CheckType: values.CheckIdentityVerification, Permitted: true, RequiresDisclosure: true},
		{Locale: values.LocaleEU, CheckType: values.CheckEmploymentVerify, Permitted: true, RequiresConsent: true},
		{Locale: values.LocaleEU, CheckType: values.CheckEducationVerify, Permitted: true, RequiresConsent: true},

		// UK: broadly US-like with DBS terminology.
		{Locale: values.LocaleUK, CheckType: values.CheckCriminalNational, Permitted: true, RequiresConsent: true, RequiresDisclosure: true},
		{Locale: values.LocaleUK, CheckType: values.CheckCreditReport, Permitted: true, RequiresConsent: true,
			PermittedRoles: []values.RoleCategory{values.RoleFinancial, values.RoleExecutive}},
	}
}
