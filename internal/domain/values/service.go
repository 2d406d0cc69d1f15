package values

import (
	"fmt"
	"strings"
)

// ServiceTier gates provider categories and investigation depth.
type ServiceTier string

const (
	TierStandard ServiceTier = "standard"
	TierEnhanced ServiceTier = "enhanced"
)

func ParseServiceTier(s string) (ServiceTier, error) {
	switch strings.ToLower(s) {
	case "standard":
		return TierStandard, nil
	case "enhanced":
		return TierEnhanced, nil
	}
	return "", fmt.Errorf("unknown service tier %q", s)
}

// SearchDegree bounds how far network discovery walks.
type SearchDegree int

const (
	DegreeD1 SearchDegree = 1 // subject only
	DegreeD2 SearchDegree = 2 // direct connections
	DegreeD3 SearchDegree = 3 // extended network; Enhanced tier only
)

func ParseSearchDegree(n int) (SearchDegree, error) {
	switch n {
	case 1, 2, 3:
		return SearchDegree(n), nil
	}
	return 0, fmt.Errorf("search degree must be 1, 2 or 3, got %d", n)
}

// DataOrigin controls cache visibility across tenants.
type DataOrigin string

const (
	// OriginPaidExternal data was purchased from a provider and is shared
	// between tenants to amortize cost.
	OriginPaidExternal DataOrigin = "paid_external"
	// OriginCustomerProvided data came from a tenant and never leaves it.
	OriginCustomerProvided DataOrigin = "customer_provided"
)

// RoleCategory steers compliance rules, relevance weighting and vigilance.
type RoleCategory string

const (
	RoleStandard       RoleCategory = "standard"
	RoleExecutive      RoleCategory = "executive"
	RoleFinancial      RoleCategory = "financial"
	RoleGovernment     RoleCategory = "government"
	RoleSecurity       RoleCategory = "security"
	RoleHealthcare     RoleCategory = "healthcare"
	RoleEducation      RoleCategory = "education"
	RoleTransportation RoleCategory = "transportation"
	RoleContractor     RoleCategory = "contractor"
)

func ParseRoleCategory(s string) (RoleCategory, error) {
	role := RoleCategory(strings.ToLower(strings.TrimSpace(s)))
	switch role {
	case RoleStandard, RoleExecutive, RoleFinancial, RoleGovernment,
		RoleSecurity, RoleHealthcare, RoleEducation, RoleTransportation,
		RoleContractor:
		return role, nil
	}
	return "", fmt.Errorf("unknown role category %q", s)
}
