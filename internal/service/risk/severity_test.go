package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

func TestSeverityPatternMatch(t *testing.T) {
	sc := NewSeverityCalculator()
	f := investigation.NewFinding(investigation.CategoryCriminal, values.SeverityLow,
		"Felony conviction for wire fraud in federal court")
	cls := Classification{Category: investigation.CategoryCriminal, SubCategory: SubCriminalFraud}

	d := sc.Calculate(f, cls, values.RoleStandard)
	assert.Equal(t, values.SeverityCritical, d.Initial)
	assert.Equal(t, "felony conviction", d.MatchedRule)
	assert.False(t, d.FromDefault)
	assert.Equal(t, values.SeverityCritical, d.Final)
	assert.Empty(t, d.Adjustments)
}

func TestSeveritySubCategoryDefault(t *testing.T) {
	sc := NewSeverityCalculator()
	// "larceny" matches no explicit pattern; the theft default applies.
	f := investigation.NewFinding(investigation.CategoryCriminal, values.SeverityLow,
		"Larceny charge on county record")
	cls := Classification{Category: investigation.CategoryCriminal, SubCategory: SubCriminalTheft}

	d := sc.Calculate(f, cls, values.RoleStandard)
	assert.Equal(t, values.SeverityMedium, d.Initial)
	assert.Empty(t, d.MatchedRule)
	assert.False(t, d.FromDefault)
}

func TestSeverityFallback(t *testing.T) {
	sc := NewSeverityCalculator()
	f := investigation.NewFinding(investigation.CategoryBehavioral, values.SeverityLow,
		"unspecified concern")
	cls := Classification{Category: investigation.CategoryBehavioral, SubCategory: "unmapped"}

	d := sc.Calculate(f, cls, values.RoleStandard)
	assert.Equal(t, values.SeverityMedium, d.Initial)
	assert.True(t, d.FromDefault)
}

func TestSeverityRoleAlignmentEscalates(t *testing.T) {
	sc := NewSeverityCalculator()
	f := investigation.NewFinding(investigation.CategoryCriminal, values.SeverityLow,
		"Larceny charge on county record")
	cls := Classification{Category: investigation.CategoryCriminal, SubCategory: SubCriminalTheft}

	d := sc.Calculate(f, cls, values.RoleSecurity)
	assert.Equal(t, values.SeverityMedium, d.Initial)
	assert.Equal(t, values.SeverityHigh, d.Final)
	assert.Contains(t, d.Adjustments, "role_alignment")
}

func TestSeverityRecencyEscalates(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sc := NewSeverityCalculator()
	sc.now = func() time.Time { return now }

	recent := now.Add(-90 * 24 * time.Hour)
	f := investigation.NewFinding(investigation.CategoryCriminal, values.SeverityLow,
		"Larceny charge on county record")
	f.DiscoveredAt = &recent
	cls := Classification{Category: investigation.CategoryCriminal, SubCategory: SubCriminalTheft}

	d := sc.Calculate(f, cls, values.RoleStandard)
	assert.Equal(t, values.SeverityHigh, d.Final)
	assert.Contains(t, d.Adjustments, "recency")

	// Old events do not escalate.
	old := now.Add(-5 * 365 * 24 * time.Hour)
	f.DiscoveredAt = &old
	d = sc.Calculate(f, cls, values.RoleStandard)
	assert.Equal(t, values.SeverityMedium, d.Final)
}

func TestSeverityEscalationCapsAtCritical(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sc := NewSeverityCalculator()
	sc.now = func() time.Time { return now }

	recent := now.Add(-24 * time.Hour)
	f := investigation.NewFinding(investigation.CategoryCriminal, values.SeverityLow,
		"Sexual assault conviction")
	f.DiscoveredAt = &recent
	cls := Classification{Category: investigation.CategoryCriminal, SubCategory: SubCriminalSexual}

	// Critical initial plus two escalations stays critical.
	d := sc.Calculate(f, cls, values.RoleEducation)
	assert.Equal(t, values.SeverityCritical, d.Initial)
	assert.Equal(t, values.SeverityCritical, d.Final)
	assert.Len(t, d.Adjustments, 2)
}
