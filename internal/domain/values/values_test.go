package values_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscreen/screening-backend/internal/domain/values"
)

func TestLocaleHierarchy(t *testing.T) {
	tests := []struct {
		locale values.Locale
		parent values.Locale
	}{
		{"US_CA", "US"},
		{"US_CA_SF", "US_CA"},
		{"US", ""},
		{"EU", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.parent, tt.locale.Parent(), "parent of %s", tt.locale)
	}

	assert.True(t, values.LocaleUS.Contains("US_CA"))
	assert.True(t, values.LocaleUS.Contains(values.LocaleUS))
	assert.False(t, values.LocaleUS.Contains(values.LocaleEU))
	assert.False(t, values.Locale("US_CA").Contains("US"))
}

func TestNewLocale(t *testing.T) {
	l, err := values.NewLocale(" us_ca ")
	require.NoError(t, err)
	assert.Equal(t, values.Locale("US_CA"), l)

	_, err = values.NewLocale("")
	assert.Error(t, err)
	_, err = values.NewLocale("us-ca")
	assert.Error(t, err)
}

func TestSeverityEscalate(t *testing.T) {
	assert.Equal(t, values.SeverityMedium, values.SeverityLow.Escalate())
	assert.Equal(t, values.SeverityCritical, values.SeverityHigh.Escalate())
	assert.Equal(t, values.SeverityCritical, values.SeverityCritical.Escalate())
}

func TestSeverityBaseScore(t *testing.T) {
	assert.Equal(t, 10.0, values.SeverityLow.BaseScore())
	assert.Equal(t, 25.0, values.SeverityMedium.BaseScore())
	assert.Equal(t, 50.0, values.SeverityHigh.BaseScore())
	assert.Equal(t, 75.0, values.SeverityCritical.BaseScore())
}

func TestRiskLevelBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		level values.RiskLevel
	}{
		{0, values.RiskLow},
		{25, values.RiskLow},
		{25.1, values.RiskModerate},
		{50, values.RiskModerate},
		{75, values.RiskHigh},
		{75.1, values.RiskCritical},
		{100, values.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, values.RiskLevelForScore(tt.score), "score %v", tt.score)
	}
}

func TestRecommendationForLevel(t *testing.T) {
	assert.Equal(t, values.RecommendProceed, values.RecommendationForLevel(values.RiskLow))
	assert.Equal(t, values.RecommendProceedWithCaution, values.RecommendationForLevel(values.RiskModerate))
	assert.Equal(t, values.RecommendReviewRequired, values.RecommendationForLevel(values.RiskHigh))
	assert.Equal(t, values.RecommendDoNotProceed, values.RecommendationForLevel(values.RiskCritical))
}

func TestConfidence(t *testing.T) {
	_, err := values.NewConfidence(1.2)
	assert.Error(t, err)
	_, err = values.NewConfidence(-0.1)
	assert.Error(t, err)

	c, err := values.NewConfidence(0.85)
	require.NoError(t, err)
	assert.True(t, c.Meets(0.85))
	assert.False(t, c.Meets(0.86))

	assert.Equal(t, values.Confidence(1), values.ClampConfidence(3.7))
	assert.Equal(t, values.Confidence(0), values.ClampConfidence(-2))
}

func TestParseCheckType(t *testing.T) {
	ct, err := values.ParseCheckType(" Criminal_National ")
	require.NoError(t, err)
	assert.Equal(t, values.CheckCriminalNational, ct)

	_, err = values.ParseCheckType("palm_reading")
	assert.Error(t, err)
}

func TestCheckCategory(t *testing.T) {
	assert.Equal(t, values.CategoryCriminal, values.CheckCriminalCounty.Category())
	assert.Equal(t, values.CategoryCredit, values.CheckBankruptcy.Category())
	assert.Equal(t, values.CategoryDefault, values.CheckSanctionsScreen.Category())
}

func TestParseSearchDegree(t *testing.T) {
	d, err := values.ParseSearchDegree(3)
	require.NoError(t, err)
	assert.Equal(t, values.DegreeD3, d)

	_, err = values.ParseSearchDegree(4)
	assert.Error(t, err)
}
