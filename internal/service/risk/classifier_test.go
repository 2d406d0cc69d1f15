package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/service/ai"
)

func TestClassifyKeywordFamilies(t *testing.T) {
	c := NewClassifier(0.7)

	tests := []struct {
		name    string
		text    string
		wantCat investigation.Category
		wantSub string
	}{
		{
			name:    "felony conviction",
			text:    "Subject has a felony conviction from 2019",
			wantCat: investigation.CategoryCriminal,
			wantSub: SubCriminalFelony,
		},
		{
			name:    "wire fraud",
			text:    "Indicted for wire fraud",
			wantCat: investigation.CategoryCriminal,
			wantSub: SubCriminalFraud,
		},
		{
			name:    "tax lien",
			text:    "Tax lien filed against subject in 2021",
			wantCat: investigation.CategoryFinancial,
			wantSub: SubFinancialLien,
		},
		{
			name:    "sanctions",
			text:    "Name appears on the OFAC SDN list",
			wantCat: investigation.CategoryRegulatory,
			wantSub: SubRegulatorySanctions,
		},
		{
			name:    "education mismatch",
			text:    "Degree not verified by the registrar",
			wantCat: investigation.CategoryVerification,
			wantSub: SubVerificationEducation,
		},
		{
			name:    "shell company",
			text:    "Director of a shell company with no physical presence",
			wantCat: investigation.CategoryNetwork,
			wantSub: SubNetworkShellCompany,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := c.Classify(tt.text, values.RoleStandard, nil)
			assert.Equal(t, tt.wantCat, cls.Category)
			assert.Equal(t, tt.wantSub, cls.SubCategory)
			assert.NotEmpty(t, cls.MatchedKeywords)
			assert.GreaterOrEqual(t, cls.Confidence.Float(), 0.6)
		})
	}
}

func TestClassifyNoKeywordsFallsBack(t *testing.T) {
	c := NewClassifier(0.7)
	cls := c.Classify("nothing remarkable in this record", values.RoleStandard, nil)

	assert.Equal(t, investigation.CategoryBehavioral, cls.Category)
	assert.Equal(t, SubBehavioralPattern, cls.SubCategory)
	assert.InDelta(t, 0.3, cls.Confidence.Float(), 0.001)
	assert.Empty(t, cls.MatchedKeywords)
}

func TestClassifyConfidenceGrowsWithHits(t *testing.T) {
	c := NewClassifier(0.7)

	one := c.Classify("subject was convicted", values.RoleStandard, nil)
	two := c.Classify("felony conviction, convicted after trial", values.RoleStandard, nil)
	assert.Greater(t, two.Confidence.Float(), one.Confidence.Float())
}

func TestClassifySuggestionValidated(t *testing.T) {
	c := NewClassifier(0.7)

	cls := c.Classify("Name appears on the OFAC SDN list", values.RoleFinancial, &ai.Suggestion{
		Category:    investigation.CategoryRegulatory,
		SubCategory: SubRegulatorySanctions,
		Confidence:  0.99,
	})

	assert.Equal(t, investigation.CategoryRegulatory, cls.Category)
	assert.False(t, cls.WasReclassified)
	// Model confidence exceeds the rule-derived one and is adopted.
	assert.InDelta(t, 0.99, cls.Confidence.Float(), 0.001)
}

func TestClassifySuggestionRejectedWithoutEvidence(t *testing.T) {
	c := NewClassifier(0.7)

	// Regulatory suggestion for plainly financial text: no regulatory
	// keywords corroborate it, so the rule category stands.
	cls := c.Classify("Tax lien filed against subject", values.RoleStandard, &ai.Suggestion{
		Category:   investigation.CategoryRegulatory,
		Confidence: 0.95,
	})

	assert.Equal(t, investigation.CategoryFinancial, cls.Category)
	assert.Equal(t, investigation.CategoryRegulatory, cls.OriginalCategory)
	assert.True(t, cls.WasReclassified)
}

func TestClassifySuggestionBelowValidationConfidence(t *testing.T) {
	c := NewClassifier(0.7)

	cls := c.Classify("felony conviction", values.RoleStandard, &ai.Suggestion{
		Category:   investigation.CategoryCriminal,
		Confidence: 0.5,
	})

	// Low-confidence suggestions are ignored even when the category agrees.
	assert.Equal(t, investigation.CategoryCriminal, cls.Category)
	assert.Equal(t, SubCriminalFelony, cls.SubCategory)
	assert.False(t, cls.WasReclassified)
}

func TestRoleRelevanceMatrix(t *testing.T) {
	assert.Equal(t, 1.0, RoleRelevance(investigation.CategoryCriminal, values.RoleGovernment))
	assert.Equal(t, 0.9, RoleRelevance(investigation.CategoryCriminal, values.RoleFinancial))
	assert.Equal(t, 0.7, RoleRelevance(investigation.CategoryCriminal, values.RoleStandard))
	assert.Equal(t, 1.0, RoleRelevance(investigation.CategoryFinancial, values.RoleFinancial))
	assert.Equal(t, 0.4, RoleRelevance(investigation.CategoryReputation, values.RoleStandard))
	// Unlisted pairs read 0.5.
	assert.Equal(t, 0.5, RoleRelevance(investigation.CategoryCriminal, values.RoleCategory("unknown")))
}
