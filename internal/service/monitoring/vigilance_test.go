package monitoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

func TestLevelFor(t *testing.T) {
	m := NewVigilanceManager(zap.NewNop())

	tests := []struct {
		name string
		role values.RoleCategory
		risk float64
		want monitoring.VigilanceLevel
	}{
		{"government baseline", values.RoleGovernment, 0, monitoring.VigilanceV3},
		{"standard baseline", values.RoleStandard, 0, monitoring.VigilanceV1},
		{"unknown role defaults to v1", values.RoleCategory("odd"), 0, monitoring.VigilanceV1},
		{"moderate risk floors to v2", values.RoleStandard, 55, monitoring.VigilanceV2},
		{"high risk floors to v3", values.RoleContractor, 80, monitoring.VigilanceV3},
		{"role beats a lower risk floor", values.RoleSecurity, 55, monitoring.VigilanceV3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.LevelFor(tt.role, tt.risk))
		})
	}
}

func TestApplyOnlyEscalates(t *testing.T) {
	m := NewVigilanceManager(zap.NewNop())
	s := &monitoring.Subject{
		ID:           uuid.Must(uuid.NewV7()),
		RoleCategory: values.RoleStandard,
		Vigilance:    monitoring.VigilanceV1,
	}

	// Risk crossing 75 escalates to V3.
	assert.True(t, m.Apply(s, 80))
	assert.Equal(t, monitoring.VigilanceV3, s.Vigilance)

	// A calmer re-screen never lowers the level.
	assert.False(t, m.Apply(s, 10))
	assert.Equal(t, monitoring.VigilanceV3, s.Vigilance)
}

func TestOverrideCanLower(t *testing.T) {
	m := NewVigilanceManager(zap.NewNop())
	s := &monitoring.Subject{
		ID:        uuid.Must(uuid.NewV7()),
		Vigilance: monitoring.VigilanceV3,
	}

	m.Override(s, monitoring.VigilanceV1, "case closed after review")
	assert.Equal(t, monitoring.VigilanceV1, s.Vigilance)
}
