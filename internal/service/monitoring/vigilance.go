package monitoring

import (
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// roleDefaults is the baseline vigilance per role category.
var roleDefaults = map[values.RoleCategory]monitoring.VigilanceLevel{
	values.RoleGovernment:     monitoring.VigilanceV3,
	values.RoleSecurity:       monitoring.VigilanceV3,
	values.RoleExecutive:      monitoring.VigilanceV2,
	values.RoleFinancial:      monitoring.VigilanceV2,
	values.RoleHealthcare:     monitoring.VigilanceV2,
	values.RoleEducation:      monitoring.VigilanceV2,
	values.RoleTransportation: monitoring.VigilanceV2,
	values.RoleStandard:       monitoring.VigilanceV1,
	values.RoleContractor:     monitoring.VigilanceV1,
}

// VigilanceManager decides the monitoring level for a subject. Risk-based
// escalation is automatic; de-escalation never is and requires Override.
type VigilanceManager struct {
	logger *zap.Logger
}

func NewVigilanceManager(logger *zap.Logger) *VigilanceManager {
	return &VigilanceManager{logger: logger}
}

// LevelFor computes the required level from role and the latest risk score;
// the result is the maximum of the two drivers.
func (m *VigilanceManager) LevelFor(role values.RoleCategory, riskScore float64) monitoring.VigilanceLevel {
	level, ok := roleDefaults[role]
	if !ok {
		level = monitoring.VigilanceV1
	}
	if floor := riskFloor(riskScore); floor > level {
		level = floor
	}
	return level
}

func riskFloor(score float64) monitoring.VigilanceLevel {
	switch {
	case score >= 75:
		return monitoring.VigilanceV3
	case score >= 50:
		return monitoring.VigilanceV2
	default:
		return monitoring.VigilanceV0
	}
}

// Apply raises the subject's vigilance when the computed level is higher and
// reports whether it changed. A computed level below the current one is
// ignored: downgrades only happen through Override.
func (m *VigilanceManager) Apply(s *monitoring.Subject, riskScore float64) bool {
	required := m.LevelFor(s.RoleCategory, riskScore)
	if required <= s.Vigilance {
		return false
	}
	m.logger.Info("vigilance escalated",
		zap.String("subject_id", s.ID.String()),
		zap.String("from", s.Vigilance.String()),
		zap.String("to", required.String()),
		zap.Float64("risk_score", riskScore))
	s.Vigilance = required
	return true
}

// Override sets an explicit level, the only path that can lower vigilance.
func (m *VigilanceManager) Override(s *monitoring.Subject, level monitoring.VigilanceLevel, reason string) {
	m.logger.Info("vigilance overridden",
		zap.String("subject_id", s.ID.String()),
		zap.String("from", s.Vigilance.String()),
		zap.String("to", level.String()),
		zap.String("reason", reason))
	s.Vigilance = level
}
