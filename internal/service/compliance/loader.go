package compliance

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/veriscreen/screening-backend/internal/domain/compliance"
)

// Loader assembles the effective ruleset for a tenant: the built-in
// jurisdiction baseline overlaid with stored platform and tenant rules.
// Stored rules win on key collisions, higher priority last.
type Loader struct {
	repo   domain.Repository
	logger *zap.Logger
}

func NewLoader(repo domain.Repository, logger *zap.Logger) *Loader {
	return &Loader{repo: repo, logger: logger}
}

// EngineFor builds a rule engine for the tenant at the given instant.
// A nil repository yields the baseline engine unchanged.
func (l *Loader) EngineFor(ctx context.Context, tenantID uuid.UUID, now time.Time) (*Engine, error) {
	rules := DefaultRules()
	if l.repo != nil {
		records, err := l.repo.Active(ctx, tenantID, now)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Priority < records[j].Priority
		})
		for _, rec := range records {
			rules = append(rules, fromRecord(rec))
		}
		if len(records) > 0 {
			l.logger.Debug("compliance overlay applied",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("stored_rules", len(records)))
		}
	}
	return NewEngine(rules, l.logger), nil
}

func fromRecord(rec *domain.RuleRecord) Rule {
	return Rule{
		Locale:             rec.Locale,
		CheckType:          rec.CheckType,
		RoleCategory:       rec.RoleCategory,
		Permitted:          rec.Permitted,
		BlockReason:        rec.BlockReason,
		LookbackDays:       rec.LookbackDays,
		RequiresConsent:    rec.RequiresConsent,
		RequiresDisclosure: rec.RequiresDisclosure,
	}
}
