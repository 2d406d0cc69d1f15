package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veriscreen/screening-backend/internal/domain/compliance"
	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

type complianceRuleRepository struct {
	db *pgxpool.Pool
}

// NewComplianceRuleRepository creates the stored rule overlay repository.
func NewComplianceRuleRepository(db *pgxpool.Pool) compliance.Repository {
	return &complianceRuleRepository{db: db}
}

const ruleColumns = `
	SELECT id, tenant_id, locale, check_type, role_category, priority,
		permitted, block_reason, lookback_days, requires_consent,
		requires_disclosure, active, effective_at, expires_at, created_at
	FROM compliance_rules`

func (r *complianceRuleRepository) Save(ctx context.Context, rec *compliance.RuleRecord) error {
	query := `
		INSERT INTO compliance_rules (
			id, tenant_id, locale, check_type, role_category, priority,
			permitted, block_reason, lookback_days, requires_consent,
			requires_disclosure, active, effective_at, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			priority = EXCLUDED.priority,
			permitted = EXCLUDED.permitted,
			block_reason = EXCLUDED.block_reason,
			lookback_days = EXCLUDED.lookback_days,
			requires_consent = EXCLUDED.requires_consent,
			requires_disclosure = EXCLUDED.requires_disclosure,
			active = EXCLUDED.active,
			effective_at = EXCLUDED.effective_at,
			expires_at = EXCLUDED.expires_at`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.TenantID, string(rec.Locale), string(rec.CheckType),
		string(rec.RoleCategory), rec.Priority,
		rec.Permitted, rec.BlockReason, rec.LookbackDays,
		rec.RequiresConsent, rec.RequiresDisclosure,
		rec.Active, rec.EffectiveAt, rec.ExpiresAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save compliance rule: %w", err)
	}
	return nil
}

func (r *complianceRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*compliance.RuleRecord, error) {
	rec, err := scanRule(r.db.QueryRow(ctx, ruleColumns+` WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("compliance rule")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compliance rule: %w", err)
	}
	return rec, nil
}

func (r *complianceRuleRepository) Active(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]*compliance.RuleRecord, error) {
	query := ruleColumns + `
		WHERE active
		  AND (tenant_id IS NULL OR tenant_id = $1)
		  AND effective_at <= $2
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY priority DESC, created_at`

	rows, err := r.db.Query(ctx, query, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()

	var out []*compliance.RuleRecord
	for rows.Next() {
		rec, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compliance rule: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compliance rules: %w", err)
	}
	return out, nil
}

func (r *complianceRuleRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE compliance_rules SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate compliance rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("compliance rule")
	}
	return nil
}

func scanRule(row pgx.Row) (*compliance.RuleRecord, error) {
	rec := &compliance.RuleRecord{}
	var locale, check, role string
	err := row.Scan(&rec.ID, &rec.TenantID, &locale, &check, &role, &rec.Priority,
		&rec.Permitted, &rec.BlockReason, &rec.LookbackDays,
		&rec.RequiresConsent, &rec.RequiresDisclosure,
		&rec.Active, &rec.EffectiveAt, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Locale = values.Locale(locale)
	rec.CheckType = values.CheckType(check)
	rec.RoleCategory = values.RoleCategory(role)
	return rec, nil
}
