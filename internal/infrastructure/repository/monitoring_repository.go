package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

type subjectRepository struct {
	db *pgxpool.Pool
}

// NewSubjectRepository creates the monitored subject store.
func NewSubjectRepository(db *pgxpool.Pool) monitoring.SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) Upsert(ctx context.Context, s *monitoring.Subject) error {
	query := `
		INSERT INTO monitored_subjects (
			id, tenant_id, entity_id, vigilance_level, role_category,
			locale, service_tier, next_check_at, paused
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			vigilance_level = EXCLUDED.vigilance_level,
			role_category = EXCLUDED.role_category,
			locale = EXCLUDED.locale,
			service_tier = EXCLUDED.service_tier,
			next_check_at = EXCLUDED.next_check_at,
			paused = EXCLUDED.paused`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.TenantID, s.EntityID, int(s.Vigilance),
		string(s.RoleCategory), string(s.Locale), string(s.Tier),
		s.NextCheckAt, s.Paused)
	if err != nil {
		return fmt.Errorf("failed to upsert subject: %w", err)
	}
	return nil
}

func (r *subjectRepository) Get(ctx context.Context, id uuid.UUID) (*monitoring.Subject, error) {
	query := subjectColumns + ` WHERE id = $1`

	s, err := scanSubject(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("monitored subject")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return s, nil
}

// Due returns unpaused subjects whose next check time has passed, oldest
// first so the scheduler drains backlog in order.
func (r *subjectRepository) Due(ctx context.Context, now time.Time) ([]*monitoring.Subject, error) {
	query := subjectColumns + `
		WHERE NOT paused AND vigilance_level > 0 AND next_check_at <= $1
		ORDER BY next_check_at`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due subjects: %w", err)
	}
	defer rows.Close()

	var out []*monitoring.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subjects: %w", err)
	}
	return out, nil
}

const subjectColumns = `
	SELECT id, tenant_id, entity_id, vigilance_level, role_category,
		locale, service_tier, next_check_at, paused
	FROM monitored_subjects`

func scanSubject(row pgx.Row) (*monitoring.Subject, error) {
	s := &monitoring.Subject{}
	var level int
	var role, locale, tier string
	err := row.Scan(&s.ID, &s.TenantID, &s.EntityID, &level, &role, &locale, &tier, &s.NextCheckAt, &s.Paused)
	if err != nil {
		return nil, err
	}
	s.Vigilance = monitoring.VigilanceLevel(level)
	s.RoleCategory = values.RoleCategory(role)
	s.Locale = values.Locale(locale)
	s.Tier = values.ServiceTier(tier)
	return s, nil
}

type alertRepository struct {
	db *pgxpool.Pool
}

// NewAlertRepository creates the alert store backing escalation-window
// queries.
func NewAlertRepository(db *pgxpool.Pool) monitoring.AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Insert(ctx context.Context, a *monitoring.Alert) error {
	deltas, err := json.Marshal(a.Deltas)
	if err != nil {
		return fmt.Errorf("failed to marshal alert deltas: %w", err)
	}

	query := `
		INSERT INTO alerts (id, subject_id, tenant_id, severity, message, deltas, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		a.ID, a.SubjectID, a.TenantID, int(a.Severity), a.Message, deltas, a.Resolved, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (r *alertRepository) UnresolvedSince(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM alerts
		WHERE subject_id = $1 AND NOT resolved AND created_at >= $2`

	var count int
	if err := r.db.QueryRow(ctx, query, subjectID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unresolved alerts: %w", err)
	}
	return count, nil
}
