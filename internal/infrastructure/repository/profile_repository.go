package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/errors"
)

type profileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a PostgreSQL-backed profile snapshot store.
// Profiles are append-only with monotone versions per entity.
func NewProfileRepository(db *pgxpool.Pool) entity.ProfileRepository {
	return &profileRepository{db: db}
}

// Create allocates version latest+1 atomically and writes p.Version back.
// The (entity_id, version) primary key makes concurrent writers retry-safe:
// a losing writer gets a unique violation rather than a duplicate version.
func (r *profileRepository) Create(ctx context.Context, p *entity.Profile) error {
	query := `
		INSERT INTO profiles (entity_id, version, trigger_kind, findings_blob, risk_score, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4, $5
		FROM profiles WHERE entity_id = $1
		RETURNING version`

	err := r.db.QueryRow(ctx, query,
		p.EntityID, string(p.Trigger), []byte(p.Findings), p.RiskScore, p.CreatedAt,
	).Scan(&p.Version)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *profileRepository) Latest(ctx context.Context, entityID uuid.UUID) (*entity.Profile, error) {
	query := `
		SELECT entity_id, version, trigger_kind, findings_blob, risk_score, created_at
		FROM profiles WHERE entity_id = $1
		ORDER BY version DESC LIMIT 1`

	p, err := scanProfile(r.db.QueryRow(ctx, query, entityID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("profile")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest profile: %w", err)
	}
	return p, nil
}

// LastTwo returns the newest snapshot and the one before it. The previous
// profile is nil when only one snapshot exists.
func (r *profileRepository) LastTwo(ctx context.Context, entityID uuid.UUID) (current, previous *entity.Profile, err error) {
	query := `
		SELECT entity_id, version, trigger_kind, findings_blob, risk_score, created_at
		FROM profiles WHERE entity_id = $1
		ORDER BY version DESC LIMIT 2`

	rows, err := r.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var got []*entity.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		got = append(got, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	switch len(got) {
	case 0:
		return nil, nil, errors.NewNotFoundError("profile")
	case 1:
		return got[0], nil, nil
	default:
		return got[0], got[1], nil
	}
}

func scanProfile(row pgx.Row) (*entity.Profile, error) {
	p := &entity.Profile{}
	var trigger string
	var blob []byte
	if err := row.Scan(&p.EntityID, &p.Version, &trigger, &blob, &p.RiskScore, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Trigger = entity.ProfileTrigger(trigger)
	p.Findings = blob
	return p, nil
}
