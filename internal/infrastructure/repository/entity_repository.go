package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// ValueCipher seals identifier values before they reach a row. Lookups use a
// SHA-256 digest column, so equality search works without decrypting.
type ValueCipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(sealed []byte) ([]byte, error)
}

type entityRepository struct {
	db     *pgxpool.Pool
	cipher ValueCipher
}

// NewEntityRepository creates a PostgreSQL-backed entity store. Identifier
// values are encrypted at rest with the given cipher.
func NewEntityRepository(db *pgxpool.Pool, cipher ValueCipher) entity.Repository {
	return &entityRepository{db: db, cipher: cipher}
}

func valueDigest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func (r *entityRepository) Create(ctx context.Context, e *entity.Entity) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO entities (id, entity_type, tenant_id, data_origin, superseded, created_at)
		VALUES ($1, $2, $3, $4, false, $5)`

	if _, err := tx.Exec(ctx, query, e.ID, string(e.Type), e.TenantID, string(e.DataOrigin), e.CreatedAt); err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}

	for t, value := range e.CanonicalIdentifiers {
		if err := r.upsertCanonical(ctx, tx, e.ID, t, value); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit entity create: %w", err)
	}
	return nil
}

func (r *entityRepository) upsertCanonical(ctx context.Context, tx pgx.Tx, entityID uuid.UUID, t entity.IdentifierType, value string) error {
	sealed, err := r.cipher.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to seal canonical identifier: %w", err)
	}
	query := `
		INSERT INTO entity_canonical_identifiers (entity_id, identifier_type, value_hash, value_enc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_id, identifier_type) DO UPDATE
		SET value_hash = EXCLUDED.value_hash, value_enc = EXCLUDED.value_enc`

	if _, err := tx.Exec(ctx, query, entityID, string(t), valueDigest(value), sealed); err != nil {
		return fmt.Errorf("failed to store canonical identifier: %w", err)
	}
	return nil
}

func (r *entityRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Entity, error) {
	query := `
		SELECT id, entity_type, tenant_id, data_origin, superseded, superseded_by, created_at
		FROM entities WHERE id = $1`

	e, err := r.scanEntity(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("entity")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	if err := r.loadCanonical(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *entityRepository) FindByCanonicalIdentifier(ctx context.Context, t entity.IdentifierType, value string) (*entity.Entity, error) {
	query := `
		SELECT e.id, e.entity_type, e.tenant_id, e.data_origin, e.superseded, e.superseded_by, e.created_at
		FROM entities e
		JOIN entity_canonical_identifiers ci ON ci.entity_id = e.id
		WHERE ci.identifier_type = $1 AND ci.value_hash = $2 AND NOT e.superseded
		ORDER BY e.id LIMIT 1`

	e, err := r.scanEntity(r.db.QueryRow(ctx, query, string(t), valueDigest(value)))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entity by identifier: %w", err)
	}
	if err := r.loadCanonical(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *entityRepository) AddIdentifier(ctx context.Context, id *entity.Identifier) error {
	sealed, err := r.cipher.Encrypt([]byte(id.Value))
	if err != nil {
		return fmt.Errorf("failed to seal identifier: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO identifiers (id, entity_id, identifier_type, value_hash, value_enc,
			confidence, source, superseded, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`

	_, err = tx.Exec(ctx, query,
		id.ID, id.EntityID, string(id.Type), valueDigest(id.Value), sealed,
		float64(id.Confidence), id.Source, id.DiscoveredAt)
	if err != nil {
		return fmt.Errorf("failed to add identifier: %w", err)
	}

	if id.Type.IsCanonical() {
		if err := r.upsertCanonical(ctx, tx, id.EntityID, id.Type, id.Value); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit identifier: %w", err)
	}
	return nil
}

func (r *entityRepository) ListIdentifiers(ctx context.Context, entityID uuid.UUID) ([]*entity.Identifier, error) {
	query := `
		SELECT id, entity_id, identifier_type, value_enc, confidence, source, superseded, discovered_at
		FROM identifiers WHERE entity_id = $1
		ORDER BY discovered_at`

	rows, err := r.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifiers: %w", err)
	}
	defer rows.Close()

	var out []*entity.Identifier
	for rows.Next() {
		id := &entity.Identifier{}
		var sealed []byte
		var typ string
		var conf float64
		if err := rows.Scan(&id.ID, &id.EntityID, &typ, &sealed, &conf, &id.Source, &id.Superseded, &id.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		plain, err := r.cipher.Decrypt(sealed)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal identifier %s: %w", id.ID, err)
		}
		id.Type = entity.IdentifierType(typ)
		id.Value = string(plain)
		id.Confidence = values.Confidence(conf)
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identifiers: %w", err)
	}
	return out, nil
}

func (r *entityRepository) MarkIdentifierSuperseded(ctx context.Context, identifierID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE identifiers SET superseded = true WHERE id = $1`, identifierID)
	if err != nil {
		return fmt.Errorf("failed to supersede identifier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("identifier")
	}
	return nil
}

func (r *entityRepository) AddRelation(ctx context.Context, rel *entity.Relation) error {
	query := `
		INSERT INTO relations (from_id, to_id, relation_type, strength, confidence, current, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (from_id, to_id, relation_type) DO UPDATE
		SET strength = EXCLUDED.strength, confidence = EXCLUDED.confidence, current = EXCLUDED.current`

	_, err := r.db.Exec(ctx, query,
		rel.FromID, rel.ToID, string(rel.Type), string(rel.Strength),
		float64(rel.Confidence), rel.Current, rel.DiscoveredAt)
	if err != nil {
		return fmt.Errorf("failed to add relation: %w", err)
	}
	return nil
}

func (r *entityRepository) ListRelations(ctx context.Context, entityID uuid.UUID) ([]*entity.Relation, error) {
	query := `
		SELECT from_id, to_id, relation_type, strength, confidence, current, discovered_at
		FROM relations WHERE from_id = $1 OR to_id = $1`

	rows, err := r.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	var out []*entity.Relation
	for rows.Next() {
		rel := &entity.Relation{}
		var typ, strength string
		var conf float64
		if err := rows.Scan(&rel.FromID, &rel.ToID, &typ, &strength, &conf, &rel.Current, &rel.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		rel.Type = entity.RelationType(typ)
		rel.Strength = entity.ConnectionStrength(strength)
		rel.Confidence = values.Confidence(conf)
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate relations: %w", err)
	}
	return out, nil
}

// Merge re-points relations and profiles from the absorbed entity to the
// survivor and flags the absorbed row superseded, all in one transaction.
// Identifier union happens at the service layer before this call.
func (r *entityRepository) Merge(ctx context.Context, survivorID, absorbedID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	steps := []struct {
		name  string
		query string
	}{
		{"relations_from", `
			UPDATE relations SET from_id = $1
			WHERE from_id = $2 AND NOT EXISTS (
				SELECT 1 FROM relations r2
				WHERE r2.from_id = $1 AND r2.to_id = relations.to_id
				  AND r2.relation_type = relations.relation_type)`},
		{"relations_to", `
			UPDATE relations SET to_id = $1
			WHERE to_id = $2 AND NOT EXISTS (
				SELECT 1 FROM relations r2
				WHERE r2.to_id = $1 AND r2.from_id = relations.from_id
				  AND r2.relation_type = relations.relation_type)`},
		{"profiles", `
			UPDATE profiles SET entity_id = $1,
				version = version + (SELECT COALESCE(MAX(version), 0) FROM profiles WHERE entity_id = $1)
			WHERE entity_id = $2`},
		{"canonical_identifiers", `
			INSERT INTO entity_canonical_identifiers (entity_id, identifier_type, value_hash, value_enc)
			SELECT $1, identifier_type, value_hash, value_enc
			FROM entity_canonical_identifiers WHERE entity_id = $2
			ON CONFLICT (entity_id, identifier_type) DO NOTHING`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step.query, survivorID, absorbedID); err != nil {
			return fmt.Errorf("failed to merge %s: %w", step.name, err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE entities SET superseded = true, superseded_by = $1 WHERE id = $2 AND NOT superseded`,
		survivorID, absorbedID)
	if err != nil {
		return fmt.Errorf("failed to supersede entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("entity")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}
	return nil
}

func (r *entityRepository) Candidates(ctx context.Context, t entity.Type, tenantID uuid.UUID) ([]*entity.Entity, error) {
	query := `
		SELECT id, entity_type, tenant_id, data_origin, superseded, superseded_by, created_at
		FROM entities
		WHERE entity_type = $1 AND NOT superseded
		  AND (tenant_id = $2 OR tenant_id IS NULL)
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, string(t), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		e, err := r.scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	for _, e := range out {
		if err := r.loadCanonical(ctx, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *entityRepository) scanEntity(row pgx.Row) (*entity.Entity, error) {
	e := &entity.Entity{CanonicalIdentifiers: make(map[entity.IdentifierType]string)}
	var typ, origin string
	if err := row.Scan(&e.ID, &typ, &e.TenantID, &origin, &e.Superseded, &e.SupersededBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = entity.Type(typ)
	e.DataOrigin = values.DataOrigin(origin)
	return e, nil
}

func (r *entityRepository) loadCanonical(ctx context.Context, e *entity.Entity) error {
	rows, err := r.db.Query(ctx,
		`SELECT identifier_type, value_enc FROM entity_canonical_identifiers WHERE entity_id = $1`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load canonical identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var sealed []byte
		if err := rows.Scan(&typ, &sealed); err != nil {
			return fmt.Errorf("failed to scan canonical identifier: %w", err)
		}
		plain, err := r.cipher.Decrypt(sealed)
		if err != nil {
			return fmt.Errorf("failed to unseal canonical identifier: %w", err)
		}
		e.CanonicalIdentifiers[entity.IdentifierType(typ)] = string(plain)
	}
	return rows.Err()
}
