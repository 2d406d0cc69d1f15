package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
)

type auditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates the append-only audit event store. The type
// exposes no update or delete path; the audit_events table additionally
// revokes UPDATE and DELETE from the application role in the schema.
func NewAuditRepository(db *pgxpool.Pool) audit.Repository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Insert(ctx context.Context, e *audit.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit data: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, tenant_id, actor_id, correlation_id, event_type, severity,
			resource_type, resource_id, data, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.Exec(ctx, query,
		e.ID, e.TenantID, e.ActorID, e.CorrelationID,
		string(e.Type), string(e.Severity),
		e.ResourceType, e.ResourceID, data, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]*audit.Event, error) {
	query := `
		SELECT id, tenant_id, actor_id, correlation_id, event_type, severity,
			resource_type, resource_id, data, created_at
		FROM audit_events WHERE correlation_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var out []*audit.Event
	for rows.Next() {
		e := &audit.Event{}
		var typ, sev string
		var data []byte
		err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.CorrelationID,
			&typ, &sev, &e.ResourceType, &e.ResourceID, &data, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Type = audit.EventType(typ)
		e.Severity = audit.Severity(sev)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit data: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return out, nil
}
