// Package testutil provides in-memory fakes for service tests. The fakes
// are not safe for concurrent mutation unless noted; tests that exercise
// parallel paths synchronize through the exported mutexes.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/tenant"
)

// TenantRepo is an in-memory tenant.Repository.
type TenantRepo struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*tenant.Tenant
	bySlug map[string]*tenant.Tenant
}

func NewTenantRepo(tenants ...*tenant.Tenant) *TenantRepo {
	r := &TenantRepo{
		byID:   make(map[uuid.UUID]*tenant.Tenant),
		bySlug: make(map[string]*tenant.Tenant),
	}
	for _, t := range tenants {
		r.byID[t.ID] = t
		r.bySlug[t.Slug] = t
	}
	return r
}

func (r *TenantRepo) Create(_ context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySlug[t.Slug]; ok {
		return errors.NewValidationError("duplicate_tenant_slug", "slug taken")
	}
	r.byID[t.ID] = t
	r.bySlug[t.Slug] = t
	return nil
}

func (r *TenantRepo) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError("tenant")
	}
	return t, nil
}

func (r *TenantRepo) GetBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.bySlug[slug]
	if !ok {
		return nil, errors.NewTenantNotFoundError(slug)
	}
	return t, nil
}

func (r *TenantRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return errors.NewNotFoundError("tenant")
	}
	t.Active = active
	return nil
}

// EntityRepo is an in-memory entity.Repository.
type EntityRepo struct {
	mu          sync.Mutex
	Entities    map[uuid.UUID]*entity.Entity
	Identifiers map[uuid.UUID][]*entity.Identifier
	Relations   []*entity.Relation
	Merges      [][2]uuid.UUID
}

func NewEntityRepo() *EntityRepo {
	return &EntityRepo{
		Entities:    make(map[uuid.UUID]*entity.Entity),
		Identifiers: make(map[uuid.UUID][]*entity.Identifier),
	}
}

func (r *EntityRepo) Create(_ context.Context, e *entity.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entities[e.ID] = e
	return nil
}

func (r *EntityRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Entities[id]
	if !ok {
		return nil, errors.NewNotFoundError("entity")
	}
	return e, nil
}

func (r *EntityRepo) FindByCanonicalIdentifier(_ context.Context, t entity.IdentifierType, value string) (*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Lowest entity ID wins, mirroring the SQL ORDER BY e.id LIMIT 1.
	var best *entity.Entity
	for _, e := range r.Entities {
		if e.Superseded {
			continue
		}
		matched := e.CanonicalIdentifiers[t] == value
		if !matched {
			for _, id := range r.Identifiers[e.ID] {
				if id.Type == t && id.Value == value && !id.Superseded {
					matched = true
					break
				}
			}
		}
		if matched && (best == nil || e.ID.String() < best.ID.String()) {
			best = e
		}
	}
	return best, nil
}

func (r *EntityRepo) AddIdentifier(_ context.Context, id *entity.Identifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Identifiers[id.EntityID] = append(r.Identifiers[id.EntityID], id)
	return nil
}

func (r *EntityRepo) ListIdentifiers(_ context.Context, entityID uuid.UUID) ([]*entity.Identifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.Identifier(nil), r.Identifiers[entityID]...), nil
}

func (r *EntityRepo) MarkIdentifierSuperseded(_ context.Context, identifierID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ids := range r.Identifiers {
		for _, id := range ids {
			if id.ID == identifierID {
				id.Superseded = true
				return nil
			}
		}
	}
	return errors.NewNotFoundError("identifier")
}

func (r *EntityRepo) AddRelation(_ context.Context, rel *entity.Relation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Relations = append(r.Relations, rel)
	return nil
}

func (r *EntityRepo) ListRelations(_ context.Context, entityID uuid.UUID) ([]*entity.Relation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Relation
	for _, rel := range r.Relations {
		if rel.FromID == entityID || rel.ToID == entityID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *EntityRepo) Merge(_ context.Context, survivorID, absorbedID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	absorbed, ok := r.Entities[absorbedID]
	if !ok {
		return errors.NewNotFoundError("entity")
	}
	absorbed.Superseded = true
	sid := survivorID
	absorbed.SupersededBy = &sid
	for _, rel := range r.Relations {
		if rel.FromID == absorbedID {
			rel.FromID = survivorID
		}
		if rel.ToID == absorbedID {
			rel.ToID = survivorID
		}
	}
	r.Merges = append(r.Merges, [2]uuid.UUID{survivorID, absorbedID})
	return nil
}

func (r *EntityRepo) Candidates(_ context.Context, t entity.Type, tenantID uuid.UUID) ([]*entity.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Entity
	for _, e := range r.Entities {
		if e.Superseded || e.Type != t {
			continue
		}
		if e.TenantID != nil && *e.TenantID != tenantID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ProfileRepo is an in-memory entity.ProfileRepository.
type ProfileRepo struct {
	mu       sync.Mutex
	Profiles map[uuid.UUID][]*entity.Profile
}

func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{Profiles: make(map[uuid.UUID][]*entity.Profile)}
}

func (r *ProfileRepo) Create(_ context.Context, p *entity.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Version = int64(len(r.Profiles[p.EntityID])) + 1
	r.Profiles[p.EntityID] = append(r.Profiles[p.EntityID], p)
	return nil
}

func (r *ProfileRepo) Latest(_ context.Context, entityID uuid.UUID) (*entity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.Profiles[entityID]
	if len(ps) == 0 {
		return nil, errors.NewNotFoundError("profile")
	}
	return ps[len(ps)-1], nil
}

func (r *ProfileRepo) LastTwo(_ context.Context, entityID uuid.UUID) (*entity.Profile, *entity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.Profiles[entityID]
	switch len(ps) {
	case 0:
		return nil, nil, errors.NewNotFoundError("profile")
	case 1:
		return ps[0], nil, nil
	default:
		return ps[len(ps)-1], ps[len(ps)-2], nil
	}
}

// AuditRepo records audit events in memory.
type AuditRepo struct {
	mu     sync.Mutex
	Events []*audit.Event
}

func NewAuditRepo() *AuditRepo { return &AuditRepo{} }

func (r *AuditRepo) Insert(_ context.Context, e *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
	return nil
}

func (r *AuditRepo) ListByCorrelation(_ context.Context, correlationID uuid.UUID) ([]*audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Event
	for _, e := range r.Events {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ByType returns recorded events of one type.
func (r *AuditRepo) ByType(t audit.EventType) []*audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Event
	for _, e := range r.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// CheckpointStore is an in-memory append-only checkpoint store.
type CheckpointStore struct {
	mu          sync.Mutex
	Checkpoints map[string][]*investigation.Checkpoint
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{Checkpoints: make(map[string][]*investigation.Checkpoint)}
}

func (s *CheckpointStore) Append(_ context.Context, cp *investigation.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Checkpoints[cp.ScreeningID] = append(s.Checkpoints[cp.ScreeningID], cp)
	return nil
}

func (s *CheckpointStore) Latest(_ context.Context, screeningID string) (*investigation.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := s.Checkpoints[screeningID]
	if len(cps) == 0 {
		return nil, nil
	}
	return cps[len(cps)-1], nil
}

// SubjectRepo is an in-memory monitoring.SubjectRepository.
type SubjectRepo struct {
	mu       sync.Mutex
	Subjects map[uuid.UUID]*monitoring.Subject
}

func NewSubjectRepo(subjects ...*monitoring.Subject) *SubjectRepo {
	r := &SubjectRepo{Subjects: make(map[uuid.UUID]*monitoring.Subject)}
	for _, s := range subjects {
		r.Subjects[s.ID] = s
	}
	return r
}

func (r *SubjectRepo) Upsert(_ context.Context, s *monitoring.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Subjects[s.ID] = s
	return nil
}

func (r *SubjectRepo) Get(_ context.Context, id uuid.UUID) (*monitoring.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Subjects[id]
	if !ok {
		return nil, errors.NewNotFoundError("monitored subject")
	}
	return s, nil
}

func (r *SubjectRepo) Due(_ context.Context, now time.Time) ([]*monitoring.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*monitoring.Subject
	for _, s := range r.Subjects {
		if !s.Paused && s.Vigilance > monitoring.VigilanceV0 && !s.NextCheckAt.After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

// AlertRepo is an in-memory monitoring.AlertRepository.
type AlertRepo struct {
	mu     sync.Mutex
	Alerts []*monitoring.Alert
}

func NewAlertRepo() *AlertRepo { return &AlertRepo{} }

func (r *AlertRepo) Insert(_ context.Context, a *monitoring.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Alerts = append(r.Alerts, a)
	return nil
}

func (r *AlertRepo) UnresolvedSince(_ context.Context, subjectID uuid.UUID, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.Alerts {
		if a.SubjectID == subjectID && !a.Resolved && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Channel records delivered alerts and optionally fails the first N
// deliveries.
type Channel struct {
	mu        sync.Mutex
	ChannelID string
	FailFirst int
	Delivered []*monitoring.Alert
	attempts  int
}

func (c *Channel) Name() string {
	if c.ChannelID == "" {
		return "fake"
	}
	return c.ChannelID
}

func (c *Channel) Deliver(_ context.Context, a *monitoring.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.attempts <= c.FailFirst {
		return errors.NewInternalError("delivery failed")
	}
	c.Delivered = append(c.Delivered, a)
	return nil
}

// Attempts returns how many deliveries were tried.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}
