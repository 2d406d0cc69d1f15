// Package entityres resolves subject identities to canonical entities:
// exact matching on strong identifiers, weighted fuzzy matching as fallback,
// and dedup-on-write with entity merging.
package entityres

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xrash/smetrics"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Decision is the resolution outcome.
type Decision string

const (
	DecisionMatchExisting Decision = "match_existing"
	DecisionPendingReview Decision = "pending_review"
	DecisionCreateNew     Decision = "create_new"
)

// Match weights per attribute.
const (
	weightName    = 0.40
	weightDOB     = 0.35
	weightAddress = 0.25

	matchThreshold  = 0.85
	reviewThreshold = 0.70
)

// Result is one resolution decision with its evidence.
type Result struct {
	Decision Decision
	Entity   *entity.Entity
	Score    float64
	// Matched identifier for exact matches, "" otherwise.
	MatchedIdentifier entity.IdentifierType
}

// Service performs entity resolution against the repository.
type Service struct {
	repo     entity.Repository
	auditLog *audit.Logger
	logger   *zap.Logger
}

func NewService(repo entity.Repository, auditLog *audit.Logger, logger *zap.Logger) *Service {
	return &Service{repo: repo, auditLog: auditLog, logger: logger}
}

// Resolve finds or creates the canonical entity for a subject. Exact matches
// on canonical identifiers return with confidence 1.0; otherwise the weighted
// fuzzy score decides by service tier.
func (s *Service) Resolve(ctx context.Context, subject *investigation.SubjectIdentifiers, tenantID uuid.UUID, tier values.ServiceTier) (*Result, error) {
	if ssn := subject.NormalizedSSN(); ssn != "" {
		existing, err := s.repo.FindByCanonicalIdentifier(ctx, entity.IdentifierSSN, ssn)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &Result{
				Decision:          DecisionMatchExisting,
				Entity:            existing,
				Score:             1.0,
				MatchedIdentifier: entity.IdentifierSSN,
			}, nil
		}
	}

	candidates, err := s.repo.Candidates(ctx, entity.TypePerson, tenantID)
	if err != nil {
		return nil, err
	}

	best, bestScore := s.bestFuzzy(ctx, subject, candidates)
	switch {
	case best != nil && bestScore >= matchThreshold:
		return &Result{Decision: DecisionMatchExisting, Entity: best, Score: bestScore}, nil
	case best != nil && tier == values.TierEnhanced && bestScore >= reviewThreshold:
		return &Result{Decision: DecisionPendingReview, Entity: best, Score: bestScore}, nil
	}

	created, err := s.createFor(ctx, subject, tenantID)
	if err != nil {
		return nil, err
	}
	return &Result{Decision: DecisionCreateNew, Entity: created, Score: bestScore}, nil
}

func (s *Service) bestFuzzy(ctx context.Context, subject *investigation.SubjectIdentifiers, candidates []*entity.Entity) (*entity.Entity, float64) {
	var best *entity.Entity
	var bestScore float64
	for _, cand := range candidates {
		ids, err := s.repo.ListIdentifiers(ctx, cand.ID)
		if err != nil {
			continue
		}
		score := fuzzyScore(subject, ids)
		if score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best, bestScore
}

// fuzzyScore computes the weighted similarity between a subject and a
// candidate's identifier facts. Name uses Jaro-Winkler; DOB is all-or-nothing;
// address uses token-sorted similarity.
func fuzzyScore(subject *investigation.SubjectIdentifiers, ids []*entity.Identifier) float64 {
	var name, dob, address string
	for _, id := range ids {
		if id.Superseded {
			continue
		}
		switch id.Type {
		case entity.IdentifierFullName:
			name = id.Value
		case entity.IdentifierDOB:
			dob = id.Value
		case entity.IdentifierAddress:
			address = id.Value
		}
	}

	score := weightName * nameSimilarity(subject.FullName, name)
	if subject.DOB != nil && dob != "" {
		if subject.DOB.Format("2006-01-02") == dob {
			score += weightDOB
		}
	}
	if len(subject.Addresses) > 0 && address != "" {
		bestAddr := 0.0
		for _, a := range subject.Addresses {
			if sim := tokenSortedSimilarity(a, address); sim > bestAddr {
				bestAddr = sim
			}
		}
		score += weightAddress * bestAddr
	}
	return score
}

func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return smetrics.JaroWinkler(normalize(a), normalize(b), 0.7, 4)
}

// tokenSortedSimilarity compares addresses irrespective of token order, so
// "123 Main St Apt 4" matches "Apt 4, 123 Main St".
func tokenSortedSimilarity(a, b string) float64 {
	return smetrics.JaroWinkler(tokenSort(a), tokenSort(b), 0.7, 4)
}

func tokenSort(s string) string {
	tokens := strings.Fields(normalize(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// createFor deduplicates on write: a concurrent exact match wins over
// creation.
func (s *Service) createFor(ctx context.Context, subject *investigation.SubjectIdentifiers, tenantID uuid.UUID) (*entity.Entity, error) {
	if ssn := subject.NormalizedSSN(); ssn != "" {
		if existing, err := s.repo.FindByCanonicalIdentifier(ctx, entity.IdentifierSSN, ssn); err == nil && existing != nil {
			return existing, nil
		}
	}

	tid := tenantID
	e, err := entity.New(entity.TypePerson, values.OriginCustomerProvided, &tid)
	if err != nil {
		return nil, err
	}
	if ssn := subject.NormalizedSSN(); ssn != "" {
		e.CanonicalIdentifiers[entity.IdentifierSSN] = ssn
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	ids := []*entity.Identifier{
		entity.NewIdentifier(e.ID, entity.IdentifierFullName, subject.FullName, "customer", 1.0),
	}
	if ssn := subject.NormalizedSSN(); ssn != "" {
		ids = append(ids, entity.NewIdentifier(e.ID, entity.IdentifierSSN, ssn, "customer", 1.0))
	}
	if subject.DOB != nil {
		ids = append(ids, entity.NewIdentifier(e.ID, entity.IdentifierDOB, subject.DOB.Format("2006-01-02"), "customer", 1.0))
	}
	for _, addr := range subject.Addresses {
		ids = append(ids, entity.NewIdentifier(e.ID, entity.IdentifierAddress, addr, "customer", 0.9))
	}
	for _, id := range ids {
		if err := s.repo.AddIdentifier(ctx, id); err != nil {
			return nil, err
		}
	}

	if ev, err := audit.NewEvent(audit.EventEntityCreated, "entity", e.ID.String()); err == nil {
		s.auditLog.Log(ctx, ev)
	}
	return e, nil
}

// AddIdentifier appends an identifier to an entity and merges when the value
// exact-matches a different entity. The canonical survivor is the older
// (numerically lower) UUIDv7.
func (s *Service) AddIdentifier(ctx context.Context, entityID uuid.UUID, t entity.IdentifierType, value, source string, conf values.Confidence) error {
	owner, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return err
	}

	if err := s.repo.AddIdentifier(ctx, entity.NewIdentifier(entityID, t, value, source, conf)); err != nil {
		return err
	}

	if !t.IsCanonical() {
		return nil
	}
	other, err := s.repo.FindByCanonicalIdentifier(ctx, t, value)
	if err != nil || other == nil || other.ID == entityID {
		return err
	}
	return s.merge(ctx, owner, other)
}

// merge absorbs the younger entity into the older one: relations and
// profiles are re-pointed, identifiers union (deduplicated by type and
// value), and the absorbed entity is flagged superseded.
func (s *Service) merge(ctx context.Context, a, b *entity.Entity) error {
	survivor, absorbed := a, b
	if b.IsOlderThan(a) {
		survivor, absorbed = b, a
	}

	survivorIDs, err := s.repo.ListIdentifiers(ctx, survivor.ID)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(survivorIDs))
	for _, id := range survivorIDs {
		seen[string(id.Type)+"\x00"+id.Value] = true
	}
	absorbedIDs, err := s.repo.ListIdentifiers(ctx, absorbed.ID)
	if err != nil {
		return err
	}
	for _, id := range absorbedIDs {
		key := string(id.Type) + "\x00" + id.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		moved := entity.NewIdentifier(survivor.ID, id.Type, id.Value, id.Source, id.Confidence)
		moved.DiscoveredAt = id.DiscoveredAt
		if err := s.repo.AddIdentifier(ctx, moved); err != nil {
			return err
		}
	}

	if err := s.repo.Merge(ctx, survivor.ID, absorbed.ID); err != nil {
		return err
	}

	s.logger.Info("entities merged",
		zap.String("survivor_id", survivor.ID.String()),
		zap.String("absorbed_id", absorbed.ID.String()))

	if ev, err := audit.NewEvent(audit.EventEntityMerged, "entity", survivor.ID.String()); err == nil {
		ev.WithData("absorbed_id", absorbed.ID.String()).
			WithData("merged_at", time.Now().UTC().Format(time.RFC3339))
		s.auditLog.Log(ctx, ev)
	}
	return nil
}

// Relations returns the entity's persisted relation edges in both directions.
func (s *Service) Relations(ctx context.Context, entityID uuid.UUID) ([]*entity.Relation, error) {
	return s.repo.ListRelations(ctx, entityID)
}
