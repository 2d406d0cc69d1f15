package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriscreen/screening-backend/internal/domain/entity"
	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/requestcontext"
	"github.com/veriscreen/screening-backend/internal/service/screening"
)

// ScreeningRunner is the slice of the screening orchestrator the scheduler
// drives.
type ScreeningRunner interface {
	Run(ctx context.Context, req *screening.Request) (*screening.Screening, error)
}

// Scheduler re-screens monitored subjects on their vigilance cadence and
// feeds the results through delta detection, vigilance adjustment and
// alerting. Distinct subjects run in parallel; checks for one subject are
// serialized.
type Scheduler struct {
	subjects  monitoring.SubjectRepository
	entities  entity.Repository
	profiles  entity.ProfileRepository
	runner    ScreeningRunner
	deltas    *DeltaDetector
	vigilance *VigilanceManager
	alerts    *AlertGenerator
	logger    *zap.Logger

	maxParallel int

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewScheduler(subjects monitoring.SubjectRepository, entities entity.Repository, profiles entity.ProfileRepository, runner ScreeningRunner, deltas *DeltaDetector, vigilance *VigilanceManager, alerts *AlertGenerator, maxParallel int, logger *zap.Logger) *Scheduler {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Scheduler{
		subjects:    subjects,
		entities:    entities,
		profiles:    profiles,
		runner:      runner,
		deltas:      deltas,
		vigilance:   vigilance,
		alerts:      alerts,
		logger:      logger,
		maxParallel: maxParallel,
		locks:       make(map[uuid.UUID]*sync.Mutex),
	}
}

// ExecuteDue runs one pass over every due, unpaused subject. Failures are
// per-subject: one broken check never stops the sweep.
func (s *Scheduler) ExecuteDue(ctx context.Context, now time.Time) error {
	due, err := s.subjects.Due(ctx, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	s.logger.Info("monitoring sweep", zap.Int("due_subjects", len(due)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for _, subject := range due {
		g.Go(func() error {
			if err := s.checkSubject(gctx, subject); err != nil {
				s.logger.Error("monitoring check failed",
					zap.String("subject_id", subject.ID.String()),
					zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Start runs periodic sweeps until the context ends.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.ExecuteDue(ctx, now); err != nil {
				s.logger.Error("monitoring sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) subjectLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Scheduler) checkSubject(ctx context.Context, subject *monitoring.Subject) error {
	lock := s.subjectLock(subject.ID)
	lock.Lock()
	defer lock.Unlock()

	req, err := s.buildRequest(ctx, subject)
	if err != nil {
		return err
	}

	rc := requestcontext.New(subject.TenantID, uuid.Nil, requestcontext.ActorSystem, subject.Locale)
	runCtx := requestcontext.Bind(ctx, rc)

	result, err := s.runner.Run(runCtx, req)
	if err != nil {
		return err
	}

	current, previous, err := s.profiles.LastTwo(ctx, subject.EntityID)
	if err != nil {
		return err
	}
	if current != nil && previous != nil {
		report, err := s.deltas.Compare(subject, previous, current)
		if err != nil {
			return err
		}
		if _, escalate, err := s.alerts.Process(runCtx, subject, report); err != nil {
			return err
		} else if escalate {
			s.logger.Warn("subject escalated to human review",
				zap.String("subject_id", subject.ID.String()))
		}
	}

	if result.Result != nil {
		s.vigilance.Apply(subject, result.Result.OverallScore)
	}

	// Advance from the scheduled time, not from completion, so cadence does
	// not drift with screening duration.
	if interval := subject.Vigilance.Interval(); interval > 0 {
		subject.NextCheckAt = subject.NextCheckAt.Add(interval)
	}
	return s.subjects.Upsert(ctx, subject)
}

// buildRequest reconstructs the screening order from the entity's stored
// identifiers and the subject's monitoring configuration.
func (s *Scheduler) buildRequest(ctx context.Context, subject *monitoring.Subject) (*screening.Request, error) {
	ids, err := s.entities.ListIdentifiers(ctx, subject.EntityID)
	if err != nil {
		return nil, err
	}

	var subj investigation.SubjectIdentifiers
	for _, id := range ids {
		if id.Superseded {
			continue
		}
		switch id.Type {
		case entity.IdentifierFullName:
			if subj.FullName == "" {
				subj.FullName = id.Value
			} else if id.Value != subj.FullName {
				subj.Aliases = append(subj.Aliases, id.Value)
			}
		case entity.IdentifierSSN:
			subj.SSN = id.Value
		case entity.IdentifierDOB:
			if ts, perr := time.Parse("2006-01-02", id.Value); perr == nil {
				subj.DOB = &ts
			}
		case entity.IdentifierAddress:
			subj.Addresses = append(subj.Addresses, id.Value)
		case entity.IdentifierEmail:
			subj.Email = id.Value
		case entity.IdentifierPhone:
			subj.Phone = id.Value
		}
	}

	degree := values.DegreeD1
	if subject.Tier == values.TierEnhanced {
		degree = values.DegreeD2
	}
	return &screening.Request{
		Subject: subj,
		Locale:  subject.Locale,
		Tier:    subject.Tier,
		Degree:  degree,
		Role:    subject.RoleCategory,
		// Monitoring re-checks run under the consent recorded at enrollment.
		ConsentToken: "monitoring:" + subject.ID.String(),
	}, nil
}
