// Package cost tracks provider spend and enforces per-tenant budgets. The
// router consults CheckBudget before every provider call; with hard limits
// enabled an estimate that would cross a limit fails the request before any
// provider is invoked.
package cost

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
)

// Budget is a per-tenant spending policy. Nil limits are unlimited.
type Budget struct {
	DailyLimit       *decimal.Decimal
	MonthlyLimit     *decimal.Decimal
	WarningThreshold float64
	HardLimit        bool
}

// BudgetStatus is the outcome of a pre-flight budget check.
type BudgetStatus string

const (
	BudgetOK       BudgetStatus = "ok"
	BudgetWarning  BudgetStatus = "warning"
	BudgetExceeded BudgetStatus = "exceeded"
)

type entry struct {
	QueryID     uuid.UUID
	ProviderID  string
	CheckType   values.CheckType
	Cost        decimal.Decimal
	ScreeningID *uuid.UUID
	At          time.Time
}

// tenantLedger carries its own lock per the shared-resource policy: budget
// checks for one tenant never block another tenant's.
type tenantLedger struct {
	mu           sync.Mutex
	entries      []entry
	cacheSavings decimal.Decimal
	cacheHits    int64
	cacheMisses  int64
	budget       Budget
}

// Service is the process-wide cost tracker, injected where needed.
type Service struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*tenantLedger
	cfg     config.BudgetConfig
	logger  *zap.Logger
}

func NewService(cfg config.BudgetConfig, logger *zap.Logger) *Service {
	return &Service{
		tenants: make(map[uuid.UUID]*tenantLedger),
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Service) ledger(tenantID uuid.UUID) *tenantLedger {
	s.mu.RLock()
	tl, ok := s.tenants[tenantID]
	s.mu.RUnlock()
	if ok {
		return tl
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tl, ok := s.tenants[tenantID]; ok {
		return tl
	}
	tl = &tenantLedger{budget: Budget{WarningThreshold: s.cfg.WarningThreshold, HardLimit: s.cfg.HardLimit}}
	s.tenants[tenantID] = tl
	return tl
}

// SetBudget replaces a tenant's budget policy.
func (s *Service) SetBudget(tenantID uuid.UUID, b Budget) {
	tl := s.ledger(tenantID)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if b.WarningThreshold == 0 {
		b.WarningThreshold = s.cfg.WarningThreshold
	}
	tl.budget = b
}

// RecordCost appends one provider charge to the tenant ledger.
func (s *Service) RecordCost(queryID uuid.UUID, providerID string, ct values.CheckType, c values.Cost, tenantID uuid.UUID, screeningID *uuid.UUID) {
	tl := s.ledger(tenantID)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.entries = append(tl.entries, entry{
		QueryID:     queryID,
		ProviderID:  providerID,
		CheckType:   ct,
		Cost:        c.Amount(),
		ScreeningID: screeningID,
		At:          time.Now().UTC(),
	})
	tl.cacheMisses++
}

// RecordCacheSavings notes money not spent because of a cache hit.
func (s *Service) RecordCacheSavings(tenantID uuid.UUID, saved values.Cost) {
	tl := s.ledger(tenantID)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.cacheSavings = tl.cacheSavings.Add(saved.Amount())
	tl.cacheHits++
}

func sumSince(entries []entry, since time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if !e.At.Before(since) {
			total = total.Add(e.Cost)
		}
	}
	return total
}

// CheckBudget evaluates whether an estimated spend fits the tenant's budget.
// With a hard limit, an estimate that would cross a non-nil limit returns
// BudgetExceeded as an error; soft limits only degrade the status.
func (s *Service) CheckBudget(tenantID uuid.UUID, estimate values.Cost) (BudgetStatus, error) {
	tl := s.ledger(tenantID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	status := BudgetOK
	check := func(limit *decimal.Decimal, spent decimal.Decimal, window string) error {
		if limit == nil {
			return nil
		}
		projected := spent.Add(estimate.Amount())
		if projected.GreaterThan(*limit) {
			status = BudgetExceeded
			if tl.budget.HardLimit {
				return errors.NewBudgetExceededError("tenant " + window + " budget exhausted").
					WithDetail("limit", limit.String()).
					WithDetail("spent", spent.String())
			}
			return nil
		}
		warnAt := limit.Mul(decimal.NewFromFloat(tl.budget.WarningThreshold))
		if projected.GreaterThanOrEqual(warnAt) && status == BudgetOK {
			status = BudgetWarning
		}
		return nil
	}

	if err := check(tl.budget.DailyLimit, sumSince(tl.entries, dayStart), "daily"); err != nil {
		return BudgetExceeded, err
	}
	if err := check(tl.budget.MonthlyLimit, sumSince(tl.entries, monthStart), "monthly"); err != nil {
		return BudgetExceeded, err
	}
	return status, nil
}

// Summary aggregates a tenant's spend.
type Summary struct {
	Total        decimal.Decimal
	ByProvider   map[string]decimal.Decimal
	ByCheckType  map[values.CheckType]decimal.Decimal
	ByDay        map[string]decimal.Decimal
	CacheSavings decimal.Decimal
	CacheHitRate float64
}

func (s *Service) Summarize(tenantID uuid.UUID) Summary {
	tl := s.ledger(tenantID)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	out := Summary{
		ByProvider:   make(map[string]decimal.Decimal),
		ByCheckType:  make(map[values.CheckType]decimal.Decimal),
		ByDay:        make(map[string]decimal.Decimal),
		CacheSavings: tl.cacheSavings,
		Total:        decimal.Zero,
	}
	for _, e := range tl.entries {
		out.Total = out.Total.Add(e.Cost)
		out.ByProvider[e.ProviderID] = out.ByProvider[e.ProviderID].Add(e.Cost)
		out.ByCheckType[e.CheckType] = out.ByCheckType[e.CheckType].Add(e.Cost)
		day := e.At.Format("2006-01-02")
		out.ByDay[day] = out.ByDay[day].Add(e.Cost)
	}
	if lookups := tl.cacheHits + tl.cacheMisses; lookups > 0 {
		out.CacheHitRate = float64(tl.cacheHits) / float64(lookups)
	}
	return out
}

// ScreeningTotal sums spend tagged to one screening.
func (s *Service) ScreeningTotal(tenantID, screeningID uuid.UUID) values.Cost {
	tl := s.ledger(tenantID)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	total := decimal.Zero
	for _, e := range tl.entries {
		if e.ScreeningID != nil && *e.ScreeningID == screeningID {
			total = total.Add(e.Cost)
		}
	}
	c, _ := values.NewCost(total)
	return c
}
