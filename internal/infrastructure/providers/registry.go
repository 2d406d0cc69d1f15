package providers

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/provider"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Registry holds the provider pool and performs selection. It is a
// process-wide singleton injected through construction so tests can run
// several isolated instances.
type Registry struct {
	logger   *zap.Logger
	breakers *BreakerRegistry

	mu        sync.RWMutex
	providers map[string]provider.Provider
	health    map[string]provider.Health

	healthInterval time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

func NewRegistry(breakers *BreakerRegistry, logger *zap.Logger) *Registry {
	return &Registry{
		logger:         logger,
		breakers:       breakers,
		providers:      make(map[string]provider.Provider),
		health:         make(map[string]provider.Health),
		healthInterval: time.Minute,
		stopCh:         make(chan struct{}),
	}
}

// Register adds a provider to the pool. Providers registered twice replace
// the earlier registration.
func (r *Registry) Register(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	r.health[p.ID()] = provider.Health{Status: provider.StatusHealthy, LastCheck: time.Now()}
	r.logger.Info("provider registered",
		zap.String("provider_id", p.ID()),
		zap.String("category", string(p.Category())))
}

// Get returns a provider by ID.
func (r *Registry) Get(id string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Select returns the eligible providers for (checkType, locale, tier) ordered
// by cost tier ascending with reliability as tiebreaker. The head of the
// slice is the primary; the rest are fallbacks in order. Providers with an
// open circuit or unhealthy status are skipped.
func (r *Registry) Select(ct values.CheckType, locale values.Locale, tier values.ServiceTier) ([]provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		p        provider.Provider
		costTier int
	}
	var eligible []scored

	for id, p := range r.providers {
		if tier == values.TierStandard && p.Category() != provider.CategoryCore {
			continue
		}
		if r.health[id].Status == provider.StatusUnhealthy {
			continue
		}
		if r.breakers.IsOpen(id) {
			continue
		}
		for _, cap := range p.Capabilities() {
			if cap.Supports(ct, locale) {
				eligible = append(eligible, scored{p: p, costTier: cap.CostTier})
				break
			}
		}
	}

	if len(eligible) == 0 {
		return nil, errors.NewNoProviderAvailableError(string(ct))
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].costTier != eligible[j].costTier {
			return eligible[i].costTier < eligible[j].costTier
		}
		return eligible[i].p.Reliability() > eligible[j].p.Reliability()
	})

	out := make([]provider.Provider, len(eligible))
	for i, s := range eligible {
		out[i] = s.p
	}
	return out, nil
}

// SelectForRoute is Select without the circuit filter: the router skips open
// circuits itself so it can distinguish "every circuit open" from "no
// provider exists".
func (r *Registry) SelectForRoute(ct values.CheckType, locale values.Locale, tier values.ServiceTier) ([]provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		p        provider.Provider
		costTier int
	}
	var eligible []scored
	for id, p := range r.providers {
		if tier == values.TierStandard && p.Category() != provider.CategoryCore {
			continue
		}
		if r.health[id].Status == provider.StatusUnhealthy {
			continue
		}
		for _, cap := range p.Capabilities() {
			if cap.Supports(ct, locale) {
				eligible = append(eligible, scored{p: p, costTier: cap.CostTier})
				break
			}
		}
	}
	if len(eligible) == 0 {
		return nil, errors.NewNoProviderAvailableError(string(ct))
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].costTier != eligible[j].costTier {
			return eligible[i].costTier < eligible[j].costTier
		}
		return eligible[i].p.Reliability() > eligible[j].p.Reliability()
	})
	out := make([]provider.Provider, len(eligible))
	for i, s := range eligible {
		out[i] = s.p
	}
	return out, nil
}

// CostTierFor returns the capability cost tier a provider serves the check
// with, for spend estimation.
func (r *Registry) CostTierFor(providerID string, ct values.CheckType, locale values.Locale) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerID]
	if !ok {
		return 0
	}
	for _, cap := range p.Capabilities() {
		if cap.Supports(ct, locale) {
			return cap.CostTier
		}
	}
	return 0
}

// Health returns the last observed health for a provider.
func (r *Registry) Health(id string) provider.Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.health[id]
}

// StartHealthMonitor probes all providers on an interval until Stop.
func (r *Registry) StartHealthMonitor(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.probeAll(ctx)
			}
		}
	}()
}

func (r *Registry) probeAll(ctx context.Context) {
	r.mu.RLock()
	pool := make([]provider.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		pool = append(pool, p)
	}
	r.mu.RUnlock()

	for _, p := range pool {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		h := p.HealthCheck(probeCtx)
		cancel()

		r.mu.Lock()
		prev := r.health[p.ID()]
		r.health[p.ID()] = h
		r.mu.Unlock()

		if prev.Status != h.Status {
			r.logger.Warn("provider health changed",
				zap.String("provider_id", p.ID()),
				zap.String("from", string(prev.Status)),
				zap.String("to", string(h.Status)),
				zap.String("error", h.Error))
		}
	}
}

// Stop halts the health monitor.
func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}
