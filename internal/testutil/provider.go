package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/provider"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// Provider is a scripted provider.Provider. Responses map check types to
// normalized data; Err, when set, fails every call.
type Provider struct {
	mu sync.Mutex

	ProviderID   string
	Tier         provider.Category
	Caps         []provider.Capability
	Reliable     float64
	Responses    map[values.CheckType]map[string]interface{}
	Err          error
	FailFirst    int
	Latency      time.Duration
	CallCount    int
	HealthStatus provider.HealthStatus

	inFlight    int
	maxInFlight int
}

// NewProvider builds a healthy core provider covering the given checks in US.
func NewProvider(id string, costTier int, checks ...values.CheckType) *Provider {
	p := &Provider{
		ProviderID:   id,
		Tier:         provider.CategoryCore,
		Reliable:     0.99,
		Responses:    make(map[values.CheckType]map[string]interface{}),
		HealthStatus: provider.StatusHealthy,
	}
	for _, ct := range checks {
		p.Caps = append(p.Caps, provider.Capability{
			CheckType: ct,
			Locales:   []values.Locale{values.LocaleUS},
			CostTier:  costTier,
		})
	}
	return p
}

func (p *Provider) ID() string                          { return p.ProviderID }
func (p *Provider) Category() provider.Category         { return p.Tier }
func (p *Provider) Capabilities() []provider.Capability { return p.Caps }
func (p *Provider) Reliability() float64                { return p.Reliable }

func (p *Provider) ExecuteCheck(ctx context.Context, ct values.CheckType, _ *investigation.SubjectIdentifiers, locale values.Locale, _ map[string]string) (*provider.Result, error) {
	p.mu.Lock()
	p.CallCount++
	calls := p.CallCount
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.FailFirst > 0 && calls <= p.FailFirst {
		return &provider.Result{ProviderID: p.ProviderID, CheckType: ct, Locale: locale, Success: false}, nil
	}
	return &provider.Result{
		ProviderID:     p.ProviderID,
		CheckType:      ct,
		Locale:         locale,
		Success:        true,
		NormalizedData: p.Responses[ct],
		CostIncurred:   values.MustNewCost(1),
		Duration:       p.Latency,
	}, nil
}

func (p *Provider) HealthCheck(context.Context) provider.Health {
	return provider.Health{Status: p.HealthStatus, LastCheck: time.Now().UTC()}
}

// Calls returns how many checks were executed.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CallCount
}

// MaxInFlight returns the peak number of concurrently executing checks.
func (p *Provider) MaxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}
