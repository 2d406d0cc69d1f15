package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/veriscreen/screening-backend/internal/domain/provider"
	"github.com/veriscreen/screening-backend/internal/domain/values"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/requestcontext"
)

const keyPrefix = "screencache:v1:"

// CachedResponse is a stored provider response with its freshness window.
// Invariant: customer-provided entries always carry a tenant ID and are never
// visible to another tenant.
type CachedResponse struct {
	EntityID       uuid.UUID              `json:"entity_id"`
	ProviderID     string                 `json:"provider_id"`
	CheckType      values.CheckType       `json:"check_type"`
	TenantID       *uuid.UUID             `json:"tenant_id,omitempty"`
	DataOrigin     values.DataOrigin      `json:"data_origin"`
	NormalizedData map[string]interface{} `json:"normalized_data"`
	RawEncrypted   []byte                 `json:"raw_encrypted,omitempty"`
	CostIncurred   float64                `json:"cost_incurred"`
	FetchedAt      time.Time              `json:"fetched_at"`
	FreshUntil     time.Time              `json:"fresh_until"`
	StaleUntil     time.Time              `json:"stale_until"`
}

// Freshness of an entry at a point in time.
type Freshness int

const (
	Fresh Freshness = iota
	Stale
	Expired
)

func (c *CachedResponse) FreshnessAt(now time.Time) Freshness {
	switch {
	case now.Before(c.FreshUntil):
		return Fresh
	case now.Before(c.StaleUntil):
		return Stale
	default:
		return Expired
	}
}

// LookupResult is what GetOrFetch returns.
type LookupResult struct {
	Response *CachedResponse
	Hit      bool
	WasStale bool
}

// Fetcher produces a provider result on cache miss.
type Fetcher func(ctx context.Context) (*provider.Result, error)

// ResponseCache is the two-scope provider response cache. Paid-external
// entries are shared across tenants; customer-provided entries are keyed and
// filtered by tenant. Concurrent fetches for the same key collapse to one
// underlying call.
type ResponseCache struct {
	client    *redis.Client
	encryptor *Encryptor
	cfg       config.CacheConfig
	logger    *zap.Logger
	group     singleflight.Group
}

func NewResponseCache(client *redis.Client, encryptor *Encryptor, cfg config.CacheConfig, logger *zap.Logger) *ResponseCache {
	return &ResponseCache{
		client:    client,
		encryptor: encryptor,
		cfg:       cfg,
		logger:    logger,
	}
}

func (rc *ResponseCache) ttlFor(ct values.CheckType) config.TTLPair {
	switch ct.Category() {
	case values.CategoryCriminal:
		return rc.cfg.Criminal
	case values.CategoryCredit:
		return rc.cfg.Credit
	case values.CategoryEmployment:
		return rc.cfg.Employment
	case values.CategoryEducation:
		return rc.cfg.Education
	case values.CategoryIdentity:
		return rc.cfg.Identity
	default:
		return rc.cfg.Default
	}
}

func sharedKey(entityID uuid.UUID, providerID string, ct values.CheckType) string {
	return fmt.Sprintf("%sshared:%s:%s:%s", keyPrefix, entityID, providerID, ct)
}

func tenantKey(tenantID, entityID uuid.UUID, providerID string, ct values.CheckType) string {
	return fmt.Sprintf("%stenant:%s:%s:%s:%s", keyPrefix, tenantID, entityID, providerID, ct)
}

// Lookup returns the visible entry for the (entity, provider, check) key,
// preferring tenant-isolated data over shared data, together with its
// freshness. A nil response means a miss.
func (rc *ResponseCache) Lookup(ctx context.Context, entityID uuid.UUID, providerID string, ct values.CheckType) (*CachedResponse, Freshness, error) {
	rctx, err := requestcontext.From(ctx)
	if err != nil {
		return nil, Expired, err
	}

	keys := []string{
		tenantKey(rctx.TenantID, entityID, providerID, ct),
		sharedKey(entityID, providerID, ct),
	}
	for _, key := range keys {
		raw, err := rc.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, Expired, fmt.Errorf("cache lookup: %w", err)
		}
		var entry CachedResponse
		if err := json.Unmarshal(raw, &entry); err != nil {
			rc.logger.Warn("corrupt cache entry dropped", zap.String("key", key), zap.Error(err))
			continue
		}
		// Tenant isolation holds even if a scoped entry landed under the
		// wrong key.
		if entry.DataOrigin == values.OriginCustomerProvided {
			if entry.TenantID == nil || *entry.TenantID != rctx.TenantID {
				continue
			}
		}
		f := entry.FreshnessAt(time.Now())
		if f == Expired {
			continue
		}
		return &entry, f, nil
	}
	return nil, Expired, nil
}

// Store writes a provider result under the scope implied by origin.
func (rc *ResponseCache) Store(ctx context.Context, entityID uuid.UUID, res *provider.Result, origin values.DataOrigin, tenantID *uuid.UUID) (*CachedResponse, error) {
	if origin == values.OriginCustomerProvided && tenantID == nil {
		return nil, fmt.Errorf("customer-provided cache entries require a tenant")
	}

	ttl := rc.ttlFor(res.CheckType)
	now := time.Now()
	entry := &CachedResponse{
		EntityID:       entityID,
		ProviderID:     res.ProviderID,
		CheckType:      res.CheckType,
		TenantID:       tenantID,
		DataOrigin:     origin,
		NormalizedData: res.NormalizedData,
		CostIncurred:   res.CostIncurred.Float(),
		FetchedAt:      now,
		FreshUntil:     now.Add(ttl.FreshTTL),
		StaleUntil:     now.Add(ttl.StaleTTL),
	}
	if len(res.Raw) > 0 && rc.encryptor != nil {
		enc, err := rc.encryptor.Encrypt(res.Raw)
		if err != nil {
			return nil, fmt.Errorf("encrypting raw response: %w", err)
		}
		entry.RawEncrypted = enc
	}

	key := sharedKey(entityID, res.ProviderID, res.CheckType)
	if origin == values.OriginCustomerProvided {
		key = tenantKey(*tenantID, entityID, res.ProviderID, res.CheckType)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshaling cache entry: %w", err)
	}
	if err := rc.client.Set(ctx, key, payload, time.Until(entry.StaleUntil)).Err(); err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	return entry, nil
}

// GetOrFetch returns a fresh entry when present, a stale one when the caller
// allows it, and otherwise fetches through fn. Concurrent callers for the
// same key share a single fetch.
func (rc *ResponseCache) GetOrFetch(ctx context.Context, entityID uuid.UUID, providerID string, ct values.CheckType, allowStale bool, origin values.DataOrigin, tenantID *uuid.UUID, fn Fetcher) (*LookupResult, error) {
	entry, freshness, err := rc.Lookup(ctx, entityID, providerID, ct)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		if freshness == Fresh {
			return &LookupResult{Response: entry, Hit: true}, nil
		}
		if freshness == Stale && allowStale {
			return &LookupResult{Response: entry, Hit: true, WasStale: true}, nil
		}
	}

	flightKey := sharedKey(entityID, providerID, ct)
	if origin == values.OriginCustomerProvided && tenantID != nil {
		flightKey = tenantKey(*tenantID, entityID, providerID, ct)
	}

	v, err, _ := rc.group.Do(flightKey, func() (interface{}, error) {
		res, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return rc.Store(ctx, entityID, res, origin, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return &LookupResult{Response: v.(*CachedResponse)}, nil
}
