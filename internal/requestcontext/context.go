// Package requestcontext binds the per-request security and routing metadata
// to a context.Context so descendant operations, including goroutines spawned
// to parallelize provider calls, read it without threading it through every
// signature. Child contexts derived from the request context inherit it.
package requestcontext

import (
	"context"

	"github.com/google/uuid"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

// ActorType classifies who initiated the request.
type ActorType string

const (
	ActorHuman   ActorType = "human"
	ActorService ActorType = "service"
	ActorSystem  ActorType = "system"
)

// CacheScope controls whether responses fetched under this request may be
// shared across tenants.
type CacheScope string

const (
	ScopeShared         CacheScope = "shared"
	ScopeTenantIsolated CacheScope = "tenant_isolated"
)

// RequestContext is set once at request entry and is immutable afterwards.
type RequestContext struct {
	TenantID        uuid.UUID
	ActorID         uuid.UUID
	ActorType       ActorType
	CorrelationID   uuid.UUID
	Locale          values.Locale
	CacheScope      CacheScope
	PermittedChecks map[values.CheckType]bool
}

type ctxKey struct{}

// New builds a request context with a fresh UUIDv7 correlation ID.
func New(tenantID, actorID uuid.UUID, actorType ActorType, locale values.Locale) *RequestContext {
	return &RequestContext{
		TenantID:      tenantID,
		ActorID:       actorID,
		ActorType:     actorType,
		CorrelationID: uuid.Must(uuid.NewV7()),
		Locale:        locale,
		CacheScope:    ScopeShared,
	}
}

// Bind attaches rc to ctx. All descendant operations of the returned context
// observe the same request context.
func Bind(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// From returns the bound request context, failing with ContextMissing when
// the operation was invoked outside a request.
func From(ctx context.Context) (*RequestContext, error) {
	rc, ok := ctx.Value(ctxKey{}).(*RequestContext)
	if !ok || rc == nil {
		return nil, errors.NewContextMissingError()
	}
	return rc, nil
}

// MustFrom is for call sites that are unreachable without a bound context.
func MustFrom(ctx context.Context) *RequestContext {
	rc, err := From(ctx)
	if err != nil {
		panic(err)
	}
	return rc
}

// CheckPermitted reports whether the compliance phase cleared the check for
// this request. A nil map means compliance has not run yet; nothing is
// permitted until it has.
func (rc *RequestContext) CheckPermitted(ct values.CheckType) bool {
	if rc.PermittedChecks == nil {
		return false
	}
	return rc.PermittedChecks[ct]
}
