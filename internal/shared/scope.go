package shared

import (
	"context"

	"github.com/google/uuid"
)

// Scope identifies the already-authorised client a core operation runs against.
// It is an immutable value passed explicitly; the core never re-checks tenant or
// role membership.
type Scope struct {
	TenantID uuid.UUID
	ClientID uuid.UUID
	ActorID  uuid.UUID
}

// NewScope builds a Scope.
func NewScope(tenantID, clientID, actorID uuid.UUID) Scope {
	return Scope{TenantID: tenantID, ClientID: clientID, ActorID: actorID}
}

// Validate ensures the scope names a client.
func (s Scope) Validate() error {
	if s.ClientID == uuid.Nil {
		return Validation("client scope required")
	}
	return nil
}

// Actor returns the acting user, or nil for system initiated work.
func (s Scope) Actor() *uuid.UUID {
	if s.ActorID == uuid.Nil {
		return nil
	}
	id := s.ActorID
	return &id
}

type scopeContextKey struct{}

// ContextWithScope stores the scope resolved by the access layer.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the scope stored by ContextWithScope.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	return scope, ok
}
