package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgerflow/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Headers set by the access gateway once it has authorised the caller.
const (
	HeaderTenant      = "X-Tenant-ID"
	HeaderActor       = "X-Actor-ID"
	HeaderScopeClient = "X-Scope-Client"
)

// ScopeMiddleware builds the request scope for routes under /{clientID}.
// The gateway vouches for tenant and actor and lists the clients the actor
// may reach; a path client outside that list is forbidden.
func ScopeMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
			if err != nil {
				httpx.RespondError(w, shared.Validation("clientId must be a UUID"))
				return
			}
			tenantID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderTenant)))
			if err != nil {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			if !allowed(r.Header.Values(HeaderScopeClient), clientID) {
				if logger != nil {
					logger.Warn("client outside caller scope",
						slog.String("tenant_id", tenantID.String()),
						slog.String("client_id", clientID.String()),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			var actorID uuid.UUID
			if raw := strings.TrimSpace(r.Header.Get(HeaderActor)); raw != "" {
				if actorID, err = uuid.Parse(raw); err != nil {
					httpx.RespondError(w, shared.Validation("%s must be a UUID", HeaderActor))
					return
				}
			}
			scope := shared.NewScope(tenantID, clientID, actorID)
			next.ServeHTTP(w, r.WithContext(shared.ContextWithScope(r.Context(), scope)))
		})
	}
}

// allowed reports whether clientID appears in the scope header values, which
// may repeat or hold comma separated lists. "*" grants every client of the tenant.
func allowed(values []string, clientID uuid.UUID) bool {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "*" {
				return true
			}
			if id, err := uuid.Parse(part); err == nil && id == clientID {
				return true
			}
		}
	}
	return false
}
