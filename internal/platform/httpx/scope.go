package httpx

import (
	"net/http"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Scope returns the client scope resolved by the access middleware.
func Scope(r *http.Request) (shared.Scope, error) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		return shared.Scope{}, shared.ErrForbidden
	}
	return scope, nil
}
