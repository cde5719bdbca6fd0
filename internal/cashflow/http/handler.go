package cashflowhttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledgerflow/internal/cashflow"
	"github.com/odyssey-erp/ledgerflow/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Projector is the cash-flow contract used by the handler.
type Projector interface {
	Project(ctx context.Context, scope shared.Scope, months int) (cashflow.Projection, error)
}

// Handler serves cash-flow projections.
type Handler struct {
	logger  *slog.Logger
	service Projector
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service Projector) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the projection endpoint on a client-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cashflow", h.getCashflow)
}

func (h *Handler) getCashflow(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	months := cashflow.DefaultHorizonMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		months, err = strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, shared.Validation("months must be an integer"))
			return
		}
	}
	projection, err := h.service.Project(r.Context(), scope, months)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("cashflow projection failed", slog.String("client_id", scope.ClientID.String()), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projection)
}
