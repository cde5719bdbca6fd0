package closinghttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledgerflow/internal/closing"
	"github.com/odyssey-erp/ledgerflow/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// ClosingService is the closing contract used by the handler.
type ClosingService interface {
	Generate(ctx context.Context, scope shared.Scope, in closing.GenerateInput) (closing.Closing, error)
	List(ctx context.Context, scope shared.Scope, filter closing.ListFilter) ([]closing.Closing, error)
}

// Handler serves closing endpoints.
type Handler struct {
	logger  *slog.Logger
	service ClosingService
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service ClosingService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers closing endpoints on a client-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/closings", h.generate)
	r.Get("/closings", h.list)
}

type generateRequest struct {
	PeriodType    string `json:"periodType" validate:"required,oneof=monthly quarterly"`
	ReferenceDate string `json:"referenceDate"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req generateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := closing.GenerateInput{PeriodType: closing.PeriodType(req.PeriodType)}
	if req.ReferenceDate != "" {
		ref, err := shared.ParseDay(req.ReferenceDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.ReferenceDate = &ref
	}
	result, err := h.service.Generate(r.Context(), scope, in)
	if err != nil {
		h.logError("generate closing", scope, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	var filter closing.ListFilter
	if raw := q.Get("periodType"); raw != "" {
		pt, err := closing.ParsePeriodType(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.PeriodType = &pt
	}
	if filter.Range, err = shared.ParseDateRange(q.Get("start"), q.Get("end")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	closings, err := h.service.List(r.Context(), scope, filter)
	if err != nil {
		h.logError("list closings", scope, err)
		httpx.RespondError(w, err)
		return
	}
	if closings == nil {
		closings = []closing.Closing{}
	}
	httpx.JSON(w, http.StatusOK, closings)
}

func (h *Handler) logError(op string, scope shared.Scope, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Error("closing request failed",
		slog.String("op", op),
		slog.String("client_id", scope.ClientID.String()),
		slog.Any("error", err))
}
