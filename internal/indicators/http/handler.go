package indicatorshttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/indicators"
	"github.com/odyssey-erp/ledgerflow/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// IndicatorService is the contract used by the handler.
type IndicatorService interface {
	CreateStock(ctx context.Context, scope shared.Scope, in indicators.StockInput) (indicators.Stock, error)
	ListStocks(ctx context.Context, scope shared.Scope, rng shared.DateRange) ([]indicators.Stock, error)
	CreateReserve(ctx context.Context, scope shared.Scope, in indicators.ReserveInput) (indicators.Reserve, error)
	ListReserves(ctx context.Context, scope shared.Scope, rng shared.DateRange) ([]indicators.Reserve, error)
	GetIndicators(ctx context.Context, scope shared.Scope) (indicators.Indicators, error)
}

// Handler serves stock, reserve and indicator endpoints.
type Handler struct {
	logger  *slog.Logger
	service IndicatorService
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service IndicatorService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers endpoints on a client-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stocks", h.createStock)
	r.Get("/stocks", h.listStocks)
	r.Post("/reserves", h.createReserve)
	r.Get("/reserves", h.listReserves)
	r.Get("/indicators", h.getIndicators)
}

type stockRequest struct {
	Value      decimal.Decimal `json:"value"`
	RecordedAt *time.Time      `json:"recordedAt"`
	Notes      string          `json:"notes" validate:"max=500"`
}

type reserveRequest struct {
	Type       string          `json:"type" validate:"required,oneof=reserve investment"`
	Value      decimal.Decimal `json:"value"`
	RecordedAt *time.Time      `json:"recordedAt"`
	Label      string          `json:"label" validate:"max=255"`
	Notes      string          `json:"notes" validate:"max=500"`
}

func (h *Handler) createStock(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req stockRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.CreateStock(r.Context(), scope, indicators.StockInput{
		Value:      req.Value,
		RecordedAt: req.RecordedAt,
		Notes:      req.Notes,
	})
	if err != nil {
		h.fail(w, "create stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stock)
}

func (h *Handler) listStocks(w http.ResponseWriter, r *http.Request) {
	scope, rng, err := bindRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stocks, err := h.service.ListStocks(r.Context(), scope, rng)
	if err != nil {
		h.fail(w, "list stocks", err)
		return
	}
	if stocks == nil {
		stocks = []indicators.Stock{}
	}
	httpx.JSON(w, http.StatusOK, stocks)
}

func (h *Handler) createReserve(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reserveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	reserve, err := h.service.CreateReserve(r.Context(), scope, indicators.ReserveInput{
		Kind:       indicators.ReserveKind(req.Type),
		Value:      req.Value,
		RecordedAt: req.RecordedAt,
		Label:      req.Label,
		Notes:      req.Notes,
	})
	if err != nil {
		h.fail(w, "create reserve", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reserve)
}

func (h *Handler) listReserves(w http.ResponseWriter, r *http.Request) {
	scope, rng, err := bindRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	reserves, err := h.service.ListReserves(r.Context(), scope, rng)
	if err != nil {
		h.fail(w, "list reserves", err)
		return
	}
	if reserves == nil {
		reserves = []indicators.Reserve{}
	}
	httpx.JSON(w, http.StatusOK, reserves)
}

func (h *Handler) getIndicators(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.GetIndicators(r.Context(), scope)
	if err != nil {
		h.fail(w, "get indicators", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func bindRange(r *http.Request) (shared.Scope, shared.DateRange, error) {
	scope, err := httpx.Scope(r)
	if err != nil {
		return shared.Scope{}, shared.DateRange{}, err
	}
	q := r.URL.Query()
	rng, err := shared.ParseDateRange(q.Get("start"), q.Get("end"))
	return scope, rng, err
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error("indicator request failed", slog.String("op", op), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
