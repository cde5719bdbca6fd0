package ledgerhttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// LedgerService captures the ledger operations exposed over HTTP.
type LedgerService interface {
	CreateEntry(ctx context.Context, scope shared.Scope, in ledger.MovementInput) (ledger.Entry, error)
	ListEntries(ctx context.Context, scope shared.Scope, rng shared.DateRange) ([]ledger.Entry, error)
	CreateProvision(ctx context.Context, scope shared.Scope, in ledger.MovementInput) (ledger.Provision, error)
	ListProvisions(ctx context.Context, scope shared.Scope, rng shared.DateRange) ([]ledger.Provision, error)
	CreateBalance(ctx context.Context, scope shared.Scope, in ledger.CreateBalanceInput) (ledger.Balance, error)
	ListBalances(ctx context.Context, scope shared.Scope) ([]ledger.Balance, error)
}

// Handler serves the ledger endpoints of a client.
type Handler struct {
	logger  *slog.Logger
	service LedgerService
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(logger *slog.Logger, service LedgerService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger endpoints relative to a client-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.createEntry)
	r.Get("/entries", h.listEntries)
	r.Post("/provisions", h.createProvision)
	r.Get("/provisions", h.listProvisions)
	r.Post("/balances", h.createBalance)
	r.Get("/balances", h.listBalances)
}

type movementRequest struct {
	Type        string          `json:"type" validate:"required,oneof=income expense"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date" validate:"required"`
	Description string          `json:"description" validate:"required,max=255"`
	Notes       string          `json:"notes" validate:"max=500"`
}

func (req movementRequest) input() (ledger.MovementInput, error) {
	day, err := shared.ParseDay(req.Date)
	if err != nil {
		return ledger.MovementInput{}, err
	}
	return ledger.MovementInput{
		Direction:   ledger.Direction(req.Type),
		Amount:      req.Amount,
		Day:         day,
		Description: req.Description,
		Notes:       req.Notes,
	}, nil
}

type balanceRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	RecordedAt *time.Time      `json:"recordedAt"`
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	scope, in, err := h.bindMovement(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), scope, in)
	if err != nil {
		h.fail(w, "create entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	scope, rng, err := h.bindRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.ListEntries(r.Context(), scope, rng)
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) createProvision(w http.ResponseWriter, r *http.Request) {
	scope, in, err := h.bindMovement(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	provision, err := h.service.CreateProvision(r.Context(), scope, in)
	if err != nil {
		h.fail(w, "create provision", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, provision)
}

func (h *Handler) listProvisions(w http.ResponseWriter, r *http.Request) {
	scope, rng, err := h.bindRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	provisions, err := h.service.ListProvisions(r.Context(), scope, rng)
	if err != nil {
		h.fail(w, "list provisions", err)
		return
	}
	if provisions == nil {
		provisions = []ledger.Provision{}
	}
	httpx.JSON(w, http.StatusOK, provisions)
}

func (h *Handler) createBalance(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req balanceRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.CreateBalance(r.Context(), scope, ledger.CreateBalanceInput{
		Amount:     req.Amount,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		h.fail(w, "create balance", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, balance)
}

func (h *Handler) listBalances(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balances, err := h.service.ListBalances(r.Context(), scope)
	if err != nil {
		h.fail(w, "list balances", err)
		return
	}
	if balances == nil {
		balances = []ledger.Balance{}
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) bindMovement(r *http.Request) (shared.Scope, ledger.MovementInput, error) {
	scope, err := httpx.Scope(r)
	if err != nil {
		return shared.Scope{}, ledger.MovementInput{}, err
	}
	var req movementRequest
	if err := httpx.Bind(r, &req); err != nil {
		return shared.Scope{}, ledger.MovementInput{}, err
	}
	in, err := req.input()
	if err != nil {
		return shared.Scope{}, ledger.MovementInput{}, err
	}
	return scope, in, nil
}

func (h *Handler) bindRange(r *http.Request) (shared.Scope, shared.DateRange, error) {
	scope, err := httpx.Scope(r)
	if err != nil {
		return shared.Scope{}, shared.DateRange{}, err
	}
	q := r.URL.Query()
	rng, err := shared.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		return shared.Scope{}, shared.DateRange{}, err
	}
	return scope, rng, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error("ledger request failed", slog.String("op", op), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
