package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	cashflowhttp "github.com/odyssey-erp/ledgerflow/internal/cashflow/http"
	closinghttp "github.com/odyssey-erp/ledgerflow/internal/closing/http"
	importshttp "github.com/odyssey-erp/ledgerflow/internal/imports/http"
	indicatorshttp "github.com/odyssey-erp/ledgerflow/internal/indicators/http"
	ledgerhttp "github.com/odyssey-erp/ledgerflow/internal/ledger/http"
	"github.com/odyssey-erp/ledgerflow/internal/observability"
	"github.com/odyssey-erp/ledgerflow/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	LedgerHandler     *ledgerhttp.Handler
	CashflowHandler   *cashflowhttp.Handler
	ClosingHandler    *closinghttp.Handler
	IndicatorsHandler *indicatorshttp.Handler
	ImportsHandler    *importshttp.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	// Ready reports dependency health for /readyz; nil means always ready.
	Ready func(r *http.Request) error
}

// NewRouter constructs the chi.Router with API defaults. Client-scoped
// routes live under /v1/clients/{clientID}.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("readiness check failed", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusServiceUnavailable, "Not Ready", "")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/v1/clients/{clientID}", func(r chi.Router) {
		r.Use(ScopeMiddleware(params.Logger))
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.CashflowHandler != nil {
			params.CashflowHandler.MountRoutes(r)
		}
		if params.ClosingHandler != nil {
			params.ClosingHandler.MountRoutes(r)
		}
		if params.IndicatorsHandler != nil {
			params.IndicatorsHandler.MountRoutes(r)
		}
		if params.ImportsHandler != nil {
			params.ImportsHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
