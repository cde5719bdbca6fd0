package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledgerflow/internal/cashflow"
	"github.com/odyssey-erp/ledgerflow/internal/closing"
	"github.com/odyssey-erp/ledgerflow/internal/imports"
	"github.com/odyssey-erp/ledgerflow/internal/indicators"
	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/platform/storage"
)

// Deps are the process-level resources shared by the services.
type Deps struct {
	Config    *Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Objects   storage.ObjectStore
	Publisher imports.Publisher
}

// Services bundles the domain services built on top of Deps.
type Services struct {
	Ledger     *ledger.Service
	Cashflow   *cashflow.Service
	Closing    *closing.Service
	Indicators *indicators.Service
	Ingestor   *imports.Ingestor
	Imports    *imports.Service
	ImportRepo *imports.Repository
}

// NewServices wires repositories and services. Redis and Publisher may be nil.
func NewServices(deps Deps) (*Services, error) {
	loc, err := deps.Config.Location()
	if err != nil {
		return nil, err
	}
	anchor, err := cashflow.ParseAnchor(deps.Config.CashflowBalanceAnchor)
	if err != nil {
		return nil, err
	}

	ledgerRepo := ledger.NewRepository(deps.Pool)
	ledgerService := ledger.NewService(ledgerRepo)

	projectionCache := cashflow.NewCache(deps.Redis, deps.Config.CashflowCacheTTL)
	if projectionCache != nil {
		ledgerService.WithInvalidator(projectionCache, deps.Logger)
	}
	cashflowService := cashflow.NewService(ledgerRepo, projectionCache,
		cashflow.WithAnchor(anchor),
		cashflow.WithLocation(loc),
		cashflow.WithLogger(deps.Logger),
	)

	importRepo := imports.NewRepository(deps.Pool)
	return &Services{
		Ledger:     ledgerService,
		Cashflow:   cashflowService,
		Closing:    closing.NewService(ledgerRepo, closing.NewRepository(deps.Pool), loc),
		Indicators: indicators.NewService(indicators.NewRepository(deps.Pool), loc),
		Ingestor:   imports.NewIngestor(importRepo, deps.Objects, deps.Publisher, deps.Config.ImportMaxRows, deps.Logger),
		Imports:    imports.NewService(importRepo, deps.Publisher, deps.Logger),
		ImportRepo: importRepo,
	}, nil
}
