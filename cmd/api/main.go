package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerflow/internal/app"
	cashflowhttp "github.com/odyssey-erp/ledgerflow/internal/cashflow/http"
	closinghttp "github.com/odyssey-erp/ledgerflow/internal/closing/http"
	importshttp "github.com/odyssey-erp/ledgerflow/internal/imports/http"
	indicatorshttp "github.com/odyssey-erp/ledgerflow/internal/indicators/http"
	ledgerhttp "github.com/odyssey-erp/ledgerflow/internal/ledger/http"
	"github.com/odyssey-erp/ledgerflow/internal/observability"
	"github.com/odyssey-erp/ledgerflow/internal/platform/cache"
	"github.com/odyssey-erp/ledgerflow/internal/platform/db"
	"github.com/odyssey-erp/ledgerflow/internal/platform/storage"
	"github.com/odyssey-erp/ledgerflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns), db.WithApplicationName("ledgerflow-api"))
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	objects, err := storage.New(ctx, cfg.Storage())
	if err != nil {
		logger.Error("init object storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := objects.Close(); err != nil {
			logger.Warn("object storage close", slog.Any("error", err))
		}
	}()

	redisOpts := jobs.RedisOpt(cfg.Redis())
	jobClient, err := jobs.NewClient(redisOpts, cfg.ImportQueue, cfg.ImportMaxRetry)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	services, err := app.NewServices(app.Deps{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Redis:     redisClient,
		Objects:   objects,
		Publisher: jobClient,
	})
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     ledgerhttp.NewHandler(logger, services.Ledger),
		CashflowHandler:   cashflowhttp.NewHandler(logger, services.Cashflow),
		ClosingHandler:    closinghttp.NewHandler(logger, services.Closing),
		IndicatorsHandler: indicatorshttp.NewHandler(logger, services.Indicators),
		ImportsHandler:    importshttp.NewHandler(logger, services.Ingestor, services.Imports, cfg.ImportMaxFileSize),
		JobHandler:        jobs.NewHandler(inspector, cfg.ImportQueue, logger),
		Metrics:           metrics,
		Ready: func(r *http.Request) error {
			if err := pool.Ping(r.Context()); err != nil {
				return err
			}
			return redisClient.Ping(r.Context()).Err()
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
