package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerflow/internal/app"
	"github.com/odyssey-erp/ledgerflow/internal/imports"
	jobmetrics "github.com/odyssey-erp/ledgerflow/internal/jobs"
	"github.com/odyssey-erp/ledgerflow/internal/observability"
	"github.com/odyssey-erp/ledgerflow/internal/platform/db"
	"github.com/odyssey-erp/ledgerflow/internal/platform/storage"
	"github.com/odyssey-erp/ledgerflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("process", "worker"))

	// Deferred closes run in reverse: storage before the pool.
	pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns), db.WithApplicationName("ledgerflow-worker"))
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("resolve timezone", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	importRepo := imports.NewRepository(pool)
	processor := imports.NewProcessor(importRepo, objects, cfg.ImportChunkSize, logger, metrics)
	importJob := jobs.NewImportCSVJob(processor, logger, metrics, cfg.ImportMaxRetry)
	sweepJob := jobs.NewImportSweepJob(imports.NewService(importRepo, jobClient, logger), logger, metrics)

	sweepTask, err := jobs.NewImportSweepTask(jobs.SweepPayload{AgeSeconds: 900, Limit: imports.DefaultBatchLimit})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:       redisOpts,
		Logger:          logger,
		Queue:           cfg.ImportQueue,
		Concurrency:     cfg.ImportPrefetch,
		ShutdownTimeout: cfg.WorkerShutdownTimeout,
		Location:        loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskImportCSV, Handler: importJob.Handle},
			{Type: jobs.TaskImportSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.NewMetrics().Handler())
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadTimeout: cfg.AppReadTimeout}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
