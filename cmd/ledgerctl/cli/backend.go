package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledgerflow/internal/app"
	"github.com/odyssey-erp/ledgerflow/internal/cashflow"
	"github.com/odyssey-erp/ledgerflow/internal/closing"
	"github.com/odyssey-erp/ledgerflow/internal/imports"
	"github.com/odyssey-erp/ledgerflow/internal/platform/cache"
	"github.com/odyssey-erp/ledgerflow/internal/platform/db"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
	"github.com/odyssey-erp/ledgerflow/jobs"
)

// QueueStats summarises the current import queue state.
type QueueStats struct {
	Queue     string    `json:"queue"`
	Pending   int       `json:"pending"`
	Active    int       `json:"active"`
	Scheduled int       `json:"scheduled"`
	Retry     int       `json:"retry"`
	Archived  int       `json:"archived"`
	Processed int       `json:"processedToday"`
	Failed    int       `json:"failedToday"`
	Timestamp time.Time `json:"timestamp"`
}

type liveBackend struct {
	cfg       *app.Config
	pool      *pgxpool.Pool
	redis     *redis.Client
	client    *jobs.Client
	inspector *asynq.Inspector
	services  *app.Services
}

// OpenBackend connects to postgres, redis and the queue using the
// environment configuration.
func OpenBackend(ctx context.Context) (Backend, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(2), db.WithApplicationName("ledgerctl"))
	if err != nil {
		return nil, err
	}
	b := &liveBackend{cfg: cfg, pool: pool}

	// Redis is optional for schema and closing work.
	if client, err := cache.New(ctx, cfg.Redis()); err == nil {
		redisOpts := jobs.RedisOpt(cfg.Redis())
		b.redis = client
		b.inspector = asynq.NewInspector(redisOpts)
		if b.client, err = jobs.NewClient(redisOpts, cfg.ImportQueue, cfg.ImportMaxRetry); err != nil {
			_ = b.Close()
			return nil, err
		}
	} else {
		logger.Warn("redis unavailable, queue commands disabled", "error", err)
	}

	deps := app.Deps{Config: cfg, Logger: logger, Pool: pool, Redis: b.redis}
	if b.client != nil {
		deps.Publisher = b.client
	}
	if b.services, err = app.NewServices(deps); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *liveBackend) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, b.pool)
}

func (b *liveBackend) GenerateClosing(ctx context.Context, scope shared.Scope, in closing.GenerateInput) (closing.Closing, error) {
	return b.services.Closing.Generate(ctx, scope, in)
}

func (b *liveBackend) Project(ctx context.Context, scope shared.Scope, months int) (cashflow.Projection, error) {
	return b.services.Cashflow.Project(ctx, scope, months)
}

func (b *liveBackend) RequeueImport(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (imports.Batch, error) {
	if b.client == nil {
		return imports.Batch{}, errors.New("requeue: queue unavailable")
	}
	return b.services.Imports.Requeue(ctx, scope, batchID)
}

func (b *liveBackend) ImportDetails(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (imports.Details, error) {
	return b.services.Imports.GetImportDetails(ctx, scope, batchID)
}

func (b *liveBackend) QueueStats(ctx context.Context) (QueueStats, error) {
	if b.inspector == nil {
		return QueueStats{}, errors.New("queue stats: inspector not configured")
	}
	info, err := b.inspector.GetQueueInfo(b.cfg.ImportQueue)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return QueueStats{Queue: b.cfg.ImportQueue, Timestamp: time.Now().UTC()}, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
		Timestamp: info.Timestamp,
	}, nil
}

func (b *liveBackend) Close() error {
	var errs []error
	if b.inspector != nil {
		errs = append(errs, b.inspector.Close())
	}
	if b.client != nil {
		errs = append(errs, b.client.Close())
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	if b.pool != nil {
		b.pool.Close()
	}
	return errors.Join(errs...)
}
