package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ledgerflow/internal/jobs"
)

const defaultSweepAge = 15 * time.Minute

// StaleSweeper republishes batches that never left the uploaded state.
type StaleSweeper interface {
	SweepStale(ctx context.Context, age time.Duration, limit int) (int, error)
}

// ImportSweepJob periodically recovers batches whose message was lost.
type ImportSweepJob struct {
	Sweeper StaleSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewImportSweepJob initialises the sweep handler.
func NewImportSweepJob(sweeper StaleSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *ImportSweepJob {
	return &ImportSweepJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle executes one sweep.
func (j *ImportSweepJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sweeper == nil {
		return errors.New("import sweep: handler not configured")
	}
	var payload SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	age := time.Duration(payload.AgeSeconds) * time.Second
	if age <= 0 {
		age = defaultSweepAge
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskImportSweep)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	requeued, err := j.Sweeper.SweepStale(ctx, age, payload.Limit)
	if err != nil {
		logger.Error("import sweep failed", slog.Int("requeued", requeued), slog.Any("error", err))
		return err
	}
	logger.Debug("import sweep completed", slog.Int("requeued", requeued), slog.Duration("age", age))
	return nil
}
