package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerflow/internal/imports"
	jobmetrics "github.com/odyssey-erp/ledgerflow/internal/jobs"
)

// ImportProcessor materialises one delivery of an import message.
type ImportProcessor interface {
	Process(ctx context.Context, msg imports.Message, attempt imports.Attempt) error
}

// ImportCSVJob adapts the import processor to the queue. Recorded batch
// failures are acknowledged when retries are disabled and archived otherwise.
type ImportCSVJob struct {
	Processor ImportProcessor
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	// MaxRetry is used when the task context does not carry the limit.
	MaxRetry int
}

// NewImportCSVJob initialises the import handler.
func NewImportCSVJob(processor ImportProcessor, logger *slog.Logger, metrics *jobmetrics.Metrics, maxRetry int) *ImportCSVJob {
	return &ImportCSVJob{Processor: processor, Logger: logger, Metrics: metrics, MaxRetry: maxRetry}
}

// Handle executes one delivery.
func (j *ImportCSVJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Processor == nil {
		return errors.New("import csv: handler not configured")
	}
	msg, err := DecodeImportMessage(t.Payload())
	if err != nil {
		j.logger().Error("discarding import task", slog.Any("error", err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	attempt := j.attempt(ctx)
	tracker := j.metrics().Track(TaskImportCSV)
	err = tracker.End(j.Processor.Process(ctx, msg, attempt))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, imports.ErrBatchFailed) && attempt.MaxRetry == 0:
		return nil
	case errors.Is(err, imports.ErrBatchFailed):
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}

func (j *ImportCSVJob) attempt(ctx context.Context) imports.Attempt {
	attempt := imports.Attempt{MaxRetry: j.MaxRetry}
	if retried, ok := asynq.GetRetryCount(ctx); ok {
		attempt.Retried = retried
	}
	if maxRetry, ok := asynq.GetMaxRetry(ctx); ok {
		attempt.MaxRetry = maxRetry
	}
	return attempt
}

func (j *ImportCSVJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskImportCSV))
	}
	return slog.Default().With(slog.String("job", TaskImportCSV))
}

func (j *ImportCSVJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
