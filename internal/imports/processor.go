package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	jobmetrics "github.com/odyssey-erp/ledgerflow/internal/jobs"
	"github.com/odyssey-erp/ledgerflow/internal/platform/storage"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// DefaultChunkSize is the number of rows flushed per insert round trip.
const DefaultChunkSize = 1000

// Stage names a job-state transition reported in logs.
type Stage string

const (
	StageReceived    Stage = "received"
	StageDownloading Stage = "downloading"
	StageParsing     Stage = "parsing"
	StageFlushing    Stage = "flushing"
	StageProcessed   Stage = "processed"
	StageFailed      Stage = "failed"
)

// Attempt describes the delivery being processed.
type Attempt struct {
	Retried  int
	MaxRetry int
}

// Final reports whether no further redelivery will follow a returned error.
func (a Attempt) Final() bool {
	return a.Retried >= a.MaxRetry
}

// Processor materialises the rows of an uploaded batch. Rows are streamed
// from object storage and flushed in chunks; rows already written by an
// earlier delivery are skipped, so a batch may be processed more than once.
type Processor struct {
	store     Store
	objects   storage.ObjectStore
	chunkSize int
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
	now       func() time.Time
}

// NewProcessor wires a Processor. chunkSize <= 0 selects DefaultChunkSize.
func NewProcessor(store Store, objects storage.ObjectStore, chunkSize int, logger *slog.Logger, metrics *jobmetrics.Metrics) *Processor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     store,
		objects:   objects,
		chunkSize: chunkSize,
		logger:    logger,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock.
func (p *Processor) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Process handles one delivery of msg. A nil return means the message may be
// acknowledged. Errors wrapping ErrBatchFailed have already been recorded on
// the batch; any other error leaves the batch untouched for redelivery.
func (p *Processor) Process(ctx context.Context, msg Message, attempt Attempt) error {
	logger := p.logger.With(
		slog.String("batch_id", msg.BatchID.String()),
		slog.String("client_id", msg.ClientID.String()),
		slog.Int("attempt", attempt.Retried+1),
	)
	p.stage(logger, StageReceived)

	batch, err := p.store.GetBatch(ctx, msg.ClientID, msg.BatchID)
	if errors.Is(err, shared.ErrNotFound) {
		logger.Warn("import batch missing, dropping message")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	if batch.Status == BatchProcessed {
		logger.Info("import batch already processed")
		return nil
	}

	key := msg.StorageKey
	if key == nil || *key == "" {
		key = batch.StorageKey
	}
	if key == nil || *key == "" || p.objects == nil {
		// Nothing was read, so the error count is left alone.
		return p.fail(ctx, logger, batch.ID, 0, ErrNoSource)
	}

	headers, count, err := p.materialize(ctx, logger, batch.ID, *key)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			logger.Warn("import interrupted, leaving batch for redelivery", slog.Any("error", err))
			return ctx.Err()
		case errors.Is(err, shared.ErrStorage) && !attempt.Final():
			logger.Warn("import storage unavailable, will retry", slog.Any("error", err))
			return err
		default:
			return p.fail(ctx, logger, batch.ID, 1, err)
		}
	}

	if err := p.store.CompleteBatch(ctx, batch.ID, headers, count, 0, p.now()); err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	p.metrics.ObserveBatch(string(BatchProcessed))
	logger.Info("import job state", slog.String("state", string(StageProcessed)), slog.Int("rows", count))
	return nil
}

func (p *Processor) materialize(ctx context.Context, logger *slog.Logger, batchID uuid.UUID, key string) ([]string, int, error) {
	p.stage(logger, StageDownloading)
	body, err := p.objects.Open(ctx, key)
	if err != nil {
		return nil, 0, shared.Storage("open "+key, err)
	}
	defer body.Close()

	p.stage(logger, StageParsing)
	reader, err := NewRecordReader(objectReader{body})
	if err != nil {
		return nil, 0, err
	}

	chunk := make([]Row, 0, p.chunkSize)
	for {
		data, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		chunk = append(chunk, newRow(batchID, reader.Count(), data))
		if len(chunk) < p.chunkSize {
			continue
		}
		if err := p.flush(ctx, logger, chunk); err != nil {
			return nil, 0, err
		}
		chunk = chunk[:0]
	}
	if err := p.flush(ctx, logger, chunk); err != nil {
		return nil, 0, err
	}
	return reader.Headers(), reader.Count(), nil
}

func (p *Processor) flush(ctx context.Context, logger *slog.Logger, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	inserted, err := p.store.InsertRows(ctx, rows)
	if err != nil {
		return shared.Processing("insert rows", err)
	}
	skipped := len(rows) - inserted
	p.metrics.AddImportRows(inserted, skipped)
	logger.Info("import job state",
		slog.String("state", string(StageFlushing)),
		slog.Int("rows", len(rows)),
		slog.Int("skipped", skipped),
		slog.Int("through_row", rows[len(rows)-1].Index),
	)
	return nil
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, batchID uuid.UUID, errorDelta int, cause error) error {
	logger.Error("import job state", slog.String("state", string(StageFailed)), slog.Any("error", cause))
	if err := p.store.FailBatch(ctx, batchID, errorDelta, p.now()); err != nil {
		return errors.Join(cause, fmt.Errorf("record failure: %w", err))
	}
	p.metrics.ObserveBatch(string(BatchFailed))
	return fmt.Errorf("%w: %w", ErrBatchFailed, cause)
}

func (p *Processor) stage(logger *slog.Logger, s Stage) {
	logger.Info("import job state", slog.String("state", string(s)))
}

// objectReader tags read failures of a stored object as storage errors so
// they are not mistaken for malformed content.
type objectReader struct {
	r io.Reader
}

func (o objectReader) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = shared.Storage("read object", err)
	}
	return n, err
}
