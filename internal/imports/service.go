package imports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Service exposes batch inspection and redelivery.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service. publisher may be nil when requeueing is
// not offered.
func NewService(store Store, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListImports pages the client's batches, newest first.
func (s *Service) ListImports(ctx context.Context, scope shared.Scope, status *BatchStatus, limit, offset int) (shared.Listing[Batch], error) {
	if err := scope.Validate(); err != nil {
		return shared.Listing[Batch]{}, err
	}
	filter := ListFilter{Status: status, Page: shared.NewPage(limit, offset, DefaultBatchLimit, MaxBatchLimit)}
	items, total, err := s.store.ListBatches(ctx, scope.ClientID, filter)
	if err != nil {
		return shared.Listing[Batch]{}, err
	}
	if items == nil {
		items = []Batch{}
	}
	return shared.Listing[Batch]{Total: total, Items: items}, nil
}

// GetImportDetails returns a batch and its first rows.
func (s *Service) GetImportDetails(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (Details, error) {
	batch, err := s.batch(ctx, scope, batchID)
	if err != nil {
		return Details{}, err
	}
	rows, _, err := s.store.ListRows(ctx, batch.ID, shared.Page{Limit: SampleRowCount})
	if err != nil {
		return Details{}, err
	}
	if rows == nil {
		rows = []Row{}
	}
	return Details{Batch: batch, SampleRows: rows}, nil
}

// ListImportRows pages a batch's rows by index.
func (s *Service) ListImportRows(ctx context.Context, scope shared.Scope, batchID uuid.UUID, limit, offset int) (shared.Listing[Row], error) {
	batch, err := s.batch(ctx, scope, batchID)
	if err != nil {
		return shared.Listing[Row]{}, err
	}
	rows, total, err := s.store.ListRows(ctx, batch.ID, shared.NewPage(limit, offset, DefaultRowLimit, MaxRowLimit))
	if err != nil {
		return shared.Listing[Row]{}, err
	}
	if rows == nil {
		rows = []Row{}
	}
	return shared.Listing[Row]{Total: total, Items: rows}, nil
}

// Requeue republishes an existing batch. Processed batches are rejected.
func (s *Service) Requeue(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (Batch, error) {
	if s.publisher == nil {
		return Batch{}, errors.New("imports: requeue requires a publisher")
	}
	batch, err := s.batch(ctx, scope, batchID)
	if err != nil {
		return Batch{}, err
	}
	if batch.Status == BatchProcessed {
		return Batch{}, shared.Validation("batch %s is already processed", batch.ID)
	}
	if err := s.publisher.PublishImport(ctx, messageFor(batch)); err != nil {
		return Batch{}, err
	}
	s.logger.Info("import batch requeued",
		slog.String("batch_id", batch.ID.String()),
		slog.String("client_id", batch.ClientID.String()),
		slog.String("status", string(batch.Status)),
	)
	return batch, nil
}

// SweepStale republishes batches left uploaded for longer than age, which
// happens when publishing failed after the batch was stored or a delivery
// was archived before completion. It returns the number requeued.
func (s *Service) SweepStale(ctx context.Context, age time.Duration, limit int) (int, error) {
	if s.publisher == nil {
		return 0, errors.New("imports: sweep requires a publisher")
	}
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	stale, err := s.store.ListStale(ctx, s.now().Add(-age), limit)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, batch := range stale {
		if err := s.publisher.PublishImport(ctx, messageFor(batch)); err != nil {
			return requeued, err
		}
		requeued++
	}
	if requeued > 0 {
		s.logger.Info("stale import batches requeued", slog.Int("batches", requeued))
	}
	return requeued, nil
}

func (s *Service) batch(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (Batch, error) {
	if err := scope.Validate(); err != nil {
		return Batch{}, err
	}
	return s.store.GetBatch(ctx, scope.ClientID, batchID)
}

func messageFor(batch Batch) Message {
	return Message{BatchID: batch.ID, ClientID: batch.ClientID, StorageKey: batch.StorageKey}
}
