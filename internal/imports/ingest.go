package imports

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgerflow/internal/platform/storage"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// DefaultMaxRows caps the records accepted by a synchronous ingest.
const DefaultMaxRows = 5000

// Ingestor validates uploads, records batch metadata and hands the batch to
// the queue. It never interprets row semantics.
type Ingestor struct {
	store     Store
	objects   storage.ObjectStore
	publisher Publisher
	maxRows   int
	logger    *slog.Logger
	newID     func() uuid.UUID
}

// NewIngestor wires an Ingestor. objects and publisher may be nil, in which
// case the payload is not kept or the batch is not announced.
func NewIngestor(store Store, objects storage.ObjectStore, publisher Publisher, maxRows int, logger *slog.Logger) *Ingestor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:     store,
		objects:   objects,
		publisher: publisher,
		maxRows:   maxRows,
		logger:    logger,
		newID:     uuid.New,
	}
}

// IngestCSV accepts a CSV upload for the scoped client.
func (i *Ingestor) IngestCSV(ctx context.Context, scope shared.Scope, fileName string, payload []byte) (IngestResult, error) {
	if err := scope.Validate(); err != nil {
		return IngestResult{}, err
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return IngestResult{}, shared.Validation("file must have a .csv extension")
	}

	batchID := i.newID()
	headers, rows, err := i.parse(batchID, payload)
	if err != nil {
		return IngestResult{}, err
	}

	batch := Batch{
		ID:         batchID,
		ClientID:   scope.ClientID,
		FileName:   filepath.Base(fileName),
		Headers:    headers,
		RowCount:   len(rows),
		ErrorCount: 0,
		Status:     BatchUploaded,
		CreatedBy:  scope.Actor(),
	}
	if i.objects != nil {
		key := storage.ImportKey(scope.ClientID.String(), batchID.String(), fileName)
		if _, err := i.objects.Put(ctx, key, payload, "text/csv"); err != nil {
			return IngestResult{}, shared.Storage("store upload", err)
		}
		batch.StorageKey = &key
	}

	batch, err = i.store.CreateBatch(ctx, batch, rows)
	if err != nil {
		return IngestResult{}, err
	}

	logger := i.logger.With(
		slog.String("batch_id", batch.ID.String()),
		slog.String("client_id", batch.ClientID.String()),
		slog.Int("rows", batch.RowCount),
	)
	if i.publisher != nil {
		msg := messageFor(batch)
		if err := i.publisher.PublishImport(ctx, msg); err != nil {
			logger.Warn("import batch stored but not queued", slog.Any("error", err))
		}
	}
	logger.Info("import batch uploaded")

	return IngestResult{
		BatchID:  batch.ID,
		RowCount: batch.RowCount,
		Headers:  batch.Headers,
		Status:   batch.Status,
	}, nil
}

func (i *Ingestor) parse(batchID uuid.UUID, payload []byte) ([]string, []Row, error) {
	reader, err := NewRecordReader(bytes.NewReader(payload))
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			return nil, nil, shared.Validation("CSV has no data rows")
		}
		return nil, nil, err
	}
	var rows []Row
	for {
		data, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if reader.Count() > i.maxRows {
			return nil, nil, shared.Validation("CSV exceeds row limit of %d", i.maxRows)
		}
		rows = append(rows, newRow(batchID, reader.Count(), data))
	}
	if len(rows) == 0 {
		return nil, nil, shared.Validation("CSV has no data rows")
	}
	return reader.Headers(), rows, nil
}
