// Package imports ingests uploaded CSV files and materialises their rows
// asynchronously.
package imports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// BatchStatus tracks an uploaded file through the pipeline.
type BatchStatus string

const (
	BatchUploaded  BatchStatus = "uploaded"
	BatchProcessed BatchStatus = "processed"
	BatchFailed    BatchStatus = "failed"
)

// ParseBatchStatus validates a status filter.
func ParseBatchStatus(s string) (BatchStatus, error) {
	switch st := BatchStatus(s); st {
	case BatchUploaded, BatchProcessed, BatchFailed:
		return st, nil
	default:
		return "", shared.Validation("status must be uploaded, processed or failed")
	}
}

// RowStatus tracks a materialised row until reconciliation.
type RowStatus string

const (
	RowPending RowStatus = "pending"
	RowApplied RowStatus = "applied"
	RowError   RowStatus = "error"
)

// Batch is one uploaded file.
type Batch struct {
	ID          uuid.UUID   `json:"id"`
	ClientID    uuid.UUID   `json:"clientId"`
	FileName    string      `json:"fileName"`
	StorageKey  *string     `json:"storageKey"`
	Headers     []string    `json:"headers"`
	RowCount    int         `json:"rowCount"`
	ErrorCount  int         `json:"errorCount"`
	Status      BatchStatus `json:"status"`
	ProcessedAt *time.Time  `json:"processedAt"`
	CreatedBy   *uuid.UUID  `json:"createdByUserId"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Row is one parsed record of a batch. (BatchID, Index) identifies it.
type Row struct {
	ID        uuid.UUID         `json:"id"`
	BatchID   uuid.UUID         `json:"batchId"`
	Index     int               `json:"rowIndex"`
	Data      map[string]string `json:"data"`
	Errors    []string          `json:"errors"`
	Status    RowStatus         `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

func newRow(batchID uuid.UUID, index int, data map[string]string) Row {
	return Row{BatchID: batchID, Index: index, Data: data, Errors: []string{}, Status: RowPending}
}

// Message is the queue payload announcing a batch to process.
type Message struct {
	BatchID    uuid.UUID `json:"batchId"`
	ClientID   uuid.UUID `json:"clientId"`
	StorageKey *string   `json:"storageKey,omitempty"`
}

// Publisher hands messages to the durable queue.
type Publisher interface {
	PublishImport(ctx context.Context, msg Message) error
}

// IngestResult is returned to the uploader.
type IngestResult struct {
	BatchID  uuid.UUID   `json:"batchId"`
	RowCount int         `json:"rowCount"`
	Headers  []string    `json:"headers"`
	Status   BatchStatus `json:"status"`
}

// Details is a batch with its first rows.
type Details struct {
	Batch      Batch `json:"batch"`
	SampleRows []Row `json:"sampleRows"`
}

// ListFilter narrows batch listings.
type ListFilter struct {
	Status *BatchStatus
	Page   shared.Page
}

const (
	DefaultBatchLimit = 50
	MaxBatchLimit     = 100
	DefaultRowLimit   = 100
	MaxRowLimit       = 500
	SampleRowCount    = 10
)

// ErrBatchFailed marks a processing failure that has been recorded on the batch.
var ErrBatchFailed = errors.New("imports: batch failed")

// ErrNoSource indicates neither the message nor the batch names a stored payload.
var ErrNoSource = errors.New("imports: no storage key")
