package imports_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerflow/internal/imports"
	"github.com/odyssey-erp/ledgerflow/internal/imports/importstest"
	jobmetrics "github.com/odyssey-erp/ledgerflow/internal/jobs"
	"github.com/odyssey-erp/ledgerflow/internal/platform/storage"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

var processedAt = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store     *importstest.Store
	objects   *storage.Filesystem
	processor *imports.Processor
	scope     shared.Scope
}

func newFixture(t *testing.T, chunkSize int) *fixture {
	t.Helper()
	store := importstest.NewStore()
	objects := newObjects(t)
	processor := imports.NewProcessor(store, objects, chunkSize, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	processor.WithNow(func() time.Time { return processedAt })
	return &fixture{store: store, objects: objects, processor: processor, scope: newScope()}
}

// seed stores payload and an uploaded batch with no materialised rows.
func (f *fixture) seed(t *testing.T, payload string) imports.Message {
	t.Helper()
	batchID := uuid.New()
	key := storage.ImportKey(f.scope.ClientID.String(), batchID.String(), "upload.csv")
	_, err := f.objects.Put(context.Background(), key, []byte(payload), "text/csv")
	require.NoError(t, err)
	f.store.PutBatch(imports.Batch{
		ID:         batchID,
		ClientID:   f.scope.ClientID,
		FileName:   "upload.csv",
		StorageKey: &key,
		Headers:    []string{},
		Status:     imports.BatchUploaded,
	})
	return imports.Message{BatchID: batchID, ClientID: f.scope.ClientID, StorageKey: &key}
}

func (f *fixture) batch(t *testing.T, id uuid.UUID) imports.Batch {
	t.Helper()
	b, err := f.store.GetBatch(context.Background(), f.scope.ClientID, id)
	require.NoError(t, err)
	return b
}

func csvRows(n int) string {
	var b strings.Builder
	b.WriteString("date,amount\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "2024-03-%02d,%d.00\n", i, i*10)
	}
	return b.String()
}

func TestProcessMaterialisesRowsInChunks(t *testing.T) {
	f := newFixture(t, 2)
	msg := f.seed(t, csvRows(5))

	var calls int
	f.store.AfterInsert = func(call int) { calls = call }

	require.NoError(t, f.processor.Process(context.Background(), msg, imports.Attempt{}))

	assert.Equal(t, 3, calls)
	assert.Equal(t, 5, f.store.RowCount(msg.BatchID))
	b := f.batch(t, msg.BatchID)
	assert.Equal(t, imports.BatchProcessed, b.Status)
	assert.Equal(t, 5, b.RowCount)
	assert.Equal(t, 0, b.ErrorCount)
	assert.Equal(t, []string{"date", "amount"}, b.Headers)
	require.NotNil(t, b.ProcessedAt)
	assert.Equal(t, processedAt, *b.ProcessedAt)

	rows, _, err := f.store.ListRows(context.Background(), msg.BatchID, shared.Page{Limit: 10})
	require.NoError(t, err)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Index)
		assert.Equal(t, imports.RowPending, row.Status)
	}
	assert.Equal(t, "50.00", rows[4].Data["amount"])
}

func TestProcessRedeliveryAfterCrashCompletes(t *testing.T) {
	f := newFixture(t, 2)
	msg := f.seed(t, csvRows(5))

	ctx, crash := context.WithCancel(context.Background())
	defer crash()
	f.store.AfterInsert = func(call int) {
		if call == 2 {
			crash()
		}
	}

	err := f.processor.Process(ctx, msg, imports.Attempt{})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, imports.ErrBatchFailed)
	assert.Equal(t, 4, f.store.RowCount(msg.BatchID))
	assert.Equal(t, imports.BatchUploaded, f.batch(t, msg.BatchID).Status)

	require.NoError(t, f.processor.Process(context.Background(), msg, imports.Attempt{Retried: 1}))

	b := f.batch(t, msg.BatchID)
	assert.Equal(t, imports.BatchProcessed, b.Status)
	assert.Equal(t, 5, b.RowCount)
	assert.Equal(t, 0, b.ErrorCount)
	assert.Equal(t, 5, f.store.RowCount(msg.BatchID))
}

func TestProcessAfterSynchronousIngestSkipsExistingRows(t *testing.T) {
	f := newFixture(t, 0)
	ingestor := imports.NewIngestor(f.store, f.objects, nil, 0, nil)
	result, err := ingestor.IngestCSV(context.Background(), f.scope, "march.csv", []byte(sampleCSV))
	require.NoError(t, err)

	msg := imports.Message{BatchID: result.BatchID, ClientID: f.scope.ClientID}
	require.NoError(t, f.processor.Process(context.Background(), msg, imports.Attempt{}))

	b := f.batch(t, result.BatchID)
	assert.Equal(t, imports.BatchProcessed, b.Status)
	assert.Equal(t, 3, b.RowCount)
	assert.Equal(t, 3, f.store.RowCount(result.BatchID))
}

func TestProcessStorageFailurePolicy(t *testing.T) {
	f := newFixture(t, 0)
	msg := f.seed(t, csvRows(1))
	missing := "imports/missing.csv"
	msg.StorageKey = &missing

	err := f.processor.Process(context.Background(), msg, imports.Attempt{Retried: 0, MaxRetry: 2})
	require.ErrorIs(t, err, shared.ErrStorage)
	assert.NotErrorIs(t, err, imports.ErrBatchFailed)
	assert.Equal(t, imports.BatchUploaded, f.batch(t, msg.BatchID).Status)

	err = f.processor.Process(context.Background(), msg, imports.Attempt{Retried: 2, MaxRetry: 2})
	require.ErrorIs(t, err, imports.ErrBatchFailed)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	b := f.batch(t, msg.BatchID)
	assert.Equal(t, imports.BatchFailed, b.Status)
	assert.Equal(t, 1, b.ErrorCount)
}

func TestProcessWithoutRetriesFailsImmediately(t *testing.T) {
	f := newFixture(t, 0)
	msg := f.seed(t, csvRows(1))
	missing := "imports/missing.csv"
	msg.StorageKey = &missing

	err := f.processor.Process(context.Background(), msg, imports.Attempt{})
	require.ErrorIs(t, err, imports.ErrBatchFailed)
	assert.Equal(t, imports.BatchFailed, f.batch(t, msg.BatchID).Status)
}

func TestProcessMalformedContentIsNeverRetried(t *testing.T) {
	f := newFixture(t, 0)
	msg := f.seed(t, "a,b\n1,2\n3\n")

	err := f.processor.Process(context.Background(), msg, imports.Attempt{MaxRetry: 5})
	require.ErrorIs(t, err, imports.ErrBatchFailed)
	assert.ErrorIs(t, err, shared.ErrProcessing)
	assert.Equal(t, imports.BatchFailed, f.batch(t, msg.BatchID).Status)
}

func TestProcessInsertFailureMarksFailed(t *testing.T) {
	f := newFixture(t, 0)
	msg := f.seed(t, csvRows(2))
	f.store.InsertErr = errors.New("check constraint violated")

	err := f.processor.Process(context.Background(), msg, imports.Attempt{MaxRetry: 3})
	require.ErrorIs(t, err, imports.ErrBatchFailed)
	assert.ErrorIs(t, err, shared.ErrProcessing)
}

func TestProcessFallsBackToBatchKey(t *testing.T) {
	f := newFixture(t, 0)
	msg := f.seed(t, csvRows(2))
	msg.StorageKey = nil

	require.NoError(t, f.processor.Process(context.Background(), msg, imports.Attempt{}))
	assert.Equal(t, imports.BatchProcessed, f.batch(t, msg.BatchID).Status)
}

func TestProcessWithoutSourceFails(t *testing.T) {
	f := newFixture(t, 0)
	b := f.store.PutBatch(imports.Batch{ID: uuid.New(), ClientID: f.scope.ClientID, FileName: "a.csv", Status: imports.BatchUploaded})

	err := f.processor.Process(context.Background(), imports.Message{BatchID: b.ID, ClientID: f.scope.ClientID}, imports.Attempt{})
	require.ErrorIs(t, err, imports.ErrBatchFailed)
	assert.ErrorIs(t, err, imports.ErrNoSource)
	failed := f.batch(t, b.ID)
	assert.Equal(t, imports.BatchFailed, failed.Status)
	assert.Zero(t, failed.ErrorCount)
	assert.NotNil(t, failed.ProcessedAt)
}

func TestProcessDropsUnknownAndFinishedBatches(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.processor.Process(context.Background(),
		imports.Message{BatchID: uuid.New(), ClientID: f.scope.ClientID}, imports.Attempt{}))

	msg := f.seed(t, csvRows(1))
	require.NoError(t, f.processor.Process(context.Background(), msg, imports.Attempt{}))
	var calls int
	f.store.AfterInsert = func(call int) { calls++ }
	require.NoError(t, f.processor.Process(context.Background(), msg, imports.Attempt{}))
	assert.Zero(t, calls)
}
