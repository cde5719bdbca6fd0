package imports_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerflow/internal/imports"
	"github.com/odyssey-erp/ledgerflow/internal/imports/importstest"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

func ingestMany(t *testing.T, store *importstest.Store, scope shared.Scope, files int) []uuid.UUID {
	t.Helper()
	ingestor := imports.NewIngestor(store, nil, nil, 0, nil)
	ids := make([]uuid.UUID, 0, files)
	for i := 0; i < files; i++ {
		res, err := ingestor.IngestCSV(context.Background(), scope, fmt.Sprintf("f%d.csv", i), []byte(csvRows(12)))
		require.NoError(t, err)
		ids = append(ids, res.BatchID)
	}
	return ids
}

func TestListImportsNewestFirstWithFilter(t *testing.T) {
	store := importstest.NewStore()
	scope := newScope()
	ids := ingestMany(t, store, scope, 3)
	ingestMany(t, store, newScope(), 1)
	require.NoError(t, store.FailBatch(context.Background(), ids[0], 1, time.Now()))
	svc := imports.NewService(store, nil, nil)
	ctx := context.Background()

	all, err := svc.ListImports(ctx, scope, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	require.Len(t, all.Items, 3)
	assert.Equal(t, ids[2], all.Items[0].ID)

	failed := imports.BatchFailed
	onlyFailed, err := svc.ListImports(ctx, scope, &failed, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, onlyFailed.Total)
	assert.Equal(t, ids[0], onlyFailed.Items[0].ID)

	paged, err := svc.ListImports(ctx, scope, nil, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, paged.Total)
	require.Len(t, paged.Items, 1)
	assert.Equal(t, ids[1], paged.Items[0].ID)

	uploaded := imports.BatchProcessed
	none, err := svc.ListImports(ctx, scope, &uploaded, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, none.Items)
	assert.Empty(t, none.Items)
}

func TestImportDetailsAndRows(t *testing.T) {
	store := importstest.NewStore()
	scope := newScope()
	id := ingestMany(t, store, scope, 1)[0]
	svc := imports.NewService(store, nil, nil)
	ctx := context.Background()

	details, err := svc.GetImportDetails(ctx, scope, id)
	require.NoError(t, err)
	assert.Equal(t, id, details.Batch.ID)
	require.Len(t, details.SampleRows, imports.SampleRowCount)
	assert.Equal(t, 1, details.SampleRows[0].Index)

	rows, err := svc.ListImportRows(ctx, scope, id, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, rows.Total)
	require.Len(t, rows.Items, 2)
	assert.Equal(t, 11, rows.Items[0].Index)

	_, err = svc.GetImportDetails(ctx, newScope(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.ListImportRows(ctx, scope, uuid.New(), 0, 0)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRequeue(t *testing.T) {
	store := importstest.NewStore()
	publisher := &importstest.Publisher{}
	scope := newScope()
	ids := ingestMany(t, store, scope, 2)
	require.NoError(t, store.CompleteBatch(context.Background(), ids[1], []string{"date", "amount"}, 12, 0, time.Now()))
	svc := imports.NewService(store, publisher, nil)

	batch, err := svc.Requeue(context.Background(), scope, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], batch.ID)
	require.Len(t, publisher.Published(), 1)
	assert.Equal(t, scope.ClientID, publisher.Published()[0].ClientID)

	_, err = svc.Requeue(context.Background(), scope, ids[1])
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Requeue(context.Background(), newScope(), ids[0])
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSweepStaleRequeuesOldUploadedBatches(t *testing.T) {
	store := importstest.NewStore()
	publisher := &importstest.Publisher{}
	scope := newScope()
	store.SetClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	old := ingestMany(t, store, scope, 2)
	require.NoError(t, store.FailBatch(context.Background(), old[1], 1, time.Now()))
	store.SetClock(time.Date(2024, 3, 1, 9, 55, 0, 0, time.UTC))
	ingestMany(t, store, scope, 1)

	svc := imports.NewService(store, publisher, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) })

	n, err := svc.SweepStale(context.Background(), 15*time.Minute, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, publisher.Published(), 1)
	assert.Equal(t, old[0], publisher.Published()[0].BatchID)
}
