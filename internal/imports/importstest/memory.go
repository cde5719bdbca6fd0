// Package importstest provides an in-memory import store for tests.
package importstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgerflow/internal/imports"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Store is a goroutine-safe imports.Store. Rows are unique per
// (batch, row index) and duplicates are skipped like the database does.
type Store struct {
	mu      sync.Mutex
	batches map[uuid.UUID]imports.Batch
	order   []uuid.UUID
	rows    map[uuid.UUID]map[int]imports.Row
	clock   time.Time
	inserts int

	// AfterInsert runs after every successful InsertRows call with the
	// number of calls so far.
	AfterInsert func(call int)
	// InsertErr, when set, fails every InsertRows call.
	InsertErr error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		batches: make(map[uuid.UUID]imports.Batch),
		rows:    make(map[uuid.UUID]map[int]imports.Row),
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// SetClock moves the store clock used for created_at stamps.
func (s *Store) SetClock(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = t
}

// CreateBatch stores the batch and its rows.
func (s *Store) CreateBatch(_ context.Context, batch imports.Batch, rows []imports.Row) (imports.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	batch.CreatedAt = s.tick()
	s.batches[batch.ID] = batch
	s.order = append(s.order, batch.ID)
	s.insertLocked(rows)
	return batch, nil
}

// PutBatch seeds a batch without rows.
func (s *Store) PutBatch(batch imports.Batch) imports.Batch {
	b, _ := s.CreateBatch(context.Background(), batch, nil)
	return b
}

// GetBatch returns the batch owned by clientID.
func (s *Store) GetBatch(_ context.Context, clientID, batchID uuid.UUID) (imports.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok || b.ClientID != clientID {
		return imports.Batch{}, shared.NotFound("import batch")
	}
	return b, nil
}

// InsertRows inserts rows, skipping existing (batch, index) pairs.
func (s *Store) InsertRows(ctx context.Context, rows []imports.Row) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	if s.InsertErr != nil {
		s.mu.Unlock()
		return 0, s.InsertErr
	}
	inserted := s.insertLocked(rows)
	s.inserts++
	call, hook := s.inserts, s.AfterInsert
	s.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return inserted, nil
}

func (s *Store) insertLocked(rows []imports.Row) int {
	inserted := 0
	for _, row := range rows {
		byIndex, ok := s.rows[row.BatchID]
		if !ok {
			byIndex = make(map[int]imports.Row)
			s.rows[row.BatchID] = byIndex
		}
		if _, dup := byIndex[row.Index]; dup {
			continue
		}
		row.ID = uuid.New()
		row.CreatedAt = s.clock
		byIndex[row.Index] = row
		inserted++
	}
	return inserted
}

// CompleteBatch marks the batch processed.
func (s *Store) CompleteBatch(_ context.Context, batchID uuid.UUID, headers []string, rowCount, errorCount int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return shared.NotFound("import batch")
	}
	b.Headers, b.RowCount, b.ErrorCount = headers, rowCount, errorCount
	b.Status = imports.BatchProcessed
	b.ProcessedAt = &at
	s.batches[batchID] = b
	return nil
}

// FailBatch marks the batch failed.
func (s *Store) FailBatch(_ context.Context, batchID uuid.UUID, errorDelta int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return shared.NotFound("import batch")
	}
	b.ErrorCount += errorDelta
	b.Status = imports.BatchFailed
	b.ProcessedAt = &at
	s.batches[batchID] = b
	return nil
}

// ListBatches pages the client's batches, newest first.
func (s *Store) ListBatches(_ context.Context, clientID uuid.UUID, filter imports.ListFilter) ([]imports.Batch, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []imports.Batch
	for i := len(s.order) - 1; i >= 0; i-- {
		b := s.batches[s.order[i]]
		if b.ClientID != clientID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		matched = append(matched, b)
	}
	return window(matched, filter.Page), len(matched), nil
}

// ListRows pages a batch's rows by index.
func (s *Store) ListRows(_ context.Context, batchID uuid.UUID, page shared.Page) ([]imports.Row, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]imports.Row, 0, len(s.rows[batchID]))
	for _, r := range s.rows[batchID] {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return window(rows, page), len(rows), nil
}

// ListStale returns uploaded batches created before the cutoff, oldest first.
func (s *Store) ListStale(_ context.Context, createdBefore time.Time, limit int) ([]imports.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []imports.Batch
	for _, id := range s.order {
		b := s.batches[id]
		if b.Status != imports.BatchUploaded || !b.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, b)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// RowCount returns the number of stored rows for a batch.
func (s *Store) RowCount(batchID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[batchID])
}

func window[T any](items []T, page shared.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	Messages []imports.Message
	Err      error
}

// PublishImport records msg or returns Err.
func (p *Publisher) PublishImport(_ context.Context, msg imports.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Messages = append(p.Messages, msg)
	return nil
}

// Published returns a copy of the recorded messages.
func (p *Publisher) Published() []imports.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]imports.Message, len(p.Messages))
	copy(out, p.Messages)
	return out
}
