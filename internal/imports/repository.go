package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledgerflow/internal/platform/db"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Store persists batches and rows.
type Store interface {
	CreateBatch(ctx context.Context, batch Batch, rows []Row) (Batch, error)
	GetBatch(ctx context.Context, clientID, batchID uuid.UUID) (Batch, error)
	InsertRows(ctx context.Context, rows []Row) (inserted int, err error)
	CompleteBatch(ctx context.Context, batchID uuid.UUID, headers []string, rowCount, errorCount int, at time.Time) error
	FailBatch(ctx context.Context, batchID uuid.UUID, errorDelta int, at time.Time) error
	ListBatches(ctx context.Context, clientID uuid.UUID, filter ListFilter) ([]Batch, int, error)
	ListRows(ctx context.Context, batchID uuid.UUID, page shared.Page) ([]Row, int, error)
	ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]Batch, error)
}

// Repository is the PostgreSQL import store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateBatch inserts the batch and bulk-copies its rows in one transaction.
func (r *Repository) CreateBatch(ctx context.Context, batch Batch, rows []Row) (Batch, error) {
	headers, err := json.Marshal(batch.Headers)
	if err != nil {
		return Batch{}, fmt.Errorf("imports: encode headers: %w", err)
	}
	source := make([][]any, 0, len(rows))
	for _, row := range rows {
		data, err := json.Marshal(row.Data)
		if err != nil {
			return Batch{}, fmt.Errorf("imports: encode row %d: %w", row.Index, err)
		}
		source = append(source, []any{row.BatchID, int32(row.Index), data})
	}

	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO import_batches (id, client_id, file_name, storage_key, headers, row_count, error_count, status, created_by)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8::import_batch_status, $9)
			RETURNING created_at`,
			batch.ID, batch.ClientID, batch.FileName, batch.StorageKey, headers,
			batch.RowCount, batch.ErrorCount, string(batch.Status), batch.CreatedBy,
		).Scan(&batch.CreatedAt); err != nil {
			return fmt.Errorf("imports: insert batch: %w", err)
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"import_rows"},
			[]string{"batch_id", "row_index", "data"},
			pgx.CopyFromRows(source),
		); err != nil {
			return fmt.Errorf("imports: copy rows: %w", err)
		}
		return nil
	})
	if shared.IsUniqueViolation(err) {
		return Batch{}, shared.Validation("import batch %s already exists", batch.ID)
	}
	if err != nil {
		return Batch{}, err
	}
	return batch, nil
}

const batchColumns = `id, client_id, file_name, storage_key, headers, row_count, error_count, status::text, processed_at, created_by, created_at`

// GetBatch loads a batch owned by clientID.
func (r *Repository) GetBatch(ctx context.Context, clientID, batchID uuid.UUID) (Batch, error) {
	b, err := scanBatch(r.pool.QueryRow(ctx, `
		SELECT `+batchColumns+`
		FROM import_batches
		WHERE id = $1 AND client_id = $2`, batchID, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, shared.NotFound("import batch")
	}
	return b, err
}

// InsertRows writes a chunk of rows, skipping any (batch, index) already
// present. It returns how many rows were new.
func (r *Repository) InsertRows(ctx context.Context, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		data, err := json.Marshal(row.Data)
		if err != nil {
			return 0, fmt.Errorf("imports: encode row %d: %w", row.Index, err)
		}
		batch.Queue(`
			INSERT INTO import_rows (batch_id, row_index, data, status)
			VALUES ($1, $2, $3::jsonb, $4::import_row_status)
			ON CONFLICT ON CONSTRAINT import_rows_batch_row_key DO NOTHING`,
			row.BatchID, row.Index, data, string(row.Status))
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for _, row := range rows {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("imports: insert row %d: %w", row.Index, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// CompleteBatch records a successful run.
func (r *Repository) CompleteBatch(ctx context.Context, batchID uuid.UUID, headers []string, rowCount, errorCount int, at time.Time) error {
	raw, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("imports: encode headers: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE import_batches
		SET headers = $2::jsonb, row_count = $3, error_count = $4,
		    status = 'processed', processed_at = $5, updated_at = now()
		WHERE id = $1`, batchID, raw, rowCount, errorCount, at)
	if err != nil {
		return fmt.Errorf("imports: complete batch: %w", err)
	}
	return nil
}

// FailBatch records a failed run, adding errorDelta to the error count.
func (r *Repository) FailBatch(ctx context.Context, batchID uuid.UUID, errorDelta int, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE import_batches
		SET error_count = error_count + $3, status = 'failed', processed_at = $2, updated_at = now()
		WHERE id = $1`, batchID, at, errorDelta)
	if err != nil {
		return fmt.Errorf("imports: fail batch: %w", err)
	}
	return nil
}

// ListStale returns batches still uploaded that were created before the cutoff,
// oldest first.
func (r *Repository) ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM import_batches
		WHERE status = 'uploaded' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("imports: list stale batches: %w", err)
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBatches pages the client's batches, newest first.
func (r *Repository) ListBatches(ctx context.Context, clientID uuid.UUID, filter ListFilter) ([]Batch, int, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM import_batches
		WHERE client_id = $1 AND ($2::text IS NULL OR status = $2::import_batch_status)`,
		clientID, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("imports: count batches: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM import_batches
		WHERE client_id = $1 AND ($2::text IS NULL OR status = $2::import_batch_status)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, clientID, status, filter.Page.Limit, filter.Page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("imports: list batches: %w", err)
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// ListRows pages a batch's rows by index.
func (r *Repository) ListRows(ctx context.Context, batchID uuid.UUID, page shared.Page) ([]Row, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM import_rows WHERE batch_id = $1`, batchID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("imports: count rows: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, batch_id, row_index, data, errors, status::text, created_at
		FROM import_rows
		WHERE batch_id = $1
		ORDER BY row_index
		LIMIT $2 OFFSET $3`, batchID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("imports: list rows: %w", err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var (
			row        Row
			data, errs []byte
			status     string
		)
		if err := rows.Scan(&row.ID, &row.BatchID, &row.Index, &data, &errs, &status, &row.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("imports: scan row: %w", err)
		}
		if err := json.Unmarshal(data, &row.Data); err != nil {
			return nil, 0, fmt.Errorf("imports: decode row %d: %w", row.Index, err)
		}
		row.Errors = []string{}
		if len(errs) > 0 {
			if err := json.Unmarshal(errs, &row.Errors); err != nil {
				return nil, 0, fmt.Errorf("imports: decode row errors %d: %w", row.Index, err)
			}
		}
		row.Status = RowStatus(status)
		out = append(out, row)
	}
	return out, total, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var (
		b       Batch
		headers []byte
		status  string
	)
	if err := row.Scan(&b.ID, &b.ClientID, &b.FileName, &b.StorageKey, &headers, &b.RowCount,
		&b.ErrorCount, &status, &b.ProcessedAt, &b.CreatedBy, &b.CreatedAt); err != nil {
		return Batch{}, fmt.Errorf("imports: scan batch: %w", err)
	}
	b.Headers = []string{}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &b.Headers); err != nil {
			return Batch{}, fmt.Errorf("imports: decode headers: %w", err)
		}
	}
	b.Status = BatchStatus(status)
	return b, nil
}
