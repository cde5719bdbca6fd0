package indicators

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
)

// Store persists stocks and reserves.
type Store interface {
	InsertStock(ctx context.Context, s Stock) (Stock, error)
	ListStocks(ctx context.Context, clientID uuid.UUID, tr TimeRange) ([]Stock, error)
	LatestStock(ctx context.Context, clientID uuid.UUID) (*Stock, error)
	InsertReserve(ctx context.Context, r Reserve) (Reserve, error)
	ListReserves(ctx context.Context, clientID uuid.UUID, tr TimeRange) ([]Reserve, error)
	LatestReserve(ctx context.Context, clientID uuid.UUID, kind ReserveKind) (*Reserve, error)
}

// Repository is the PostgreSQL indicator store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const (
	stockColumns   = `id, client_id, value::text, recorded_at, notes, origin::text, created_by, created_at`
	reserveColumns = `id, client_id, kind::text, value::text, recorded_at, label, notes, origin::text, created_by, created_at`
)

func (r *Repository) InsertStock(ctx context.Context, s Stock) (Stock, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stocks (client_id, value, recorded_at, notes, origin, created_by)
		VALUES ($1, $2::numeric, $3, $4, $5::record_origin, $6)
		RETURNING id, created_at`,
		s.ClientID, s.Value.StringFixed(2), s.RecordedAt, s.Notes, string(s.Origin), s.CreatedBy,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return Stock{}, fmt.Errorf("indicators: insert stock: %w", err)
	}
	return s, nil
}

func (r *Repository) ListStocks(ctx context.Context, clientID uuid.UUID, tr TimeRange) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stockColumns+`
		FROM stocks
		WHERE client_id = $1
		  AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		  AND ($3::timestamptz IS NULL OR recorded_at <= $3)
		ORDER BY recorded_at DESC`, clientID, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("indicators: list stocks: %w", err)
	}
	defer rows.Close()
	var out []Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) LatestStock(ctx context.Context, clientID uuid.UUID) (*Stock, error) {
	s, err := scanStock(r.pool.QueryRow(ctx, `
		SELECT `+stockColumns+`
		FROM stocks WHERE client_id = $1
		ORDER BY recorded_at DESC LIMIT 1`, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) InsertReserve(ctx context.Context, res Reserve) (Reserve, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reserves (client_id, kind, value, recorded_at, label, notes, origin, created_by)
		VALUES ($1, $2::reserve_kind, $3::numeric, $4, $5, $6, $7::record_origin, $8)
		RETURNING id, created_at`,
		res.ClientID, string(res.Kind), res.Value.StringFixed(2), res.RecordedAt, res.Label, res.Notes, string(res.Origin), res.CreatedBy,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return Reserve{}, fmt.Errorf("indicators: insert reserve: %w", err)
	}
	return res, nil
}

func (r *Repository) ListReserves(ctx context.Context, clientID uuid.UUID, tr TimeRange) ([]Reserve, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reserveColumns+`
		FROM reserves
		WHERE client_id = $1
		  AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		  AND ($3::timestamptz IS NULL OR recorded_at <= $3)
		ORDER BY recorded_at DESC`, clientID, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("indicators: list reserves: %w", err)
	}
	defer rows.Close()
	var out []Reserve
	for rows.Next() {
		res, err := scanReserve(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repository) LatestReserve(ctx context.Context, clientID uuid.UUID, kind ReserveKind) (*Reserve, error) {
	res, err := scanReserve(r.pool.QueryRow(ctx, `
		SELECT `+reserveColumns+`
		FROM reserves WHERE client_id = $1 AND kind = $2::reserve_kind
		ORDER BY recorded_at DESC LIMIT 1`, clientID, string(kind)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func scanStock(row pgx.Row) (Stock, error) {
	var (
		s      Stock
		value  string
		origin string
	)
	if err := row.Scan(&s.ID, &s.ClientID, &value, &s.RecordedAt, &s.Notes, &origin, &s.CreatedBy, &s.CreatedAt); err != nil {
		return Stock{}, fmt.Errorf("indicators: scan stock: %w", err)
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return Stock{}, fmt.Errorf("indicators: stock value: %w", err)
	}
	s.Value = v
	s.Origin = ledger.Origin(origin)
	return s, nil
}

func scanReserve(row pgx.Row) (Reserve, error) {
	var (
		res    Reserve
		kind   string
		value  string
		origin string
	)
	if err := row.Scan(&res.ID, &res.ClientID, &kind, &value, &res.RecordedAt, &res.Label, &res.Notes, &origin, &res.CreatedBy, &res.CreatedAt); err != nil {
		return Reserve{}, fmt.Errorf("indicators: scan reserve: %w", err)
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return Reserve{}, fmt.Errorf("indicators: reserve value: %w", err)
	}
	res.Value = v
	res.Kind = ReserveKind(kind)
	res.Origin = ledger.Origin(origin)
	return res, nil
}
