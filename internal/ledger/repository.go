package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Reader is the read side of the Ledger Store consumed by the projector and
// the closing generator.
type Reader interface {
	FindEntries(ctx context.Context, clientID uuid.UUID, rng shared.DateRange) ([]Entry, error)
	FindProvisions(ctx context.Context, clientID uuid.UUID, rng shared.DateRange) ([]Provision, error)
	LatestBalance(ctx context.Context, clientID uuid.UUID, atOrBefore time.Time) (*Balance, error)
}

// Store is the full Ledger Store.
type Store interface {
	Reader
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	InsertProvision(ctx context.Context, p Provision) (Provision, error)
	InsertBalance(ctx context.Context, b Balance) (Balance, error)
	ListBalances(ctx context.Context, clientID uuid.UUID) ([]Balance, error)
}

// Repository is the PostgreSQL Ledger Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, client_id, direction::text, amount::text, occurred_on, description, notes, origin::text, created_by, created_at`

// FindEntries returns entries dated inside rng ordered by day.
func (r *Repository) FindEntries(ctx context.Context, clientID uuid.UUID, rng shared.DateRange) ([]Entry, error) {
	start, end := rng.Bounds()
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE client_id = $1
		  AND ($2::date IS NULL OR occurred_on >= $2::date)
		  AND ($3::date IS NULL OR occurred_on <= $3::date)
		ORDER BY occurred_on, created_at`, clientID, start, end)
	if err != nil {
		return nil, fmt.Errorf("ledger: find entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			direction string
			amount    string
			origin    string
		)
		if err := rows.Scan(&e.ID, &e.ClientID, &direction, &amount, &e.OccurredOn, &e.Description, &e.Notes, &origin, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ledger: entry amount: %w", err)
		}
		e.Direction = Direction(direction)
		e.Origin = Origin(origin)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const provisionColumns = `id, client_id, direction::text, amount::text, due_on, description, notes, origin::text, created_by, created_at`

// FindProvisions returns provisions due inside rng ordered by day.
func (r *Repository) FindProvisions(ctx context.Context, clientID uuid.UUID, rng shared.DateRange) ([]Provision, error) {
	start, end := rng.Bounds()
	rows, err := r.pool.Query(ctx, `
		SELECT `+provisionColumns+`
		FROM ledger_provisions
		WHERE client_id = $1
		  AND ($2::date IS NULL OR due_on >= $2::date)
		  AND ($3::date IS NULL OR due_on <= $3::date)
		ORDER BY due_on, created_at`, clientID, start, end)
	if err != nil {
		return nil, fmt.Errorf("ledger: find provisions: %w", err)
	}
	defer rows.Close()

	var provisions []Provision
	for rows.Next() {
		var (
			p         Provision
			direction string
			amount    string
			origin    string
		)
		if err := rows.Scan(&p.ID, &p.ClientID, &direction, &amount, &p.DueOn, &p.Description, &p.Notes, &origin, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan provision: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ledger: provision amount: %w", err)
		}
		p.Direction = Direction(direction)
		p.Origin = Origin(origin)
		provisions = append(provisions, p)
	}
	return provisions, rows.Err()
}

// LatestBalance returns the most recent balance recorded at or before the
// instant, or nil when none exists.
func (r *Repository) LatestBalance(ctx context.Context, clientID uuid.UUID, atOrBefore time.Time) (*Balance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, client_id, amount::text, recorded_at, origin::text, created_by, created_at
		FROM ledger_balances
		WHERE client_id = $1 AND recorded_at <= $2
		ORDER BY recorded_at DESC
		LIMIT 1`, clientID, atOrBefore)
	b, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: latest balance: %w", err)
	}
	return &b, nil
}

// ListBalances returns every balance of the client, newest first.
func (r *Repository) ListBalances(ctx context.Context, clientID uuid.UUID) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, amount::text, recorded_at, origin::text, created_by, created_at
		FROM ledger_balances
		WHERE client_id = $1
		ORDER BY recorded_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list balances: %w", err)
	}
	defer rows.Close()

	var balances []Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// InsertEntry persists a new entry.
func (r *Repository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ledger_entries (client_id, direction, amount, occurred_on, description, notes, origin, created_by)
		VALUES ($1, $2::movement_direction, $3::numeric, $4::date, $5, $6, $7::record_origin, $8)
		RETURNING id, created_at`,
		e.ClientID, string(e.Direction), e.Amount.StringFixed(2), e.OccurredOn, e.Description, e.Notes, string(e.Origin), e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	return e, nil
}

// InsertProvision persists a new provision.
func (r *Repository) InsertProvision(ctx context.Context, p Provision) (Provision, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ledger_provisions (client_id, direction, amount, due_on, description, notes, origin, created_by)
		VALUES ($1, $2::movement_direction, $3::numeric, $4::date, $5, $6, $7::record_origin, $8)
		RETURNING id, created_at`,
		p.ClientID, string(p.Direction), p.Amount.StringFixed(2), p.DueOn, p.Description, p.Notes, string(p.Origin), p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Provision{}, fmt.Errorf("ledger: insert provision: %w", err)
	}
	return p, nil
}

// InsertBalance persists a new balance assertion.
func (r *Repository) InsertBalance(ctx context.Context, b Balance) (Balance, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ledger_balances (client_id, amount, recorded_at, origin, created_by)
		VALUES ($1, $2::numeric, $3, $4::record_origin, $5)
		RETURNING id, created_at`,
		b.ClientID, b.Amount.StringFixed(2), b.RecordedAt, string(b.Origin), b.CreatedBy,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return Balance{}, fmt.Errorf("ledger: insert balance: %w", err)
	}
	return b, nil
}

func scanBalance(row pgx.Row) (Balance, error) {
	var (
		b      Balance
		amount string
		origin string
	)
	if err := row.Scan(&b.ID, &b.ClientID, &amount, &b.RecordedAt, &origin, &b.CreatedBy, &b.CreatedAt); err != nil {
		return Balance{}, err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Balance{}, err
	}
	b.Amount = value
	b.Origin = Origin(origin)
	return b, nil
}
