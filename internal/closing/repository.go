package closing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Store persists closings.
type Store interface {
	Upsert(ctx context.Context, c Closing) (Closing, error)
	List(ctx context.Context, clientID uuid.UUID, filter ListFilter) ([]Closing, error)
}

// Repository is the PostgreSQL closing store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts the closing or replaces the one sharing its natural key,
// keeping the existing id.
func (r *Repository) Upsert(ctx context.Context, c Closing) (Closing, error) {
	lowDays, err := json.Marshal(c.LowIncomeDays)
	if err != nil {
		return Closing{}, fmt.Errorf("closing: encode low income days: %w", err)
	}
	var firstNegative *time.Time
	if c.FirstNegativeCashDay != nil {
		day, err := shared.ParseDay(*c.FirstNegativeCashDay)
		if err != nil {
			return Closing{}, err
		}
		firstNegative = &day
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO closings (
			client_id, period_type, period_start, period_end,
			income_total, expense_total, net_total, starting_balance, ending_balance,
			first_negative_day, low_income_days, low_income_days_count, health_status,
			generated_at, created_by
		) VALUES (
			$1, $2::closing_period, $3::date, $4::date,
			$5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric,
			$10::date, $11::jsonb, $12, $13::closing_health,
			$14, $15
		)
		ON CONFLICT ON CONSTRAINT closings_natural_key DO UPDATE SET
			income_total = EXCLUDED.income_total,
			expense_total = EXCLUDED.expense_total,
			net_total = EXCLUDED.net_total,
			starting_balance = EXCLUDED.starting_balance,
			ending_balance = EXCLUDED.ending_balance,
			first_negative_day = EXCLUDED.first_negative_day,
			low_income_days = EXCLUDED.low_income_days,
			low_income_days_count = EXCLUDED.low_income_days_count,
			health_status = EXCLUDED.health_status,
			generated_at = EXCLUDED.generated_at,
			created_by = EXCLUDED.created_by,
			updated_at = now()
		RETURNING id, created_at`,
		c.ClientID, string(c.PeriodType), c.PeriodStart, c.PeriodEnd,
		c.IncomeTotal.StringFixed(2), c.ExpenseTotal.StringFixed(2), c.NetTotal.StringFixed(2),
		c.StartingBalance.StringFixed(2), c.EndingBalance.StringFixed(2),
		firstNegative, lowDays, c.LowIncomeDaysCount, string(c.HealthStatus),
		c.GeneratedAt, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Closing{}, fmt.Errorf("closing: upsert: %w", err)
	}
	return c, nil
}

// List returns the client's closings, newest period first.
func (r *Repository) List(ctx context.Context, clientID uuid.UUID, filter ListFilter) ([]Closing, error) {
	var periodType *string
	if filter.PeriodType != nil {
		pt := string(*filter.PeriodType)
		periodType = &pt
	}
	start, end := filter.Range.Bounds()
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, period_type::text, period_start, period_end,
		       income_total::text, expense_total::text, net_total::text,
		       starting_balance::text, ending_balance::text,
		       first_negative_day, low_income_days, low_income_days_count,
		       health_status::text, generated_at, created_by, created_at
		FROM closings
		WHERE client_id = $1
		  AND ($2::text IS NULL OR period_type = $2::closing_period)
		  AND ($3::date IS NULL OR period_start >= $3::date)
		  AND ($4::date IS NULL OR period_start <= $4::date)
		ORDER BY period_start DESC, period_type`, clientID, periodType, start, end)
	if err != nil {
		return nil, fmt.Errorf("closing: list: %w", err)
	}
	defer rows.Close()

	var out []Closing
	for rows.Next() {
		c, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanClosing(row pgx.Row) (Closing, error) {
	var (
		c             Closing
		periodType    string
		health        string
		amounts       [5]string
		firstNegative *time.Time
		lowDays       []byte
	)
	if err := row.Scan(&c.ID, &c.ClientID, &periodType, &c.PeriodStart, &c.PeriodEnd,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4],
		&firstNegative, &lowDays, &c.LowIncomeDaysCount,
		&health, &c.GeneratedAt, &c.CreatedBy, &c.CreatedAt); err != nil {
		return Closing{}, fmt.Errorf("closing: scan: %w", err)
	}
	targets := []*decimal.Decimal{&c.IncomeTotal, &c.ExpenseTotal, &c.NetTotal, &c.StartingBalance, &c.EndingBalance}
	for i, raw := range amounts {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return Closing{}, fmt.Errorf("closing: amount: %w", err)
		}
		*targets[i] = value
	}
	if firstNegative != nil {
		key := shared.DayKey(*firstNegative)
		c.FirstNegativeCashDay = &key
	}
	c.LowIncomeDays = []string{}
	if len(lowDays) > 0 {
		if err := json.Unmarshal(lowDays, &c.LowIncomeDays); err != nil {
			return Closing{}, fmt.Errorf("closing: decode low income days: %w", err)
		}
	}
	c.PeriodType = PeriodType(periodType)
	c.HealthStatus = HealthStatus(health)
	return c, nil
}
