package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// DayTotals are the aggregated movements of one calendar day.
type DayTotals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

// DailyBook accumulates movements per calendar day. Income is signed positive
// and expense negative in Net; Income and Expense keep unsigned totals.
type DailyBook struct {
	days         map[string]DayTotals
	incomeTotal  decimal.Decimal
	expenseTotal decimal.Decimal
}

// NewDailyBook returns an empty book.
func NewDailyBook() *DailyBook {
	return &DailyBook{days: make(map[string]DayTotals)}
}

// Add books a movement on its day.
func (b *DailyBook) Add(m Movement) {
	key := shared.DayKey(m.Day)
	totals := b.days[key]
	if m.Direction == DirectionIncome {
		totals.Income = totals.Income.Add(m.Amount)
		b.incomeTotal = b.incomeTotal.Add(m.Amount)
	} else {
		totals.Expense = totals.Expense.Add(m.Amount)
		b.expenseTotal = b.expenseTotal.Add(m.Amount)
	}
	totals.Net = totals.Net.Add(m.Direction.Signed(m.Amount))
	b.days[key] = totals
}

// Day returns the totals booked on day; zero when nothing was booked.
func (b *DailyBook) Day(day time.Time) DayTotals {
	return b.days[shared.DayKey(day)]
}

// IncomeTotal sums every income movement.
func (b *DailyBook) IncomeTotal() decimal.Decimal {
	return b.incomeTotal
}

// ExpenseTotal sums every expense movement.
func (b *DailyBook) ExpenseTotal() decimal.Decimal {
	return b.expenseTotal
}

// LoadBook fetches entries and provisions for clientID concurrently and books
// those dated inside rng.
func LoadBook(ctx context.Context, reader Reader, clientID uuid.UUID, rng shared.DateRange) (*DailyBook, error) {
	var (
		entries    []Entry
		provisions []Provision
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = reader.FindEntries(gctx, clientID, rng)
		return err
	})
	g.Go(func() error {
		var err error
		provisions, err = reader.FindProvisions(gctx, clientID, rng)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	book := NewDailyBook()
	for _, e := range entries {
		if rng.Contains(e.OccurredOn) {
			book.Add(e.Movement())
		}
	}
	for _, p := range provisions {
		if rng.Contains(p.DueOn) {
			book.Add(p.Movement())
		}
	}
	return book, nil
}
