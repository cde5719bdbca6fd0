package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/ledger/ledgertest"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

func day(s string) time.Time {
	d, err := shared.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDailyBookAggregatesPerDay(t *testing.T) {
	book := ledger.NewDailyBook()
	book.Add(ledger.Movement{Day: day("2024-03-01"), Direction: ledger.DirectionIncome, Amount: decimal.RequireFromString("100")})
	book.Add(ledger.Movement{Day: day("2024-03-01"), Direction: ledger.DirectionExpense, Amount: decimal.RequireFromString("30.50")})
	book.Add(ledger.Movement{Day: day("2024-03-02"), Direction: ledger.DirectionExpense, Amount: decimal.RequireFromString("10")})

	first := book.Day(day("2024-03-01"))
	assert.Equal(t, "100", first.Income.String())
	assert.Equal(t, "30.5", first.Expense.String())
	assert.Equal(t, "69.5", first.Net.String())

	second := book.Day(day("2024-03-02"))
	assert.True(t, second.Net.Equal(decimal.NewFromInt(-10)))
	assert.True(t, book.Day(day("2024-03-03")).Net.IsZero())

	assert.Equal(t, "100", book.IncomeTotal().String())
	assert.Equal(t, "40.5", book.ExpenseTotal().String())
}

func TestLoadBookMergesEntriesAndProvisionsInsideRange(t *testing.T) {
	client := uuid.New()
	other := uuid.New()
	store := ledgertest.NewStore()
	store.AddEntry(client, ledger.DirectionIncome, "200", "2024-03-05")
	store.AddProvision(client, ledger.DirectionExpense, "50", "2024-03-05")
	store.AddProvision(client, ledger.DirectionExpense, "999", "2024-04-01")
	store.AddEntry(other, ledger.DirectionIncome, "700", "2024-03-05")

	book, err := ledger.LoadBook(context.Background(), store, client, shared.Between(day("2024-03-01"), day("2024-03-31")))
	require.NoError(t, err)

	totals := book.Day(day("2024-03-05"))
	assert.Equal(t, "150", totals.Net.String())
	assert.Equal(t, "50", book.ExpenseTotal().String())
}
