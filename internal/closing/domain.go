// Package closing generates idempotent monthly and quarterly summaries of a
// client's ledger.
package closing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// PeriodType enumerates the supported closing cadences.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
)

// ParsePeriodType validates a period type; empty defaults to monthly.
func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodType(s) {
	case "", PeriodMonthly:
		return PeriodMonthly, nil
	case PeriodQuarterly:
		return PeriodQuarterly, nil
	default:
		return "", shared.Validation("periodType must be monthly or quarterly")
	}
}

// HealthStatus classifies a closed period.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// Period is the inclusive calendar range of a closing.
type Period struct {
	Type  PeriodType
	Start time.Time
	End   time.Time
}

// ResolvePeriod returns the calendar month or quarter containing reference.
func ResolvePeriod(periodType PeriodType, reference time.Time) (Period, error) {
	y, m, _ := reference.Date()
	switch periodType {
	case PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return Period{Type: periodType, Start: start, End: start.AddDate(0, 1, -1)}, nil
	case PeriodQuarterly:
		first := time.Month((int(m)-1)/3*3 + 1)
		start := time.Date(y, first, 1, 0, 0, 0, 0, time.UTC)
		return Period{Type: periodType, Start: start, End: start.AddDate(0, 3, -1)}, nil
	default:
		return Period{}, shared.Validation("periodType must be monthly or quarterly")
	}
}

// Closing is the stored summary of one client period. (ClientID, PeriodType,
// PeriodStart, PeriodEnd) identifies it.
type Closing struct {
	ID                   uuid.UUID       `json:"id"`
	ClientID             uuid.UUID       `json:"clientId"`
	PeriodType           PeriodType      `json:"periodType"`
	PeriodStart          time.Time       `json:"periodStart"`
	PeriodEnd            time.Time       `json:"periodEnd"`
	IncomeTotal          decimal.Decimal `json:"incomeTotal"`
	ExpenseTotal         decimal.Decimal `json:"expenseTotal"`
	NetTotal             decimal.Decimal `json:"netTotal"`
	StartingBalance      decimal.Decimal `json:"startingBalance"`
	EndingBalance        decimal.Decimal `json:"endingBalance"`
	FirstNegativeCashDay *string         `json:"firstNegativeCashDay"`
	LowIncomeDays        []string        `json:"lowIncomeDays"`
	LowIncomeDaysCount   int             `json:"lowIncomeDaysCount"`
	HealthStatus         HealthStatus    `json:"healthStatus"`
	GeneratedAt          time.Time       `json:"generatedAt"`
	CreatedBy            *uuid.UUID      `json:"createdByUserId"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// Compute derives the closing of period from the starting balance and the
// movements booked inside it. Identity, generation time and author are left
// for the caller.
func Compute(clientID uuid.UUID, period Period, starting decimal.Decimal, book *ledger.DailyBook) Closing {
	c := Closing{
		ClientID:        clientID,
		PeriodType:      period.Type,
		PeriodStart:     shared.Day(period.Start),
		PeriodEnd:       shared.Day(period.End),
		IncomeTotal:     book.IncomeTotal(),
		ExpenseTotal:    book.ExpenseTotal(),
		StartingBalance: starting,
		LowIncomeDays:   []string{},
	}

	running := starting
	shared.EachDay(period.Start, period.End, func(day time.Time) {
		totals := book.Day(day)
		running = running.Add(totals.Net)
		key := shared.DayKey(day)
		if !totals.Income.IsPositive() {
			c.LowIncomeDays = append(c.LowIncomeDays, key)
		}
		if c.FirstNegativeCashDay == nil && running.IsNegative() {
			c.FirstNegativeCashDay = &key
		}
	})

	c.NetTotal = c.IncomeTotal.Sub(c.ExpenseTotal)
	c.EndingBalance = starting.Add(c.NetTotal)
	c.LowIncomeDaysCount = len(c.LowIncomeDays)
	c.HealthStatus = classify(c.FirstNegativeCashDay, c.NetTotal)
	return c
}

func classify(firstNegative *string, net decimal.Decimal) HealthStatus {
	switch {
	case firstNegative != nil:
		return HealthCritical
	case net.IsNegative():
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// ListFilter narrows closing listings. Range applies to PeriodStart.
type ListFilter struct {
	PeriodType *PeriodType
	Range      shared.DateRange
}
