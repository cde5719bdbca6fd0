// Package cashflow projects a client's daily cash position over a horizon of
// months from its latest balance, entries and provisions.
package cashflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

const (
	MinHorizonMonths     = 1
	MaxHorizonMonths     = 24
	DefaultHorizonMonths = 6
)

var daysPerMonth = decimal.NewFromInt(30)

// Window is the inclusive range of projected days.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow spans from today through the day before today plus months
// calendar months. Month overflow normalises the way time.AddDate does.
func NewWindow(today time.Time, months int) (Window, error) {
	if months < MinHorizonMonths || months > MaxHorizonMonths {
		return Window{}, shared.Validation("months must be between %d and %d", MinHorizonMonths, MaxHorizonMonths)
	}
	start := shared.Day(today)
	return Window{Start: start, End: start.AddDate(0, months, -1)}, nil
}

// Range converts the window into a ledger date range.
func (w Window) Range() shared.DateRange {
	return shared.Between(w.Start, w.End)
}

// DayPoint is one day of the projection.
type DayPoint struct {
	Date    string          `json:"date"`
	Net     decimal.Decimal `json:"net"`
	Balance decimal.Decimal `json:"balance"`
}

// MonthPoint rolls up the days of one calendar month.
type MonthPoint struct {
	Month         string          `json:"month"`
	Income        decimal.Decimal `json:"income"`
	Expense       decimal.Decimal `json:"expense"`
	Net           decimal.Decimal `json:"net"`
	EndingBalance decimal.Decimal `json:"endingBalance"`
}

// Runway estimates how long cash lasts if only expenses occur. All fields are
// nil when the balance never goes negative inside the window.
type Runway struct {
	Days   *int             `json:"days"`
	Months *decimal.Decimal `json:"months"`
	EndsOn *string          `json:"endsOn"`
}

// Projection is the result of projecting a client's cash position.
type Projection struct {
	ClientID             uuid.UUID       `json:"clientId"`
	StartDate            string          `json:"startDate"`
	EndDate              string          `json:"endDate"`
	StartingBalance      decimal.Decimal `json:"startingBalance"`
	EndingBalance        decimal.Decimal `json:"endingBalance"`
	FirstNegativeCashDay *string         `json:"firstNegativeCashDay"`
	Runway               Runway          `json:"runway"`
	DailySeries          []DayPoint      `json:"dailySeries"`
	MonthlySeries        []MonthPoint    `json:"monthlySeries"`
}

// Project walks every day of the window over the booked movements. It has no
// side effects.
func Project(clientID uuid.UUID, window Window, starting decimal.Decimal, book *ledger.DailyBook) Projection {
	p := Projection{
		ClientID:        clientID,
		StartDate:       shared.DayKey(window.Start),
		EndDate:         shared.DayKey(window.End),
		StartingBalance: starting,
		DailySeries:     []DayPoint{},
		MonthlySeries:   []MonthPoint{},
	}

	running := starting
	runwayBalance := starting
	runwayDone := false
	if starting.IsNegative() {
		p.Runway = newRunway(0, p.StartDate)
		runwayDone = true
	}

	dayIndex := 0
	monthIndex := map[string]int{}
	shared.EachDay(window.Start, window.End, func(day time.Time) {
		key := shared.DayKey(day)
		totals := book.Day(day)
		running = running.Add(totals.Net)

		if p.FirstNegativeCashDay == nil && running.IsNegative() {
			first := key
			p.FirstNegativeCashDay = &first
		}

		month := shared.MonthKey(day)
		idx, ok := monthIndex[month]
		if !ok {
			idx = len(p.MonthlySeries)
			monthIndex[month] = idx
			p.MonthlySeries = append(p.MonthlySeries, MonthPoint{Month: month})
		}
		bucket := &p.MonthlySeries[idx]
		bucket.Income = bucket.Income.Add(totals.Income)
		bucket.Expense = bucket.Expense.Add(totals.Expense)
		bucket.Net = bucket.Net.Add(totals.Net)
		bucket.EndingBalance = running

		if !runwayDone {
			runwayBalance = runwayBalance.Sub(totals.Expense)
			dayIndex++
			if runwayBalance.IsNegative() {
				p.Runway = newRunway(dayIndex, key)
				runwayDone = true
			}
		}

		p.DailySeries = append(p.DailySeries, DayPoint{Date: key, Net: totals.Net, Balance: running})
	})

	p.EndingBalance = running
	return p
}

func newRunway(days int, endsOn string) Runway {
	months := decimal.NewFromInt(int64(days)).DivRound(daysPerMonth, 2)
	return Runway{Days: &days, Months: &months, EndsOn: &endsOn}
}
