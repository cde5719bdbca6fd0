// Package indicators records stock and reserve valuations and rolls the
// latest of each into a client's asset indicators.
package indicators

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// ReserveKind separates liquid reserves from investments.
type ReserveKind string

const (
	KindReserve    ReserveKind = "reserve"
	KindInvestment ReserveKind = "investment"
)

// Valid reports whether k is a known kind.
func (k ReserveKind) Valid() bool {
	return k == KindReserve || k == KindInvestment
}

// Stock is an inventory valuation at an instant.
type Stock struct {
	ID         uuid.UUID       `json:"id"`
	ClientID   uuid.UUID       `json:"clientId"`
	Value      decimal.Decimal `json:"value"`
	RecordedAt time.Time       `json:"recordedAt"`
	Notes      *string         `json:"notes"`
	Origin     ledger.Origin   `json:"source"`
	CreatedBy  *uuid.UUID      `json:"createdByUserId"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Reserve is a reserve or investment valuation at an instant.
type Reserve struct {
	ID         uuid.UUID       `json:"id"`
	ClientID   uuid.UUID       `json:"clientId"`
	Kind       ReserveKind     `json:"type"`
	Value      decimal.Decimal `json:"value"`
	RecordedAt time.Time       `json:"recordedAt"`
	Label      *string         `json:"label"`
	Notes      *string         `json:"notes"`
	Origin     ledger.Origin   `json:"source"`
	CreatedBy  *uuid.UUID      `json:"createdByUserId"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// StockInput captures a new stock valuation. RecordedAt defaults to now.
type StockInput struct {
	Value      decimal.Decimal
	RecordedAt *time.Time
	Notes      string
}

// Validate checks positivity and text limits.
func (in StockInput) Validate() error {
	if err := ledger.ValidateAmount("value", in.Value, false); err != nil {
		return err
	}
	if len([]rune(in.Notes)) > 500 {
		return shared.Validation("notes exceed 500 characters")
	}
	return nil
}

// ReserveInput captures a new reserve valuation. RecordedAt defaults to now.
type ReserveInput struct {
	Kind       ReserveKind
	Value      decimal.Decimal
	RecordedAt *time.Time
	Label      string
	Notes      string
}

// Validate checks kind, positivity and text limits.
func (in ReserveInput) Validate() error {
	if !in.Kind.Valid() {
		return shared.Validation("type must be reserve or investment")
	}
	if err := ledger.ValidateAmount("value", in.Value, false); err != nil {
		return err
	}
	if len([]rune(in.Label)) > 255 {
		return shared.Validation("label exceeds 255 characters")
	}
	if len([]rune(in.Notes)) > 500 {
		return shared.Validation("notes exceed 500 characters")
	}
	return nil
}

// Valuation is the latest value of one indicator.
type Valuation struct {
	Value      decimal.Decimal `json:"value"`
	RecordedAt *time.Time      `json:"recordedAt"`
}

// Reserves groups reserve and investment valuations.
type Reserves struct {
	Reserve    Valuation       `json:"reserve"`
	Investment Valuation       `json:"investment"`
	Total      decimal.Decimal `json:"total"`
}

// Indicators is the asset rollup of a client.
type Indicators struct {
	ClientID    uuid.UUID       `json:"clientId"`
	Stock       Valuation       `json:"stock"`
	Reserves    Reserves        `json:"reserves"`
	TotalAssets decimal.Decimal `json:"totalAssets"`
}

// TimeRange bounds recordedAt instants inclusively; nil sides are open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// DayInclusive widens a day range to the first and last instants of its
// days in loc.
func DayInclusive(rng shared.DateRange, loc *time.Location) TimeRange {
	var tr TimeRange
	if rng.Start != nil {
		from := shared.StartOfDay(*rng.Start, loc)
		tr.From = &from
	}
	if rng.End != nil {
		to := shared.EndOfDay(*rng.End, loc)
		tr.To = &to
	}
	return tr
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
