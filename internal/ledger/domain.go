package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Direction distinguishes money coming in from money going out.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

// Signed returns amount positive for income and negative for expense.
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == DirectionIncome {
		return amount
	}
	return amount.Neg()
}

// Origin records how a ledger record was created.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginImport Origin = "import"
)

// Entry is a realized movement.
type Entry struct {
	ID          uuid.UUID       `json:"id"`
	ClientID    uuid.UUID       `json:"clientId"`
	Direction   Direction       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredOn  time.Time       `json:"occurredOn"`
	Description string          `json:"description"`
	Notes       *string         `json:"notes"`
	Origin      Origin          `json:"source"`
	CreatedBy   *uuid.UUID      `json:"createdByUserId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Movement returns the dated, directed amount of the entry.
func (e Entry) Movement() Movement {
	return Movement{Day: e.OccurredOn, Direction: e.Direction, Amount: e.Amount}
}

// Provision is a scheduled movement keyed by its due date.
type Provision struct {
	ID          uuid.UUID       `json:"id"`
	ClientID    uuid.UUID       `json:"clientId"`
	Direction   Direction       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	DueOn       time.Time       `json:"dueOn"`
	Description string          `json:"description"`
	Notes       *string         `json:"notes"`
	Origin      Origin          `json:"source"`
	CreatedBy   *uuid.UUID      `json:"createdByUserId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Movement returns the dated, directed amount of the provision.
func (p Provision) Movement() Movement {
	return Movement{Day: p.DueOn, Direction: p.Direction, Amount: p.Amount}
}

// Balance is an asserted cash position at an instant.
type Balance struct {
	ID         uuid.UUID       `json:"id"`
	ClientID   uuid.UUID       `json:"clientId"`
	Amount     decimal.Decimal `json:"amount"`
	RecordedAt time.Time       `json:"recordedAt"`
	Origin     Origin          `json:"source"`
	CreatedBy  *uuid.UUID      `json:"createdByUserId"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Movement is a directed amount on a calendar day.
type Movement struct {
	Day       time.Time
	Direction Direction
	Amount    decimal.Decimal
}

// MovementInput captures the fields shared by entry and provision creation.
type MovementInput struct {
	Direction   Direction
	Amount      decimal.Decimal
	Day         time.Time
	Description string
	Notes       string
}

// MaxAmount is the exclusive magnitude bound of stored amounts (numeric(14,2)).
var MaxAmount = decimal.New(1, 12)

// ValidateAmount checks amount after rounding to cents, the form it is stored in.
func ValidateAmount(field string, amount decimal.Decimal, allowNegative bool) error {
	rounded := amount.Round(2)
	if !allowNegative && !rounded.IsPositive() {
		return shared.Validation("%s must be positive", field)
	}
	if rounded.Abs().GreaterThanOrEqual(MaxAmount) {
		return shared.Validation("%s must be below %s", field, MaxAmount.String())
	}
	return nil
}

// Validate checks direction, the rounded amount and text limits.
func (in MovementInput) Validate() error {
	if !in.Direction.Valid() {
		return shared.Validation("type must be income or expense")
	}
	if err := ValidateAmount("amount", in.Amount, false); err != nil {
		return err
	}
	if in.Day.IsZero() {
		return shared.Validation("date required")
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return shared.Validation("description required")
	}
	if len([]rune(desc)) > 255 {
		return shared.Validation("description exceeds 255 characters")
	}
	if len([]rune(in.Notes)) > 500 {
		return shared.Validation("notes exceed 500 characters")
	}
	return nil
}

// CreateBalanceInput captures a new balance assertion. RecordedAt defaults to now.
type CreateBalanceInput struct {
	Amount     decimal.Decimal
	RecordedAt *time.Time
}

// Validate bounds the amount. Balances may be zero or negative.
func (in CreateBalanceInput) Validate() error {
	return ValidateAmount("amount", in.Amount, true)
}

func notesPtr(notes string) *string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil
	}
	return &notes
}
