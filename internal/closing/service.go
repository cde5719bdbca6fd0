package closing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Service generates and lists closings.
type Service struct {
	ledger ledger.Reader
	store  Store
	loc    *time.Location
	now    func() time.Time
}

// NewService constructs a Service. loc defines calendar boundaries; nil means UTC.
func NewService(reader ledger.Reader, store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{ledger: reader, store: store, loc: loc, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GenerateInput selects the period to close. A nil ReferenceDate means today.
type GenerateInput struct {
	PeriodType    PeriodType
	ReferenceDate *time.Time
}

// Generate computes the closing of the period containing the reference date
// and stores it, replacing any previous closing of the same period.
func (s *Service) Generate(ctx context.Context, scope shared.Scope, in GenerateInput) (Closing, error) {
	if err := scope.Validate(); err != nil {
		return Closing{}, err
	}
	now := s.now()
	reference := now.In(s.loc)
	if in.ReferenceDate != nil && !in.ReferenceDate.IsZero() {
		reference = *in.ReferenceDate
	}
	period, err := ResolvePeriod(in.PeriodType, reference)
	if err != nil {
		return Closing{}, err
	}

	balance, err := s.ledger.LatestBalance(ctx, scope.ClientID, shared.StartOfDay(period.Start, s.loc))
	if err != nil {
		return Closing{}, err
	}
	starting := decimal.Zero
	if balance != nil {
		starting = balance.Amount
	}
	book, err := ledger.LoadBook(ctx, s.ledger, scope.ClientID, shared.Between(period.Start, period.End))
	if err != nil {
		return Closing{}, err
	}

	closing := Compute(scope.ClientID, period, starting, book)
	closing.GeneratedAt = now
	closing.CreatedBy = scope.Actor()
	return s.store.Upsert(ctx, closing)
}

// List returns closings matching filter, newest period first.
func (s *Service) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Closing, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := filter.Range.Validate(); err != nil {
		return nil, err
	}
	return s.store.List(ctx, scope.ClientID, filter)
}
