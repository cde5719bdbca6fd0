package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Invalidator is notified after a client's ledger changes so derived views
// can be recomputed.
type Invalidator interface {
	Invalidate(ctx context.Context, clientID uuid.UUID) error
}

// Service records and lists ledger data for a scoped client.
type Service struct {
	store       Store
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs a Service instance.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithInvalidator registers the derived-view invalidator. Invalidation
// failures are logged and never fail the write.
func (s *Service) WithInvalidator(inv Invalidator, logger *slog.Logger) {
	s.invalidator = inv
	s.logger = logger
}

func (s *Service) changed(ctx context.Context, clientID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, clientID); err != nil && s.logger != nil {
		s.logger.Warn("ledger invalidation failed", slog.String("client_id", clientID.String()), slog.Any("error", err))
	}
}

// CreateEntry records a realized movement.
func (s *Service) CreateEntry(ctx context.Context, scope shared.Scope, in MovementInput) (Entry, error) {
	if err := scope.Validate(); err != nil {
		return Entry{}, err
	}
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	created, err := s.store.InsertEntry(ctx, Entry{
		ClientID:    scope.ClientID,
		Direction:   in.Direction,
		Amount:      in.Amount.Round(2),
		OccurredOn:  shared.Day(in.Day),
		Description: in.Description,
		Notes:       notesPtr(in.Notes),
		Origin:      OriginManual,
		CreatedBy:   scope.Actor(),
	})
	if err != nil {
		return Entry{}, err
	}
	s.changed(ctx, scope.ClientID)
	return created, nil
}

// ListEntries returns entries inside rng in ascending date order.
func (s *Service) ListEntries(ctx context.Context, scope shared.Scope, rng shared.DateRange) ([]Entry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return s.store.FindEntries(ctx, scope.ClientID, rng)
}

// CreateProvision records a scheduled movement.
func (s *Service) CreateProvision(ctx context.Context, scope shared.Scope, in MovementInput) (Provision, error) {
	if err := scope.Validate(); err != nil {
		return Provision{}, err
	}
	if err := in.Validate(); err != nil {
		return Provision{}, err
	}
	created, err := s.store.InsertProvision(ctx, Provision{
		ClientID:    scope.ClientID,
		Direction:   in.Direction,
		Amount:      in.Amount.Round(2),
		DueOn:       shared.Day(in.Day),
		Description: in.Description,
		Notes:       notesPtr(in.Notes),
		Origin:      OriginManual,
		CreatedBy:   scope.Actor(),
	})
	if err != nil {
		return Provision{}, err
	}
	s.changed(ctx, scope.ClientID)
	return created, nil
}

// ListProvisions returns provisions due inside rng in ascending date order.
func (s *Service) ListProvisions(ctx context.Context, scope shared.Scope, rng shared.DateRange) ([]Provision, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return s.store.FindProvisions(ctx, scope.ClientID, rng)
}

// CreateBalance records a balance assertion. Balances may be negative.
func (s *Service) CreateBalance(ctx context.Context, scope shared.Scope, in CreateBalanceInput) (Balance, error) {
	if err := scope.Validate(); err != nil {
		return Balance{}, err
	}
	if err := in.Validate(); err != nil {
		return Balance{}, err
	}
	recordedAt := s.now()
	if in.RecordedAt != nil && !in.RecordedAt.IsZero() {
		recordedAt = *in.RecordedAt
	}
	created, err := s.store.InsertBalance(ctx, Balance{
		ClientID:   scope.ClientID,
		Amount:     in.Amount.Round(2),
		RecordedAt: recordedAt,
		Origin:     OriginManual,
		CreatedBy:  scope.Actor(),
	})
	if err != nil {
		return Balance{}, err
	}
	s.changed(ctx, scope.ClientID)
	return created, nil
}

// ListBalances returns balances newest first.
func (s *Service) ListBalances(ctx context.Context, scope shared.Scope) ([]Balance, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListBalances(ctx, scope.ClientID)
}
