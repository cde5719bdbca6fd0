package indicators

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Service records valuations and computes indicator rollups.
type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

// NewService constructs a Service. loc bounds day-inclusive listings; nil means UTC.
func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) recordedAt(at *time.Time) time.Time {
	if at != nil && !at.IsZero() {
		return *at
	}
	return s.now()
}

// CreateStock records a stock valuation.
func (s *Service) CreateStock(ctx context.Context, scope shared.Scope, in StockInput) (Stock, error) {
	if err := scope.Validate(); err != nil {
		return Stock{}, err
	}
	if err := in.Validate(); err != nil {
		return Stock{}, err
	}
	return s.store.InsertStock(ctx, Stock{
		ClientID:   scope.ClientID,
		Value:      in.Value.Round(2),
		RecordedAt: s.recordedAt(in.RecordedAt),
		Notes:      optional(in.Notes),
		Origin:     ledger.OriginManual,
		CreatedBy:  scope.Actor(),
	})
}

// ListStocks returns stocks recorded on the days of rng, newest first.
func (s *Service) ListStocks(ctx context.Context, scope shared.Scope, rng shared.DateRange) ([]Stock, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListStocks(ctx, scope.ClientID, DayInclusive(rng, s.loc))
}

// CreateReserve records a reserve or investment valuation.
func (s *Service) CreateReserve(ctx context.Context, scope shared.Scope, in ReserveInput) (Reserve, error) {
	if err := scope.Validate(); err != nil {
		return Reserve{}, err
	}
	if err := in.Validate(); err != nil {
		return Reserve{}, err
	}
	return s.store.InsertReserve(ctx, Reserve{
		ClientID:   scope.ClientID,
		Kind:       in.Kind,
		Value:      in.Value.Round(2),
		RecordedAt: s.recordedAt(in.RecordedAt),
		Label:      optional(in.Label),
		Notes:      optional(in.Notes),
		Origin:     ledger.OriginManual,
		CreatedBy:  scope.Actor(),
	})
}

// ListReserves returns reserves recorded on the days of rng, newest first.
func (s *Service) ListReserves(ctx context.Context, scope shared.Scope, rng shared.DateRange) ([]Reserve, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListReserves(ctx, scope.ClientID, DayInclusive(rng, s.loc))
}

// GetIndicators rolls up the latest stock, reserve and investment values.
// Missing valuations count as zero.
func (s *Service) GetIndicators(ctx context.Context, scope shared.Scope) (Indicators, error) {
	if err := scope.Validate(); err != nil {
		return Indicators{}, err
	}
	var (
		stock      *Stock
		reserve    *Reserve
		investment *Reserve
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stock, err = s.store.LatestStock(gctx, scope.ClientID)
		return err
	})
	g.Go(func() error {
		var err error
		reserve, err = s.store.LatestReserve(gctx, scope.ClientID, KindReserve)
		return err
	})
	g.Go(func() error {
		var err error
		investment, err = s.store.LatestReserve(gctx, scope.ClientID, KindInvestment)
		return err
	})
	if err := g.Wait(); err != nil {
		return Indicators{}, err
	}

	out := Indicators{ClientID: scope.ClientID}
	if stock != nil {
		out.Stock = Valuation{Value: stock.Value, RecordedAt: &stock.RecordedAt}
	} else {
		out.Stock = Valuation{Value: decimal.Zero}
	}
	out.Reserves.Reserve = reserveValuation(reserve)
	out.Reserves.Investment = reserveValuation(investment)
	out.Reserves.Total = out.Reserves.Reserve.Value.Add(out.Reserves.Investment.Value)
	out.TotalAssets = out.Stock.Value.Add(out.Reserves.Total)
	return out, nil
}

func reserveValuation(r *Reserve) Valuation {
	if r == nil {
		return Valuation{Value: decimal.Zero}
	}
	return Valuation{Value: r.Value, RecordedAt: &r.RecordedAt}
}
