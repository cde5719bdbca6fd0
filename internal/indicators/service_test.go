package indicators

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

type memoryStore struct {
	mu       sync.Mutex
	stocks   []Stock
	reserves []Reserve
}

func within(tr TimeRange, t time.Time) bool {
	if tr.From != nil && t.Before(*tr.From) {
		return false
	}
	if tr.To != nil && t.After(*tr.To) {
		return false
	}
	return true
}

func (m *memoryStore) InsertStock(_ context.Context, s Stock) (Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	m.stocks = append(m.stocks, s)
	return s, nil
}

func (m *memoryStore) ListStocks(_ context.Context, clientID uuid.UUID, tr TimeRange) ([]Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Stock
	for _, s := range m.stocks {
		if s.ClientID == clientID && within(tr, s.RecordedAt) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

func (m *memoryStore) LatestStock(ctx context.Context, clientID uuid.UUID) (*Stock, error) {
	all, _ := m.ListStocks(ctx, clientID, TimeRange{})
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (m *memoryStore) InsertReserve(_ context.Context, r Reserve) (Reserve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	m.reserves = append(m.reserves, r)
	return r, nil
}

func (m *memoryStore) ListReserves(_ context.Context, clientID uuid.UUID, tr TimeRange) ([]Reserve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reserve
	for _, r := range m.reserves {
		if r.ClientID == clientID && within(tr, r.RecordedAt) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

func (m *memoryStore) LatestReserve(ctx context.Context, clientID uuid.UUID, kind ReserveKind) (*Reserve, error) {
	all, _ := m.ListReserves(ctx, clientID, TimeRange{})
	for i := range all {
		if all[i].Kind == kind {
			return &all[i], nil
		}
	}
	return nil, nil
}

func at(day string, hour int) *time.Time {
	d, err := shared.ParseDay(day)
	if err != nil {
		panic(err)
	}
	t := d.Add(time.Duration(hour) * time.Hour)
	return &t
}

func TestGetIndicatorsWithoutDataIsZero(t *testing.T) {
	svc := NewService(&memoryStore{}, nil)
	out, err := svc.GetIndicators(context.Background(), shared.Scope{ClientID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, out.Stock.Value.IsZero())
	assert.Nil(t, out.Stock.RecordedAt)
	assert.True(t, out.Reserves.Total.IsZero())
	assert.True(t, out.TotalAssets.IsZero())
}

func TestGetIndicatorsUsesLatestValues(t *testing.T) {
	svc := NewService(&memoryStore{}, nil)
	scope := shared.NewScope(uuid.New(), uuid.New(), uuid.New())
	ctx := context.Background()

	_, err := svc.CreateStock(ctx, scope, StockInput{Value: decimal.RequireFromString("100"), RecordedAt: at("2024-01-01", 9)})
	require.NoError(t, err)
	_, err = svc.CreateStock(ctx, scope, StockInput{Value: decimal.RequireFromString("250.40"), RecordedAt: at("2024-02-01", 9)})
	require.NoError(t, err)
	_, err = svc.CreateReserve(ctx, scope, ReserveInput{Kind: KindReserve, Value: decimal.RequireFromString("500"), RecordedAt: at("2024-01-15", 9)})
	require.NoError(t, err)
	_, err = svc.CreateReserve(ctx, scope, ReserveInput{Kind: KindInvestment, Value: decimal.RequireFromString("1000"), RecordedAt: at("2024-01-10", 9)})
	require.NoError(t, err)
	_, err = svc.CreateReserve(ctx, scope, ReserveInput{Kind: KindInvestment, Value: decimal.RequireFromString("1200"), RecordedAt: at("2024-03-10", 9)})
	require.NoError(t, err)

	out, err := svc.GetIndicators(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "250.4", out.Stock.Value.String())
	assert.Equal(t, "500", out.Reserves.Reserve.Value.String())
	assert.Equal(t, "1200", out.Reserves.Investment.Value.String())
	assert.Equal(t, "1700", out.Reserves.Total.String())
	assert.Equal(t, "1950.4", out.TotalAssets.String())
}

func TestListStocksIsDayInclusive(t *testing.T) {
	svc := NewService(&memoryStore{}, nil)
	scope := shared.Scope{ClientID: uuid.New()}
	ctx := context.Background()
	for _, ts := range []*time.Time{at("2024-01-01", 0), at("2024-01-31", 23), at("2024-02-01", 0)} {
		_, err := svc.CreateStock(ctx, scope, StockInput{Value: decimal.NewFromInt(1), RecordedAt: ts})
		require.NoError(t, err)
	}

	rng, err := shared.ParseDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	stocks, err := svc.ListStocks(ctx, scope, rng)
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.True(t, stocks[0].RecordedAt.After(stocks[1].RecordedAt))
}

func TestCreateReserveValidation(t *testing.T) {
	svc := NewService(&memoryStore{}, nil)
	scope := shared.Scope{ClientID: uuid.New()}
	_, err := svc.CreateReserve(context.Background(), scope, ReserveInput{Kind: "bond", Value: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateReserve(context.Background(), scope, ReserveInput{Kind: KindReserve, Value: decimal.Zero})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateStock(context.Background(), scope, StockInput{Value: decimal.NewFromInt(-3)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateStock(context.Background(), scope, StockInput{Value: decimal.RequireFromString("0.004")})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateReserve(context.Background(), scope, ReserveInput{Kind: KindInvestment, Value: decimal.New(5, 12)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateStockDefaultsRecordedAt(t *testing.T) {
	svc := NewService(&memoryStore{}, nil)
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })
	stock, err := svc.CreateStock(context.Background(), shared.Scope{ClientID: uuid.New()}, StockInput{Value: decimal.NewFromInt(5), Notes: " "})
	require.NoError(t, err)
	assert.Equal(t, now, stock.RecordedAt)
	assert.Nil(t, stock.Notes)
}
