package cashflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/ledger/ledgertest"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

type countingReader struct {
	ledger.Reader
	balanceCalls int
}

func (c *countingReader) LatestBalance(ctx context.Context, clientID uuid.UUID, atOrBefore time.Time) (*ledger.Balance, error) {
	c.balanceCalls++
	return c.Reader.LatestBalance(ctx, clientID, atOrBefore)
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestServiceAnchorsOnRequestInstantByDefault(t *testing.T) {
	client := uuid.New()
	store := ledgertest.NewStore()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.AddBalance(client, "100", now.Add(-time.Hour))
	store.AddBalance(client, "900", time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))

	svc := NewService(store, nil)
	svc.WithNow(func() time.Time { return now })

	p, err := svc.Project(context.Background(), shared.Scope{ClientID: client}, 1)
	require.NoError(t, err)
	assert.Equal(t, "100", p.StartingBalance.String())
	assert.Equal(t, "2024-05-01", p.StartDate)
	assert.Equal(t, "2024-05-31", p.EndDate)
	assert.Len(t, p.DailySeries, 31)
}

func TestServiceWindowEndAnchorUsesLaterBalance(t *testing.T) {
	client := uuid.New()
	store := ledgertest.NewStore()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.AddBalance(client, "100", now.Add(-time.Hour))
	store.AddBalance(client, "900", time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))
	store.AddBalance(client, "5000", time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC))

	svc := NewService(store, nil, WithAnchor(AnchorWindowEnd))
	svc.WithNow(func() time.Time { return now })

	p, err := svc.Project(context.Background(), shared.Scope{ClientID: client}, 1)
	require.NoError(t, err)
	assert.Equal(t, "900", p.StartingBalance.String())
}

func TestServiceUsesLocationForToday(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	svc := NewService(ledgertest.NewStore(), nil, WithLocation(loc))
	svc.WithNow(func() time.Time { return time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC) })

	p, err := svc.Project(context.Background(), shared.Scope{ClientID: uuid.New()}, 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", p.StartDate)
}

func TestServiceRejectsInvalidHorizon(t *testing.T) {
	svc := NewService(ledgertest.NewStore(), nil)
	_, err := svc.Project(context.Background(), shared.Scope{ClientID: uuid.New()}, 25)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceCachesUntilLedgerChanges(t *testing.T) {
	client := uuid.New()
	store := ledgertest.NewStore()
	store.AddBalance(client, "100", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	reader := &countingReader{Reader: store}
	cache := newCache(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	svc := NewService(reader, cache)
	svc.WithNow(func() time.Time { return now })
	scope := shared.Scope{ClientID: client}
	ctx := context.Background()

	first, err := svc.Project(ctx, scope, 3)
	require.NoError(t, err)
	second, err := svc.Project(ctx, scope, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.balanceCalls)
	assert.True(t, first.EndingBalance.Equal(second.EndingBalance))
	assert.Len(t, second.DailySeries, len(first.DailySeries))

	ledgerSvc := ledger.NewService(store)
	ledgerSvc.WithInvalidator(cache, nil)
	_, err = ledgerSvc.CreateProvision(ctx, scope, ledger.MovementInput{
		Direction:   ledger.DirectionExpense,
		Amount:      dec("250"),
		Day:         mustDay(t, "2024-05-10"),
		Description: "Supplier",
	})
	require.NoError(t, err)

	third, err := svc.Project(ctx, scope, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.balanceCalls)
	require.NotNil(t, third.FirstNegativeCashDay)
	assert.Equal(t, "2024-05-10", *third.FirstNegativeCashDay)
}

func TestNewCacheDisabledForZeroTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.Nil(t, NewCache(client, 0))
}

func TestParseAnchor(t *testing.T) {
	a, err := ParseAnchor("")
	require.NoError(t, err)
	assert.Equal(t, AnchorWindowStart, a)
	a, err = ParseAnchor("window_end")
	require.NoError(t, err)
	assert.Equal(t, AnchorWindowEnd, a)
	_, err = ParseAnchor("noon")
	require.Error(t, err)
}
