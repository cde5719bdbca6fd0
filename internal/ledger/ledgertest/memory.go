// Package ledgertest provides an in-memory ledger store for tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Store is a goroutine-safe ledger.Store backed by slices.
type Store struct {
	mu         sync.Mutex
	entries    []ledger.Entry
	provisions []ledger.Provision
	balances   []ledger.Balance
	clock      time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// AddEntry seeds an entry for clientID.
func (s *Store) AddEntry(clientID uuid.UUID, direction ledger.Direction, amount string, day string) {
	_, _ = s.InsertEntry(context.Background(), ledger.Entry{
		ClientID:    clientID,
		Direction:   direction,
		Amount:      decimal.RequireFromString(amount),
		OccurredOn:  mustDay(day),
		Description: "seed",
		Origin:      ledger.OriginManual,
	})
}

// AddProvision seeds a provision for clientID.
func (s *Store) AddProvision(clientID uuid.UUID, direction ledger.Direction, amount string, day string) {
	_, _ = s.InsertProvision(context.Background(), ledger.Provision{
		ClientID:    clientID,
		Direction:   direction,
		Amount:      decimal.RequireFromString(amount),
		DueOn:       mustDay(day),
		Description: "seed",
		Origin:      ledger.OriginManual,
	})
}

// AddBalance seeds a balance recorded at the given instant.
func (s *Store) AddBalance(clientID uuid.UUID, amount string, recordedAt time.Time) {
	_, _ = s.InsertBalance(context.Background(), ledger.Balance{
		ClientID:   clientID,
		Amount:     decimal.RequireFromString(amount),
		RecordedAt: recordedAt,
		Origin:     ledger.OriginManual,
	})
}

func (s *Store) FindEntries(_ context.Context, clientID uuid.UUID, rng shared.DateRange) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Entry
	for _, e := range s.entries {
		if e.ClientID == clientID && rng.Contains(e.OccurredOn) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredOn.Before(out[j].OccurredOn) })
	return out, nil
}

func (s *Store) FindProvisions(_ context.Context, clientID uuid.UUID, rng shared.DateRange) ([]ledger.Provision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Provision
	for _, p := range s.provisions {
		if p.ClientID == clientID && rng.Contains(p.DueOn) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueOn.Before(out[j].DueOn) })
	return out, nil
}

func (s *Store) LatestBalance(_ context.Context, clientID uuid.UUID, atOrBefore time.Time) (*ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *ledger.Balance
	for i := range s.balances {
		b := s.balances[i]
		if b.ClientID != clientID || b.RecordedAt.After(atOrBefore) {
			continue
		}
		if latest == nil || b.RecordedAt.After(latest.RecordedAt) {
			latest = &b
		}
	}
	return latest, nil
}

func (s *Store) ListBalances(_ context.Context, clientID uuid.UUID) ([]ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Balance
	for _, b := range s.balances {
		if b.ClientID == clientID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

func (s *Store) InsertEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = s.tick()
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *Store) InsertProvision(_ context.Context, p ledger.Provision) (ledger.Provision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = s.tick()
	s.provisions = append(s.provisions, p)
	return p, nil
}

func (s *Store) InsertBalance(_ context.Context, b ledger.Balance) (ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.New()
	b.CreatedAt = s.tick()
	s.balances = append(s.balances, b)
	return b, nil
}

func mustDay(s string) time.Time {
	day, err := shared.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return day
}
