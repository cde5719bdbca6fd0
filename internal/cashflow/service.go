package cashflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ledgerflow/internal/ledger"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Anchor selects the instant whose latest balance seeds a projection.
type Anchor string

const (
	// AnchorWindowStart uses the latest balance at or before the request instant.
	AnchorWindowStart Anchor = "window_start"
	// AnchorWindowEnd uses the latest balance at or before the first instant of
	// the window's last day.
	AnchorWindowEnd Anchor = "window_end"
)

// ParseAnchor validates a configured anchor; empty selects AnchorWindowStart.
func ParseAnchor(s string) (Anchor, error) {
	switch Anchor(s) {
	case "", AnchorWindowStart:
		return AnchorWindowStart, nil
	case AnchorWindowEnd:
		return AnchorWindowEnd, nil
	default:
		return "", fmt.Errorf("cashflow: unknown balance anchor %q", s)
	}
}

// Option configures a Service.
type Option func(*Service)

// WithAnchor selects the balance anchor.
func WithAnchor(anchor Anchor) Option {
	return func(s *Service) { s.anchor = anchor }
}

// WithLocation sets the location that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger attaches a logger for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service projects cash flow for scoped clients.
type Service struct {
	ledger ledger.Reader
	cache  *Cache
	group  singleflight.Group
	anchor Anchor
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the ledger reader with an optional cache.
func NewService(reader ledger.Reader, cache *Cache, opts ...Option) *Service {
	s := &Service{
		ledger: reader,
		cache:  cache,
		anchor: AnchorWindowStart,
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Project returns the projection of the scoped client over months.
func (s *Service) Project(ctx context.Context, scope shared.Scope, months int) (Projection, error) {
	if err := scope.Validate(); err != nil {
		return Projection{}, err
	}
	now := s.now().In(s.loc)
	window, err := NewWindow(now, months)
	if err != nil {
		return Projection{}, err
	}

	load := func(ctx context.Context) (any, error) {
		return s.compute(ctx, scope, window, now)
	}
	if s.cache == nil {
		return s.compute(ctx, scope, window, now)
	}

	key, err := s.cache.BuildKey(ctx, scope.ClientID, "projection", shared.DayKey(window.Start), strconv.Itoa(months), string(s.anchor))
	if err != nil {
		s.warn("cashflow cache key", err)
		return s.compute(ctx, scope, window, now)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var out Projection
		if err := s.cache.FetchJSON(ctx, key, &out, load); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return Projection{}, err
	}
	return v.(Projection), nil
}

func (s *Service) compute(ctx context.Context, scope shared.Scope, window Window, now time.Time) (Projection, error) {
	anchorAt := now
	if s.anchor == AnchorWindowEnd {
		anchorAt = shared.StartOfDay(window.End, s.loc)
	}
	balance, err := s.ledger.LatestBalance(ctx, scope.ClientID, anchorAt)
	if err != nil {
		return Projection{}, err
	}
	starting := decimal.Zero
	if balance != nil {
		starting = balance.Amount
	}
	book, err := ledger.LoadBook(ctx, s.ledger, scope.ClientID, window.Range())
	if err != nil {
		return Projection{}, err
	}
	return Project(scope.ClientID, window, starting, book), nil
}

func (s *Service) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Any("error", err))
	}
}
