// Package proxy implements the quote, history and search endpoints: input
// validation, a namespaced TTL cache in front of the provider, and reshaping
// of provider payloads into the stable response contract.
package proxy

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"stockdash/internal/cache"
	"stockdash/internal/provider"
	"stockdash/internal/scheduler"
	"stockdash/internal/usage"
)

// Config holds cache lifetimes and reporting limits.
type Config struct {
	QuoteTTL   time.Duration
	HistoryTTL time.Duration
	SearchTTL  time.Duration
	// HistoryDays caps the bars returned by History.
	HistoryDays int
	// CheckSymbol is quoted by CheckCredentials.
	CheckSymbol string
	// DailyBudget is the provider call allowance reported by Usage.
	DailyBudget int
	// UpstreamTimeout bounds one shared provider call. The call outlives the
	// request that started it.
	UpstreamTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QuoteTTL:        5 * time.Minute,
		HistoryTTL:      time.Hour,
		SearchTTL:       24 * time.Hour,
		HistoryDays:     30,
		CheckSymbol:     "IBM",
		DailyBudget:     25,
		UpstreamTimeout: 30 * time.Second,
	}
}

// Service serves the proxy endpoints for one provider.
type Service struct {
	cfg      Config
	provider provider.Provider
	clock    scheduler.Clock
	logger   *zap.Logger
	ledger   usage.Ledger

	quotes  *cache.Namespace
	history *cache.Namespace
	search  *cache.Namespace

	group singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithClock(c scheduler.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLedger records every upstream call in l.
func WithLedger(l usage.Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

// New builds a Service reading and writing store.
func New(p provider.Provider, store *cache.Store, opts ...Option) *Service {
	s := &Service{cfg: DefaultConfig(), provider: p}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = scheduler.Or(s.clock)
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.ledger == nil {
		s.ledger = usage.NewMemory()
	}
	if s.cfg.HistoryDays <= 0 {
		s.cfg.HistoryDays = 30
	}
	if s.cfg.CheckSymbol == "" {
		s.cfg.CheckSymbol = "IBM"
	}
	if s.cfg.UpstreamTimeout <= 0 {
		s.cfg.UpstreamTimeout = 30 * time.Second
	}
	s.quotes = store.Namespace("stock_", s.cfg.QuoteTTL)
	s.history = store.Namespace("history_", s.cfg.HistoryTTL)
	s.search = store.Namespace("search_", s.cfg.SearchTTL)
	return s
}

// ProviderName names the upstream provider.
func (s *Service) ProviderName() string { return s.provider.Name() }

// Configured reports whether provider credentials are present.
func (s *Service) Configured() bool { return s.provider.Configured() }

// Quote returns the encoded Quote for symbol.
func (s *Service) Quote(ctx context.Context, symbol string) ([]byte, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, invalidInput("Stock symbol is required")
	}
	if !s.provider.Configured() {
		return nil, configurationError()
	}
	return s.cached(ctx, s.quotes, symbol, usage.EndpointQuote, func(ctx context.Context) ([]byte, error) {
		raw, err := s.provider.GlobalQuote(ctx, symbol)
		if err != nil {
			return nil, fromProvider(s.provider.Name(), err, "Stock data not found for symbol: "+symbol)
		}
		q, err := normalizeQuote(raw, symbol, s.clock.Now())
		if err != nil {
			return nil, err
		}
		return json.Marshal(q)
	})
}

// History returns the encoded HistoricalSeries for symbol, newest bar first.
func (s *Service) History(ctx context.Context, symbol string) ([]byte, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, invalidInput("Stock symbol is required")
	}
	if !s.provider.Configured() {
		return nil, configurationError()
	}
	notFound := "No historical data found for symbol: " + symbol
	return s.cached(ctx, s.history, symbol, usage.EndpointHistory, func(ctx context.Context) ([]byte, error) {
		raw, err := s.provider.DailySeries(ctx, symbol, provider.OutputCompact)
		if err != nil {
			return nil, fromProvider(s.provider.Name(), err, notFound)
		}
		if len(raw) == 0 {
			return nil, &Error{Kind: KindNotFound, Message: notFound}
		}
		series, err := normalizeSeries(raw, symbol, s.cfg.HistoryDays)
		if err != nil {
			return nil, err
		}
		return json.Marshal(series)
	})
}

// SearchResults is the search response body.
type SearchResults struct {
	Results []provider.SearchMatch `json:"results"`
}

// Search returns encoded SearchResults for query. No matches is a success.
func (s *Service) Search(ctx context.Context, query string) ([]byte, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidInput("Search query is required")
	}
	if !s.provider.Configured() {
		return nil, configurationError()
	}
	key := strings.ToLower(query)
	return s.cached(ctx, s.search, key, usage.EndpointSearch, func(ctx context.Context) ([]byte, error) {
		raw, err := s.provider.SearchSymbols(ctx, query)
		if err != nil && provider.KindOf(err) != provider.KindNotFound {
			return nil, fromProvider(s.provider.Name(), err, "")
		}
		return json.Marshal(SearchResults{Results: normalizeMatches(raw)})
	})
}

// Usage reports today's provider calls.
func (s *Service) Usage(ctx context.Context) (usage.Summary, error) {
	return usage.Today(ctx, s.ledger, s.clock.Now(), s.cfg.DailyBudget)
}

// cached serves key from ns, calling fetch on a miss. Concurrent misses for
// one key share a single fetch, which runs detached from any one caller's
// context; each caller still returns as soon as its own ctx is done.
func (s *Service) cached(ctx context.Context, ns *cache.Namespace, key, endpoint string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, ok := ns.Get(key); ok {
		return b, nil
	}
	ch := s.group.DoChan(ns.Key(key), func() (any, error) {
		if b, ok := ns.Get(key); ok {
			return b, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UpstreamTimeout)
		defer cancel()

		start := s.clock.Now()
		b, err := fetch(fctx)
		s.record(fctx, endpoint, ns.Key(key), start, err)
		if err != nil {
			return nil, err
		}
		ns.Put(key, b)
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// record writes the upstream call to the ledger. Ledger failures are logged only.
func (s *Service) record(ctx context.Context, endpoint, key string, start time.Time, callErr error) {
	outcome := usage.OutcomeOK
	if callErr != nil {
		outcome = strings.ToLower(KindOf(callErr).String())
		s.logger.Warn("upstream call failed",
			zap.String("provider", s.provider.Name()),
			zap.String("endpoint", endpoint),
			zap.String("key", key),
			zap.Error(callErr),
		)
	}
	now := s.clock.Now()
	rec := usage.NewRecord(endpoint, key, outcome, now.Sub(start), now)
	if err := s.ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("record provider call", zap.String("endpoint", endpoint), zap.Error(err))
	}
}
