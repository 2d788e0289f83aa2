// Package app assembles the proxy service and dashboard settings from
// configuration. The server, fetch and dashboard binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"stockdash/internal/cache"
	"stockdash/internal/config"
	"stockdash/internal/dashboard"
	"stockdash/internal/httpx"
	"stockdash/internal/provider"
	"stockdash/internal/provider/alpaca"
	"stockdash/internal/provider/alphavantage"
	"stockdash/internal/provider/ratelimit"
	"stockdash/internal/proxy"
	"stockdash/internal/usage"
)

// LoadConfig reads and validates configuration, resolving ssm: secrets.
func LoadConfig(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.NeedsSecrets() {
		client, err := config.NewSSMClient(ctx)
		if err != nil {
			return nil, err
		}
		if err := cfg.ResolveSecrets(ctx, client); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// NewProvider builds the configured provider behind its rate limit.
func NewProvider(cfg *config.Config) (provider.Provider, error) {
	var p provider.Provider
	switch cfg.Provider.Name {
	case "alpaca":
		p = alpaca.New(alpaca.Config{
			APIKey:     cfg.Alpaca.APIKey,
			APISecret:  cfg.Alpaca.APISecret,
			DataURL:    cfg.Alpaca.DataURL,
			TradingURL: cfg.Alpaca.TradingURL,
			Feed:       cfg.Alpaca.Feed,
		})
	case "alphavantage", "":
		hc := httpx.New(cfg.Provider.Timeout)
		opts := []alphavantage.ClientOption{
			alphavantage.WithBaseURL(cfg.Provider.BaseURL),
			alphavantage.WithHTTPClient(hc),
			alphavantage.WithHeader(http.Header{"Accept": []string{"application/json"}}),
		}
		if cfg.Provider.Entitlement != "" {
			opts = append(opts, alphavantage.WithQuery(url.Values{"entitlement": {cfg.Provider.Entitlement}}))
		}
		c, err := alphavantage.NewClient(cfg.Provider.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		p = c
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
	return ratelimit.Wrap(p, gate(cfg.Provider)), nil
}

// gate prefers a token bucket when a per-minute rate is set, otherwise a
// minimum interval.
func gate(pc config.ProviderConfig) ratelimit.Gate {
	switch {
	case pc.MaxRequestsPerMinute > 0:
		return ratelimit.PerMinute(pc.MaxRequestsPerMinute)
	case pc.MinInterval > 0:
		return &ratelimit.MinInterval{Interval: pc.MinInterval}
	default:
		return nil
	}
}

// OpenLedger opens the usage ledger, creating the Postgres database first
// when an admin DSN is configured.
func OpenLedger(ctx context.Context, uc config.UsageConfig) (usage.Ledger, error) {
	if uc.Driver == "postgres" && uc.AdminDSN != "" {
		if err := usage.EnsureDatabase(ctx, uc.AdminDSN, uc.Database); err != nil {
			return nil, err
		}
	}
	return usage.Open(ctx, uc.Driver, uc.DSN)
}

// Service is a wired proxy service plus the resources it holds.
type Service struct {
	*proxy.Service
	Cache  *cache.Store
	Ledger usage.Ledger
}

// Close releases the ledger.
func (s *Service) Close() error {
	return s.Ledger.Close()
}

// NewService wires provider, cache and ledger into a proxy service.
func NewService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.ProviderConfigured() {
		logger.Warn("provider credentials not configured; endpoints will report a configuration error",
			zap.String("provider", p.Name()))
	}
	ledger, err := OpenLedger(ctx, cfg.Usage)
	if err != nil {
		return nil, fmt.Errorf("open usage ledger: %w", err)
	}
	store := cache.New(cache.WithMaxItems(cfg.Cache.MaxItems))
	svc := proxy.New(p, store,
		proxy.WithConfig(ProxyConfig(cfg)),
		proxy.WithLogger(logger.Named("proxy")),
		proxy.WithLedger(ledger),
	)
	logger.Info("proxy ready",
		zap.String("provider", p.Name()),
		zap.String("usage_driver", cfg.Usage.Driver),
		zap.Duration("quote_ttl", cfg.Cache.QuoteTTL))
	return &Service{Service: svc, Cache: store, Ledger: ledger}, nil
}

// ProxyConfig maps cache and usage settings onto proxy.Config.
func ProxyConfig(cfg *config.Config) proxy.Config {
	pc := proxy.DefaultConfig()
	if cfg.Cache.QuoteTTL > 0 {
		pc.QuoteTTL = cfg.Cache.QuoteTTL
	}
	if cfg.Cache.HistoryTTL > 0 {
		pc.HistoryTTL = cfg.Cache.HistoryTTL
	}
	if cfg.Cache.SearchTTL > 0 {
		pc.SearchTTL = cfg.Cache.SearchTTL
	}
	if cfg.Cache.HistoryDays > 0 {
		pc.HistoryDays = cfg.Cache.HistoryDays
	}
	if cfg.Usage.DailyBudget > 0 {
		pc.DailyBudget = cfg.Usage.DailyBudget
	}
	return pc
}

// SessionConfig maps dashboard settings onto a session config. A watch-list
// file, when set, replaces the configured symbols.
func SessionConfig(dc config.DashboardConfig) (dashboard.SessionConfig, error) {
	sc := dashboard.DefaultSessionConfig()
	if symbols := dashboard.NormalizeSymbols(dc.Symbols); len(symbols) > 0 {
		sc.Symbols = symbols
	}
	if dc.WatchlistFile != "" {
		symbols, err := dashboard.LoadSymbols(dc.WatchlistFile)
		if err != nil {
			return sc, err
		}
		sc.Symbols = symbols
	}
	if dc.BatchSize > 0 {
		sc.Queue.BatchSize = dc.BatchSize
	}
	if dc.Cooldown > 0 {
		sc.Queue.Cooldown = dc.Cooldown
	}
	if dc.Budget > 0 {
		sc.Queue.Budget = dc.Budget
	}
	if dc.FetchTimeout > 0 {
		sc.Queue.FetchTimeout = dc.FetchTimeout
	}
	if dc.RefreshInterval > 0 {
		sc.RefreshInterval = dc.RefreshInterval
	}
	if dc.SearchDebounce > 0 {
		sc.SearchDebounce = dc.SearchDebounce
	}
	if sc.Queue.BatchSize <= 0 {
		return sc, errors.New("dashboard batch size must be positive")
	}
	return sc, nil
}
