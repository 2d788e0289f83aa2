// Package alpaca adapts the Alpaca market-data and trading APIs to the
// provider.Provider interface.
package alpaca

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"stockdash/internal/provider"
)

const providerName = "Alpaca"

var _ provider.Provider = (*Provider)(nil)

// MarketData is the subset of *marketdata.Client the adapter calls.
type MarketData interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Assets is the subset of *alpaca.Client used for symbol lookup.
type Assets interface {
	GetAsset(symbol string) (*alpacaapi.Asset, error)
}

// Config holds Alpaca credentials and endpoints.
type Config struct {
	APIKey    string
	APISecret string
	// DataURL overrides the market-data endpoint.
	DataURL string
	// TradingURL overrides the trading endpoint used for asset lookup.
	TradingURL string
	// Feed selects the market-data feed, "iex" when empty.
	Feed string
}

// Provider serves quotes, daily bars and asset lookup from Alpaca.
type Provider struct {
	cfg    Config
	data   MarketData
	assets Assets
	now    func() time.Time
}

// Option customizes a Provider.
type Option func(*Provider)

// WithMarketData replaces the market-data client.
func WithMarketData(md MarketData) Option {
	return func(p *Provider) { p.data = md }
}

// WithAssets replaces the trading client used for asset lookup.
func WithAssets(a Assets) Option {
	return func(p *Provider) { p.assets = a }
}

// WithNow sets the clock used to compute bar windows.
func WithNow(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New builds a Provider from cfg.
func New(cfg Config, opts ...Option) *Provider {
	if cfg.Feed == "" {
		cfg.Feed = "iex"
	}
	p := &Provider{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.data == nil {
		mdOpts := marketdata.ClientOpts{APIKey: cfg.APIKey, APISecret: cfg.APISecret}
		if cfg.DataURL != "" {
			mdOpts.BaseURL = cfg.DataURL
		}
		p.data = marketdata.NewClient(mdOpts)
	}
	if p.assets == nil {
		tradeOpts := alpacaapi.ClientOpts{APIKey: cfg.APIKey, APISecret: cfg.APISecret}
		if cfg.TradingURL != "" {
			tradeOpts.BaseURL = cfg.TradingURL
		}
		p.assets = alpacaapi.NewClient(tradeOpts)
	}
	return p
}

func (p *Provider) Name() string { return providerName }

// Configured reports whether both key and secret are set.
func (p *Provider) Configured() bool {
	return p.cfg.APIKey != "" && p.cfg.APISecret != ""
}

// GlobalQuote builds a quote from the symbol snapshot. Price is the latest
// trade, falling back to the current daily close.
func (p *Provider) GlobalQuote(ctx context.Context, symbol string) (provider.RawQuote, error) {
	if err := ctx.Err(); err != nil {
		return provider.RawQuote{}, err
	}
	snap, err := p.data.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: marketdata.Feed(p.cfg.Feed)})
	if err != nil {
		return provider.RawQuote{}, classify(err)
	}
	if snap == nil || snap.DailyBar == nil {
		return provider.RawQuote{}, nil
	}

	day := snap.DailyBar
	price := decimal.NewFromFloat(day.Close)
	if snap.LatestTrade != nil && snap.LatestTrade.Price > 0 {
		price = decimal.NewFromFloat(snap.LatestTrade.Price)
	}
	q := provider.RawQuote{
		Symbol:           strings.ToUpper(symbol),
		Open:             fixed(day.Open),
		High:             fixed(day.High),
		Low:              fixed(day.Low),
		Price:            price.StringFixed(4),
		Volume:           strconv.FormatUint(uint64(day.Volume), 10),
		LatestTradingDay: day.Timestamp.UTC().Format("2006-01-02"),
	}
	if prev := snap.PrevDailyBar; prev != nil && prev.Close > 0 {
		prevClose := decimal.NewFromFloat(prev.Close)
		change := price.Sub(prevClose)
		q.PreviousClose = prevClose.StringFixed(4)
		q.Change = change.StringFixed(4)
		q.ChangePercent = change.Div(prevClose).Mul(decimal.NewFromInt(100)).StringFixed(4) + "%"
	}
	return q, nil
}

// DailySeries returns daily bars. Compact covers roughly the last 100
// sessions, full goes back twenty years.
func (p *Provider) DailySeries(ctx context.Context, symbol string, size provider.OutputSize) (provider.RawSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := p.now().UTC()
	start := end.AddDate(0, 0, -150)
	if size == provider.OutputFull {
		start = end.AddDate(-20, 0, 0)
	}

	bars, err := p.data.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(p.cfg.Feed),
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(bars) == 0 {
		return nil, nil
	}

	series := make(provider.RawSeries, len(bars))
	for _, b := range bars {
		series[b.Timestamp.UTC().Format("2006-01-02")] = provider.RawBar{
			Open:   fixed(b.Open),
			High:   fixed(b.High),
			Low:    fixed(b.Low),
			Close:  fixed(b.Close),
			Volume: strconv.FormatUint(uint64(b.Volume), 10),
		}
	}
	return series, nil
}

// SearchSymbols resolves keywords as an exact ticker. Alpaca has no fuzzy
// search, so an unknown ticker yields no matches.
func (p *Provider) SearchSymbols(ctx context.Context, keywords string) ([]provider.RawMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	asset, err := p.assets.GetAsset(strings.ToUpper(strings.TrimSpace(keywords)))
	if err != nil {
		if cerr := classify(err); provider.KindOf(cerr) == provider.KindNotFound {
			return []provider.RawMatch{}, nil
		}
		return nil, classify(err)
	}
	if asset == nil {
		return []provider.RawMatch{}, nil
	}
	return []provider.RawMatch{{
		Symbol:     asset.Symbol,
		Name:       asset.Name,
		Type:       string(asset.Class),
		Region:     "United States",
		Currency:   "USD",
		MatchScore: "1.0000",
	}}, nil
}

func fixed(f float64) string { return decimal.NewFromFloat(f).StringFixed(4) }

func classify(err error) error {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return err
	}
	return provider.NewError(providerName, err.Error())
}
