package alpaca

import (
	"errors"
	"testing"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/require"

	"stockdash/internal/provider"
)

type fakeMarketData struct {
	snapshot *marketdata.Snapshot
	bars     []marketdata.Bar
	err      error
	barsReq  marketdata.GetBarsRequest
}

func (f *fakeMarketData) GetSnapshot(string, marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeMarketData) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.barsReq = req
	return f.bars, f.err
}

type fakeAssets struct {
	asset *alpacaapi.Asset
	err   error
}

func (f *fakeAssets) GetAsset(string) (*alpacaapi.Asset, error) { return f.asset, f.err }

var day = time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC)

func TestConfigured(t *testing.T) {
	require.False(t, New(Config{APIKey: "k"}, WithMarketData(&fakeMarketData{}), WithAssets(&fakeAssets{})).Configured())
	require.True(t, New(Config{APIKey: "k", APISecret: "s"}, WithMarketData(&fakeMarketData{}), WithAssets(&fakeAssets{})).Configured())
}

func TestGlobalQuote_FromSnapshot(t *testing.T) {
	md := &fakeMarketData{snapshot: &marketdata.Snapshot{
		LatestTrade:  &marketdata.Trade{Price: 110},
		DailyBar:     &marketdata.Bar{Timestamp: day, Open: 101, High: 111, Low: 99.5, Close: 109},
		PrevDailyBar: &marketdata.Bar{Timestamp: day.AddDate(0, 0, -1), Close: 100},
	}}
	p := New(Config{APIKey: "k", APISecret: "s"}, WithMarketData(md), WithAssets(&fakeAssets{}))

	q, err := p.GlobalQuote(t.Context(), "aapl")
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, "110.0000", q.Price)
	require.Equal(t, "100.0000", q.PreviousClose)
	require.Equal(t, "10.0000", q.Change)
	require.Equal(t, "10.0000%", q.ChangePercent)
	require.Equal(t, "2024-03-15", q.LatestTradingDay)
}

func TestGlobalQuote_NoSnapshot(t *testing.T) {
	p := New(Config{}, WithMarketData(&fakeMarketData{}), WithAssets(&fakeAssets{}))

	q, err := p.GlobalQuote(t.Context(), "ZZZZ")
	require.NoError(t, err)
	require.True(t, q.Empty())
}

func TestGlobalQuote_ClassifiesErrors(t *testing.T) {
	md := &fakeMarketData{err: errors.New("too many requests. (HTTP 429)")}
	p := New(Config{}, WithMarketData(md), WithAssets(&fakeAssets{}))

	_, err := p.GlobalQuote(t.Context(), "AAPL")
	require.Equal(t, provider.KindRateLimited, provider.KindOf(err))
}

func TestDailySeries_Window(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	md := &fakeMarketData{bars: []marketdata.Bar{
		{Timestamp: day, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1200},
		{Timestamp: day.AddDate(0, 0, -1), Open: 1, High: 1, Low: 1, Close: 1, Volume: 10},
	}}
	p := New(Config{}, WithMarketData(md), WithAssets(&fakeAssets{}), WithNow(func() time.Time { return now }))

	series, err := p.DailySeries(t.Context(), "AAPL", provider.OutputCompact)
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.Equal(t, "1.5000", series["2024-03-15"].Close)
	require.Equal(t, "1200", series["2024-03-15"].Volume)
	require.Equal(t, now.AddDate(0, 0, -150), md.barsReq.Start)

	_, err = p.DailySeries(t.Context(), "AAPL", provider.OutputFull)
	require.NoError(t, err)
	require.Equal(t, now.AddDate(-20, 0, 0), md.barsReq.Start)
}

func TestDailySeries_Empty(t *testing.T) {
	p := New(Config{}, WithMarketData(&fakeMarketData{}), WithAssets(&fakeAssets{}))

	series, err := p.DailySeries(t.Context(), "AAPL", provider.OutputCompact)
	require.NoError(t, err)
	require.Nil(t, series)
}

func TestSearchSymbols(t *testing.T) {
	assets := &fakeAssets{asset: &alpacaapi.Asset{Symbol: "AAPL", Name: "Apple Inc. Common Stock", Class: "us_equity"}}
	p := New(Config{}, WithMarketData(&fakeMarketData{}), WithAssets(assets))

	matches, err := p.SearchSymbols(t.Context(), " aapl ")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "AAPL", matches[0].Symbol)
	require.Equal(t, "us_equity", matches[0].Type)
	require.Equal(t, "USD", matches[0].Currency)
}

func TestSearchSymbols_UnknownIsEmpty(t *testing.T) {
	assets := &fakeAssets{err: errors.New("asset not found")}
	p := New(Config{}, WithMarketData(&fakeMarketData{}), WithAssets(assets))

	matches, err := p.SearchSymbols(t.Context(), "QQQZZ")
	require.NoError(t, err)
	require.Empty(t, matches)
}
