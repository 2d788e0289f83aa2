package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the normalized quote shape served by the proxy and held by dashboard sessions.
// Prices are decimals so they serialize as exact strings, never floats.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	PreviousClose decimal.Decimal `json:"previousClose"`
	LastUpdated   time.Time       `json:"lastUpdated"`
}

// DailyBar is one trading day of a historical series.
type DailyBar struct {
	Date   Date            `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// HistoricalSeries holds daily bars ordered newest-first.
type HistoricalSeries struct {
	Symbol string     `json:"symbol"`
	Data   []DailyBar `json:"data"`
}

// SearchMatch is a lightweight projection of a provider symbol search hit.
type SearchMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Region   string `json:"region"`
	Currency string `json:"currency"`
}

// OutputSize selects how much daily history a provider returns.
type OutputSize string

const (
	OutputCompact OutputSize = "compact"
	OutputFull    OutputSize = "full"
)

// RawQuote is a global quote as the provider reports it, every field still text.
type RawQuote struct {
	Symbol           string
	Open             string
	High             string
	Low              string
	Price            string
	Volume           string
	LatestTradingDay string
	PreviousClose    string
	Change           string
	ChangePercent    string
}

// Empty reports whether the provider returned an empty quote object.
func (q RawQuote) Empty() bool { return q == RawQuote{} }

// RawBar is one day of provider time series data.
type RawBar struct {
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}

// RawSeries maps YYYY-MM-DD dates to bars. A nil map means the provider sent no series.
type RawSeries map[string]RawBar

// RawMatch is one provider search hit.
type RawMatch struct {
	Symbol      string
	Name        string
	Type        string
	Region      string
	MarketOpen  string
	MarketClose string
	Timezone    string
	Currency    string
	MatchScore  string
}

// Provider is a market-data source. Implementations return *Error for
// provider-reported failures so callers never inspect message text.
type Provider interface {
	Name() string
	// Configured reports whether credentials are present.
	Configured() bool
	GlobalQuote(ctx context.Context, symbol string) (RawQuote, error)
	DailySeries(ctx context.Context, symbol string, size OutputSize) (RawSeries, error)
	SearchSymbols(ctx context.Context, keywords string) ([]RawMatch, error)
}

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
