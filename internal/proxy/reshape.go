package proxy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockdash/internal/provider"
)

func parseDecimal(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func malformed(symbol string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: "Malformed provider data for symbol: " + symbol, Err: err}
}

// normalizeQuote reshapes a provider quote. lastUpdated is the normalization time.
func normalizeQuote(raw provider.RawQuote, symbol string, now time.Time) (provider.Quote, error) {
	if raw.Empty() {
		return provider.Quote{}, &Error{Kind: KindNotFound, Message: "Stock data not found for symbol: " + symbol}
	}
	q := provider.Quote{Symbol: strings.ToUpper(raw.Symbol), LastUpdated: now.UTC()}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"price", raw.Price, &q.Price},
		{"change", raw.Change, &q.Change},
		{"change percent", raw.ChangePercent, &q.ChangePercent},
		{"previous close", raw.PreviousClose, &q.PreviousClose},
	}
	for _, f := range fields {
		d, err := parseDecimal(f.name, f.raw)
		if err != nil {
			return provider.Quote{}, malformed(symbol, err)
		}
		*f.dst = d
	}
	return q, nil
}

// normalizeSeries orders bars newest first and keeps the most recent limit.
func normalizeSeries(raw provider.RawSeries, symbol string, limit int) (provider.HistoricalSeries, error) {
	bars := make([]provider.DailyBar, 0, len(raw))
	for date, b := range raw {
		d, err := provider.ParseDate(date)
		if err != nil {
			return provider.HistoricalSeries{}, malformed(symbol, err)
		}
		bar := provider.DailyBar{Date: d}
		for _, f := range []struct {
			name string
			raw  string
			dst  *decimal.Decimal
		}{
			{"open", b.Open, &bar.Open},
			{"high", b.High, &bar.High},
			{"low", b.Low, &bar.Low},
			{"close", b.Close, &bar.Close},
		} {
			v, err := parseDecimal(f.name, f.raw)
			if err != nil {
				return provider.HistoricalSeries{}, malformed(symbol, err)
			}
			*f.dst = v
		}
		if vol := strings.TrimSpace(b.Volume); vol != "" {
			n, err := strconv.ParseInt(vol, 10, 64)
			if err != nil {
				return provider.HistoricalSeries{}, malformed(symbol, fmt.Errorf("parse volume %q: %w", vol, err))
			}
			bar.Volume = n
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.After(bars[j].Date.Time) })
	if len(bars) > limit {
		bars = bars[:limit]
	}
	return provider.HistoricalSeries{Symbol: symbol, Data: bars}, nil
}

func normalizeMatches(raw []provider.RawMatch) []provider.SearchMatch {
	out := make([]provider.SearchMatch, 0, len(raw))
	for _, m := range raw {
		out = append(out, provider.SearchMatch{
			Symbol:   m.Symbol,
			Name:     m.Name,
			Type:     m.Type,
			Region:   m.Region,
			Currency: m.Currency,
		})
	}
	return out
}
