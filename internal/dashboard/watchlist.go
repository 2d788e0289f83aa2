package dashboard

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"stockdash/internal/provider"
)

// DefaultSymbols seeds every full refresh.
var DefaultSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META"}

// Watchlist holds the latest quote per symbol. It is not safe for
// concurrent use; Session guards it.
type Watchlist struct {
	quotes map[string]provider.Quote
}

func NewWatchlist() *Watchlist {
	return &Watchlist{quotes: make(map[string]provider.Quote)}
}

// Upsert replaces quotes by symbol.
func (w *Watchlist) Upsert(quotes ...provider.Quote) {
	for _, q := range quotes {
		w.quotes[q.Symbol] = q
	}
}

func (w *Watchlist) Len() int { return len(w.quotes) }

// Filter returns the quotes whose symbol contains substr, sorted by symbol.
// An empty substr matches everything.
func (w *Watchlist) Filter(substr string) []provider.Quote {
	out := make([]provider.Quote, 0, len(w.quotes))
	for sym, q := range w.quotes {
		if strings.Contains(sym, substr) {
			out = append(out, q)
		}
	}
	slices.SortFunc(out, func(a, b provider.Quote) int { return strings.Compare(a.Symbol, b.Symbol) })
	return out
}

type watchlistFile struct {
	Symbols []string `yaml:"symbols"`
}

// LoadSymbols reads a YAML watch-list file of the form
//
//	symbols: [AAPL, MSFT]
//
// Symbols are upper-cased and deduplicated, keeping file order.
func LoadSymbols(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watch-list: %w", err)
	}
	var f watchlistFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse watch-list %s: %w", path, err)
	}
	out := NormalizeSymbols(f.Symbols)
	if len(out) == 0 {
		return nil, errors.New("watch-list has no symbols")
	}
	return out, nil
}

// NormalizeSymbols trims, upper-cases and deduplicates symbols, dropping blanks.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
