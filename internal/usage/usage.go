// Package usage keeps a ledger of upstream provider calls so the proxy can
// report how much of the daily provider budget has been spent.
package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Endpoint names recorded in the ledger.
const (
	EndpointQuote   = "quote"
	EndpointHistory = "history"
	EndpointSearch  = "search"
	EndpointCheck   = "check"
)

// OutcomeOK marks a successful upstream call. Failures record the error kind.
const OutcomeOK = "ok"

// Record is one upstream provider call.
type Record struct {
	ID       string
	Endpoint string
	Key      string
	Outcome  string
	Duration time.Duration
	At       time.Time
}

// NewRecord stamps a record with a fresh id.
func NewRecord(endpoint, key, outcome string, took time.Duration, at time.Time) Record {
	return Record{
		ID:       uuid.NewString(),
		Endpoint: endpoint,
		Key:      key,
		Outcome:  outcome,
		Duration: took,
		At:       at.UTC(),
	}
}

// Summary reports calls made during one UTC day against the daily budget.
type Summary struct {
	Day        string         `json:"day"`
	Calls      int            `json:"calls"`
	Budget     int            `json:"budget"`
	Remaining  int            `json:"remaining"`
	ByEndpoint map[string]int `json:"byEndpoint"`
}

// Ledger persists records and counts them by endpoint.
type Ledger interface {
	Record(ctx context.Context, r Record) error
	// Count returns calls per endpoint with from <= At < to.
	Count(ctx context.Context, from, to time.Time) (map[string]int, error)
	Close() error
}

// DayBounds returns the UTC day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Today summarizes the UTC day containing now.
func Today(ctx context.Context, l Ledger, now time.Time, budget int) (Summary, error) {
	from, to := DayBounds(now)
	counts, err := l.Count(ctx, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("count usage: %w", err)
	}
	s := Summary{Day: from.Format("2006-01-02"), Budget: budget, ByEndpoint: counts}
	if s.ByEndpoint == nil {
		s.ByEndpoint = map[string]int{}
	}
	for _, n := range counts {
		s.Calls += n
	}
	s.Remaining = max(0, budget-s.Calls)
	return s, nil
}

// Open builds a ledger from a driver name and DSN: "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Ledger, error) {
	switch strings.ToLower(driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown usage driver %q", driver)
	}
}
