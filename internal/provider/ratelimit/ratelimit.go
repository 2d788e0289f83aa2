// Package ratelimit wraps a provider.Provider so outbound calls respect a
// caller-side pace. Every wrapped operation waits on the gate first.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"stockdash/internal/provider"
)

// Gate blocks until one call may proceed or ctx is done.
type Gate interface {
	Wait(ctx context.Context) error
}

// Limited decorates a provider with a Gate.
type Limited struct {
	P    provider.Provider
	Gate Gate
}

// Wrap returns p gated by g, or p itself when g is nil.
func Wrap(p provider.Provider, g Gate) provider.Provider {
	if g == nil {
		return p
	}
	return &Limited{P: p, Gate: g}
}

func (l *Limited) Name() string { return l.P.Name() }

func (l *Limited) Configured() bool { return l.P.Configured() }

func (l *Limited) GlobalQuote(ctx context.Context, symbol string) (provider.RawQuote, error) {
	if err := l.Gate.Wait(ctx); err != nil {
		return provider.RawQuote{}, err
	}
	return l.P.GlobalQuote(ctx, symbol)
}

func (l *Limited) DailySeries(ctx context.Context, symbol string, size provider.OutputSize) (provider.RawSeries, error) {
	if err := l.Gate.Wait(ctx); err != nil {
		return nil, err
	}
	return l.P.DailySeries(ctx, symbol, size)
}

func (l *Limited) SearchSymbols(ctx context.Context, keywords string) ([]provider.RawMatch, error) {
	if err := l.Gate.Wait(ctx); err != nil {
		return nil, err
	}
	return l.P.SearchSymbols(ctx, keywords)
}

// MinInterval enforces a minimum time between call starts. Concurrent callers
// queue behind each other.
type MinInterval struct {
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Wait(ctx context.Context) error {
	if m.Interval <= 0 {
		return nil
	}
	m.mu.Lock()
	now := time.Now()
	start := m.next
	if start.Before(now) {
		start = now
	}
	m.next = start.Add(m.Interval)
	m.mu.Unlock()

	wait := time.Until(start)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
