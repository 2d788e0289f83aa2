package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stockdash/internal/provider"
	"stockdash/internal/scheduler"
)

var t0 = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func quote(sym, price string) provider.Quote {
	return provider.Quote{Symbol: sym, Price: decimal.RequireFromString(price), LastUpdated: t0}
}

func symbols(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%02d", i)
	}
	return out
}

func recv(t *testing.T, ch <-chan BatchResult) BatchResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no batch completed")
		return BatchResult{}
	}
}

func TestQueue_BatchesOfFiveWithCooldown(t *testing.T) {
	// Arrange
	clock := scheduler.NewFake(t0)
	done := make(chan BatchResult, 4)
	var calls atomic.Int32
	fetch := func(_ context.Context, sym string) (provider.Quote, error) {
		calls.Add(1)
		return quote(sym, "1"), nil
	}
	q := NewQueue(DefaultQueueConfig(), fetch, clock, QueueHooks{BatchDone: func(r BatchResult) { done <- r }})

	// Act
	q.Enqueue(symbols(12)...)
	first := recv(t, done)

	// Assert
	require.Equal(t, symbols(12)[:5], first.Symbols)
	require.Len(t, first.Quotes, 5)
	require.Equal(t, 20, first.Remaining)
	require.Equal(t, 7, first.Pending)
	require.True(t, draining(q))
	next, ok := clock.NextIn()
	require.True(t, ok)
	require.Equal(t, time.Minute, next)

	clock.Advance(59 * time.Second)
	require.EqualValues(t, 5, calls.Load())

	clock.Advance(time.Second)
	second := recv(t, done)
	require.Equal(t, symbols(12)[5:10], second.Symbols)
	require.Equal(t, 15, second.Remaining)
	require.Equal(t, 2, second.Pending)

	clock.Advance(time.Minute)
	third := recv(t, done)
	require.Equal(t, symbols(12)[10:], third.Symbols)
	require.Equal(t, 13, third.Remaining)
	require.Zero(t, third.Pending)

	require.Zero(t, clock.Pending(), "no cooldown after the last batch")
	require.False(t, draining(q))
	require.EqualValues(t, 12, calls.Load())
}

// draining reports whether a batch or its cooldown is in progress.
func draining(q *Queue) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

func TestQueue_PartialFailureLastErrorWins(t *testing.T) {
	// Arrange
	done := make(chan BatchResult, 1)
	fetch := func(_ context.Context, sym string) (provider.Quote, error) {
		switch sym {
		case "B":
			return provider.Quote{}, errors.New("first failure")
		case "D":
			return provider.Quote{}, errors.New("second failure")
		}
		return quote(sym, "10"), nil
	}
	q := NewQueue(DefaultQueueConfig(), fetch, scheduler.NewFake(t0), QueueHooks{BatchDone: func(r BatchResult) { done <- r }})

	// Act
	q.Enqueue("A", "B", "C", "D", "E")
	res := recv(t, done)

	// Assert
	require.Len(t, res.Quotes, 3)
	require.Equal(t, 2, res.Failed)
	require.ErrorContains(t, res.Err, "second failure")
	require.ErrorContains(t, res.Err, "D")
}

func TestQueue_RemainingNeverNegative(t *testing.T) {
	done := make(chan BatchResult, 1)
	cfg := DefaultQueueConfig()
	cfg.Budget = 3
	fetch := func(_ context.Context, sym string) (provider.Quote, error) { return quote(sym, "1"), nil }
	q := NewQueue(cfg, fetch, scheduler.NewFake(t0), QueueHooks{BatchDone: func(r BatchResult) { done <- r }})

	q.Enqueue(symbols(5)...)
	res := recv(t, done)

	require.Zero(t, res.Remaining)
	require.Zero(t, q.Remaining())
}

func TestQueue_ResetDiscardsInFlightResults(t *testing.T) {
	// Arrange
	clock := scheduler.NewFake(t0)
	done := make(chan BatchResult, 2)
	release := make(chan struct{})
	fetch := func(_ context.Context, sym string) (provider.Quote, error) {
		if sym == "OLD" {
			<-release
		}
		return quote(sym, "1"), nil
	}
	q := NewQueue(DefaultQueueConfig(), fetch, clock, QueueHooks{BatchDone: func(r BatchResult) { done <- r }})

	// Act
	q.Enqueue("OLD")
	q.Reset("NEW")
	require.Equal(t, []string{"NEW"}, q.Pending())
	close(release)
	stale := recv(t, done)

	// Assert
	require.Equal(t, 1, stale.Stale)
	require.Empty(t, stale.Quotes)
	require.NoError(t, stale.Err)

	clock.Advance(time.Minute)
	fresh := recv(t, done)
	require.Len(t, fresh.Quotes, 1)
	require.Equal(t, "NEW", fresh.Quotes[0].Symbol)
	q.mu.Lock()
	require.EqualValues(t, 1, q.gen)
	q.mu.Unlock()
}

func TestQueue_CloseCancelsCooldown(t *testing.T) {
	clock := scheduler.NewFake(t0)
	done := make(chan BatchResult, 1)
	fetch := func(_ context.Context, sym string) (provider.Quote, error) { return quote(sym, "1"), nil }
	q := NewQueue(DefaultQueueConfig(), fetch, clock, QueueHooks{BatchDone: func(r BatchResult) { done <- r }})

	q.Enqueue(symbols(7)...)
	recv(t, done)
	require.Equal(t, 1, clock.Pending())

	q.Close()

	require.Zero(t, clock.Pending())
	require.Empty(t, q.Pending())
	q.Enqueue("LATE")
	require.Empty(t, q.Pending())
}

func TestQueue_CloseWaitsForInFlightBatch(t *testing.T) {
	release := make(chan struct{})
	var hooked atomic.Int32
	fetch := func(_ context.Context, sym string) (provider.Quote, error) {
		<-release
		return quote(sym, "1"), nil
	}
	q := NewQueue(DefaultQueueConfig(), fetch, scheduler.NewFake(t0), QueueHooks{BatchDone: func(BatchResult) { hooked.Add(1) }})
	q.Enqueue("AAPL")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		q.Close()
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a batch was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-closed
	require.Zero(t, hooked.Load(), "results of a closed queue are dropped")
	require.False(t, draining(q))
}

func TestQueue_FetchTimeout(t *testing.T) {
	done := make(chan BatchResult, 1)
	cfg := DefaultQueueConfig()
	cfg.FetchTimeout = 20 * time.Millisecond
	fetch := func(ctx context.Context, _ string) (provider.Quote, error) {
		<-ctx.Done()
		return provider.Quote{}, ctx.Err()
	}
	q := NewQueue(cfg, fetch, scheduler.NewFake(t0), QueueHooks{BatchDone: func(r BatchResult) { done <- r }})

	q.Enqueue("SLOW")
	res := recv(t, done)

	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
}
