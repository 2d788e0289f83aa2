package dashboard

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stockdash/internal/provider"
	"stockdash/internal/scheduler"
)

// QueueConfig sizes and paces the request queue.
type QueueConfig struct {
	BatchSize int
	Cooldown  time.Duration
	// Budget seeds the advisory remaining-calls counter.
	Budget       int
	FetchTimeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BatchSize:    5,
		Cooldown:     time.Minute,
		Budget:       25,
		FetchTimeout: 15 * time.Second,
	}
}

// QuoteFetcher fetches one quote.
type QuoteFetcher func(ctx context.Context, symbol string) (provider.Quote, error)

// BatchResult reports one drained batch.
type BatchResult struct {
	Symbols []string
	// Quotes holds the successful, current-generation results.
	Quotes []provider.Quote
	// Err is the last failure in batch order, nil when every fetch succeeded.
	Err error
	// Failed counts current-generation failures.
	Failed int
	// Stale counts results dropped because Reset ran while they were in flight.
	Stale     int
	Remaining int
	Pending   int
}

// QueueHooks receive queue events. Both run outside the queue lock.
type QueueHooks struct {
	BatchStarted func(symbols []string)
	BatchDone    func(BatchResult)
}

type queued struct {
	symbol string
	gen    uint64
}

// Queue drains symbols through fetch in batches, one batch at a time, with a
// cooldown between batches while work remains.
type Queue struct {
	cfg   QueueConfig
	fetch QuoteFetcher
	clock scheduler.Clock
	hooks QueueHooks

	mu        sync.Mutex
	pending   []queued
	draining  bool
	remaining int
	gen       uint64
	cooldown  scheduler.Timer
	closed    bool

	bg sync.WaitGroup
}

// NewQueue returns an idle queue. A nil clock means the wall clock.
func NewQueue(cfg QueueConfig, fetch QuoteFetcher, clock scheduler.Clock, hooks QueueHooks) *Queue {
	def := DefaultQueueConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.Budget < 0 {
		cfg.Budget = 0
	}
	return &Queue{
		cfg:       cfg,
		fetch:     fetch,
		clock:     scheduler.Or(clock),
		hooks:     hooks,
		remaining: cfg.Budget,
	}
}

// Enqueue appends symbols without deduplication and starts a drain if idle.
// It does nothing after Close.
func (q *Queue) Enqueue(symbols ...string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	for _, s := range symbols {
		q.pending = append(q.pending, queued{symbol: s, gen: q.gen})
	}
	q.mu.Unlock()
	q.tryDrain()
}

// Reset drops pending symbols, supersedes in-flight results and enqueues symbols.
func (q *Queue) Reset(symbols ...string) {
	q.mu.Lock()
	q.gen++
	q.pending = q.pending[:0]
	q.mu.Unlock()
	q.Enqueue(symbols...)
}

// Close stops the cooldown timer and waits for an in-flight batch, whose
// results are dropped. It must not be called from a hook.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	if q.cooldown != nil {
		q.cooldown.Stop()
		q.cooldown = nil
	}
	q.mu.Unlock()
	q.bg.Wait()
}

// Remaining returns the advisory call budget left.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining
}

// Pending returns the symbols waiting for a batch.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.pending))
	for i, it := range q.pending {
		out[i] = it.symbol
	}
	return out
}

func (q *Queue) tryDrain() {
	q.mu.Lock()
	if q.closed || q.draining || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	q.draining = true
	n := min(q.cfg.BatchSize, len(q.pending))
	batch := slices.Clone(q.pending[:n])
	q.pending = slices.Delete(q.pending, 0, n)
	q.remaining = max(0, q.remaining-n)
	q.bg.Add(1)
	q.mu.Unlock()

	symbols := make([]string, n)
	for i, it := range batch {
		symbols[i] = it.symbol
	}
	if q.hooks.BatchStarted != nil {
		q.hooks.BatchStarted(symbols)
	}
	go q.run(batch, symbols)
}

func (q *Queue) run(batch []queued, symbols []string) {
	defer q.bg.Done()

	quotes := make([]provider.Quote, len(batch))
	errs := make([]error, len(batch))
	var g errgroup.Group
	for i, it := range batch {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), q.cfg.FetchTimeout)
			defer cancel()
			quotes[i], errs[i] = q.fetch(ctx, it.symbol)
			// failures stay per symbol so siblings run to completion
			return nil
		})
	}
	_ = g.Wait()

	q.mu.Lock()
	if q.closed {
		q.draining = false
		q.mu.Unlock()
		return
	}
	res := BatchResult{Symbols: symbols}
	for i, it := range batch {
		switch {
		case it.gen != q.gen:
			res.Stale++
		case errs[i] != nil:
			res.Failed++
			res.Err = fmt.Errorf("%s: %w", it.symbol, errs[i])
		default:
			res.Quotes = append(res.Quotes, quotes[i])
		}
	}
	res.Remaining = q.remaining
	res.Pending = len(q.pending)
	if len(q.pending) > 0 {
		q.cooldown = q.clock.AfterFunc(q.cfg.Cooldown, q.afterCooldown)
	} else {
		q.draining = false
	}
	q.mu.Unlock()

	if q.hooks.BatchDone != nil {
		q.hooks.BatchDone(res)
	}
}

func (q *Queue) afterCooldown() {
	q.mu.Lock()
	q.cooldown = nil
	q.draining = false
	q.mu.Unlock()
	q.tryDrain()
}
