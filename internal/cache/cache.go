// Package cache holds encoded proxy responses keyed by endpoint namespace.
// Entries are never evicted in the background: an entry older than its
// namespace TTL is invisible to Get and replaced by the next Put.
package cache

import (
	"sync"
	"time"

	"stockdash/internal/scheduler"
)

// entry stores one encoded response with its store time.
type entry struct {
	payload  []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) fresh(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// Store is a concurrency-safe map of encoded responses.
type Store struct {
	clock    scheduler.Clock
	maxItems int

	mu    sync.RWMutex
	items map[string]entry
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for store times.
func WithClock(c scheduler.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithMaxItems caps the number of entries. Zero means unbounded.
func WithMaxItems(n int) Option {
	return func(s *Store) { s.maxItems = n }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{items: make(map[string]entry)}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = scheduler.Or(s.clock)
	return s
}

// Namespace returns a view of s whose keys are prefixed with prefix and whose
// entries live for ttl.
func (s *Store) Namespace(prefix string, ttl time.Duration) *Namespace {
	return &Namespace{store: s, prefix: prefix, ttl: ttl}
}

// Len counts stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset drops every entry.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
}

func (s *Store) get(key string) ([]byte, bool) {
	now := s.clock.Now()
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || !e.fresh(now) {
		return nil, false
	}
	return e.payload, true
}

func (s *Store) put(key string, payload []byte, ttl time.Duration) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry{payload: payload, storedAt: now, ttl: ttl}

	// best-effort cap: drop expired entries first, then arbitrary ones
	if s.maxItems <= 0 || len(s.items) <= s.maxItems {
		return
	}
	for k, e := range s.items {
		if len(s.items) <= s.maxItems {
			return
		}
		if k != key && !e.fresh(now) {
			delete(s.items, k)
		}
	}
	for k := range s.items {
		if len(s.items) <= s.maxItems {
			return
		}
		if k != key {
			delete(s.items, k)
		}
	}
}

// Namespace is a prefixed view of a Store with one TTL.
type Namespace struct {
	store  *Store
	prefix string
	ttl    time.Duration
}

// Key returns the full store key for k.
func (n *Namespace) Key(k string) string { return n.prefix + k }

// TTL returns the entry lifetime of the namespace.
func (n *Namespace) TTL() time.Duration { return n.ttl }

// Get returns the payload for k if it is younger than the namespace TTL.
// The returned slice is shared and must not be modified.
func (n *Namespace) Get(k string) ([]byte, bool) {
	return n.store.get(n.Key(k))
}

// Put stores payload under k, stamped with the current time.
func (n *Namespace) Put(k string, payload []byte) {
	n.store.put(n.Key(k), payload, n.ttl)
}
