package usage

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process ledger, lost on restart.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, r Record) error {
	m.mu.Lock()
	m.records = append(m.records, r)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Count(_ context.Context, from, to time.Time) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, r := range m.records {
		if !r.At.Before(from) && r.At.Before(to) {
			out[r.Endpoint]++
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
