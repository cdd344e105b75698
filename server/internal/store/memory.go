package store

import (
	"context"
	"sync"

	"github.com/wamstack/wamstack/pkg/types"
)

// Memory is a thread-safe in-process Store. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	recs     []Record // oldest first
	next     uint64
	th       *types.Thresholds
}

// NewMemory creates a Memory store retaining the most recent capacity readings.
func NewMemory(capacity int) *Memory {
	return &Memory{capacity: capacity}
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	rec.ID = m.next
	m.recs = append(m.recs, rec)
	if len(m.recs) > m.capacity {
		m.recs = m.recs[len(m.recs)-m.capacity:]
	}
	return rec, nil
}

// Recent implements Store.
func (m *Memory) Recent(_ context.Context, n int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n > len(m.recs) {
		n = len(m.recs)
	}
	out := make([]Record, 0, max(n, 0))
	for i := len(m.recs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.recs[i])
	}
	return out, nil
}

// Thresholds implements Store.
func (m *Memory) Thresholds(_ context.Context) (types.Thresholds, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.th == nil {
		return types.Thresholds{}, false, nil
	}
	return *m.th, true, nil
}

// SaveThresholds implements Store.
func (m *Memory) SaveThresholds(_ context.Context, th types.Thresholds) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.th = &th
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
