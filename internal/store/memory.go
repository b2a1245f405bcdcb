package store

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryLimit caps a Memory store created with a non-positive limit.
const DefaultMemoryLimit = 200

// Memory is a Store backed by a bounded slice.
type Memory struct {
	mu    sync.RWMutex
	runs  []RunSummary // oldest first
	limit int
}

// NewMemory creates an in-memory store holding at most limit summaries.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{limit: limit}
}

// Record implements Store.
func (m *Memory) Record(ctx context.Context, run RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run.Entries = append([]EntryStatus(nil), run.Entries...)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)
	if over := len(m.runs) - m.limit; over > 0 {
		m.runs = append(m.runs[:0:0], m.runs[over:]...)
	}
	return nil
}

// Recent implements Store.
func (m *Memory) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RunSummary, 0, n)
	for i := len(m.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// Prune implements Store.
func (m *Memory) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.runs[:0]
	var removed int64
	for _, r := range m.runs {
		if r.StartedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.runs = kept
	return removed, nil
}

// Len returns the number of stored summaries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// Close implements Store.
func (m *Memory) Close() {}
