// Package journal keeps an append-only record of the changes applied to the CMDB.
package journal

import (
	"context"
	"sync"

	"bgp-cmdb/pkg/model"
)

// Journal stores applied changes.
type Journal interface {
	Append(ctx context.Context, e model.JournalEntry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]model.JournalEntry, error)
	Close() error
}

// DefaultCapacity is how many entries Memory keeps.
const DefaultCapacity = 200

// Memory keeps the most recent entries in process memory.
type Memory struct {
	mu      sync.Mutex
	cap     int
	entries []model.JournalEntry
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{cap: capacity}
}

func (m *Memory) Append(_ context.Context, e model.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.cap; over > 0 {
		m.entries = append([]model.JournalEntry(nil), m.entries[over:]...)
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]model.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]model.JournalEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
