package artifact

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps artifacts in process memory for tests and demo mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Version = len(m.records) + 1
	cp := *rec
	cp.Blob = slices.Clone(rec.Blob)
	m.records = append(m.records, &cp)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, version int) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if version < 1 || version > len(m.records) {
		return nil, ErrNotFound
	}
	cp := *m.records[version-1]
	return &cp, nil
}

func (m *MemoryStore) Latest(ctx context.Context) (*Record, error) {
	m.mu.RLock()
	n := len(m.records)
	m.mu.RUnlock()
	return m.Get(ctx, n)
}

func (m *MemoryStore) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, metaOnly(m.records[i]))
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
