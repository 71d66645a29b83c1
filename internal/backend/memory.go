package backend

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// MemoryStore keeps the entry set in an isolated in-process map. It backs
// tests and throwaway sessions; everything else about it behaves like the
// durable adapters, including decode validation on Load.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]record
	closed  bool
}

// NewMemoryStore creates an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]record)}
}

// Name identifies the backend in errors, logs and metrics.
func (m *MemoryStore) Name() string { return "memory" }

// Load returns a decoded copy of every stored entry. It takes the write lock
// because the self-heal path may reset the map.
func (m *MemoryStore) Load(ctx context.Context) ([]clip.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, IOError(m.Name(), "load", ErrClosed)
	}

	recs := make([]record, 0, len(m.records))
	for _, r := range m.records {
		recs = append(recs, r)
	}
	entries, err := decodeRecords(recs)
	if err != nil {
		// Corrupt in-memory state cannot really happen through this API, but
		// the contract is uniform: clear and start empty.
		slog.Warn("memory backend found undecodable records, clearing", "error", err)
		m.records = make(map[string]record)
		return nil, nil
	}
	return entries, nil
}

// Apply applies the diff in one step under the write lock.
func (m *MemoryStore) Apply(ctx context.Context, cs ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return IOError(m.Name(), "apply", ErrClosed)
	}

	for _, e := range cs.Inserted {
		m.records[e.ID] = encodeRecord(e)
	}
	for _, e := range cs.Updated {
		m.records[e.ID] = encodeRecord(e)
	}
	for _, id := range cs.RemovedIDs {
		delete(m.records, id)
	}
	return nil
}

// Clear drops every record. Clearing an empty store is a no-op.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return IOError(m.Name(), "clear", ErrClosed)
	}
	m.records = make(map[string]record)
	return nil
}

// Close marks the store unusable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
