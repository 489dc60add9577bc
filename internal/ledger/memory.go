package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs. It hands
// out deep copies on both load and save so callers can never alias its
// internal table.
type MemoryStore struct {
	mu    sync.Mutex
	table Table
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{table: make(Table)}
}

func (s *MemoryStore) LoadAll(ctx context.Context) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Clone(), nil
}

func (s *MemoryStore) SaveAll(ctx context.Context, table Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table.Clone()
	return nil
}
