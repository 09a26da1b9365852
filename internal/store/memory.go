package store

import (
	"context"
	"sync"

	"boardsync/pkg/interfaces"
	"boardsync/pkg/state"
	"boardsync/pkg/types"
)

// MemoryStore is a process-local board store. It backs tests and single-box
// deployments where durability across restarts does not matter.
type MemoryStore struct {
	mu     sync.RWMutex
	boards map[string]types.BoardDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boards: make(map[string]types.BoardDocument)}
}

func (m *MemoryStore) Get(ctx context.Context, boardID string) (*types.BoardDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.boards[boardID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	out := state.Clone(doc)
	return &out, nil
}

func (m *MemoryStore) Set(ctx context.Context, boardID string, doc *types.BoardDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[boardID] = state.Clone(*doc)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
