package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haasonsaas/agentcore/internal/history"
)

// MemoryStore provides an in-memory Store implementation for testing and local runs.
// Snapshots are kept encoded so callers never share message slices with it.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: map[string][]byte{}}
}

func (m *MemoryStore) Save(ctx context.Context, sessionID string, snap history.Snapshot) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[sessionID] = data
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (history.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.snaps[sessionID]
	m.mu.RUnlock()
	if !ok {
		return history.Snapshot{}, ErrNotFound
	}
	var snap history.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return history.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, sessionID)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snaps)
}
