package memory

import (
	"context"
	"sync"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"
)

type registryEntry struct {
	conn         *domain.Connection
	stopLiveness func()
}

type MemoryConnectionRegistry struct {
	entries map[domain.ConnectionID]*registryEntry
	mu      sync.RWMutex
}

func NewMemoryConnectionRegistry() ports.ConnectionRegistry {
	return &MemoryConnectionRegistry{
		entries: make(map[domain.ConnectionID]*registryEntry),
	}
}

func (r *MemoryConnectionRegistry) Register(ctx context.Context, conn *domain.Connection, stopLiveness func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[conn.ID]; exists {
		return domain.ErrDuplicateConnection
	}

	c := *conn
	r.entries[conn.ID] = &registryEntry{
		conn:         &c,
		stopLiveness: stopLiveness,
	}
	return nil
}

func (r *MemoryConnectionRegistry) AssignRoom(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists {
		return domain.ErrConnectionNotFound
	}

	entry.conn.RoomID = roomID
	return nil
}

func (r *MemoryConnectionRegistry) Lookup(ctx context.Context, id domain.ConnectionID) (*domain.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[id]
	if !exists {
		return nil, domain.ErrConnectionNotFound
	}

	c := *entry.conn
	return &c, nil
}

// Remove cancels the liveness timer before dropping the entry so no periodic
// task outlives the registration. Removing an unknown id is a no-op.
func (r *MemoryConnectionRegistry) Remove(ctx context.Context, id domain.ConnectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists {
		return nil
	}

	if entry.stopLiveness != nil {
		entry.stopLiveness()
	}
	delete(r.entries, id)
	return nil
}

func (r *MemoryConnectionRegistry) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries), nil
}
