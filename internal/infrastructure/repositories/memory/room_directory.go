package memory

import (
	"context"
	"sync"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"
)

type MemoryRoomDirectory struct {
	rooms  map[domain.RoomID]map[domain.ConnectionID]struct{}
	byConn map[domain.ConnectionID]domain.RoomID
	mu     sync.RWMutex
}

func NewMemoryRoomDirectory() ports.RoomDirectory {
	return &MemoryRoomDirectory{
		rooms:  make(map[domain.RoomID]map[domain.ConnectionID]struct{}),
		byConn: make(map[domain.ConnectionID]domain.RoomID),
	}
}

// Join adds the connection to the room's member set. Membership is
// exclusive: a connection already in another room is removed from it first.
func (d *MemoryRoomDirectory) Join(ctx context.Context, roomID domain.RoomID, id domain.ConnectionID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.byConn[id]; ok {
		if prev == roomID {
			return nil
		}
		d.removeLocked(prev, id)
	}

	members, ok := d.rooms[roomID]
	if !ok {
		members = make(map[domain.ConnectionID]struct{})
		d.rooms[roomID] = members
	}
	members[id] = struct{}{}
	d.byConn[id] = roomID
	return nil
}

func (d *MemoryRoomDirectory) Leave(ctx context.Context, roomID domain.RoomID, id domain.ConnectionID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removeLocked(roomID, id)
	return nil
}

func (d *MemoryRoomDirectory) removeLocked(roomID domain.RoomID, id domain.ConnectionID) {
	if members, ok := d.rooms[roomID]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(d.rooms, roomID)
		}
	}
	if current, ok := d.byConn[id]; ok && current == roomID {
		delete(d.byConn, id)
	}
}

func (d *MemoryRoomDirectory) Members(ctx context.Context, roomID domain.RoomID) ([]domain.ConnectionID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := make([]domain.ConnectionID, 0, len(d.rooms[roomID]))
	for id := range d.rooms[roomID] {
		members = append(members, id)
	}
	return members, nil
}

func (d *MemoryRoomDirectory) CurrentRoom(ctx context.Context, id domain.ConnectionID) (domain.RoomID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.byConn[id], nil
}

func (d *MemoryRoomDirectory) Rooms(ctx context.Context) ([]domain.RoomID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rooms := make([]domain.RoomID, 0, len(d.rooms))
	for id := range d.rooms {
		rooms = append(rooms, id)
	}
	return rooms, nil
}
