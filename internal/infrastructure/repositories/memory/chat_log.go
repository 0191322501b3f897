package memory

import (
	"context"
	"sync"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"
)

type MemoryChatLog struct {
	logs map[domain.RoomID][]domain.ChatMessage
	mu   sync.RWMutex
}

func NewMemoryChatLog() ports.ChatLog {
	return &MemoryChatLog{
		logs: make(map[domain.RoomID][]domain.ChatMessage),
	}
}

func (l *MemoryChatLog) Append(ctx context.Context, msg domain.ChatMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := append(l.logs[msg.RoomID], msg)
	if len(log) > domain.ChatLogCapacity {
		log = log[len(log)-domain.ChatLogCapacity:]
	}
	l.logs[msg.RoomID] = log
	return nil
}

func (l *MemoryChatLog) Recent(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	log := l.logs[roomID]
	out := make([]domain.ChatMessage, len(log))
	copy(out, log)
	return out, nil
}

func (l *MemoryChatLog) DropRoom(ctx context.Context, roomID domain.RoomID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.logs, roomID)
	return nil
}
