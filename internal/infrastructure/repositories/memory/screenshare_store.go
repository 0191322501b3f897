package memory

import (
	"context"
	"sync"
	"time"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"

	"github.com/google/uuid"
)

type MemoryScreenShareStore struct {
	states  map[domain.ConnectionID]*domain.ScreenShareState
	history map[domain.ConnectionID][]domain.ScreenShareEvent
	mu      sync.RWMutex
}

func NewMemoryScreenShareStore() ports.ScreenShareStore {
	return &MemoryScreenShareStore{
		states:  make(map[domain.ConnectionID]*domain.ScreenShareState),
		history: make(map[domain.ConnectionID][]domain.ScreenShareEvent),
	}
}

func newShareEvent(kind domain.ShareEventKind, id domain.ConnectionID, roomID domain.RoomID, payload map[string]interface{}) domain.ScreenShareEvent {
	return domain.ScreenShareEvent{
		ID:           uuid.NewString(),
		Kind:         kind,
		ConnectionID: id,
		RoomID:       roomID,
		Payload:      payload,
		Timestamp:    time.Now(),
	}
}

// appendLocked keeps the per-connection log a FIFO ring of HistoryCapacity.
func (s *MemoryScreenShareStore) appendLocked(id domain.ConnectionID, ev domain.ScreenShareEvent) {
	log := append(s.history[id], ev)
	if len(log) > domain.HistoryCapacity {
		log = log[len(log)-domain.HistoryCapacity:]
	}
	s.history[id] = log
}

// Start is a pure state transition; the capture request itself happens on the
// client and its failures arrive via Fail. A second start replaces the prior
// state, it never stacks.
func (s *MemoryScreenShareStore) Start(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, constraints domain.CaptureConstraints) (*domain.ScreenShareEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quality := domain.QualityFor(constraints.Width, constraints.Height)

	micOn := true
	if prev, ok := s.states[id]; ok {
		micOn = prev.MicOn
	}

	s.states[id] = &domain.ScreenShareState{
		ConnectionID:   id,
		RoomID:         roomID,
		Sharing:        true,
		Quality:        quality,
		DisplaySurface: constraints.DisplaySurface,
		MicOn:          micOn,
		CamOn:          false,
		StartedAt:      time.Now(),
	}

	ev := newShareEvent(domain.ShareEventStart, id, roomID, map[string]interface{}{
		"constraints": constraints,
		"quality":     quality,
	})
	s.appendLocked(id, ev)
	return &ev, nil
}

// Stop clears the sharing flag and restores the camera companion flag. With
// no active state it still returns a stop event and leaves no record behind;
// stopping twice must not fail.
func (s *MemoryScreenShareStore) Stop(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID) (*domain.ScreenShareEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[id]; ok {
		state.Sharing = false
		state.CamOn = true
	}

	ev := newShareEvent(domain.ShareEventStop, id, roomID, nil)
	s.appendLocked(id, ev)
	return &ev, nil
}

// Fail deletes the state entirely. An error means the capture state is
// unknown, so "no active share" is the only safe local answer.
func (s *MemoryScreenShareStore) Fail(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, detail domain.CaptureError) (*domain.ScreenShareEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, id)

	ev := newShareEvent(domain.ShareEventError, id, roomID, map[string]interface{}{
		"error": detail,
	})
	s.appendLocked(id, ev)
	return &ev, nil
}

func (s *MemoryScreenShareStore) SetQuality(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, quality domain.Quality) (*domain.ScreenShareEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[id]
	if !ok || !state.Sharing {
		return nil, domain.ErrShareNotFound
	}

	state.Quality = quality
	ev := newShareEvent(domain.ShareEventQualityChange, id, roomID, map[string]interface{}{
		"quality": quality,
	})
	s.appendLocked(id, ev)
	return &ev, nil
}

func (s *MemoryScreenShareStore) SetMediaFlags(ctx context.Context, id domain.ConnectionID, micOn, camOn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[id]; ok {
		state.MicOn = micOn
		state.CamOn = camOn
	}
	return nil
}

func (s *MemoryScreenShareStore) Get(ctx context.Context, id domain.ConnectionID) (*domain.ScreenShareState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[id]
	if !ok {
		return nil, domain.ErrShareNotFound
	}

	c := *state
	return &c, nil
}

func (s *MemoryScreenShareStore) History(ctx context.Context, id domain.ConnectionID) ([]domain.ScreenShareEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.history[id]
	out := make([]domain.ScreenShareEvent, len(log))
	copy(out, log)
	return out, nil
}

func (s *MemoryScreenShareStore) Remove(ctx context.Context, id domain.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, id)
	delete(s.history, id)
	return nil
}

func (s *MemoryScreenShareStore) ActiveCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, state := range s.states {
		if state.Sharing {
			count++
		}
	}
	return count, nil
}
