package ports

import (
	"context"
	"encoding/json"

	"peercall/internal/core/domain"
)

// PeerSender delivers a message to a single connected peer. Implemented by
// the websocket transport; a closed or slow peer returns an error which the
// relay swallows and logs.
type PeerSender interface {
	Send(id domain.ConnectionID, message interface{}) error
}

// Relay fans a message out to every member of a room except the origin,
// against a membership snapshot taken at call time. Delivery is
// fire-and-forget; Broadcast returns the number of peers delivered to.
type Relay interface {
	Broadcast(ctx context.Context, roomID domain.RoomID, origin domain.ConnectionID, message interface{}) int
}

// RelayMetrics receives fan-out delivery outcomes. Implementations must be
// safe for concurrent use; a nil RelayMetrics disables reporting.
type RelayMetrics interface {
	RelayDelivered(count int)
	RelayFailed(count int)
}

// RoomShareEntry pairs a member with its share state for room-state queries.
// It marshals as a [userId, state] tuple.
type RoomShareEntry struct {
	UserID domain.ConnectionID
	State  *domain.ScreenShareState
}

func (e RoomShareEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.UserID, e.State})
}

// SessionCoordinator binds inbound connection events to the registry, the
// room directory and the screen-share store, and triggers the resulting
// broadcasts. Every mutation sequence (store update, directory update,
// broadcast) is applied before the origin acknowledgment is produced;
// broadcasts reflect committed state, never intent.
type SessionCoordinator interface {
	Connect(ctx context.Context, conn *domain.Connection, stopLiveness func()) error
	JoinRoom(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID) error
	StartShare(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, constraints domain.CaptureConstraints) (*domain.ScreenShareEvent, error)
	ReportCaptureFailure(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, detail domain.CaptureError) (*domain.ScreenShareEvent, error)
	StopShare(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID) (*domain.ScreenShareEvent, error)
	ChangeQuality(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, quality domain.Quality) (*domain.ScreenShareEvent, error)
	RoomShareStates(ctx context.Context, roomID domain.RoomID) ([]RoomShareEntry, error)
	ReconcileMediaState(ctx context.Context, id domain.ConnectionID, state domain.MediaState) error
	RelaySignal(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, kind string, payload json.RawMessage) error
	SendChat(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, body string) error
	Disconnect(ctx context.Context, id domain.ConnectionID) error
}
