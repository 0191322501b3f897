package ports

import (
	"context"

	"peercall/internal/core/domain"
)

// ConnectionRegistry tracks one entry per live transport session. The stop
// handle passed to Register cancels the connection's liveness timer and is
// invoked exactly once, by Remove.
type ConnectionRegistry interface {
	Register(ctx context.Context, conn *domain.Connection, stopLiveness func()) error
	AssignRoom(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID) error
	Lookup(ctx context.Context, id domain.ConnectionID) (*domain.Connection, error)
	// Remove cancels the liveness timer and deletes the entry. Removing an
	// unknown id is a no-op: disconnect cleanup may race with explicit leave.
	Remove(ctx context.Context, id domain.ConnectionID) error
	Count(ctx context.Context) (int, error)
}

// RoomDirectory maps room ids to member sets. Membership is exclusive:
// joining a room implicitly leaves the previous one.
type RoomDirectory interface {
	Join(ctx context.Context, roomID domain.RoomID, id domain.ConnectionID) error
	Leave(ctx context.Context, roomID domain.RoomID, id domain.ConnectionID) error
	// Members returns an empty slice for an unknown room; absence of a room
	// is a valid, frequent state, not an error.
	Members(ctx context.Context, roomID domain.RoomID) ([]domain.ConnectionID, error)
	// CurrentRoom returns "" when the connection has not joined a room.
	CurrentRoom(ctx context.Context, id domain.ConnectionID) (domain.RoomID, error)
	Rooms(ctx context.Context) ([]domain.RoomID, error)
}

// ScreenShareStore holds the per-connection sharing state machine and the
// bounded share event history.
type ScreenShareStore interface {
	Start(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, constraints domain.CaptureConstraints) (*domain.ScreenShareEvent, error)
	// Stop is idempotent: stopping with no active state still returns a stop
	// event and does not create an active-share record.
	Stop(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID) (*domain.ScreenShareEvent, error)
	// Fail deletes the active state entirely; after an error the capture
	// state is unknown, so the safest local state is "no active share".
	Fail(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, detail domain.CaptureError) (*domain.ScreenShareEvent, error)
	SetQuality(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, quality domain.Quality) (*domain.ScreenShareEvent, error)
	SetMediaFlags(ctx context.Context, id domain.ConnectionID, micOn, camOn bool) error
	Get(ctx context.Context, id domain.ConnectionID) (*domain.ScreenShareState, error)
	History(ctx context.Context, id domain.ConnectionID) ([]domain.ScreenShareEvent, error)
	// Remove purges state and history on disconnect; idempotent.
	Remove(ctx context.Context, id domain.ConnectionID) error
	ActiveCount(ctx context.Context) (int, error)
}

// ChatLog is the per-room bounded in-memory message log.
type ChatLog interface {
	Append(ctx context.Context, msg domain.ChatMessage) error
	Recent(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error)
	DropRoom(ctx context.Context, roomID domain.RoomID) error
}
