package domain

import "time"

type ConnectionID string
type RoomID string

// Connection is one live transport session. The registry owns the entry; the
// liveness stop handle is cancelled by the registry before the entry is removed.
type Connection struct {
	ID          ConnectionID
	DisplayName string
	RemoteAddr  string
	UserAgent   string // best-effort, may be empty
	RoomID      RoomID // empty until the connection joins a room
	ConnectedAt time.Time
}

// MediaState is the aggregated flags payload a client reports when any of its
// local tracks change.
type MediaState struct {
	IsScreenSharing bool `json:"is_screen_sharing"`
	MicOn           bool `json:"mic_on"`
	CamOn           bool `json:"cam_on"`
}
