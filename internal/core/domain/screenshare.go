package domain

import "time"

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"
)

// CaptureConstraints is what the client requested from the display-capture API.
// DisplaySurface is free-text and best-effort ("monitor", "window", "browser").
type CaptureConstraints struct {
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	FrameRate      int    `json:"frame_rate,omitempty"`
	DisplaySurface string `json:"display_surface,omitempty"`
	WithAudio      bool   `json:"with_audio,omitempty"`
}

// QualityFor classifies requested capture resolution into a coarse tier.
// Thresholds are checked in descending order; a boundary value lands in the
// higher tier.
func QualityFor(width, height int) Quality {
	switch {
	case width >= 3840 && height >= 2160:
		return QualityUltra
	case width >= 2560 && height >= 1440:
		return QualityHigh
	case width >= 1920 && height >= 1080:
		return QualityMedium
	default:
		return QualityLow
	}
}

// ScreenShareState is the per-connection sharing status. Sharing is true only
// between a successful start and the next stop/error/disconnect; a second
// start replaces the prior state rather than stacking.
type ScreenShareState struct {
	ConnectionID   ConnectionID `json:"connection_id"`
	RoomID         RoomID       `json:"room_id"`
	Sharing        bool         `json:"sharing"`
	Quality        Quality      `json:"quality"`
	DisplaySurface string       `json:"display_surface,omitempty"`
	MicOn          bool         `json:"mic_on"`
	CamOn          bool         `json:"cam_on"`
	StartedAt      time.Time    `json:"started_at"`
}

type ShareEventKind string

const (
	ShareEventStart         ShareEventKind = "start"
	ShareEventStop          ShareEventKind = "stop"
	ShareEventError         ShareEventKind = "error"
	ShareEventQualityChange ShareEventKind = "quality-change"
)

// HistoryCapacity bounds the per-connection share event log. The log is a
// FIFO ring: the 51st append evicts the oldest entry.
const HistoryCapacity = 50

// ScreenShareEvent is an immutable history entry. Payload content depends on
// the kind: constraints for start, error detail for error, quality for
// quality-change.
type ScreenShareEvent struct {
	ID           string                 `json:"id"`
	Kind         ShareEventKind         `json:"kind"`
	ConnectionID ConnectionID           `json:"connection_id"`
	RoomID       RoomID                 `json:"room_id"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// CaptureErrorKind mirrors the failure taxonomy of the browser capture API.
type CaptureErrorKind string

const (
	CapturePermissionDenied CaptureErrorKind = "permission-denied"
	CaptureNotSupported     CaptureErrorKind = "not-supported"
	CaptureNotFound         CaptureErrorKind = "not-found"
	CaptureAborted          CaptureErrorKind = "aborted"
	CaptureUnknown          CaptureErrorKind = "unknown"
)

// CaptureError is an external capture failure reported by the origin client.
// It is surfaced back to the origin only, never broadcast.
type CaptureError struct {
	Kind    CaptureErrorKind `json:"kind"`
	Message string           `json:"message"`
}
