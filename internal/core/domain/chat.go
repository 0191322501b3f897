package domain

import "time"

type ChatMessageKind string

const (
	ChatUser   ChatMessageKind = "user"
	ChatSystem ChatMessageKind = "system"
)

// ChatLogCapacity bounds the per-room in-memory chat log. There is no
// persistent chat history.
const ChatLogCapacity = 100

type ChatMessage struct {
	Kind        ChatMessageKind `json:"kind"`
	RoomID      RoomID          `json:"room_id"`
	From        ConnectionID    `json:"from,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Body        string          `json:"body"`
	Timestamp   time.Time       `json:"timestamp"`
}
