package domain

import "errors"

var (
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrRoomNotFound        = errors.New("room not found")
	ErrShareNotFound       = errors.New("no active screen share")
)
