package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"
	"peercall/pkg/validation"

	"go.uber.org/zap"
)

// sessionCoordinator binds inbound connection events to the registry, the
// room directory and the screen-share store. Per-identity events arrive
// serialized from one transport link, so each handler can apply its mutation
// sequence (store update, directory update, broadcast) without a global lock;
// the stores guard cross-identity access themselves.
type sessionCoordinator struct {
	registry  ports.ConnectionRegistry
	directory ports.RoomDirectory
	shares    ports.ScreenShareStore
	chat      ports.ChatLog
	relay     ports.Relay
	logger    *zap.SugaredLogger
}

func NewSessionCoordinator(
	registry ports.ConnectionRegistry,
	directory ports.RoomDirectory,
	shares ports.ScreenShareStore,
	chat ports.ChatLog,
	relay ports.Relay,
	logger *zap.SugaredLogger,
) ports.SessionCoordinator {
	return &sessionCoordinator{
		registry:  registry,
		directory: directory,
		shares:    shares,
		chat:      chat,
		relay:     relay,
		logger:    logger,
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (c *sessionCoordinator) Connect(ctx context.Context, conn *domain.Connection, stopLiveness func()) error {
	if err := c.registry.Register(ctx, conn, stopLiveness); err != nil {
		if errors.Is(err, domain.ErrDuplicateConnection) {
			// Transports issue unique ids; a duplicate means a bug upstream.
			// Reject the connection rather than silently replacing state.
			c.logger.Errorw("duplicate connection identity, rejecting",
				"connection_id", conn.ID,
				"remote_addr", conn.RemoteAddr,
			)
		}
		return err
	}

	c.logger.Infow("connection registered",
		"connection_id", conn.ID,
		"display_name", conn.DisplayName,
		"remote_addr", conn.RemoteAddr,
	)
	return nil
}

// JoinRoom is silent: no broadcast, peers learn about the newcomer from its
// first signaling or media-state event.
func (c *sessionCoordinator) JoinRoom(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID) error {
	if err := validation.ValidateRoomID(string(roomID)); err != nil {
		return err
	}
	if _, err := c.registry.Lookup(ctx, id); err != nil {
		return err
	}

	if err := c.directory.Join(ctx, roomID, id); err != nil {
		return err
	}
	if err := c.registry.AssignRoom(ctx, id, roomID); err != nil {
		return err
	}

	c.logger.Infow("connection joined room", "connection_id", id, "room_id", roomID)
	return nil
}

func (c *sessionCoordinator) StartShare(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, constraints domain.CaptureConstraints) (*domain.ScreenShareEvent, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required to start a screen share")
	}
	if _, err := c.registry.Lookup(ctx, id); err != nil {
		return nil, err
	}

	ev, err := c.shares.Start(ctx, id, roomID, constraints)
	if err != nil {
		return nil, err
	}

	state, err := c.shares.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.relay.Broadcast(ctx, roomID, id, map[string]interface{}{
		"type":      "screenshare:peer-started",
		"user_id":   id,
		"state":     state,
		"timestamp": nowMillis(),
	})

	c.logger.Infow("screen share started",
		"connection_id", id,
		"room_id", roomID,
		"quality", state.Quality,
	)
	return ev, nil
}

// ReportCaptureFailure records an external capture failure. The error detail
// goes back to the origin only; peers never hear about a share that was not
// committed.
func (c *sessionCoordinator) ReportCaptureFailure(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, detail domain.CaptureError) (*domain.ScreenShareEvent, error) {
	ev, err := c.shares.Fail(ctx, id, roomID, detail)
	if err != nil {
		return nil, err
	}

	c.logger.Infow("screen share capture failed",
		"connection_id", id,
		"room_id", roomID,
		"kind", detail.Kind,
	)
	return ev, nil
}

func (c *sessionCoordinator) StopShare(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID) (*domain.ScreenShareEvent, error) {
	if _, err := c.registry.Lookup(ctx, id); err != nil {
		return nil, err
	}

	ev, err := c.shares.Stop(ctx, id, roomID)
	if err != nil {
		return nil, err
	}

	// State may be absent when stop arrives without a prior start; the stop
	// is still acknowledged and broadcast with a nil snapshot.
	state, err := c.shares.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrShareNotFound) {
		return nil, err
	}

	c.relay.Broadcast(ctx, roomID, id, map[string]interface{}{
		"type":      "screenshare:peer-stopped",
		"user_id":   id,
		"state":     state,
		"timestamp": nowMillis(),
	})

	c.logger.Infow("screen share stopped", "connection_id", id, "room_id", roomID)
	return ev, nil
}

func (c *sessionCoordinator) ChangeQuality(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, quality domain.Quality) (*domain.ScreenShareEvent, error) {
	ev, err := c.shares.SetQuality(ctx, id, roomID, quality)
	if err != nil {
		return nil, err
	}

	c.relay.Broadcast(ctx, roomID, id, map[string]interface{}{
		"type":      "screenshare:peer-quality-changed",
		"user_id":   id,
		"quality":   quality,
		"timestamp": nowMillis(),
	})
	return ev, nil
}

// RoomShareStates is request/response only: the reply goes to the origin, not
// the room.
func (c *sessionCoordinator) RoomShareStates(ctx context.Context, roomID domain.RoomID) ([]ports.RoomShareEntry, error) {
	members, err := c.directory.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}

	entries := make([]ports.RoomShareEntry, 0, len(members))
	for _, member := range members {
		state, err := c.shares.Get(ctx, member)
		if err != nil {
			if errors.Is(err, domain.ErrShareNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, ports.RoomShareEntry{UserID: member, State: state})
	}
	return entries, nil
}

// ReconcileMediaState folds an aggregated flags payload into the share store:
// the sharing flag conditionally starts or stops a share so the committed
// state matches what the client reports. Under per-identity ordering the last
// applied event wins, whether it was explicit or aggregated.
func (c *sessionCoordinator) ReconcileMediaState(ctx context.Context, id domain.ConnectionID, state domain.MediaState) error {
	roomID, err := c.directory.CurrentRoom(ctx, id)
	if err != nil {
		return err
	}
	if roomID == "" {
		return domain.ErrRoomNotFound
	}

	current, err := c.shares.Get(ctx, id)
	sharing := err == nil && current.Sharing

	if state.IsScreenSharing && !sharing {
		if _, err := c.shares.Start(ctx, id, roomID, domain.CaptureConstraints{}); err != nil {
			return err
		}
	} else if !state.IsScreenSharing && sharing {
		if _, err := c.shares.Stop(ctx, id, roomID); err != nil {
			return err
		}
	}

	if err := c.shares.SetMediaFlags(ctx, id, state.MicOn, state.CamOn); err != nil {
		return err
	}

	c.relay.Broadcast(ctx, roomID, id, map[string]interface{}{
		"type":              "peer-media-state-change",
		"from":              id,
		"user_id":           id,
		"is_screen_sharing": state.IsScreenSharing,
		"mic_on":            state.MicOn,
		"cam_on":            state.CamOn,
		"timestamp":         nowMillis(),
	})
	return nil
}

// RelaySignal forwards an opaque signaling payload (SDP offer/answer or ICE
// candidate) to the other room members. The payload is an opaque blob to this
// layer; only the origin id is attached.
func (c *sessionCoordinator) RelaySignal(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, kind string, payload json.RawMessage) error {
	if roomID == "" {
		return fmt.Errorf("room id is required to relay signaling")
	}
	if _, err := c.registry.Lookup(ctx, id); err != nil {
		return err
	}

	c.relay.Broadcast(ctx, roomID, id, map[string]interface{}{
		"type":    kind,
		"from":    id,
		"payload": payload,
	})
	return nil
}

func (c *sessionCoordinator) SendChat(ctx context.Context, id domain.ConnectionID, roomID domain.RoomID, body string) error {
	if err := validation.ValidateChatBody(body); err != nil {
		return err
	}
	conn, err := c.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}

	msg := domain.ChatMessage{
		Kind:        domain.ChatUser,
		RoomID:      roomID,
		From:        id,
		DisplayName: conn.DisplayName,
		Body:        body,
		Timestamp:   time.Now(),
	}
	if err := c.chat.Append(ctx, msg); err != nil {
		return err
	}

	c.relay.Broadcast(ctx, roomID, id, map[string]interface{}{
		"type":    "chat:message",
		"message": msg,
	})
	return nil
}

// Disconnect is the universal cancellation signal. It runs to completion even
// when the origin transport is already dead: its observable effects are on
// the room directory and the remaining peers, not on the origin. Errors along
// the way are logged and never propagated.
func (c *sessionCoordinator) Disconnect(ctx context.Context, id domain.ConnectionID) error {
	conn, err := c.registry.Lookup(ctx, id)
	if err != nil {
		// Already cleaned up; disconnect may race with explicit leave.
		return nil
	}

	roomID, err := c.directory.CurrentRoom(ctx, id)
	if err != nil {
		c.logger.Warnw("failed to resolve room during disconnect", "connection_id", id, "error", err)
	}

	state, stateErr := c.shares.Get(ctx, id)
	wasSharing := stateErr == nil && state.Sharing

	if err := c.shares.Remove(ctx, id); err != nil {
		c.logger.Warnw("failed to purge share state during disconnect", "connection_id", id, "error", err)
	}

	if roomID != "" {
		if err := c.directory.Leave(ctx, roomID, id); err != nil {
			c.logger.Warnw("failed to leave room during disconnect", "connection_id", id, "error", err)
		}
	}

	if err := c.registry.Remove(ctx, id); err != nil {
		c.logger.Warnw("failed to remove registry entry during disconnect", "connection_id", id, "error", err)
	}

	// Broadcasts go out after every local mutation is committed.
	if roomID != "" {
		if wasSharing {
			c.relay.Broadcast(ctx, roomID, id, map[string]interface{}{
				"type":      "screenshare:peer-stopped",
				"user_id":   id,
				"reason":    "user-disconnected",
				"timestamp": nowMillis(),
			})
		}

		departure := domain.ChatMessage{
			Kind:      domain.ChatSystem,
			RoomID:    roomID,
			Body:      fmt.Sprintf("%s left the room", conn.DisplayName),
			Timestamp: time.Now(),
		}
		if err := c.chat.Append(ctx, departure); err != nil {
			c.logger.Warnw("failed to log departure notice", "connection_id", id, "error", err)
		}
		c.relay.Broadcast(ctx, roomID, id, map[string]interface{}{
			"type":         "room:peer-left",
			"user_id":      id,
			"display_name": conn.DisplayName,
			"timestamp":    nowMillis(),
		})

		if members, err := c.directory.Members(ctx, roomID); err == nil && len(members) == 0 {
			if err := c.chat.DropRoom(ctx, roomID); err != nil {
				c.logger.Warnw("failed to drop chat log for empty room", "room_id", roomID, "error", err)
			}
		}
	}

	c.logger.Infow("connection disconnected",
		"connection_id", id,
		"room_id", roomID,
		"was_sharing", wasSharing,
	)
	return nil
}
