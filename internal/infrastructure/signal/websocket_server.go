package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"
	"peercall/internal/core/services"
	"peercall/internal/infrastructure/monitoring"
	"peercall/pkg/validation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Message is the wire envelope for every inbound client event. Payload stays
// raw until the matching handler parses it; for offer/answer/ice-candidate it
// is never parsed at all.
type Message struct {
	Type    string          `json:"type"`
	RoomID  domain.RoomID   `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type handlerFunc func(ctx context.Context, id domain.ConnectionID, msg Message) error

// peerConn serializes writes: gorilla connections allow one concurrent
// writer, and broadcasts arrive from other connections' handler goroutines.
type peerConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peerConn) writeJSON(v interface{}, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(timeout))
	return p.conn.WriteJSON(v)
}

type Config struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MessagesPerSecond float64 // 0 disables the per-connection limiter
	Burst             int
}

type WebSocketServer struct {
	coordinator ports.SessionCoordinator
	auth        services.AuthService // nil when auth is disabled
	metrics     *monitoring.PrometheusCollector

	connections map[domain.ConnectionID]*peerConn
	mu          sync.RWMutex

	handlers map[string]handlerFunc
	cfg      Config

	logger *zap.SugaredLogger
}

func NewWebSocketServer(coordinator ports.SessionCoordinator, auth services.AuthService, metrics *monitoring.PrometheusCollector, cfg Config, logger *zap.SugaredLogger) *WebSocketServer {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	s := &WebSocketServer{
		coordinator: coordinator,
		auth:        auth,
		metrics:     metrics,
		connections: make(map[domain.ConnectionID]*peerConn),
		cfg:         cfg,
		logger:      logger,
	}

	// Explicit dispatch table: event kind to handler. Each handler receives
	// the origin identity and the raw message and owns the full
	// mutate-then-broadcast sequence for that event.
	s.handlers = map[string]handlerFunc{
		"room:join":                  s.handleJoinRoom,
		"screenshare:start":          s.handleShareStart,
		"screenshare:stop":           s.handleShareStop,
		"screenshare:quality-change": s.handleQualityChange,
		"screenshare:get-room-state": s.handleGetRoomState,
		"screenshare:offer":          s.handleSignalRelay,
		"screenshare:answer":         s.handleSignalRelay,
		"screenshare:ice-candidate":  s.handleSignalRelay,
		"media-state-change":         s.handleMediaStateChange,
		"chat:message":               s.handleChatMessage,
	}
	return s
}

// SetCoordinator breaks the construction cycle: the coordinator's relay needs
// this server as its sender, so the server is built first and bound here.
func (s *WebSocketServer) SetCoordinator(coordinator ports.SessionCoordinator) {
	s.coordinator = coordinator
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID := domain.ConnectionID(r.URL.Query().Get("connection_id"))
	displayName := r.URL.Query().Get("display_name")

	if s.auth != nil {
		claims, err := s.auth.ValidateToken(r.URL.Query().Get("token"))
		if err != nil {
			s.logger.Warnw("rejecting websocket connection, invalid token", "error", err)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
				time.Now().Add(s.cfg.WriteTimeout))
			return
		}
		connID = claims.UserID
		displayName = claims.DisplayName
	}

	if connID == "" {
		connID = domain.ConnectionID(uuid.NewString())
	}
	if err := validation.ValidateConnectionID(string(connID)); err != nil {
		s.logger.Warnw("rejecting websocket connection", "error", err)
		return
	}
	if displayName == "" {
		short := string(connID)
		if len(short) > 8 {
			short = short[:8]
		}
		displayName = "guest-" + short
	}

	// The ping ticker is the liveness timer; its stop handle is owned by the
	// registry entry and cancelled on remove.
	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	err = s.coordinator.Connect(context.Background(), &domain.Connection{
		ID:          connID,
		DisplayName: displayName,
		RemoteAddr:  r.RemoteAddr,
		UserAgent:   r.Header.Get("User-Agent"),
		ConnectedAt: time.Now(),
	}, pingTicker.Stop)
	if err != nil {
		s.sendErrorTo(conn, "error", err)
		return
	}

	pc := &peerConn{conn: conn}
	s.mu.Lock()
	s.connections[connID] = pc
	s.mu.Unlock()

	s.logger.Infow("peer connected via WebSocket", "connection_id", connID, "display_name", displayName)

	conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst)
	}

	messageChan := make(chan Message, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
			messageChan <- msg
		}
	}()

	// Events for this connection are processed here in arrival order; the
	// per-identity ordering guarantee comes from this single loop.
	for {
		select {
		case msg := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.sendToConn(pc, map[string]interface{}{
					"type":    "error",
					"message": "rate limit exceeded",
				})
				continue
			}
			s.handleMessage(context.Background(), connID, pc, msg)

		case <-pingTicker.C:
			pc.mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			pc.mu.Unlock()
			if err != nil {
				s.logger.Infow("error sending ping", "connection_id", connID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message from peer", "connection_id", connID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.mu.Lock()
	delete(s.connections, connID)
	s.mu.Unlock()

	// Disconnect runs to completion even though this transport is dead; its
	// effects are on the directory and the remaining peers.
	if err := s.coordinator.Disconnect(context.Background(), connID); err != nil {
		s.logger.Warnw("error during disconnect cleanup", "connection_id", connID, "error", err)
	}

	s.logger.Infow("peer disconnected", "connection_id", connID)
}

func (s *WebSocketServer) handleMessage(ctx context.Context, id domain.ConnectionID, pc *peerConn, msg Message) {
	if msg.Type == "" {
		s.sendToConn(pc, map[string]interface{}{"type": "error", "message": "message type is required"})
		return
	}

	handler, ok := s.handlers[msg.Type]
	if !ok {
		s.sendToConn(pc, map[string]interface{}{"type": "error", "message": fmt.Sprintf("unknown message type: %s", msg.Type)})
		return
	}

	if s.metrics != nil {
		s.metrics.RecordSignalMessage(msg.Type)
	}

	start := time.Now()
	err := handler(ctx, id, msg)
	if s.metrics != nil {
		s.metrics.RecordEventHandled(msg.Type, time.Since(start))
	}

	// Local and state errors stop at this boundary: the origin gets a
	// structured error event, peers see nothing, the process keeps running.
	if err != nil {
		s.logger.Infow("error handling message from peer",
			"connection_id", id,
			"type", msg.Type,
			"error", err,
		)
		s.sendError(id, msg.Type, err)
	}
}

func (s *WebSocketServer) handleJoinRoom(ctx context.Context, id domain.ConnectionID, msg Message) error {
	if err := s.coordinator.JoinRoom(ctx, id, msg.RoomID); err != nil {
		return err
	}
	return s.Send(id, map[string]interface{}{
		"type":    "room:join-success",
		"room_id": msg.RoomID,
	})
}

func (s *WebSocketServer) handleShareStart(ctx context.Context, id domain.ConnectionID, msg Message) error {
	var payload struct {
		Constraints *domain.CaptureConstraints `json:"constraints"`
		Error       *domain.CaptureError       `json:"error"`
	}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			// Local exception path: record the failure, report to origin only.
			ev, ferr := s.coordinator.ReportCaptureFailure(ctx, id, msg.RoomID, domain.CaptureError{
				Kind:    domain.CaptureUnknown,
				Message: fmt.Sprintf("malformed start payload: %v", err),
			})
			if ferr != nil {
				return ferr
			}
			return s.Send(id, map[string]interface{}{
				"type":  "screenshare:error",
				"error": ev.Payload["error"],
			})
		}
	}

	// A client that failed its local capture request reports the typed
	// failure instead of constraints.
	if payload.Error != nil {
		ev, err := s.coordinator.ReportCaptureFailure(ctx, id, msg.RoomID, *payload.Error)
		if err != nil {
			return err
		}
		return s.Send(id, map[string]interface{}{
			"type":  "screenshare:error",
			"error": ev.Payload["error"],
		})
	}

	constraints := domain.CaptureConstraints{}
	if payload.Constraints != nil {
		constraints = *payload.Constraints
	}

	ev, err := s.coordinator.StartShare(ctx, id, msg.RoomID, constraints)
	if err != nil {
		return err
	}
	return s.Send(id, map[string]interface{}{
		"type":  "screenshare:start-success",
		"event": ev,
	})
}

func (s *WebSocketServer) handleShareStop(ctx context.Context, id domain.ConnectionID, msg Message) error {
	ev, err := s.coordinator.StopShare(ctx, id, msg.RoomID)
	if err != nil {
		return err
	}
	return s.Send(id, map[string]interface{}{
		"type":  "screenshare:stop-success",
		"event": ev,
	})
}

func (s *WebSocketServer) handleQualityChange(ctx context.Context, id domain.ConnectionID, msg Message) error {
	var payload struct {
		Quality domain.Quality `json:"quality"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid quality-change payload: %w", err)
	}

	switch payload.Quality {
	case domain.QualityLow, domain.QualityMedium, domain.QualityHigh, domain.QualityUltra:
	default:
		return fmt.Errorf("unknown quality tier: %s", payload.Quality)
	}

	_, err := s.coordinator.ChangeQuality(ctx, id, msg.RoomID, payload.Quality)
	return err
}

func (s *WebSocketServer) handleGetRoomState(ctx context.Context, id domain.ConnectionID, msg Message) error {
	entries, err := s.coordinator.RoomShareStates(ctx, msg.RoomID)
	if err != nil {
		return s.Send(id, map[string]interface{}{
			"type":    "screenshare:room-state",
			"success": false,
			"error":   err.Error(),
		})
	}
	return s.Send(id, map[string]interface{}{
		"type":    "screenshare:room-state",
		"success": true,
		"data":    entries,
	})
}

func (s *WebSocketServer) handleSignalRelay(ctx context.Context, id domain.ConnectionID, msg Message) error {
	return s.coordinator.RelaySignal(ctx, id, msg.RoomID, msg.Type, msg.Payload)
}

func (s *WebSocketServer) handleMediaStateChange(ctx context.Context, id domain.ConnectionID, msg Message) error {
	var payload domain.MediaState
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid media-state-change payload: %w", err)
	}
	return s.coordinator.ReconcileMediaState(ctx, id, payload)
}

func (s *WebSocketServer) handleChatMessage(ctx context.Context, id domain.ConnectionID, msg Message) error {
	var payload struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid chat payload: %w", err)
	}
	if msg.RoomID == "" {
		return fmt.Errorf("room id is required for chat messages")
	}
	return s.coordinator.SendChat(ctx, id, msg.RoomID, payload.Body)
}

// Send implements ports.PeerSender. Unknown peers and write failures surface
// as errors; the relay decides whether they matter.
func (s *WebSocketServer) Send(id domain.ConnectionID, message interface{}) error {
	s.mu.RLock()
	pc, exists := s.connections[id]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("peer %s not connected", id)
	}
	return pc.writeJSON(message, s.cfg.WriteTimeout)
}

func (s *WebSocketServer) sendToConn(pc *peerConn, v interface{}) {
	if err := pc.writeJSON(v, s.cfg.WriteTimeout); err != nil {
		s.logger.Debugw("failed to write to websocket", "error", err)
	}
}

// errorKind maps an error to the machine-checkable kind the client sees.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrConnectionNotFound),
		errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrShareNotFound):
		return "not-found"
	case errors.Is(err, domain.ErrDuplicateConnection):
		return "duplicate-identity"
	default:
		return "invalid-input"
	}
}

func (s *WebSocketServer) sendError(id domain.ConnectionID, msgType string, err error) {
	var envelope map[string]interface{}
	if strings.HasPrefix(msgType, "screenshare:") {
		envelope = map[string]interface{}{
			"type": "screenshare:error",
			"error": map[string]interface{}{
				"kind":    errorKind(err),
				"message": err.Error(),
			},
		}
	} else {
		envelope = map[string]interface{}{
			"type":    "error",
			"message": err.Error(),
		}
	}
	if serr := s.Send(id, envelope); serr != nil {
		s.logger.Debugw("failed to deliver error to origin", "connection_id", id, "error", serr)
	}
}

func (s *WebSocketServer) sendErrorTo(conn *websocket.Conn, msgType string, err error) {
	conn.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"message": err.Error(),
	})
}

func (s *WebSocketServer) ConnectedPeers() []domain.ConnectionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]domain.ConnectionID, 0, len(s.connections))
	for id := range s.connections {
		peers = append(peers, id)
	}
	return peers
}

func (s *WebSocketServer) IsPeerConnected(id domain.ConnectionID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.connections[id]
	return exists
}
