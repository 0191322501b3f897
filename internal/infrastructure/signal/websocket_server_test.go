package signal

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"peercall/internal/core/services"
	"peercall/internal/infrastructure/repositories/memory"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, auth services.AuthService) *httptest.Server {
	t.Helper()
	logger := zap.NewNop().Sugar()

	registry := memory.NewMemoryConnectionRegistry()
	directory := memory.NewMemoryRoomDirectory()
	shares := memory.NewMemoryScreenShareStore()
	chat := memory.NewMemoryChatLog()

	wsServer := NewWebSocketServer(nil, auth, nil, Config{}, logger)
	relay := services.NewSignalingRelay(directory, wsServer, nil, logger)
	coordinator := services.NewSessionCoordinator(registry, directory, shares, chat, relay, logger)
	wsServer.SetCoordinator(coordinator)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWebSocket)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dialPeer(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var m map[string]interface{}
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

// readType skips unrelated traffic until a message of the wanted type arrives.
func readType(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		m := readEnvelope(t, conn)
		if m["type"] == want {
			return m
		}
	}
	t.Fatalf("did not receive message of type %s", want)
	return nil
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    "room:join",
		"room_id": roomID,
	}))
	readType(t, conn, "room:join-success")
}

func TestWebSocketShareLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	u1 := dialPeer(t, ts, "connection_id=u1&display_name=alice")
	u2 := dialPeer(t, ts, "connection_id=u2&display_name=bob")

	joinRoom(t, u1, "r1")
	joinRoom(t, u2, "r1")

	require.NoError(t, u1.WriteJSON(map[string]interface{}{
		"type":    "screenshare:start",
		"room_id": "r1",
		"payload": map[string]interface{}{
			"constraints": map[string]interface{}{
				"width":           1920,
				"height":          1080,
				"display_surface": "monitor",
			},
		},
	}))

	reply := readType(t, u1, "screenshare:start-success")
	event := reply["event"].(map[string]interface{})
	assert.Equal(t, "start", event["kind"])

	notice := readType(t, u2, "screenshare:peer-started")
	assert.Equal(t, "u1", notice["user_id"])
	state := notice["state"].(map[string]interface{})
	assert.Equal(t, true, state["sharing"])
	assert.Equal(t, "medium", state["quality"])

	// Quality change reaches the peer, not the origin.
	require.NoError(t, u1.WriteJSON(map[string]interface{}{
		"type":    "screenshare:quality-change",
		"room_id": "r1",
		"payload": map[string]interface{}{"quality": "high"},
	}))
	changed := readType(t, u2, "screenshare:peer-quality-changed")
	assert.Equal(t, "high", changed["quality"])

	// Room state query is request/response on the asking connection.
	require.NoError(t, u2.WriteJSON(map[string]interface{}{
		"type":    "screenshare:get-room-state",
		"room_id": "r1",
	}))
	roomState := readType(t, u2, "screenshare:room-state")
	assert.Equal(t, true, roomState["success"])
	data := roomState["data"].([]interface{})
	require.Len(t, data, 1)
	entry := data[0].([]interface{})
	assert.Equal(t, "u1", entry[0])

	require.NoError(t, u1.WriteJSON(map[string]interface{}{
		"type":    "screenshare:stop",
		"room_id": "r1",
	}))
	readType(t, u1, "screenshare:stop-success")
	stopped := readType(t, u2, "screenshare:peer-stopped")
	assert.Equal(t, "u1", stopped["user_id"])
}

func TestWebSocketDisconnectNotifiesPeers(t *testing.T) {
	ts := newTestServer(t, nil)

	u1 := dialPeer(t, ts, "connection_id=u1&display_name=alice")
	u2 := dialPeer(t, ts, "connection_id=u2&display_name=bob")

	joinRoom(t, u1, "r1")
	joinRoom(t, u2, "r1")

	require.NoError(t, u1.WriteJSON(map[string]interface{}{
		"type":    "screenshare:start",
		"room_id": "r1",
		"payload": map[string]interface{}{
			"constraints": map[string]interface{}{"width": 1920, "height": 1080},
		},
	}))
	readType(t, u1, "screenshare:start-success")
	readType(t, u2, "screenshare:peer-started")

	// A vanished peer ends its share and leaves the room in one sweep.
	u1.Close()

	stopped := readType(t, u2, "screenshare:peer-stopped")
	assert.Equal(t, "u1", stopped["user_id"])
	assert.Equal(t, "user-disconnected", stopped["reason"])

	left := readType(t, u2, "room:peer-left")
	assert.Equal(t, "alice", left["display_name"])
}

func TestWebSocketCaptureFailureStaysLocal(t *testing.T) {
	ts := newTestServer(t, nil)

	u1 := dialPeer(t, ts, "connection_id=u1&display_name=alice")
	u2 := dialPeer(t, ts, "connection_id=u2&display_name=bob")

	joinRoom(t, u1, "r1")
	joinRoom(t, u2, "r1")

	require.NoError(t, u1.WriteJSON(map[string]interface{}{
		"type":    "screenshare:start",
		"room_id": "r1",
		"payload": map[string]interface{}{
			"error": map[string]interface{}{
				"kind":    "permission-denied",
				"message": "user dismissed the picker",
			},
		},
	}))

	reply := readType(t, u1, "screenshare:error")
	detail := reply["error"].(map[string]interface{})
	assert.Equal(t, "permission-denied", detail["kind"])

	// u2 must see nothing from the failed attempt; a subsequent real start
	// must be the next share event it observes.
	require.NoError(t, u1.WriteJSON(map[string]interface{}{
		"type":    "screenshare:start",
		"room_id": "r1",
		"payload": map[string]interface{}{
			"constraints": map[string]interface{}{"width": 1280, "height": 720},
		},
	}))
	readType(t, u1, "screenshare:start-success")

	notice := readEnvelope(t, u2)
	assert.Equal(t, "screenshare:peer-started", notice["type"])
}

func TestWebSocketChatRelay(t *testing.T) {
	ts := newTestServer(t, nil)

	u1 := dialPeer(t, ts, "connection_id=u1&display_name=alice")
	u2 := dialPeer(t, ts, "connection_id=u2&display_name=bob")

	joinRoom(t, u1, "r1")
	joinRoom(t, u2, "r1")

	require.NoError(t, u1.WriteJSON(map[string]interface{}{
		"type":    "chat:message",
		"room_id": "r1",
		"payload": map[string]interface{}{"body": "hello room"},
	}))

	msg := readType(t, u2, "chat:message")
	body := msg["message"].(map[string]interface{})
	assert.Equal(t, "hello room", body["body"])
	assert.Equal(t, "alice", body["display_name"])
}

func TestWebSocketUnknownMessageType(t *testing.T) {
	ts := newTestServer(t, nil)

	u1 := dialPeer(t, ts, "connection_id=u1&display_name=alice")
	require.NoError(t, u1.WriteJSON(map[string]interface{}{"type": "bogus"}))

	reply := readType(t, u1, "error")
	assert.Contains(t, reply["message"], "unknown message type")
}

func TestWebSocketShareErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	u1 := dialPeer(t, ts, "connection_id=u1&display_name=alice")
	joinRoom(t, u1, "r1")

	// Quality change without an active share surfaces a typed error to the
	// origin only.
	require.NoError(t, u1.WriteJSON(map[string]interface{}{
		"type":    "screenshare:quality-change",
		"room_id": "r1",
		"payload": map[string]interface{}{"quality": "high"},
	}))

	reply := readType(t, u1, "screenshare:error")
	detail := reply["error"].(map[string]interface{})
	assert.Equal(t, "not-found", detail["kind"])
}

func TestWebSocketAuthRequired(t *testing.T) {
	auth := services.NewAuthService("test-secret", time.Hour)
	ts := newTestServer(t, auth)

	// Without a token the server closes the socket with a policy violation.
	conn := dialPeer(t, ts, "connection_id=u1")
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var m map[string]interface{}
	err := conn.ReadJSON(&m)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))

	// A valid token carries identity; query identity hints are ignored.
	token, err := auth.GenerateToken("u9", "carol", "r1")
	require.NoError(t, err)
	authed := dialPeer(t, ts, fmt.Sprintf("connection_id=ignored&token=%s", token))
	joinRoom(t, authed, "r1")
}
