package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/edinai/classhub/internal/hub"
)

// echoChannel accepts a fixed token and echoes every dispatched event
// back to the sending connection.
type echoChannel struct {
	token string

	mu         sync.Mutex
	conns      map[string]hub.Conn
	dispatches []string
}

func newEchoChannel(token string) *echoChannel {
	return &echoChannel{token: token, conns: make(map[string]hub.Conn)}
}

func (e *echoChannel) Connect(_ context.Context, conn hub.Conn, token string) error {
	if token != e.token {
		return hub.ErrUnauthorized
	}
	e.mu.Lock()
	e.conns[conn.ID()] = conn
	e.mu.Unlock()
	return nil
}

func (e *echoChannel) Disconnect(connID string) {
	e.mu.Lock()
	delete(e.conns, connID)
	e.mu.Unlock()
}

func (e *echoChannel) Dispatch(_ context.Context, connID, event string, data json.RawMessage) {
	e.mu.Lock()
	e.dispatches = append(e.dispatches, event)
	conn := e.conns[connID]
	e.mu.Unlock()
	if conn != nil {
		conn.Emit("echo:"+event, json.RawMessage(data))
	}
}

func newTestServer(t *testing.T, channel Channel) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(channel, channel, zap.NewNop())
	router.GET("/ws/portal", handler.PortalSocket)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/portal"
}

func TestServeWithQueryToken(t *testing.T) {
	channel := newEchoChannel("good-token")
	_, wsURL := newTestServer(t, channel)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good-token", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame, _ := json.Marshal(envelope{Event: "ping", Data: json.RawMessage(`{"n":1}`)})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg envelope
	if err := json.Unmarshal(reply, &msg); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if msg.Event != "echo:ping" {
		t.Errorf("reply event = %q, want echo:ping", msg.Event)
	}
}

func TestServeWithAuthFrame(t *testing.T) {
	channel := newEchoChannel("good-token")
	_, wsURL := newTestServer(t, channel)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	auth, _ := json.Marshal(envelope{Event: "auth", Data: json.RawMessage(`{"token":"good-token"}`)})
	if err := conn.WriteMessage(websocket.TextMessage, auth); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	frame, _ := json.Marshal(envelope{Event: "ping"})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg envelope
	if err := json.Unmarshal(reply, &msg); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if msg.Event != "echo:ping" {
		t.Errorf("reply event = %q, want echo:ping", msg.Event)
	}
}

func TestServeRefusesBadToken(t *testing.T) {
	channel := newEchoChannel("good-token")
	_, wsURL := newTestServer(t, channel)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=bad-token", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Refusal is transport-level: the server closes without emitting
	// any event.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("expected the connection to be closed")
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.ClosePolicyViolation {
		t.Errorf("close code = %d, want policy violation", closeErr.Code)
	}
}

func TestServeDropsUnparseableFrames(t *testing.T) {
	channel := newEchoChannel("good-token")
	_, wsURL := newTestServer(t, channel)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good-token", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame, _ := json.Marshal(envelope{Event: "ping"})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg envelope
	if err := json.Unmarshal(reply, &msg); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if msg.Event != "echo:ping" {
		t.Errorf("reply event = %q, want echo:ping (bad frame should be skipped)", msg.Event)
	}

	channel.mu.Lock()
	defer channel.mu.Unlock()
	if len(channel.dispatches) != 1 {
		t.Errorf("dispatched %d events, want 1", len(channel.dispatches))
	}
}
