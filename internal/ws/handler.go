package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/edinai/classhub/internal/hub"
)

// Channel is what a hub dispatcher looks like to the transport. Both
// the portal and lecture hubs satisfy it.
type Channel interface {
	Connect(ctx context.Context, conn hub.Conn, token string) error
	Disconnect(connID string)
	Dispatch(ctx context.Context, connID, event string, data json.RawMessage)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for sockets is enforced by the token, not the origin.
		return true
	},
}

type Handler struct {
	portal  Channel
	lecture Channel
	logger  *zap.Logger
}

func NewHandler(portal, lecture Channel, logger *zap.Logger) *Handler {
	return &Handler{
		portal:  portal,
		lecture: lecture,
		logger:  logger,
	}
}

// PortalSocket handles GET /ws/portal.
func (h *Handler) PortalSocket(c *gin.Context) {
	h.serve(c, h.portal)
}

// LectureSocket handles GET /ws/lecture.
func (h *Handler) LectureSocket(c *gin.Context) {
	h.serve(c, h.lecture)
}

func (h *Handler) serve(c *gin.Context, channel Channel) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(conn, h.logger)
	go client.writePump()

	// Query string takes precedence; clients that cannot set query
	// params send an auth frame as their first message instead.
	token := c.Query("token")
	if token == "" {
		token = h.awaitAuthFrame(conn)
	}

	if err := channel.Connect(context.Background(), client, token); err != nil {
		// Transport-level refusal: close frame only, no event.
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
			time.Now().Add(writeWait))
		client.close()
		return
	}

	defer func() {
		channel.Disconnect(client.ID())
		client.close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Events from one connection dispatch in receipt order; each
	// connection has its own read loop, so connections never block
	// each other.
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed unexpectedly",
					zap.String("conn_id", client.ID()), zap.Error(err))
			}
			return
		}

		var msg envelope
		if err := json.Unmarshal(frame, &msg); err != nil || msg.Event == "" {
			h.logger.Debug("unparseable frame dropped",
				zap.String("conn_id", client.ID()))
			continue
		}
		channel.Dispatch(context.Background(), client.ID(), msg.Event, msg.Data)
	}
}

type authFrame struct {
	Token string `json:"token"`
}

// awaitAuthFrame reads one message expecting {"event":"auth","data":
// {"token":"..."}}. Anything else, or silence past the deadline,
// yields an empty token and the handshake is refused downstream.
func (h *Handler) awaitAuthFrame(conn *websocket.Conn) string {
	conn.SetReadDeadline(time.Now().Add(authWait))
	defer conn.SetReadDeadline(time.Time{})

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return ""
	}
	var msg envelope
	if err := json.Unmarshal(frame, &msg); err != nil || msg.Event != "auth" {
		return ""
	}
	var auth authFrame
	if err := json.Unmarshal(msg.Data, &auth); err != nil {
		return ""
	}
	return auth.Token
}
