package hub

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/edinai/classhub/internal/metrics"
	"github.com/edinai/classhub/internal/models"
)

// Portal channel wire events.
const (
	EventSignal          = "signal"
	EventTyping          = "typing"
	EventSendMessage     = "send_message"
	EventPresenceRequest = "presence:request"
	EventPresenceUpdate  = "presence:update"
	EventPresenceSnap    = "presence:snapshot"
	EventMessageNew      = "message:new"
)

// StudentSession is the immutable session attached to a portal
// connection at handshake. It is the only authorization input for
// events on that connection; payloads can never substitute for it.
type StudentSession struct {
	Identity string
	Context  models.RosterContext
}

// PortalAuthenticator resolves a portal token into an identity.
type PortalAuthenticator interface {
	ResolveIdentity(token string) (string, error)
}

// RosterService resolves roster context and validates peer scope.
// Classmate returns ErrForbidden (wrapped or not) when the peer is not
// in the caller's tenant+grade+section.
type RosterService interface {
	RosterContext(ctx context.Context, identity string) (models.RosterContext, error)
	Classmate(ctx context.Context, caller models.RosterContext, peerIdentity string) (models.RosterContext, error)
}

// ChatService persists a chat message before it is broadcast.
type ChatService interface {
	SaveMessage(ctx context.Context, tenantID int64, sender, recipient, body string, shareMetadata json.RawMessage) (*models.ChatMessage, error)
}

type signalPayload struct {
	PeerIdentity string          `json:"peer_identity"`
	SignalType   string          `json:"signal_type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

type signalBroadcast struct {
	SenderIdentity string          `json:"sender_identity"`
	SignalType     string          `json:"signal_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

type typingPayload struct {
	PeerIdentity string `json:"peer_identity"`
	Typing       bool   `json:"typing"`
}

type typingBroadcast struct {
	SenderIdentity string `json:"sender_identity"`
	Typing         bool   `json:"typing"`
}

type sendMessagePayload struct {
	PeerIdentity  string          `json:"peer_identity"`
	Message       string          `json:"message"`
	ShareMetadata json.RawMessage `json:"share_metadata,omitempty"`
}

type messageBroadcast struct {
	Message      *models.ChatMessage `json:"message"`
	Participants []string            `json:"participants"`
}

type presenceUpdate struct {
	Identity string `json:"identity"`
	Status   string `json:"status"`
}

type presenceSnapshot struct {
	Online []string `json:"online"`
}

// Portal is the event dispatcher for the default (chat) channel. It
// owns its own registry and presence tracker, so multiple instances
// can run side by side in tests without shared state.
type Portal struct {
	registry *Registry[StudentSession]
	presence *PresenceTracker
	auth     PortalAuthenticator
	roster   RosterService
	chat     ChatService
	logger   *zap.Logger
}

func NewPortal(auth PortalAuthenticator, roster RosterService, chat ChatService, logger *zap.Logger) *Portal {
	return &Portal{
		registry: NewRegistry[StudentSession](),
		presence: NewPresenceTracker(),
		auth:     auth,
		roster:   roster,
		chat:     chat,
		logger:   logger,
	}
}

// Connect performs the handshake for a new portal connection: resolve
// the token, attach the session, join the derived rooms and announce
// presence. On error the connection must be refused by the caller; no
// session or membership is left behind.
func (p *Portal) Connect(ctx context.Context, conn Conn, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	identity, err := p.auth.ResolveIdentity(token)
	if err != nil {
		p.logger.Warn("portal handshake failed", zap.Error(err))
		return ErrUnauthorized
	}
	identity = strings.ToLower(identity)

	rosterCtx, err := p.roster.RosterContext(ctx, identity)
	if err != nil {
		p.logger.Warn("roster context lookup failed",
			zap.String("identity", identity), zap.Error(err))
		return ErrUnauthorized
	}

	session := StudentSession{Identity: identity, Context: rosterCtx}
	p.registry.Register(conn, session)
	p.registry.Join(conn.ID(), PersonalRoom(rosterCtx.TenantID, identity))
	p.registry.Join(conn.ID(), ClassRoom(rosterCtx))

	if p.presence.Connect(identity, conn.ID()) {
		p.registry.Broadcast(ClassRoom(rosterCtx), EventPresenceUpdate,
			presenceUpdate{Identity: identity, Status: "online"})
	}

	metrics.Connections.WithLabelValues("portal").Inc()
	metrics.OnlineIdentities.Set(float64(len(p.presence.Online())))
	p.logger.Info("portal connection established",
		zap.String("identity", identity),
		zap.String("conn_id", conn.ID()),
	)
	return nil
}

// Disconnect tears down a connection's bookkeeping. Idempotent. In-
// flight work started by this connection's handlers runs to completion
// and its emissions simply land on a gone connection.
func (p *Portal) Disconnect(connID string) {
	session, ok := p.registry.Unregister(connID)
	if !ok {
		return
	}
	if p.presence.Disconnect(session.Identity, connID) {
		p.registry.Broadcast(ClassRoom(session.Context), EventPresenceUpdate,
			presenceUpdate{Identity: session.Identity, Status: "offline"})
	}
	metrics.Connections.WithLabelValues("portal").Dec()
	metrics.OnlineIdentities.Set(float64(len(p.presence.Online())))
	p.logger.Info("portal connection closed",
		zap.String("identity", session.Identity),
		zap.String("conn_id", connID),
	)
}

// Dispatch routes one inbound event. Unknown events and events from
// unauthenticated connections are dropped without feedback; a handler
// fault must never take down the process or touch other connections.
func (p *Portal) Dispatch(ctx context.Context, connID, event string, data json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("portal handler panic",
				zap.String("event", event),
				zap.Any("panic", rec),
			)
		}
	}()

	metrics.EventsTotal.WithLabelValues("portal", event).Inc()

	session, ok := p.registry.Lookup(connID)
	if !ok {
		p.drop(event, "no session", zap.String("conn_id", connID))
		return
	}

	switch event {
	case EventSignal:
		p.handleSignal(ctx, connID, session, data)
	case EventTyping:
		p.handleTyping(ctx, connID, session, data)
	case EventSendMessage:
		p.handleSendMessage(ctx, connID, session, data)
	case EventPresenceRequest:
		p.handlePresenceRequest(connID, session)
	default:
		p.drop(event, "unknown event")
	}
}

// ConnectionCount reports live connections for diagnostics.
func (p *Portal) ConnectionCount() int {
	return p.registry.Size()
}

func (p *Portal) handleSignal(ctx context.Context, connID string, session StudentSession, data json.RawMessage) {
	var payload signalPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		p.drop(EventSignal, "malformed payload", zap.Error(err))
		return
	}
	if payload.PeerIdentity == "" || payload.SignalType == "" {
		p.drop(EventSignal, "missing peer or signal type")
		return
	}

	peerCtx, err := p.roster.Classmate(ctx, session.Context, payload.PeerIdentity)
	if err != nil {
		// Silent on purpose: a denial must not reveal whether the peer
		// exists.
		p.drop(EventSignal, "peer out of scope", zap.String("sender", session.Identity))
		return
	}

	p.registry.Broadcast(PersonalRoom(peerCtx.TenantID, payload.PeerIdentity), EventSignal,
		signalBroadcast{
			SenderIdentity: session.Identity,
			SignalType:     payload.SignalType,
			Payload:        payload.Payload,
		},
		connID,
	)
}

func (p *Portal) handleTyping(ctx context.Context, connID string, session StudentSession, data json.RawMessage) {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		p.drop(EventTyping, "malformed payload", zap.Error(err))
		return
	}
	if payload.PeerIdentity == "" {
		p.drop(EventTyping, "missing peer")
		return
	}

	peerCtx, err := p.roster.Classmate(ctx, session.Context, payload.PeerIdentity)
	if err != nil {
		p.drop(EventTyping, "peer out of scope", zap.String("sender", session.Identity))
		return
	}

	p.registry.Broadcast(PersonalRoom(peerCtx.TenantID, payload.PeerIdentity), EventTyping,
		typingBroadcast{
			SenderIdentity: session.Identity,
			Typing:         payload.Typing,
		},
		connID,
	)
}

func (p *Portal) handleSendMessage(ctx context.Context, connID string, session StudentSession, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		p.drop(EventSendMessage, "malformed payload", zap.Error(err))
		return
	}
	body := strings.TrimSpace(payload.Message)
	if payload.PeerIdentity == "" || body == "" {
		p.drop(EventSendMessage, "missing peer or empty message")
		return
	}

	peerCtx, err := p.roster.Classmate(ctx, session.Context, payload.PeerIdentity)
	if err != nil {
		p.drop(EventSendMessage, "peer out of scope", zap.String("sender", session.Identity))
		return
	}
	peer := strings.ToLower(payload.PeerIdentity)

	// The durable record comes first. If persistence fails nothing is
	// broadcast: no partial delivery of unsaved messages.
	record, err := p.chat.SaveMessage(ctx, session.Context.TenantID, session.Identity, peer, body, payload.ShareMetadata)
	if err != nil {
		p.logger.Error("persist chat message failed",
			zap.String("sender", session.Identity),
			zap.Error(err),
		)
		return
	}
	metrics.MessagesPersisted.Inc()

	broadcast := messageBroadcast{
		Message:      record,
		Participants: []string{session.Identity, peer},
	}

	// Both personal rooms, no self-exclusion: the sender's other tabs
	// must see the sent message too.
	senderRoom := PersonalRoom(session.Context.TenantID, session.Identity)
	peerRoom := PersonalRoom(peerCtx.TenantID, peer)
	p.registry.Broadcast(senderRoom, EventMessageNew, broadcast)
	if peerRoom != senderRoom {
		p.registry.Broadcast(peerRoom, EventMessageNew, broadcast)
	}
}

func (p *Portal) handlePresenceRequest(connID string, session StudentSession) {
	p.registry.Emit(connID, EventPresenceSnap, presenceSnapshot{Online: p.presence.Online()})

	// Best-effort refresh of the requester's own status. The tracker
	// stays edge-triggered for connect/disconnect; this re-announce is
	// deliberate and carries no dedup guarantee.
	p.registry.Broadcast(ClassRoom(session.Context), EventPresenceUpdate,
		presenceUpdate{Identity: session.Identity, Status: "online"})
}

func (p *Portal) drop(event, reason string, fields ...zap.Field) {
	metrics.EventsDropped.WithLabelValues("portal", event).Inc()
	p.logger.Debug("portal event dropped",
		append([]zap.Field{zap.String("event", event), zap.String("reason", reason)}, fields...)...,
	)
}
