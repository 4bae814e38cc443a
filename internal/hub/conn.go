package hub

// Conn is one live socket attached to a channel. The hub only ever
// identifies a connection and emits events to it; transport concerns
// (pumps, deadlines, close handshakes) stay in the ws package.
//
// Emit must be safe to call after the peer has gone away: emission to
// a dead connection is a silent no-op, not an error the hub acts on.
type Conn interface {
	ID() string
	Emit(event string, payload any) error
}
