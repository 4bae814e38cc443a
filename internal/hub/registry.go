package hub

import (
	"sync"
)

// Registry tracks live connections, the immutable session attached to
// each, and room membership, for one channel. S is the channel's
// session shape; each channel owns its own Registry instance so
// portal and lecture state never mix.
//
// A session is set exactly once, at registration, and is the sole
// authorization input for every later event on that connection.
type Registry[S any] struct {
	mu       sync.RWMutex
	conns    map[string]Conn
	sessions map[string]S
	rooms    map[string]map[string]struct{} // room key -> conn IDs
	joined   map[string]map[string]struct{} // conn ID -> room keys
}

func NewRegistry[S any]() *Registry[S] {
	return &Registry[S]{
		conns:    make(map[string]Conn),
		sessions: make(map[string]S),
		rooms:    make(map[string]map[string]struct{}),
		joined:   make(map[string]map[string]struct{}),
	}
}

// Register attaches a session to a connection. The caller has already
// authenticated; an unauthenticated connection never reaches here.
func (r *Registry[S]) Register(conn Conn, session S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = conn
	r.sessions[conn.ID()] = session
}

// Unregister removes a connection and leaves all its rooms. Idempotent:
// unregistering an unknown connection reports absence, nothing more.
func (r *Registry[S]) Unregister(connID string) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connID]
	if !ok {
		var zero S
		return zero, false
	}
	delete(r.sessions, connID)
	delete(r.conns, connID)
	for room := range r.joined[connID] {
		delete(r.rooms[room], connID)
		if len(r.rooms[room]) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.joined, connID)
	return session, true
}

// Lookup returns the session attached to a connection, if any.
func (r *Registry[S]) Lookup(connID string) (S, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[connID]
	return session, ok
}

// Join subscribes a registered connection to a room. Unknown
// connections are ignored so a join racing a disconnect cannot leave
// a stale membership behind.
func (r *Registry[S]) Join(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[connID]; !ok {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	if r.joined[connID] == nil {
		r.joined[connID] = make(map[string]struct{})
	}
	r.joined[connID][room] = struct{}{}
}

// Size reports the number of live connections. This is the diagnostic
// source of truth for "who is connected".
func (r *Registry[S]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Emit delivers an event to a single connection. A no-op if the
// connection is gone.
func (r *Registry[S]) Emit(connID, event string, payload any) {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	_ = conn.Emit(event, payload)
}

// Broadcast delivers an event to every connection in a room, minus the
// skipped connection IDs. Exclusion is per-connection: another tab of
// the same identity still receives the event.
func (r *Registry[S]) Broadcast(room, event string, payload any, skip ...string) {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.rooms[room]))
	for connID := range r.rooms[room] {
		if contains(skip, connID) {
			continue
		}
		if conn, ok := r.conns[connID]; ok {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	// Emission happens outside the lock: a slow socket must not stall
	// registration or other broadcasts.
	for _, conn := range targets {
		_ = conn.Emit(event, payload)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
