package hub

import (
	"sort"
	"sync"
)

// PresenceTracker reference-counts live connections per identity.
// Transitions are edge-triggered: Connect reports true only on the
// 0→1 crossing and Disconnect only on the drop back to 0, so a second
// tab never re-announces an identity that is already online.
//
// An identity is present in the map iff its connection set is
// non-empty; absence means offline.
type PresenceTracker struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{}
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		conns: make(map[string]map[string]struct{}),
	}
}

// Connect records a connection for an identity and reports whether the
// identity just came online.
func (p *PresenceTracker) Connect(identity, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[identity]
	if !ok {
		set = make(map[string]struct{})
		p.conns[identity] = set
	}
	wasOffline := len(set) == 0
	set[connID] = struct{}{}
	return wasOffline
}

// Disconnect drops a connection for an identity and reports whether the
// identity just went offline. Unknown pairs are no-ops.
func (p *PresenceTracker) Disconnect(identity, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[identity]
	if !ok {
		return false
	}
	if _, ok := set[connID]; !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(p.conns, identity)
		return true
	}
	return false
}

// Online lists every identity with at least one live connection,
// sorted for stable snapshots.
func (p *PresenceTracker) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	online := make([]string, 0, len(p.conns))
	for identity := range p.conns {
		online = append(online, identity)
	}
	sort.Strings(online)
	return online
}
