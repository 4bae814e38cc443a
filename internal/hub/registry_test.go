package hub

import (
	"fmt"
	"sync"
	"testing"
)

type testSession struct {
	Identity string
}

// fakeConn records emitted events for assertions.
type fakeConn struct {
	id string

	mu     sync.Mutex
	events []emittedEvent
}

type emittedEvent struct {
	Event   string
	Payload any
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emittedEvent{Event: event, Payload: payload})
	return nil
}

func (c *fakeConn) received() []emittedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]emittedEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeConn) countEvent(event string) int {
	n := 0
	for _, e := range c.received() {
		if e.Event == event {
			n++
		}
	}
	return n
}

func TestRegistryRegisterLookupUnregister(t *testing.T) {
	r := NewRegistry[testSession]()
	conn := newFakeConn("c1")

	if _, ok := r.Lookup("c1"); ok {
		t.Error("Lookup before Register should report absence")
	}

	r.Register(conn, testSession{Identity: "s1"})
	if got := r.Size(); got != 1 {
		t.Errorf("Size() = %d, want 1", got)
	}

	sess, ok := r.Lookup("c1")
	if !ok || sess.Identity != "s1" {
		t.Errorf("Lookup = %+v, %v, want s1 session", sess, ok)
	}

	sess, ok = r.Unregister("c1")
	if !ok || sess.Identity != "s1" {
		t.Errorf("Unregister = %+v, %v, want s1 session", sess, ok)
	}
	if got := r.Size(); got != 0 {
		t.Errorf("Size() after unregister = %d, want 0", got)
	}

	// Idempotent: second unregister is a plain absence.
	if _, ok := r.Unregister("c1"); ok {
		t.Error("second Unregister reported a session")
	}
}

func TestRegistryBroadcastSkipsConnections(t *testing.T) {
	r := NewRegistry[testSession]()
	sender := newFakeConn("c1")
	senderTab := newFakeConn("c2")
	peer := newFakeConn("c3")

	for _, c := range []*fakeConn{sender, senderTab, peer} {
		r.Register(c, testSession{Identity: "s1"})
		r.Join(c.ID(), "room-a")
	}

	r.Broadcast("room-a", "ping", nil, "c1")

	if sender.countEvent("ping") != 0 {
		t.Error("skipped connection received the broadcast")
	}
	if senderTab.countEvent("ping") != 1 || peer.countEvent("ping") != 1 {
		t.Error("non-skipped connections should each receive exactly one event")
	}
}

func TestRegistryUnregisterLeavesRooms(t *testing.T) {
	r := NewRegistry[testSession]()
	a := newFakeConn("a")
	b := newFakeConn("b")
	r.Register(a, testSession{})
	r.Register(b, testSession{})
	r.Join("a", "room")
	r.Join("b", "room")

	r.Unregister("a")
	r.Broadcast("room", "ping", nil)

	if a.countEvent("ping") != 0 {
		t.Error("unregistered connection still received room events")
	}
	if b.countEvent("ping") != 1 {
		t.Error("remaining member missed the broadcast")
	}
}

func TestRegistryJoinRequiresRegistration(t *testing.T) {
	r := NewRegistry[testSession]()
	ghost := newFakeConn("ghost")

	// Join racing a disconnect: membership must not outlive the session.
	r.Join("ghost", "room")
	r.Register(ghost, testSession{})
	r.Unregister("ghost")
	r.Join("ghost", "room")

	r.Broadcast("room", "ping", nil)
	if ghost.countEvent("ping") != 0 {
		t.Error("unregistered connection received a broadcast")
	}
}

func TestRegistryEmitToAbsentConnIsNoop(t *testing.T) {
	r := NewRegistry[testSession]()
	r.Emit("missing", "ping", nil) // must not panic
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry[testSession]()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("c-%d-%d", w, i)
				conn := newFakeConn(id)
				r.Register(conn, testSession{Identity: id})
				r.Join(id, "room")
				r.Broadcast("room", "ping", nil)
				r.Unregister(id)
			}
		}(w)
	}
	wg.Wait()

	if got := r.Size(); got != 0 {
		t.Errorf("Size() after churn = %d, want 0", got)
	}
}
