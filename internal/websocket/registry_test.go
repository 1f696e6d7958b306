package websocket

import (
	"errors"
	"sync"
	"testing"

	"chatrelay/internal/presence"
	"chatrelay/pkg/types"
)

// fakeConn records everything written to it.
type fakeConn struct {
	id string

	mu       sync.Mutex
	written  []types.Event
	writeErr error
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v.(types.Event))
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) events() []types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Event(nil), c.written...)
}

func setupRegistry(t *testing.T) (*Registry, *presence.Tracker, map[string]*fakeConn) {
	t.Helper()
	tracker := presence.NewTracker()
	registry := NewRegistry(tracker)

	conns := make(map[string]*fakeConn)
	for _, id := range []string{"c1", "c2", "c3"} {
		conn := &fakeConn{id: id}
		conns[id] = conn
		registry.Add(conn)
	}
	tracker.Bind("c1", "alice")
	tracker.Bind("c2", "bob")
	tracker.Bind("c3", "carol")
	tracker.SetRoom("c1", "general")
	tracker.SetRoom("c2", "general")
	tracker.SetRoom("c3", "tech")
	return registry, tracker, conns
}

func TestSendToConnection(t *testing.T) {
	registry, _, conns := setupRegistry(t)

	if err := registry.SendToConnection("c1", "Ping", "payload"); err != nil {
		t.Fatalf("SendToConnection() error: %v", err)
	}

	got := conns["c1"].events()
	if len(got) != 1 || got[0].Event != "Ping" || got[0].Payload != "payload" {
		t.Fatalf("c1 received %v", got)
	}
	if len(conns["c2"].events()) != 0 {
		t.Error("c2 received a direct message for c1")
	}
}

func TestSendToConnection_Unknown(t *testing.T) {
	registry, _, _ := setupRegistry(t)

	if err := registry.SendToConnection("nope", "Ping", nil); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("error = %v, want ErrConnectionNotFound", err)
	}
}

func TestSendToRoom_CurrentMembersOnly(t *testing.T) {
	registry, _, conns := setupRegistry(t)

	registry.SendToRoom("general", "Ping", nil)

	for _, id := range []string{"c1", "c2"} {
		if got := conns[id].events(); len(got) != 1 {
			t.Errorf("%s received %d events, want 1", id, len(got))
		}
	}
	if got := conns["c3"].events(); len(got) != 0 {
		t.Errorf("c3 (other room) received %v", got)
	}
}

func TestSendToRoom_ContinuesPastFailure(t *testing.T) {
	registry, _, conns := setupRegistry(t)
	conns["c1"].writeErr = errors.New("broken pipe")

	registry.SendToRoom("general", "Ping", nil)

	if got := conns["c2"].events(); len(got) != 1 {
		t.Errorf("c2 received %d events, want delivery to continue past c1", len(got))
	}
}

func TestSendToOthersInRoom(t *testing.T) {
	registry, _, conns := setupRegistry(t)

	registry.SendToOthersInRoom("general", "c1", "Ping", nil)

	if got := conns["c1"].events(); len(got) != 0 {
		t.Errorf("excluded connection received %v", got)
	}
	if got := conns["c2"].events(); len(got) != 1 {
		t.Errorf("c2 received %d events, want 1", len(got))
	}
}

func TestSendToAll(t *testing.T) {
	registry, _, conns := setupRegistry(t)

	registry.SendToAll("Ping", nil)

	for id, conn := range conns {
		if got := conn.events(); len(got) != 1 {
			t.Errorf("%s received %d events, want 1", id, len(got))
		}
	}
}

func TestRemove_StopsDelivery(t *testing.T) {
	registry, _, conns := setupRegistry(t)

	registry.Remove("c2")
	registry.Remove("c2") // idempotent

	if registry.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", registry.Count())
	}

	// Presence still lists c2 in general until the coordinator clears
	// it; the registry simply skips the missing connection.
	registry.SendToRoom("general", "Ping", nil)
	if got := conns["c2"].events(); len(got) != 0 {
		t.Errorf("removed connection received %v", got)
	}
	if got := conns["c1"].events(); len(got) != 1 {
		t.Errorf("c1 received %d events, want 1", len(got))
	}
}
