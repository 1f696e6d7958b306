package websocket

import (
	"log"
	"sync"

	"chatrelay/internal/metrics"
	"chatrelay/internal/presence"
	"chatrelay/pkg/types"
)

// Conn is the registry's view of a connection. *Connection satisfies it;
// tests substitute fakes.
type Conn interface {
	ID() string
	WriteJSON(v interface{}) error
	Close() error
}

// Registry tracks live connections by ID and implements the broadcast
// surface the coordinator emits through. Room fan-out resolves current
// membership through the presence tracker so the registry itself holds
// no room state.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]Conn
	presence *presence.Tracker
}

func NewRegistry(tracker *presence.Tracker) *Registry {
	return &Registry{
		conns:    make(map[string]Conn),
		presence: tracker,
	}
}

// Add registers a connection.
func (r *Registry) Add(conn Conn) {
	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.mu.Unlock()
	metrics.ActiveConnections.Inc()
}

// Remove drops a connection. Idempotent.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	_, existed := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()
	if existed {
		metrics.ActiveConnections.Dec()
	}
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) get(connID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// SendToConnection delivers an event to a single connection.
func (r *Registry) SendToConnection(connID, event string, payload interface{}) error {
	conn, ok := r.get(connID)
	if !ok {
		return ErrConnectionNotFound
	}
	if err := conn.WriteJSON(types.Event{Event: event, Payload: payload}); err != nil {
		log.Printf("delivery failed: conn=%s event=%s err=%v", connID, event, err)
		return err
	}
	return nil
}

// SendToRoom delivers an event to every current member of a room.
// Delivery continues past individual failures.
func (r *Registry) SendToRoom(roomName, event string, payload interface{}) {
	r.sendToRoom(roomName, "", event, payload)
}

// SendToOthersInRoom delivers to every member of a room except one.
func (r *Registry) SendToOthersInRoom(roomName, excludeConnID, event string, payload interface{}) {
	r.sendToRoom(roomName, excludeConnID, event, payload)
}

func (r *Registry) sendToRoom(roomName, excludeConnID, event string, payload interface{}) {
	envelope := types.Event{Event: event, Payload: payload}
	for _, connID := range r.presence.ConnectionsInRoom(roomName) {
		if connID == excludeConnID {
			continue
		}
		if conn, ok := r.get(connID); ok {
			if err := conn.WriteJSON(envelope); err != nil {
				log.Printf("room delivery failed: room=%s conn=%s event=%s err=%v", roomName, connID, event, err)
			}
		}
	}
}

// SendToAll delivers an event to every live connection.
func (r *Registry) SendToAll(event string, payload interface{}) {
	envelope := types.Event{Event: event, Payload: payload}

	r.mu.RLock()
	conns := make([]Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(envelope); err != nil {
			log.Printf("broadcast delivery failed: conn=%s event=%s err=%v", conn.ID(), event, err)
		}
	}
}
