package presence

import (
	"sync"
)

// Tracker holds the live mapping of connections to usernames and rooms.
// A connection has at most one bound username and at most one current
// room; rebinding or switching silently replaces the previous value.
// The Session Coordinator is the sole mutator.
type Tracker struct {
	mu        sync.RWMutex
	usernames map[string]string              // connID -> username
	rooms     map[string]string              // connID -> roomName
	members   map[string]map[string]struct{} // roomName -> connIDs
}

func NewTracker() *Tracker {
	return &Tracker{
		usernames: make(map[string]string),
		rooms:     make(map[string]string),
		members:   make(map[string]map[string]struct{}),
	}
}

// Bind associates a username with a connection for its lifetime.
func (t *Tracker) Bind(connID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usernames[connID] = username
}

// Unbind removes the username binding and any room membership.
func (t *Tracker) Unbind(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearRoomLocked(connID)
	delete(t.usernames, connID)
}

// Username returns the username bound to a connection.
func (t *Tracker) Username(connID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	username, ok := t.usernames[connID]
	return username, ok
}

// SetRoom makes roomName the connection's current room, replacing any
// previous membership.
func (t *Tracker) SetRoom(connID, roomName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearRoomLocked(connID)
	t.rooms[connID] = roomName
	if t.members[roomName] == nil {
		t.members[roomName] = make(map[string]struct{})
	}
	t.members[roomName][connID] = struct{}{}
}

// ClearRoom removes the connection's room membership, if any.
func (t *Tracker) ClearRoom(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearRoomLocked(connID)
}

func (t *Tracker) clearRoomLocked(connID string) {
	roomName, ok := t.rooms[connID]
	if !ok {
		return
	}
	delete(t.rooms, connID)
	if conns, ok := t.members[roomName]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(t.members, roomName)
		}
	}
}

// CurrentRoom returns the connection's current room.
func (t *Tracker) CurrentRoom(connID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	roomName, ok := t.rooms[connID]
	return roomName, ok
}

// UsersInRoom returns the usernames of the room's current members.
// Connections without a bound username are skipped.
func (t *Tracker) UsersInRoom(roomName string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var users []string
	for connID := range t.members[roomName] {
		if username, ok := t.usernames[connID]; ok {
			users = append(users, username)
		}
	}
	return users
}

// ConnectionsInRoom returns the connection IDs of the room's members.
func (t *Tracker) ConnectionsInRoom(roomName string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conns := make([]string, 0, len(t.members[roomName]))
	for connID := range t.members[roomName] {
		conns = append(conns, connID)
	}
	return conns
}

// FindConnection returns a connection currently bound to username.
// Usernames are not unique; when several connections claim the same
// name this returns an arbitrary one.
func (t *Tracker) FindConnection(username string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for connID, bound := range t.usernames {
		if bound == username {
			return connID, true
		}
	}
	return "", false
}

// RoomMemberCount returns the number of connections in a room.
func (t *Tracker) RoomMemberCount(roomName string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members[roomName])
}

// ConnectionCount returns the number of identified connections.
func (t *Tracker) ConnectionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.usernames)
}
