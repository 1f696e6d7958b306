package room

import (
	"fmt"
	"sync"

	"chatrelay/pkg/types"
)

// DefaultRooms always exist, are public, and are owned by "system".
var DefaultRooms = []string{"general", "random", "tech"}

// Registry maps normalized room names to room metadata. Creation is
// check-and-insert atomic under a single mutation point; rooms are never
// deleted.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*types.Room
}

// NewRegistry creates a registry seeded with the default rooms.
func NewRegistry() *Registry {
	r := &Registry{rooms: make(map[string]*types.Room)}
	for _, name := range DefaultRooms {
		r.rooms[name] = &types.Room{
			Name:        name,
			DisplayName: "#" + name,
			IsPrivate:   false,
			Creator:     "system",
		}
	}
	return r
}

// Get looks up a room by client-supplied name, normalizing first.
func (r *Registry) Get(name string) (*types.Room, error) {
	name = types.NormalizeRoomName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[name]
	if !ok {
		return nil, types.ErrRoomNotFound
	}
	return room, nil
}

// Create registers a new room under the normalized name. Private rooms
// get a lock-marked display name, public rooms the '#' prefix.
func (r *Registry) Create(name string, isPrivate bool, creator string) (*types.Room, error) {
	name = types.NormalizeRoomName(name)
	if err := types.ValidateRoomName(name); err != nil {
		return nil, err
	}

	displayName := "#" + name
	if isPrivate {
		displayName = fmt.Sprintf("🔒 %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[name]; exists {
		return nil, types.ErrRoomExists
	}
	room := &types.Room{
		Name:        name,
		DisplayName: displayName,
		IsPrivate:   isPrivate,
		Creator:     creator,
	}
	r.rooms[name] = room
	return room, nil
}

// ListPublic returns all public rooms. Iteration order is not
// deterministic.
func (r *Registry) ListPublic() []*types.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*types.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if !room.IsPrivate {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// Count returns the total number of registered rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
