package reaction

import (
	"sort"
	"sync"

	"chatrelay/pkg/types"
)

// Store tracks emoji reactions per message. Each message's reactions are
// guarded by their own mutex so toggles on unrelated messages never
// contend; the outer lock only guards the entry map. Reactions live for
// the server process only, independent of message persistence.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry // messageID -> reactions
}

type entry struct {
	mu     sync.Mutex
	emojis map[string]map[string]struct{} // emoji -> usernames
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) entry(messageID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[messageID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[messageID]; ok {
		return e
	}
	e = &entry{emojis: make(map[string]map[string]struct{})}
	s.entries[messageID] = e
	return e
}

// Toggle adds username under (messageID, emoji) if absent, removes it if
// present, and deletes the emoji entirely once its user set empties. It
// returns the full current reaction map for the message so observers can
// render a consistent view. Usernames in each summary are sorted.
func (s *Store) Toggle(messageID, emoji, username string) map[string]types.ReactionSummary {
	e := s.entry(messageID)

	e.mu.Lock()
	defer e.mu.Unlock()

	users, ok := e.emojis[emoji]
	if !ok {
		users = make(map[string]struct{})
		e.emojis[emoji] = users
	}

	if _, reacted := users[username]; reacted {
		delete(users, username)
		if len(users) == 0 {
			delete(e.emojis, emoji)
		}
	} else {
		users[username] = struct{}{}
	}

	snapshot := make(map[string]types.ReactionSummary, len(e.emojis))
	for em, set := range e.emojis {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		snapshot[em] = types.ReactionSummary{Count: len(set), Users: names}
	}
	return snapshot
}
