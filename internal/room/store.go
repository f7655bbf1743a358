package room

import (
	"sort"
	"sync"
)

// Store holds rooms in memory. Values are copied in and out so callers
// never share player slices with the store.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]Room
}

func NewStore() *Store {
	return &Store{rooms: map[string]Room{}}
}

func (s *Store) Put(r Room) {
	s.mu.Lock()
	s.rooms[r.ID] = r.Clone()
	s.mu.Unlock()
}

func (s *Store) Get(roomID string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return r.Clone(), true
}

func (s *Store) Remove(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

// List returns all rooms ordered by creation time, then id.
func (s *Store) List() []Room {
	s.mu.RLock()
	out := make([]Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindByMember scans for the room userID belongs to.
func (s *Store) FindByMember(userID string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.Has(userID) {
			return r.Clone(), true
		}
	}
	return Room{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
