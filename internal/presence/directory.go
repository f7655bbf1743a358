package presence

import (
	"sort"
	"sync"
	"time"

	"tictactoe-lobby/internal/auth"
)

// Directory maps user ids to sessions. All methods are atomic with respect
// to each other and hand out copies.
type Directory struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewDirectory() *Directory {
	return &Directory{sessions: map[string]*Session{}}
}

// Put stores s. A session without connections is not stored, and any
// existing one for the same user is dropped.
func (d *Directory) Put(s Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(s.ConnIDs) == 0 {
		delete(d.sessions, s.UserID)
		return
	}
	c := s.clone()
	d.sessions[s.UserID] = &c
}

func (d *Directory) Get(userID string) (Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Update applies fn to the stored session. It returns false when the user has
// no session. If fn empties the connection set the session is removed.
func (d *Directory) Update(userID string, fn func(*Session)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[userID]
	if !ok {
		return false
	}
	fn(s)
	s.UserID = userID
	if len(s.ConnIDs) == 0 {
		delete(d.sessions, userID)
	}
	return true
}

func (d *Directory) Remove(userID string) {
	d.mu.Lock()
	delete(d.sessions, userID)
	d.mu.Unlock()
}

// List returns every session ordered by first connection time, then user id.
func (d *Directory) List() []Session {
	d.mu.Lock()
	out := make([]Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s.clone())
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.Before(out[j].ConnectedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Directory) Has(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[userID]
	return ok
}

// AddConnection registers connID for the user, creating an Online session
// when none exists. An existing session gets its activity refreshed.
func (d *Directory) AddConnection(id auth.Identity, connID string, now time.Time) (created bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[id.UserID]; ok {
		s.ConnIDs[connID] = struct{}{}
		s.LastActiveAt = now
		return false
	}
	d.sessions[id.UserID] = &Session{
		UserID:       id.UserID,
		Username:     id.Username,
		FirstName:    id.FirstName,
		LastName:     id.LastName,
		ConnIDs:      map[string]struct{}{connID: {}},
		Status:       StatusOnline,
		LastActiveAt: now,
		ConnectedAt:  now,
	}
	return true
}

// RemoveConnection drops connID and deletes the session when it was the last
// one. found is false when the user or the connection was unknown.
func (d *Directory) RemoveConnection(userID, connID string) (remaining int, found bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[userID]
	if !ok {
		return 0, false
	}
	if _, ok := s.ConnIDs[connID]; !ok {
		return len(s.ConnIDs), false
	}
	delete(s.ConnIDs, connID)
	if len(s.ConnIDs) == 0 {
		delete(d.sessions, userID)
		return 0, true
	}
	return len(s.ConnIDs), true
}
