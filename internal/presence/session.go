package presence

import "time"

type Status string

const (
	StatusOnline Status = "online"
	StatusBusy   Status = "busy"
	StatusInGame Status = "in-game"
)

// ClientSettable reports whether a client may request s for itself.
func (s Status) ClientSettable() bool {
	return s == StatusOnline || s == StatusBusy
}

// Session is the presence record of one user across all of their connections.
type Session struct {
	UserID       string
	Username     string
	FirstName    string
	LastName     string
	ConnIDs      map[string]struct{}
	Status       Status
	LastActiveAt time.Time
	ConnectedAt  time.Time
}

func (s Session) clone() Session {
	out := s
	out.ConnIDs = make(map[string]struct{}, len(s.ConnIDs))
	for id := range s.ConnIDs {
		out.ConnIDs[id] = struct{}{}
	}
	return out
}

// UserEntry is one row of the user list pushed to clients.
type UserEntry struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Status    Status `json:"status"`
}

func (s Session) Entry() UserEntry {
	return UserEntry{
		UserID:    s.UserID,
		Username:  s.Username,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Status:    s.Status,
	}
}
