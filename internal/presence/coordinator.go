package presence

import (
	"context"
	"sync"
	"time"

	"tictactoe-lobby/internal/auth"
	"tictactoe-lobby/internal/config"
	"tictactoe-lobby/internal/metrics"
	"tictactoe-lobby/internal/protocol"

	"github.com/rs/zerolog/log"
)

const sessionTimeoutReason = "session timeout"

// Sender is the part of the gateway presence pushes through.
type Sender interface {
	SendTo(connID, event string, payload any)
	BroadcastAll(event string, payload any)
	CloseUser(userID, reason string)
}

// RoomLeaver is notified when a user's last connection is gone.
type RoomLeaver interface {
	Disconnect(userID string)
}

type Coordinator struct {
	dir     *Directory
	out     Sender
	rooms   RoomLeaver
	cfg     config.PresenceConfig
	metrics metrics.Recorder
	now     func() time.Time

	// mu orders list broadcasts so clients never see an older list last.
	mu sync.Mutex
}

func NewCoordinator(dir *Directory, out Sender, cfg config.PresenceConfig) *Coordinator {
	return &Coordinator{
		dir:     dir,
		out:     out,
		cfg:     cfg,
		metrics: metrics.Nop{},
		now:     time.Now,
	}
}

func (c *Coordinator) SetRooms(rooms RoomLeaver) { c.rooms = rooms }

func (c *Coordinator) SetRecorder(r metrics.Recorder) {
	if r != nil {
		c.metrics = r
	}
}

// Connect registers a freshly authenticated connection.
func (c *Coordinator) Connect(id auth.Identity, connID string) {
	created := c.dir.AddConnection(id, connID, c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.SendTo(connID, protocol.EventConnectStatus, protocol.ConnectStatus{
		Status:   "connected",
		UserID:   id.UserID,
		Username: id.Username,
	})
	if created {
		c.metrics.SessionsActive(c.dir.Len())
		log.Info().Str("user_id", id.UserID).Str("conn_id", connID).Msg("session_created")
		c.out.BroadcastAll(protocol.EventUserList, c.Users())
		return
	}
	c.out.SendTo(connID, protocol.EventUserList, c.Users())
}

// UpdateStatus handles a client status request. Only online and busy are accepted.
func (c *Coordinator) UpdateStatus(userID, connID string, status Status) {
	if !status.ClientSettable() {
		c.out.SendTo(connID, protocol.EventError, "invalid status")
		return
	}
	c.setStatus(userID, status)
}

// SetStatus is the server-side transition used by rooms; it may set in-game.
func (c *Coordinator) SetStatus(userID string, status Status) {
	c.setStatus(userID, status)
}

func (c *Coordinator) setStatus(userID string, status Status) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.dir.Update(userID, func(s *Session) {
		s.Status = status
		s.LastActiveAt = now
	})
	if !ok {
		return
	}
	c.out.BroadcastAll(protocol.EventStatusChanged, protocol.StatusChanged{UserID: userID, Status: string(status)})
	c.out.BroadcastAll(protocol.EventUserList, c.Users())
}

// Touch records activity without looking at the status.
func (c *Coordinator) Touch(userID string) {
	now := c.now()
	c.dir.Update(userID, func(s *Session) { s.LastActiveAt = now })
}

// Heartbeat records activity unless the user is in a game.
func (c *Coordinator) Heartbeat(userID string) {
	now := c.now()
	c.dir.Update(userID, func(s *Session) {
		if s.Status != StatusInGame {
			s.LastActiveAt = now
		}
	})
}

// Disconnect is called by the gateway exactly once per closed connection.
func (c *Coordinator) Disconnect(userID, connID string) {
	remaining, found := c.dir.RemoveConnection(userID, connID)
	if !found || remaining > 0 {
		return
	}
	log.Info().Str("user_id", userID).Str("conn_id", connID).Msg("session_removed")
	if c.rooms != nil {
		c.rooms.Disconnect(userID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.SessionsActive(c.dir.Len())
	c.out.BroadcastAll(protocol.EventUserList, c.Users())
}

// Sweep applies the idle policy at now. Users idle past IdleTimeout lose all
// connections; Online users idle past AwayAfter become Busy.
func (c *Coordinator) Sweep(now time.Time) {
	var expired []string
	var away []string
	for _, s := range c.dir.List() {
		idle := now.Sub(s.LastActiveAt)
		switch {
		case c.cfg.IdleTimeout > 0 && idle > c.cfg.IdleTimeout:
			expired = append(expired, s.UserID)
		case c.cfg.AwayAfter > 0 && idle > c.cfg.AwayAfter && s.Status == StatusOnline:
			away = append(away, s.UserID)
		}
	}

	for _, userID := range expired {
		log.Info().Str("user_id", userID).Msg("session_timeout")
		c.out.CloseUser(userID, sessionTimeoutReason)
	}

	if len(away) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var changed []string
	for _, userID := range away {
		c.dir.Update(userID, func(s *Session) {
			// activity may have arrived since the snapshot
			if s.Status == StatusOnline && now.Sub(s.LastActiveAt) > c.cfg.AwayAfter {
				s.Status = StatusBusy
				changed = append(changed, userID)
			}
		})
	}
	if len(changed) == 0 {
		return
	}
	for _, userID := range changed {
		log.Debug().Str("user_id", userID).Msg("session_auto_away")
		c.out.BroadcastAll(protocol.EventStatusChanged, protocol.StatusChanged{UserID: userID, Status: string(StatusBusy)})
	}
	c.out.BroadcastAll(protocol.EventUserList, c.Users())
}

// Users is the current user list in directory order.
func (c *Coordinator) Users() []UserEntry {
	sessions := c.dir.List()
	out := make([]UserEntry, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Entry())
	}
	return out
}

func (c *Coordinator) IsOnline(userID string) bool {
	return c.dir.Has(userID)
}

func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep(c.now())
			}
		}
	}()
}
