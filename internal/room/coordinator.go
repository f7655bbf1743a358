package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tictactoe-lobby/internal/auth"
	"tictactoe-lobby/internal/game"
	"tictactoe-lobby/internal/metrics"
	"tictactoe-lobby/internal/presence"
	"tictactoe-lobby/internal/protocol"
	"tictactoe-lobby/internal/store"

	"github.com/rs/zerolog/log"
)

// Actor is the user (and connection, when there is one) behind a request.
type Actor struct {
	UserID    string
	ConnID    string
	Username  string
	FirstName string
	LastName  string
}

func ActorFrom(id auth.Identity, connID string) Actor {
	return Actor{
		UserID:    id.UserID,
		ConnID:    connID,
		Username:  id.Username,
		FirstName: id.FirstName,
		LastName:  id.LastName,
	}
}

// Broadcaster is the part of the gateway rooms push through. Sends must not
// block.
type Broadcaster interface {
	SendTo(connID, event string, payload any)
	SendToUsers(userIDs []string, event string, payload any)
	BroadcastAll(event string, payload any)
}

type Presence interface {
	SetStatus(userID string, status presence.Status)
	Touch(userID string)
	IsOnline(userID string) bool
}

// Coordinator is the only writer of the room store. mu is held across each
// read-modify-write and the broadcasts it produces, so every client sees
// room updates in the order they were applied.
type Coordinator struct {
	store    *Store
	out      Broadcaster
	presence Presence
	metrics  metrics.Recorder
	now      func() time.Time
	newID    func() string

	mu sync.Mutex
}

func NewCoordinator(st *Store, out Broadcaster, pres Presence) *Coordinator {
	return &Coordinator{
		store:    st,
		out:      out,
		presence: pres,
		metrics:  metrics.Nop{},
		now:      time.Now,
		newID:    store.NewID,
	}
}

func (c *Coordinator) SetRecorder(r metrics.Recorder) {
	if r != nil {
		c.metrics = r
	}
}

// run executes fn under the coordinator lock. Validation errors and internal
// failures are reported to the requesting connection only.
func (c *Coordinator) run(op string, actor Actor, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := guard(fn)
	label := strings.ReplaceAll(op, " ", "_")
	switch {
	case err == nil:
		c.metrics.RoomOp(label, "ok")
		return nil
	case IsValidation(err):
		c.metrics.RoomOp(label, "rejected")
		log.Debug().Err(err).Str("user_id", actor.UserID).Str("op", label).Msg("room_op_rejected")
	default:
		c.metrics.RoomOp(label, "error")
		log.Error().Err(err).Str("user_id", actor.UserID).Str("op", label).Msg("room_op_failed")
	}
	if actor.ConnID != "" {
		c.out.SendTo(actor.ConnID, protocol.EventError, ErrorMessage(op, err))
	}
	return err
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (c *Coordinator) CreateRoom(actor Actor) (Room, error) {
	var created Room
	err := c.run("create room", actor, func() error {
		if !c.presence.IsOnline(actor.UserID) {
			return ErrNotConnected
		}
		if _, ok := c.store.FindByMember(actor.UserID); ok {
			return ErrAlreadyInRoom
		}
		now := c.now()
		r := Room{
			ID:         c.newID(),
			HostID:     actor.UserID,
			Players:    Players{newPlayer(actor, game.X)},
			Status:     StatusWaiting,
			CreatedAt:  now,
			LastMoveAt: now,
		}
		c.store.Put(r)
		c.presence.SetStatus(actor.UserID, presence.StatusInGame)
		log.Info().Str("room_id", r.ID).Str("user_id", actor.UserID).Msg("room_created")

		c.out.SendTo(actor.ConnID, protocol.EventRoomCreated, r)
		c.broadcastList()
		created = r
		return nil
	})
	return created, err
}

func (c *Coordinator) JoinRoom(actor Actor, roomID string) error {
	return c.run("join room", actor, func() error {
		r, ok := c.store.Get(roomID)
		if !ok {
			return ErrRoomNotFound
		}
		if r.Status != StatusWaiting {
			return ErrGameInProgress
		}
		if len(r.Players) >= MaxPlayers {
			return ErrRoomFull
		}
		if _, ok := c.store.FindByMember(actor.UserID); ok {
			return ErrAlreadyInRoom
		}
		if !c.presence.IsOnline(actor.UserID) {
			return ErrNotConnected
		}

		r.Players = append(r.Players, newPlayer(actor, freeSymbol(r)))
		c.store.Put(r)
		c.presence.SetStatus(actor.UserID, presence.StatusInGame)
		log.Info().Str("room_id", r.ID).Str("user_id", actor.UserID).Msg("room_joined")

		c.out.SendTo(actor.ConnID, protocol.EventRoomJoined, r)
		c.out.SendToUsers(r.MemberIDs(), protocol.EventRoomState, r)
		c.broadcastList()
		return nil
	})
}

// ToggleReady flips the actor's ready flag in a waiting room and starts the
// game once both players are ready. Anything else is ignored.
func (c *Coordinator) ToggleReady(actor Actor, roomID string) error {
	return c.run("toggle ready", actor, func() error {
		r, ok := c.store.Get(roomID)
		if !ok || r.Status != StatusWaiting {
			return nil
		}
		p := r.player(actor.UserID)
		if p == nil || !c.presence.IsOnline(actor.UserID) {
			return nil
		}
		p.Ready = !p.Ready

		started := len(r.Players) == MaxPlayers && r.AllReady()
		if started {
			r.Status = StatusPlaying
			r.CurrentTurn = r.HostID
			r.Board = game.Board{}
			r.Winner = ""
		}
		c.store.Put(r)
		if started {
			for _, id := range r.MemberIDs() {
				c.presence.SetStatus(id, presence.StatusInGame)
			}
			log.Info().Str("room_id", r.ID).Msg("game_started")
		}

		c.out.SendToUsers(r.MemberIDs(), protocol.EventRoomState, r)
		if started {
			c.broadcastList()
		}
		return nil
	})
}

func (c *Coordinator) MakeMove(actor Actor, roomID string, position int) error {
	return c.run("make move", actor, func() error {
		r, ok := c.store.Get(roomID)
		if !ok {
			return ErrRoomNotFound
		}
		if r.Status != StatusPlaying {
			return ErrGameNotInProgress
		}
		p := r.player(actor.UserID)
		if p == nil || r.CurrentTurn != actor.UserID {
			return ErrNotYourTurn
		}
		if err := r.Board.Place(position, p.Symbol); err != nil {
			return err
		}

		r.LastMoveAt = c.now()
		res := r.Board.Evaluate()
		if res.Finished {
			r.Status = StatusFinished
			if res.Draw {
				r.Winner = Draw
			} else {
				r.Winner = actor.UserID
			}
		} else {
			r.CurrentTurn = r.Opponent(actor.UserID)
		}
		c.store.Put(r)
		c.presence.Touch(actor.UserID)

		if res.Finished {
			for _, id := range r.MemberIDs() {
				c.presence.SetStatus(id, presence.StatusOnline)
			}
			outcome := "win"
			if res.Draw {
				outcome = "draw"
			}
			c.metrics.GameFinished(outcome)
			log.Info().Str("room_id", r.ID).Str("winner", r.Winner).Msg("game_finished")
		}

		c.out.SendToUsers(r.MemberIDs(), protocol.EventRoomState, r)
		if res.Finished {
			c.broadcastList()
		}
		return nil
	})
}

// RequestRematch marks the actor ready in a finished room. When every member
// is ready the room goes back to waiting with a clean board.
func (c *Coordinator) RequestRematch(actor Actor, roomID string) error {
	return c.run("request rematch", actor, func() error {
		r, ok := c.store.Get(roomID)
		if !ok || r.Status != StatusFinished {
			return nil
		}
		p := r.player(actor.UserID)
		if p == nil || !c.presence.IsOnline(actor.UserID) {
			return nil
		}
		p.Ready = true

		reset := r.AllReady()
		if reset {
			r.resetRound()
		}
		c.store.Put(r)
		c.out.SendToUsers(r.MemberIDs(), protocol.EventRoomState, r)
		if reset {
			log.Info().Str("room_id", r.ID).Msg("room_rematch")
			c.broadcastList()
		}
		return nil
	})
}

// LeaveRoom removes the actor from the room. The host leaving closes the
// room; anyone else leaving puts it back to waiting. Leaving a room one is
// not in does nothing.
func (c *Coordinator) LeaveRoom(actor Actor, roomID string) error {
	return c.run("leave room", actor, func() error {
		c.leave(actor, roomID)
		return nil
	})
}

func (c *Coordinator) leave(actor Actor, roomID string) {
	r, ok := c.store.Get(roomID)
	if !ok || !r.Has(actor.UserID) {
		return
	}
	wasHost := r.HostID == actor.UserID
	r.remove(actor.UserID)
	c.presence.SetStatus(actor.UserID, presence.StatusOnline)
	if actor.ConnID != "" {
		c.out.SendTo(actor.ConnID, protocol.EventRoomLeft, protocol.RoomLeft{})
	}

	if wasHost || len(r.Players) == 0 {
		c.store.Remove(r.ID)
		remaining := r.MemberIDs()
		if len(remaining) > 0 {
			c.out.SendToUsers(remaining, protocol.EventRoomClosed, protocol.RoomClosed{RoomID: r.ID})
			for _, id := range remaining {
				c.presence.SetStatus(id, presence.StatusOnline)
			}
		}
		log.Info().Str("room_id", r.ID).Str("user_id", actor.UserID).Msg("room_closed")
	} else {
		r.resetRound()
		c.store.Put(r)
		c.out.SendToUsers(r.MemberIDs(), protocol.EventRoomState, r)
		log.Info().Str("room_id", r.ID).Str("user_id", actor.UserID).Msg("room_left")
	}
	c.broadcastList()
}

// Disconnect removes a user whose last connection just closed from their
// room. The presence check happens under the room lock, so a user who
// has reconnected in the meantime keeps their seat and is marked in-game
// again on the fresh session.
func (c *Coordinator) Disconnect(userID string) {
	_ = c.run("leave room", Actor{UserID: userID}, func() error {
		r, ok := c.store.FindByMember(userID)
		if !ok {
			return nil
		}
		if c.presence.IsOnline(userID) {
			if r.Status != StatusFinished {
				c.presence.SetStatus(userID, presence.StatusInGame)
			}
			return nil
		}
		c.leave(Actor{UserID: userID}, r.ID)
		return nil
	})
}

func (c *Coordinator) GetRoom(actor Actor, roomID string) error {
	return c.run("get room", actor, func() error {
		r, ok := c.store.Get(roomID)
		if !ok {
			return ErrRoomNotFound
		}
		c.out.SendTo(actor.ConnID, protocol.EventRoomState, r)
		return nil
	})
}

func (c *Coordinator) GetRoomList(actor Actor) error {
	return c.run("get room list", actor, func() error {
		c.out.SendTo(actor.ConnID, protocol.EventRoomList, c.Summaries())
		return nil
	})
}

// Rooms returns a snapshot of every room.
func (c *Coordinator) Rooms() []Room { return c.store.List() }

func (c *Coordinator) Room(roomID string) (Room, bool) { return c.store.Get(roomID) }

func (c *Coordinator) Summaries() []Summary {
	rooms := c.store.List()
	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	return out
}

func (c *Coordinator) broadcastList() {
	c.out.BroadcastAll(protocol.EventRoomList, c.Summaries())
	c.metrics.RoomsActive(c.store.Len())
}

// Sweep drops rooms that are empty or whose members all went offline.
func (c *Coordinator) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, r := range c.store.List() {
		if len(r.Players) > 0 && c.anyOnline(r) {
			continue
		}
		c.store.Remove(r.ID)
		removed++
		log.Info().Str("room_id", r.ID).Dur("age", now.Sub(r.CreatedAt)).Msg("room_swept")
	}
	if removed > 0 {
		c.broadcastList()
	}
	return removed
}

func (c *Coordinator) anyOnline(r Room) bool {
	for _, id := range r.MemberIDs() {
		if c.presence.IsOnline(id) {
			return true
		}
	}
	return false
}

func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.Sweep(now)
			}
		}
	}()
}

func newPlayer(actor Actor, s game.Symbol) Player {
	return Player{
		UserID:    actor.UserID,
		Symbol:    s,
		Username:  actor.Username,
		FirstName: actor.FirstName,
		LastName:  actor.LastName,
	}
}

func freeSymbol(r Room) game.Symbol {
	taken := map[game.Symbol]bool{}
	for _, p := range r.Players {
		taken[p.Symbol] = true
	}
	if !taken[game.X] {
		return game.X
	}
	return game.O
}
