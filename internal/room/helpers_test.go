package room

import (
	"sync"
	"testing"

	"tictactoe-lobby/internal/auth"
	"tictactoe-lobby/internal/config"
	"tictactoe-lobby/internal/presence"

	"github.com/stretchr/testify/require"
)

type message struct {
	to    string // conn id, user id or "*"
	event string
	data  any
}

// recorder stands in for the gateway. Users are addressed by user id and
// connections by conn id.
type recorder struct {
	mu   sync.Mutex
	msgs []message
}

func (r *recorder) SendTo(connID, event string, payload any) {
	r.add(message{to: connID, event: event, data: payload})
}

func (r *recorder) SendToUsers(userIDs []string, event string, payload any) {
	for _, id := range userIDs {
		r.add(message{to: id, event: event, data: payload})
	}
}

func (r *recorder) BroadcastAll(event string, payload any) {
	r.add(message{to: "*", event: event, data: payload})
}

func (r *recorder) CloseUser(string, string) {}

func (r *recorder) add(m message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

func (r *recorder) find(to, event string) []message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message
	for _, m := range r.msgs {
		if m.to == to && m.event == event {
			out = append(out, m)
		}
	}
	return out
}

// last returns the payload of the most recent matching message.
func (r *recorder) last(t *testing.T, to, event string) any {
	t.Helper()
	msgs := r.find(to, event)
	require.NotEmpty(t, msgs, "no %s to %s", event, to)
	return msgs[len(msgs)-1].data
}

type harness struct {
	rooms    *Coordinator
	presence *presence.Coordinator
	dir      *presence.Directory
	out      *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	out := &recorder{}
	dir := presence.NewDirectory()
	pres := presence.NewCoordinator(dir, out, config.PresenceConfig{})
	rooms := NewCoordinator(NewStore(), out, pres)
	pres.SetRooms(rooms)
	return &harness{rooms: rooms, presence: pres, dir: dir, out: out}
}

// login connects user id with connection "<id>-conn" and returns its actor.
func (h *harness) login(id string) Actor {
	ident := auth.Identity{UserID: id, Username: id + "-user", FirstName: id + "-first", LastName: id + "-last"}
	h.presence.Connect(ident, id+"-conn")
	return ActorFrom(ident, id+"-conn")
}

func (h *harness) status(t *testing.T, userID string) presence.Status {
	t.Helper()
	s, ok := h.dir.Get(userID)
	require.True(t, ok, "no session for %s", userID)
	return s.Status
}

func (h *harness) room(t *testing.T, id string) Room {
	t.Helper()
	r, ok := h.rooms.Room(id)
	require.True(t, ok, "room %s missing", id)
	require.NoError(t, r.Validate())
	return r
}

// startGame creates a room for a, joins b and readies both.
func (h *harness) startGame(t *testing.T, a, b Actor) Room {
	t.Helper()
	r, err := h.rooms.CreateRoom(a)
	require.NoError(t, err)
	require.NoError(t, h.rooms.JoinRoom(b, r.ID))
	require.NoError(t, h.rooms.ToggleReady(a, r.ID))
	require.NoError(t, h.rooms.ToggleReady(b, r.ID))
	started := h.room(t, r.ID)
	require.Equal(t, StatusPlaying, started.Status)
	return started
}
