package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tictactoe-lobby/internal/auth"
	"tictactoe-lobby/internal/config"
	"tictactoe-lobby/internal/presence"
	"tictactoe-lobby/internal/protocol"
	"tictactoe-lobby/internal/room"

	"github.com/gorilla/websocket"
)

type tokenAuth map[string]auth.Identity

func (a tokenAuth) Authenticate(_ context.Context, token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, auth.ErrTokenRequired
	}
	id, ok := a[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

type testEnv struct {
	srv      *Server
	http     *httptest.Server
	presence *presence.Coordinator
	rooms    *room.Coordinator
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	authn := tokenAuth{
		"tok-a": {UserID: "a", Username: "alice"},
		"tok-b": {UserID: "b", Username: "bob"},
	}
	srv := NewServer(authn, opts)
	pres := presence.NewCoordinator(presence.NewDirectory(), srv, config.PresenceConfig{})
	rooms := room.NewCoordinator(room.NewStore(), srv, pres)
	pres.SetRooms(rooms)
	srv.SetHandlers(pres, rooms)

	hs := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(func() {
		srv.Shutdown("test done")
		hs.Close()
	})
	return &testEnv{srv: srv, http: hs, presence: pres, rooms: rooms}
}

func (e *testEnv) url(token string) string {
	u := "ws" + strings.TrimPrefix(e.http.URL, "http")
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.url(token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	expect(t, conn, protocol.EventConnectStatus)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	msg, err := protocol.Encode(event, data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// expect reads frames until one with the given event arrives.
func expect(t *testing.T, conn *websocket.Conn, event string) protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		env, err := protocol.Decode(msg)
		if err != nil {
			t.Fatalf("decode %s: %v", msg, err)
		}
		if env.Event == event {
			return env
		}
	}
}

// expectRoom waits for a room frame matching pred.
func expectRoom(t *testing.T, conn *websocket.Conn, event string, pred func(room.Room) bool) room.Room {
	t.Helper()
	for {
		env := expect(t, conn, event)
		var r room.Room
		if err := json.Unmarshal(env.Data, &r); err != nil {
			t.Fatalf("decode room: %v", err)
		}
		if pred(r) {
			return r
		}
	}
}

func expectError(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	env := expect(t, conn, protocol.EventError)
	var got string
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got != want {
		t.Fatalf("error %q, want %q", got, want)
	}
}

func TestHandshakeRejections(t *testing.T) {
	env := newTestEnv(t, Options{})
	cases := map[string]string{
		"":      "authentication token required",
		"bogus": "invalid authentication token",
	}
	for token, reason := range cases {
		_, resp, err := websocket.DefaultDialer.Dial(env.url(token), nil)
		if err == nil {
			t.Fatalf("token %q: expected handshake failure", token)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %v", token, resp)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var payload map[string]string
		if err := json.Unmarshal(body, &payload); err != nil || payload["error"] != reason {
			t.Fatalf("token %q: body %s", token, body)
		}
	}
	if len(env.presence.Users()) != 0 {
		t.Fatal("rejected handshakes must not create sessions")
	}
}

func TestConnectPushesStatusAndList(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.dial(t, "tok-a")
	list := expect(t, a, protocol.EventUserList)
	var users []presence.UserEntry
	if err := json.Unmarshal(list.Data, &users); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(users) != 1 || users[0].UserID != "a" || users[0].Status != presence.StatusOnline {
		t.Fatalf("unexpected list %+v", users)
	}

	env.dial(t, "tok-b")
	list = expect(t, a, protocol.EventUserList)
	users = nil
	_ = json.Unmarshal(list.Data, &users)
	if len(users) != 2 {
		t.Fatalf("a must see b arrive, got %+v", users)
	}
}

func TestGameOverWebSocket(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.dial(t, "tok-a")
	b := env.dial(t, "tok-b")

	send(t, a, protocol.EventCreateRoom, struct{}{})
	created := expectRoom(t, a, protocol.EventRoomCreated, func(room.Room) bool { return true })
	if created.Status != room.StatusWaiting || created.HostID != "a" {
		t.Fatalf("unexpected room %+v", created)
	}

	// bare string payload, as older clients send it
	send(t, b, protocol.EventJoinRoom, created.ID)
	expectRoom(t, b, protocol.EventRoomJoined, func(r room.Room) bool { return len(r.Players) == 2 })
	expectRoom(t, a, protocol.EventRoomState, func(r room.Room) bool { return len(r.Players) == 2 })

	send(t, a, protocol.EventToggleReady, protocol.RoomRef{RoomID: created.ID})
	send(t, b, protocol.EventToggleReady, protocol.RoomRef{RoomID: created.ID})
	playing := expectRoom(t, a, protocol.EventRoomState, func(r room.Room) bool { return r.Status == room.StatusPlaying })
	if playing.CurrentTurn != "a" {
		t.Fatalf("host must move first, got %q", playing.CurrentTurn)
	}

	move := func(conn *websocket.Conn, pos int) {
		send(t, conn, protocol.EventMakeMove, protocol.MakeMove{RoomID: created.ID, Position: &pos})
	}
	move(b, 4)
	expectError(t, b, "not your turn")

	for i, step := range []struct {
		conn *websocket.Conn
		pos  int
	}{{a, 0}, {b, 3}, {a, 1}, {b, 4}, {a, 2}} {
		move(step.conn, step.pos)
		filled := i + 1
		expectRoom(t, b, protocol.EventRoomState, func(r room.Room) bool { return r.Board.Filled() == filled })
	}
	done := expectRoom(t, a, protocol.EventRoomState, func(r room.Room) bool { return r.Status == room.StatusFinished })
	if done.Winner != "a" {
		t.Fatalf("expected a to win, got %q", done.Winner)
	}
}

func TestBadFrames(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.dial(t, "tok-a")

	if err := a.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectError(t, a, "invalid payload")

	send(t, a, "game:teleport", struct{}{})
	expectError(t, a, "unknown event")

	send(t, a, protocol.EventMakeMove, map[string]string{"roomId": "r"})
	expectError(t, a, "invalid payload")

	send(t, a, protocol.EventJoinRoom, "missing")
	expectError(t, a, "room not found")

	send(t, a, protocol.EventStatusUpdate, protocol.StatusUpdate{Status: "in-game"})
	expectError(t, a, "invalid status")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{EventsPerSecond: 0.001, EventBurst: 2})
	a := env.dial(t, "tok-a")
	for i := 0; i < 3; i++ {
		send(t, a, protocol.EventHeartbeat, struct{}{})
	}
	expectError(t, a, "rate limit exceeded")
}

func TestDisconnectCleansUp(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.dial(t, "tok-a")
	b := env.dial(t, "tok-b")

	send(t, a, protocol.EventCreateRoom, struct{}{})
	created := expectRoom(t, a, protocol.EventRoomCreated, func(room.Room) bool { return true })
	send(t, b, protocol.EventJoinRoom, created.ID)
	expectRoom(t, a, protocol.EventRoomState, func(r room.Room) bool { return len(r.Players) == 2 })

	_ = b.Close()
	expectRoom(t, a, protocol.EventRoomState, func(r room.Room) bool { return len(r.Players) == 1 })

	waitFor(t, func() bool { return env.srv.ConnectionCount() == 1 && !env.presence.IsOnline("b") })
}

func TestSecondTabKeepsUserOnline(t *testing.T) {
	env := newTestEnv(t, Options{})
	a1 := env.dial(t, "tok-a")
	a2 := env.dial(t, "tok-a")
	if got := len(env.srv.UserConnections("a")); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}
	_ = a1.Close()
	waitFor(t, func() bool { return len(env.srv.UserConnections("a")) == 1 })
	if !env.presence.IsOnline("a") {
		t.Fatal("user with an open tab must stay online")
	}
	send(t, a2, protocol.EventHeartbeat, struct{}{})
}

func TestCloseUserForcesTeardown(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.dial(t, "tok-a")

	env.srv.CloseUser("a", "session timeout")
	if env.presence.IsOnline("a") {
		t.Fatal("close must run presence cleanup synchronously")
	}
	env.srv.CloseConnection("unknown", "noop")

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := a.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		if errors.As(err, &ce) && ce.Text != "session timeout" {
			t.Fatalf("unexpected close reason %q", ce.Text)
		}
		break
	}
}

// gatedRooms holds a join inside the read loop until the test releases it.
type gatedRooms struct {
	*room.Coordinator
	arrived chan struct{}
	release chan struct{}
	done    chan error
}

func (g *gatedRooms) JoinRoom(actor room.Actor, roomID string) error {
	close(g.arrived)
	<-g.release
	err := g.Coordinator.JoinRoom(actor, roomID)
	g.done <- err
	return err
}

func TestForcedCloseDuringJoinLeavesNoSeat(t *testing.T) {
	env := newTestEnv(t, Options{})
	gate := &gatedRooms{
		Coordinator: env.rooms,
		arrived:     make(chan struct{}),
		release:     make(chan struct{}),
		done:        make(chan error, 1),
	}
	env.srv.SetHandlers(env.presence, gate)

	a := env.dial(t, "tok-a")
	b := env.dial(t, "tok-b")
	send(t, a, protocol.EventCreateRoom, struct{}{})
	created := expectRoom(t, a, protocol.EventRoomCreated, func(room.Room) bool { return true })

	send(t, b, protocol.EventJoinRoom, map[string]string{"roomId": created.ID})
	select {
	case <-gate.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("join never reached the room coordinator")
	}

	env.srv.CloseUser("b", "session timeout")
	if env.presence.IsOnline("b") {
		t.Fatal("b must be offline after CloseUser")
	}
	close(gate.release)

	select {
	case err := <-gate.done:
		if !errors.Is(err, room.ErrNotConnected) {
			t.Fatalf("join after close: err = %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join did not finish")
	}
	r, ok := env.rooms.Room(created.ID)
	if !ok {
		t.Fatal("room of the online host must survive")
	}
	if r.Has("b") || len(r.Players) != 1 {
		t.Fatalf("offline user holds a seat: players %v", r.MemberIDs())
	}
}

func TestOriginCheck(t *testing.T) {
	env := newTestEnv(t, Options{AllowedOrigins: []string{"https://lobby.example"}})
	h := http.Header{"Origin": []string{"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(env.url("tok-a"), h); err == nil {
		t.Fatal("expected foreign origin to be refused")
	}
	h.Set("Origin", "https://lobby.example")
	conn, _, err := websocket.DefaultDialer.Dial(env.url("tok-a"), h)
	if err != nil {
		t.Fatalf("dial allowed origin: %v", err)
	}
	_ = conn.Close()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
