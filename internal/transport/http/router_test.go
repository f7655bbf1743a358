package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tictactoe-lobby/internal/auth"
	"tictactoe-lobby/internal/game"
	"tictactoe-lobby/internal/presence"
	"tictactoe-lobby/internal/room"
)

type stubAuth map[string]auth.Identity

func (a stubAuth) Authenticate(_ context.Context, token string) (auth.Identity, error) {
	switch token {
	case "":
		return auth.Identity{}, auth.ErrTokenRequired
	case "outage":
		return auth.Identity{}, fmt.Errorf("%w: lookup timed out", auth.ErrAuthFailed)
	}
	id, ok := a[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

type stubRooms map[string]room.Room

func (s stubRooms) Summaries() []room.Summary {
	out := make([]room.Summary, 0, len(s))
	for _, r := range s {
		out = append(out, r.Summary())
	}
	return out
}

func (s stubRooms) Room(id string) (room.Room, bool) {
	r, ok := s[id]
	return r, ok
}

type stubPresence []presence.UserEntry

func (s stubPresence) Users() []presence.UserEntry { return s }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(db Pinger) http.Handler {
	rooms := stubRooms{
		"r1": {
			ID:        "r1",
			HostID:    "a",
			Players:   room.Players{{UserID: "a", Username: "alice", Symbol: game.X}},
			Status:    room.StatusWaiting,
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
	pres := stubPresence{{UserID: "a", Username: "alice", Status: presence.StatusOnline}}
	return NewRouter(Deps{
		Auth:     stubAuth{"tok-a": {UserID: "a", Username: "alice", FirstName: "Alice"}},
		Rooms:    rooms,
		Presence: pres,
		DB:       db,
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics\n")) }),
		LogLevel: slog.LevelError,
	})
}

func doGet(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	rec := doGet(t, newTestRouter(stubPinger{}), "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["db"] != "up" {
		t.Fatalf("body = %v", body)
	}

	rec = doGet(t, newTestRouter(stubPinger{err: errors.New("down")}), "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	rec = doGet(t, newTestRouter(nil), "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status without db = %d, want 200", rec.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	h := newTestRouter(nil)
	cases := []struct {
		token  string
		status int
		code   string
	}{
		{"", http.StatusUnauthorized, "token_required"},
		{"bogus", http.StatusUnauthorized, "invalid_token"},
		{"outage", http.StatusServiceUnavailable, "auth_failed"},
	}
	for _, tc := range cases {
		rec := doGet(t, h, "/api/rooms", tc.token)
		if rec.Code != tc.status {
			t.Fatalf("token %q: status = %d, want %d", tc.token, rec.Code, tc.status)
		}
		if body := decodeBody(t, rec); body["error"] != tc.code {
			t.Fatalf("token %q: error = %v, want %s", tc.token, body["error"], tc.code)
		}
	}
}

func TestAPIQueryToken(t *testing.T) {
	rec := doGet(t, newTestRouter(nil), "/api/me?token=tok-a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["userId"] != "a" || body["firstName"] != "Alice" {
		t.Fatalf("me = %v", body)
	}
}

func TestAPIRooms(t *testing.T) {
	h := newTestRouter(nil)

	rec := doGet(t, h, "/api/rooms", "tok-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	items, _ := decodeBody(t, rec)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v, want 1 room", items)
	}
	first, _ := items[0].(map[string]any)
	if first["id"] != "r1" || first["playerCount"] != float64(1) {
		t.Fatalf("summary = %v", first)
	}

	rec = doGet(t, h, "/api/rooms/r1", "tok-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	players, _ := body["players"].(map[string]any)
	if body["hostId"] != "a" || players["a"] == nil {
		t.Fatalf("room = %v", body)
	}

	rec = doGet(t, h, "/api/rooms/missing", "tok-a")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "room_not_found" {
		t.Fatalf("missing body = %v", body)
	}
}

func TestAPIPresence(t *testing.T) {
	rec := doGet(t, newTestRouter(nil), "/api/presence", "tok-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	items, _ := decodeBody(t, rec)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
	u, _ := items[0].(map[string]any)
	if u["userId"] != "a" || u["status"] != "online" {
		t.Fatalf("user = %v", u)
	}
}

func TestMetricsRouteIsPublic(t *testing.T) {
	rec := doGet(t, newTestRouter(nil), "/metrics", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics\n" {
		t.Fatalf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestMapAuthError(t *testing.T) {
	status, code := MapAuthError(auth.ErrUserNotFound)
	if status != http.StatusUnauthorized || code != "user_not_found" {
		t.Fatalf("got %d %s", status, code)
	}
	status, _ = MapAuthError(errors.New("boom"))
	if status != http.StatusServiceUnavailable {
		t.Fatalf("unknown error status = %d, want 503", status)
	}
}
