package httptransport

import (
	"context"
	"net/http"

	"tictactoe-lobby/internal/auth"
	"tictactoe-lobby/internal/presence"
	"tictactoe-lobby/internal/room"

	"github.com/go-chi/chi/v5"
)

type RoomReader interface {
	Summaries() []room.Summary
	Room(roomID string) (room.Room, bool)
}

type PresenceReader interface {
	Users() []presence.UserEntry
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type LobbyHandlers struct {
	rooms    RoomReader
	presence PresenceReader
	db       Pinger
}

func NewLobbyHandlers(rooms RoomReader, pres PresenceReader, db Pinger) *LobbyHandlers {
	return &LobbyHandlers{rooms: rooms, presence: pres, db: db}
}

func (h *LobbyHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.db == nil {
			writeJSON(w, map[string]any{"ok": true})
			return
		}
		if err := h.db.Ping(r.Context()); err != nil {
			writeJSONStatus(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down"})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "db": "up"})
	}
}

func (h *LobbyHandlers) Rooms() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"items": h.rooms.Summaries()})
	}
}

func (h *LobbyHandlers) Room() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, ok := h.rooms.Room(chi.URLParam(r, "room_id"))
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "room_not_found")
			return
		}
		writeJSON(w, rm)
	}
}

func (h *LobbyHandlers) Presence() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"items": h.presence.Users()})
	}
}

func (h *LobbyHandlers) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, id)
	}
}
