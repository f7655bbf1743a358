package httptransport

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Auth     Authenticator
	WS       http.HandlerFunc
	Rooms    RoomReader
	Presence PresenceReader
	// DB is optional; /healthz reports only the process when nil.
	DB       Pinger
	Metrics  http.Handler
	LogLevel slog.Level
}

func NewRouter(d Deps) *chi.Mux {
	lobby := NewLobbyHandlers(d.Rooms, d.Presence, d.DB)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware(d.LogLevel)).Get("/healthz", lobby.Health())
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware(d.LogLevel))
		r.Use(TokenAuthMiddleware(d.Auth))
		r.Get("/rooms", lobby.Rooms())
		r.Get("/rooms/{room_id}", lobby.Room())
		r.Get("/presence", lobby.Presence())
		r.Get("/me", lobby.Me())
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
