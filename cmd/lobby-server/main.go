package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tictactoe-lobby/internal/auth"
	"tictactoe-lobby/internal/config"
	"tictactoe-lobby/internal/logging"
	"tictactoe-lobby/internal/metrics"
	"tictactoe-lobby/internal/presence"
	"tictactoe-lobby/internal/room"
	"tictactoe-lobby/internal/store"
	httptransport "tictactoe-lobby/internal/transport/http"
	"tictactoe-lobby/internal/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	var users store.UserFinder = st
	if cfg.Server.RedisURL != "" {
		rdb, err := store.OpenRedis(ctx, cfg.Server.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis init failed")
		}
		defer func() { _ = rdb.Close() }()
		users = store.NewCachedDirectory(st, rdb, cfg.Server.RedisUserTTL)
		log.Info().Dur("ttl", cfg.Server.RedisUserTTL).Msg("user_cache_enabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	authn := auth.NewAuthenticator(auth.NewVerifier(cfg.Server.JWTSecret), users, cfg.Server.AuthTimeout)
	gateway := ws.NewServer(authn, ws.Options{
		SendBuffer:      cfg.Server.WSSendBuffer,
		EventsPerSecond: cfg.Server.WSEventsPerSecond,
		EventBurst:      cfg.Server.WSEventBurst,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Metrics:         rec,
	})

	pres := presence.NewCoordinator(presence.NewDirectory(), gateway, cfg.Presence)
	pres.SetRecorder(rec)
	rooms := room.NewCoordinator(room.NewStore(), gateway, pres)
	rooms.SetRecorder(rec)
	pres.SetRooms(rooms)
	gateway.SetHandlers(pres, rooms)

	pres.StartJanitor(ctx, cfg.Presence.SweepInterval)
	rooms.StartJanitor(ctx, cfg.Presence.RoomSweepInterval)

	r := httptransport.NewRouter(httptransport.Deps{
		Auth:     authn,
		WS:       gateway.HandleWS,
		Rooms:    rooms,
		Presence: pres,
		DB:       st,
		Metrics:  metrics.Handler(reg),
		LogLevel: logging.SlogLevel(cfg.Log.HTTPLevel),
	})
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown_requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by http.Server.
	gateway.Shutdown("server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	log.Info().Msg("server_stopped")
}
