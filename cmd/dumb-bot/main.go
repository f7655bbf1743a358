package main

import (
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tictactoe-lobby/internal/config"
	"tictactoe-lobby/internal/logging"
	"tictactoe-lobby/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	if cfg.Token == "" {
		log.Fatal().Msg("BOT_TOKEN is required")
	}

	u, err := url.Parse(cfg.WSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid WS_URL")
	}
	q := u.Query()
	q.Set("token", cfg.Token)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		log.Fatal().Err(err).Int("status", status).Msg("dial failed")
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bot stopping"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	b := newBot(cfg.Mode, cfg.RoomID, rand.New(rand.NewSource(time.Now().UnixNano())))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Msg("bot_disconnected")
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		out, ok := b.handle(env)
		if !ok {
			continue
		}
		msg, err := protocol.Encode(out.event, out.data)
		if err != nil {
			continue
		}
		// pace moves for anyone watching the lobby
		time.Sleep(300 * time.Millisecond)
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Warn().Err(err).Msg("bot_write_failed")
			return
		}
	}
}
