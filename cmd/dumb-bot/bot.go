package main

import (
	"encoding/json"
	"math/rand"

	"tictactoe-lobby/internal/protocol"

	"github.com/rs/zerolog/log"
)

type roomPlayer struct {
	Symbol string `json:"symbol"`
	Ready  bool   `json:"ready"`
}

type roomView struct {
	ID          string                `json:"id"`
	Status      string                `json:"status"`
	Players     map[string]roomPlayer `json:"players"`
	Board       []*string             `json:"board"`
	CurrentTurn string                `json:"currentTurn"`
	Winner      string                `json:"winner"`
}

type outbound struct {
	event string
	data  any
}

// bot reacts to server events with at most one request each.
type bot struct {
	mode   string
	roomID string
	rnd    *rand.Rand

	userID    string
	rematched bool
}

func newBot(mode, roomID string, rnd *rand.Rand) *bot {
	return &bot{mode: mode, roomID: roomID, rnd: rnd}
}

func (b *bot) handle(env protocol.Envelope) (outbound, bool) {
	switch env.Event {
	case protocol.EventConnectStatus:
		var st protocol.ConnectStatus
		if err := json.Unmarshal(env.Data, &st); err != nil {
			return outbound{}, false
		}
		b.userID = st.UserID
		log.Info().Str("user_id", st.UserID).Str("username", st.Username).Msg("bot_connected")
		return b.enterRoom()

	case protocol.EventRoomList:
		if b.roomID != "" || b.mode != "join" {
			return outbound{}, false
		}
		var rooms []roomView
		if err := json.Unmarshal(env.Data, &rooms); err != nil {
			return outbound{}, false
		}
		for _, r := range rooms {
			if r.Status == "waiting" && len(r.Players) < 2 {
				b.roomID = r.ID
				return outbound{protocol.EventJoinRoom, protocol.RoomRef{RoomID: r.ID}}, true
			}
		}

	case protocol.EventRoomCreated, protocol.EventRoomJoined, protocol.EventRoomState:
		var r roomView
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return outbound{}, false
		}
		b.roomID = r.ID
		return b.onRoom(r)

	case protocol.EventRoomClosed:
		log.Info().Str("room_id", b.roomID).Msg("bot_room_closed")
		b.roomID = ""
		return b.enterRoom()

	case protocol.EventError:
		var msg string
		_ = json.Unmarshal(env.Data, &msg)
		log.Warn().Str("room_id", b.roomID).Str("error", msg).Msg("bot_server_error")
	}
	return outbound{}, false
}

func (b *bot) enterRoom() (outbound, bool) {
	switch {
	case b.mode == "join" && b.roomID != "":
		return outbound{protocol.EventJoinRoom, protocol.RoomRef{RoomID: b.roomID}}, true
	case b.mode == "join":
		return outbound{protocol.EventListRooms, nil}, true
	default:
		return outbound{protocol.EventCreateRoom, nil}, true
	}
}

func (b *bot) onRoom(r roomView) (outbound, bool) {
	me, ok := r.Players[b.userID]
	if !ok {
		return outbound{}, false
	}
	if r.Status != "finished" {
		b.rematched = false
	}
	switch r.Status {
	case "waiting":
		if !me.Ready && len(r.Players) == 2 {
			return outbound{protocol.EventToggleReady, protocol.RoomRef{RoomID: r.ID}}, true
		}
	case "playing":
		if r.CurrentTurn != b.userID {
			return outbound{}, false
		}
		pos, ok := pickMove(b.rnd, r.Board)
		if !ok {
			return outbound{}, false
		}
		return outbound{protocol.EventMakeMove, protocol.MakeMove{RoomID: r.ID, Position: &pos}}, true
	case "finished":
		if b.rematched {
			return outbound{}, false
		}
		b.rematched = true
		outcome := "lost"
		switch r.Winner {
		case b.userID:
			outcome = "won"
		case "draw":
			outcome = "draw"
		}
		log.Info().Str("room_id", r.ID).Str("outcome", outcome).Msg("bot_game_finished")
		return outbound{protocol.EventRequestRematch, protocol.RoomRef{RoomID: r.ID}}, true
	}
	return outbound{}, false
}

// pickMove returns a random empty cell.
func pickMove(rnd *rand.Rand, board []*string) (int, bool) {
	free := make([]int, 0, len(board))
	for i, c := range board {
		if c == nil {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return 0, false
	}
	return free[rnd.Intn(len(free))], true
}
