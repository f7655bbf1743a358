package room

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"tictactoe-lobby/internal/game"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Draw is the winner value of a game nobody won.
const Draw = "draw"

const MaxPlayers = 2

type Player struct {
	UserID    string      `json:"-"`
	Symbol    game.Symbol `json:"symbol"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Ready     bool        `json:"ready"`
}

// Players keeps join order. It is written as a JSON object keyed by user id
// with keys in join order.
type Players []Player

func (ps Players) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.UserID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (ps *Players) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("players must be an object")
	}
	var out Players
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		userID, _ := tok.(string)
		var p Player
		if err := dec.Decode(&p); err != nil {
			return err
		}
		p.UserID = userID
		out = append(out, p)
	}
	*ps = out
	return nil
}

// Room is the canonical state of one game room.
type Room struct {
	ID          string     `json:"id"`
	HostID      string     `json:"hostId"`
	Players     Players    `json:"players"`
	Status      Status     `json:"status"`
	Board       game.Board `json:"board"`
	CurrentTurn string     `json:"currentTurn,omitempty"`
	Winner      string     `json:"winner,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastMoveAt  time.Time  `json:"lastMoveAt"`
}

func (r Room) Clone() Room {
	out := r
	out.Players = append(Players(nil), r.Players...)
	return out
}

func (r *Room) player(userID string) *Player {
	for i := range r.Players {
		if r.Players[i].UserID == userID {
			return &r.Players[i]
		}
	}
	return nil
}

func (r Room) Has(userID string) bool {
	return r.player(userID) != nil
}

func (r Room) Player(userID string) (Player, bool) {
	if p := r.player(userID); p != nil {
		return *p, true
	}
	return Player{}, false
}

// MemberIDs returns player ids in join order.
func (r Room) MemberIDs() []string {
	out := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, p.UserID)
	}
	return out
}

// Opponent returns the other player of a two-player room.
func (r Room) Opponent(userID string) string {
	for _, p := range r.Players {
		if p.UserID != userID {
			return p.UserID
		}
	}
	return ""
}

func (r Room) AllReady() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (r *Room) remove(userID string) {
	out := r.Players[:0]
	for _, p := range r.Players {
		if p.UserID != userID {
			out = append(out, p)
		}
	}
	r.Players = out
}

// resetRound puts the room back to waiting with a clear board and nobody ready.
func (r *Room) resetRound() {
	r.Status = StatusWaiting
	r.Board = game.Board{}
	r.CurrentTurn = ""
	r.Winner = ""
	for i := range r.Players {
		r.Players[i].Ready = false
	}
}

// Summary is the lobby view of a room.
type Summary struct {
	ID          string     `json:"id"`
	HostID      string     `json:"hostId"`
	Status      Status     `json:"status"`
	Players     Players    `json:"players"`
	PlayerCount int        `json:"playerCount"`
	Board       game.Board `json:"board"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (r Room) Summary() Summary {
	return Summary{
		ID:          r.ID,
		HostID:      r.HostID,
		Status:      r.Status,
		Players:     append(Players(nil), r.Players...),
		PlayerCount: len(r.Players),
		Board:       r.Board,
		CreatedAt:   r.CreatedAt,
	}
}

// Validate reports the first broken room invariant, if any.
func (r Room) Validate() error {
	if len(r.Players) > MaxPlayers {
		return errors.New("too many players")
	}
	var xCount, oCount int
	seen := map[string]bool{}
	for _, p := range r.Players {
		if seen[p.UserID] {
			return errors.New("duplicate player")
		}
		seen[p.UserID] = true
		switch p.Symbol {
		case game.X:
			xCount++
		case game.O:
			oCount++
		default:
			return errors.New("player without symbol")
		}
	}
	if xCount > 1 || oCount > 1 {
		return errors.New("duplicate symbol")
	}
	if len(r.Players) > 0 && !r.Has(r.HostID) {
		return errors.New("host is not a member")
	}
	switch r.Status {
	case StatusPlaying:
		if len(r.Players) != MaxPlayers || !r.AllReady() {
			return errors.New("playing without two ready players")
		}
		if !r.Has(r.CurrentTurn) {
			return errors.New("current turn is not a member")
		}
		if r.Board.Evaluate().Finished {
			return errors.New("playing on a finished board")
		}
	case StatusFinished:
		if r.Winner == "" {
			return errors.New("finished without winner")
		}
	}
	return nil
}
