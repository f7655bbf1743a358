package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

type Health struct {
	OK bool   `json:"ok"`
	DB string `json:"db,omitempty"`
}

type RoomPlayer struct {
	Symbol   string `json:"symbol"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
}

type RoomSummary struct {
	ID          string                `json:"id"`
	HostID      string                `json:"hostId"`
	Status      string                `json:"status"`
	Players     map[string]RoomPlayer `json:"players"`
	PlayerCount int                   `json:"playerCount"`
	CreatedAt   time.Time             `json:"createdAt"`
}

type RoomDetail struct {
	RoomSummary
	Board       []*string `json:"board"`
	CurrentTurn string    `json:"currentTurn,omitempty"`
	Winner      string    `json:"winner,omitempty"`
}

type OnlineUser struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Status    string `json:"status"`
}

type IssuedToken struct {
	UserID    string     `json:"userId"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Output renders results as JSON or as aligned text.
type Output struct {
	w      io.Writer
	format string
}

func NewOutput(w io.Writer, format string) *Output {
	return &Output{w: w, format: format}
}

func (o *Output) Print(v any) error {
	if o.format == "json" {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	switch v := v.(type) {
	case Health:
		return o.printHealth(v)
	case []RoomSummary:
		return o.printRooms(v)
	case RoomDetail:
		return o.printRoom(v)
	case []OnlineUser:
		return o.printUsers(v)
	case IssuedToken:
		_, err := fmt.Fprintln(o.w, v.Token)
		return err
	default:
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func (o *Output) printHealth(h Health) error {
	state := "ok"
	if !h.OK {
		state = "unhealthy"
	}
	if h.DB != "" {
		_, err := fmt.Fprintf(o.w, "%s (db %s)\n", state, h.DB)
		return err
	}
	_, err := fmt.Fprintln(o.w, state)
	return err
}

func (o *Output) printRooms(rooms []RoomSummary) error {
	if len(rooms) == 0 {
		_, err := fmt.Fprintln(o.w, "no rooms")
		return err
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPLAYERS\tHOST")
	for _, r := range rooms {
		host := r.HostID
		if p, ok := r.Players[r.HostID]; ok {
			host = p.Username
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/2\t%s\n", r.ID, r.Status, r.PlayerCount, host)
	}
	return tw.Flush()
}

func (o *Output) printRoom(r RoomDetail) error {
	fmt.Fprintf(o.w, "Room %s (%s)\n", r.ID, r.Status)
	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.Players[ids[i]].Symbol < r.Players[ids[j]].Symbol })
	for _, id := range ids {
		p := r.Players[id]
		line := fmt.Sprintf("  %s %s", p.Symbol, p.Username)
		if p.Ready {
			line += " (ready)"
		}
		if id == r.CurrentTurn && r.Status == "playing" {
			line += " <- to move"
		}
		fmt.Fprintln(o.w, line)
	}
	if len(r.Board) == 9 {
		for row := 0; row < 3; row++ {
			cells := make([]string, 3)
			for col := 0; col < 3; col++ {
				cells[col] = "."
				if c := r.Board[row*3+col]; c != nil {
					cells[col] = *c
				}
			}
			fmt.Fprintln(o.w, "  "+strings.Join(cells, " "))
		}
	}
	if r.Winner != "" {
		winner := r.Winner
		if p, ok := r.Players[r.Winner]; ok {
			winner = p.Username
		}
		_, err := fmt.Fprintf(o.w, "Winner: %s\n", winner)
		return err
	}
	return nil
}

func (o *Output) printUsers(users []OnlineUser) error {
	if len(users) == 0 {
		_, err := fmt.Fprintln(o.w, "nobody online")
		return err
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tNAME\tSTATUS")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Username, strings.TrimSpace(u.FirstName+" "+u.LastName), u.Status)
	}
	return tw.Flush()
}
