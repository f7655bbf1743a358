package game

import (
	"encoding/json"
	"errors"
)

var (
	ErrPositionOutOfRange = errors.New("position must be between 0 and 8")
	ErrCellOccupied       = errors.New("position already taken")
	ErrInvalidSymbol      = errors.New("invalid symbol")
)

type Symbol string

const (
	NoSymbol Symbol = ""
	X        Symbol = "X"
	O        Symbol = "O"
)

// Other returns the opposing symbol; NoSymbol maps to itself.
func (s Symbol) Other() Symbol {
	switch s {
	case X:
		return O
	case O:
		return X
	default:
		return NoSymbol
	}
}

const Cells = 9

// Board is a 3x3 grid in row-major order.
type Board [Cells]Symbol

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type Result struct {
	Finished bool
	Draw     bool
	Symbol   Symbol
}

func (b *Board) Place(pos int, s Symbol) error {
	if s != X && s != O {
		return ErrInvalidSymbol
	}
	if pos < 0 || pos >= Cells {
		return ErrPositionOutOfRange
	}
	if b[pos] != NoSymbol {
		return ErrCellOccupied
	}
	b[pos] = s
	return nil
}

func (b Board) Evaluate() Result {
	for _, l := range lines {
		s := b[l[0]]
		if s != NoSymbol && s == b[l[1]] && s == b[l[2]] {
			return Result{Finished: true, Symbol: s}
		}
	}
	if b.Full() {
		return Result{Finished: true, Draw: true}
	}
	return Result{}
}

func (b Board) Empty() bool {
	for _, s := range b {
		if s != NoSymbol {
			return false
		}
	}
	return true
}

func (b Board) Full() bool {
	for _, s := range b {
		if s == NoSymbol {
			return false
		}
	}
	return true
}

func (b Board) EmptyCells() []int {
	out := make([]int, 0, Cells)
	for i, s := range b {
		if s == NoSymbol {
			out = append(out, i)
		}
	}
	return out
}

// Filled counts non-empty cells.
func (b Board) Filled() int {
	return Cells - len(b.EmptyCells())
}

// MarshalJSON writes nine entries, null for empty cells.
func (b Board) MarshalJSON() ([]byte, error) {
	out := make([]*string, Cells)
	for i, s := range b {
		if s != NoSymbol {
			v := string(s)
			out[i] = &v
		}
	}
	return json.Marshal(out)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var in []*string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in) != Cells {
		return errors.New("board must have 9 cells")
	}
	var next Board
	for i, v := range in {
		if v == nil {
			continue
		}
		s := Symbol(*v)
		if s != X && s != O {
			return ErrInvalidSymbol
		}
		next[i] = s
	}
	*b = next
	return nil
}
