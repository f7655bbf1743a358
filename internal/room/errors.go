package room

import (
	"errors"

	"tictactoe-lobby/internal/game"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrGameInProgress    = errors.New("game already in progress")
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyInRoom     = errors.New("already in a room")
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrNotConnected      = errors.New("not connected")
)

var validationErrors = []error{
	ErrRoomNotFound,
	ErrGameInProgress,
	ErrRoomFull,
	ErrAlreadyInRoom,
	ErrGameNotInProgress,
	ErrNotYourTurn,
	ErrNotConnected,
}

// IsValidation reports whether err is a rule violation rather than a fault.
func IsValidation(err error) bool {
	if errors.Is(err, game.ErrPositionOutOfRange) || errors.Is(err, game.ErrCellOccupied) {
		return true
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// ErrorMessage maps an operation error to the text sent to the requester.
// Anything unrecognised becomes "failed to <op>".
func ErrorMessage(op string, err error) string {
	switch {
	case errors.Is(err, game.ErrPositionOutOfRange):
		return "invalid move: " + game.ErrPositionOutOfRange.Error()
	case errors.Is(err, game.ErrCellOccupied):
		return "invalid move: " + game.ErrCellOccupied.Error()
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return v.Error()
		}
	}
	return "failed to " + op
}
