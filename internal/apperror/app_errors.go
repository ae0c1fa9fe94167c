package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrNotInGame        = errors.New("player is not part of this game")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("cell is out of range")
	ErrRoomFull         = errors.New("room is already full")
	ErrAlreadyJoined    = errors.New("player already joined a room")
)
