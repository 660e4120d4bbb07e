package apperror

import "errors"

var (
	// Join-time errors.
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomUnavailable = errors.New("room is unavailable")

	// Move-time errors.
	ErrInvalidMove       = errors.New("invalid move")
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrInvalidCell       = errors.New("invalid cell index")

	ErrNotInRoom           = errors.New("not a participant of this room")
	ErrParticipantNotFound = errors.New("participant not found")
)
