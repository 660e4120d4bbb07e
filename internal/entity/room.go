package entity

import "github.com/playxo/xo-backend/internal/apperror"

// Symbol is one of the two marks a participant places on the board.
type Symbol string

const (
	SymbolX Symbol = "X"
	SymbolO Symbol = "O"

	EmptyCell Symbol = ""
)

// Other returns the opposing symbol.
func (that Symbol) Other() Symbol {
	if that == SymbolX {
		return SymbolO
	}
	return SymbolX
}

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Winner is the outcome of a finished round.
type Winner string

const (
	WinnerX    Winner = "X"
	WinnerO    Winner = "O"
	WinnerDraw Winner = "draw"
	WinnerNone Winner = ""
)

const (
	BoardSize       = 9
	MaxParticipants = 2
)

// WinTriples are the 8 index sets whose equal, non-empty occupancy signals a win.
var WinTriples = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Room is one game session shared by up to two connections.
// Participants[0] is always the room creator.
type Room struct {
	Code         string            `json:"code"`
	Board        [BoardSize]Symbol `json:"board"`
	Turn         Symbol            `json:"turn"`
	Status       Status            `json:"status"`
	Winner       Winner            `json:"winner,omitempty"`
	Participants []*Participant    `json:"participants,omitempty"`
	CreatorIsX   bool              `json:"creator_is_x"`
}

func NewRoom(code string) *Room {
	return &Room{
		Code:       code,
		Turn:       SymbolX,
		Status:     StatusWaiting,
		CreatorIsX: true,
	}
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Room) IsEmpty() bool {
	return len(that.Participants) == 0
}

func (that *Room) IsFull() bool {
	return len(that.Participants) >= MaxParticipants
}

// Creator returns the participant that opened the room, or nil.
func (that *Room) Creator() *Participant {
	if len(that.Participants) == 0 {
		return nil
	}
	return that.Participants[0]
}

// OpponentOf returns the other participant of the room, or nil.
func (that *Room) OpponentOf(participantID string) *Participant {
	for _, participant := range that.Participants {
		if participant.ID != participantID {
			return participant
		}
	}
	return nil
}

func (that *Room) AddParticipant(participant *Participant) error {
	if that.IsFull() {
		return apperror.ErrRoomFull
	}

	that.Participants = append(that.Participants, participant)

	return nil
}

func (that *Room) RemoveParticipant(participantID string) {
	for i, participant := range that.Participants {
		if participant.ID == participantID {
			that.Participants = append(that.Participants[:i], that.Participants[i+1:]...)
			return
		}
	}
}

// ClearBoard empties every cell without touching the rest of the state.
func (that *Room) ClearBoard() {
	for i := range that.Board {
		that.Board[i] = EmptyCell
	}
}

// BoardFull reports whether every cell is occupied.
func (that *Room) BoardFull() bool {
	for _, cell := range that.Board {
		if cell == EmptyCell {
			return false
		}
	}
	return true
}
