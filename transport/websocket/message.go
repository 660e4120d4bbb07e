package websocket

import (
	"encoding/json"

	"github.com/playxo/xo-backend/internal/entity"
)

// Inbound actions.
const (
	actionJoinGame  = "join-game"
	actionMakeMove  = "make-move"
	actionResetGame = "reset-game"
)

// Outbound events.
const (
	eventGameJoined     = "game-joined"
	eventOpponentJoined = "opponent-joined"
	eventGameStart      = "game-start"
	eventJoinError      = "join-error"
	eventMoveMade       = "move-made"
	eventMoveError      = "move-error"
	eventGameOver       = "game-over"
	eventGameReset      = "game-reset"
	eventOpponentLeft   = "opponent-left"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinGamePayload struct {
	RoomCode string `json:"room_code"`
}

type MakeMovePayload struct {
	RoomCode string `json:"room_code"`
	Cell     *int   `json:"cell"`
}

type ResetGamePayload struct {
	RoomCode string `json:"room_code"`
}

type GameJoinedPayload struct {
	RoomCode string        `json:"room_code"`
	Symbol   entity.Symbol `json:"symbol"`
	YourTurn bool          `json:"your_turn"`
}

// OpponentJoinedPayload describes the recipient's own seat once the second
// participant has arrived.
type OpponentJoinedPayload struct {
	Symbol   entity.Symbol `json:"symbol"`
	YourTurn bool          `json:"your_turn"`
}

type GameStartPayload struct {
	CurrentPlayer entity.Symbol `json:"current_player"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type MoveMadePayload struct {
	Cell          int                             `json:"cell"`
	Symbol        entity.Symbol                   `json:"symbol"`
	CurrentPlayer entity.Symbol                   `json:"current_player"`
	Board         [entity.BoardSize]entity.Symbol `json:"board"`
}

type GameOverPayload struct {
	Winner entity.Winner                   `json:"winner"`
	Board  [entity.BoardSize]entity.Symbol `json:"board"`
}

type GameResetPayload struct {
	CurrentPlayer entity.Symbol `json:"current_player"`
	Player1Symbol entity.Symbol `json:"player1_symbol"`
	Player2Symbol entity.Symbol `json:"player2_symbol,omitempty"`
}
