package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/playxo/xo-backend/internal/apperror"
)

// Client-facing error texts.
const (
	msgRoomFull        = "Room is full. Please create a new game or join a different room."
	msgRoomNotFound    = "Room does not exist. Please check the Room ID or create a new game."
	msgRoomUnavailable = "Room is unavailable. Please create a new game or join a different room."
	msgInvalidMove     = "Invalid move"
	msgNotInProgress   = "Game is not in progress"
	msgNotYourTurn     = "Not your turn"
	msgCellOccupied    = "Cell already occupied"
	msgInvalidCell     = "Invalid cell index"
	msgNotInRoom       = "You are not a participant of this room"
)

func (that *Server) handleJoinGame(ctx context.Context, conn *connection, payload json.RawMessage) error {
	log := conn.log.With("method", "handleJoinGame")

	var payloadReq JoinGamePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &payloadReq); err != nil {
			log.Error("malformed payload", "error", err)
			return conn.send(eventJoinError, ErrorPayload{Message: msgRoomNotFound})
		}
	}

	result, err := that.rooms.CreateOrJoin(ctx, conn.id, payloadReq.RoomCode)

	// The requester may have vacated a previous room even when the join
	// itself failed; its old opponent still has to hear about it.
	if result != nil && result.Vacated != nil && result.Vacated.Remaining != nil {
		that.notify(result.Vacated.Remaining.ID, eventOpponentLeft, struct{}{})
	}

	if err != nil {
		log.Error("failed to join", "roomCode", payloadReq.RoomCode, "error", err)
		return conn.send(eventJoinError, ErrorPayload{Message: joinErrorMessage(err)})
	}

	room, self := result.Room, result.Self

	if err = conn.send(eventGameJoined, GameJoinedPayload{
		RoomCode: room.Code,
		Symbol:   self.Symbol,
		YourTurn: room.Turn == self.Symbol,
	}); err != nil {
		return err
	}

	if result.Created {
		return nil
	}

	// Second seat taken: tell the creator and start the game for both.
	if creator := room.Creator(); creator != nil {
		that.notify(creator.ID, eventOpponentJoined, OpponentJoinedPayload{
			Symbol:   creator.Symbol,
			YourTurn: room.Turn == creator.Symbol,
		})
	}

	that.broadcast(room, eventGameStart, GameStartPayload{CurrentPlayer: room.Turn})

	log.Info("game started", "roomCode", room.Code)

	return nil
}

func (that *Server) handleMakeMove(ctx context.Context, conn *connection, payload json.RawMessage) error {
	log := conn.log.With("method", "handleMakeMove")

	var payloadReq MakeMovePayload
	if err := json.Unmarshal(payload, &payloadReq); err != nil || payloadReq.Cell == nil {
		log.Error("malformed payload", "error", err)
		return conn.send(eventMoveError, ErrorPayload{Message: msgInvalidMove})
	}

	result, err := that.rooms.MakeMove(ctx, conn.id, payloadReq.RoomCode, *payloadReq.Cell)
	if err != nil {
		log.Error("failed to make move", "roomCode", payloadReq.RoomCode, "error", err)
		return conn.send(eventMoveError, ErrorPayload{Message: moveErrorMessage(err)})
	}

	room := result.Room

	if room.IsFinished() {
		that.broadcast(room, eventGameOver, GameOverPayload{
			Winner: room.Winner,
			Board:  room.Board,
		})

		log.Info("game over", "roomCode", room.Code, "winner", room.Winner)

		return nil
	}

	that.broadcast(room, eventMoveMade, MoveMadePayload{
		Cell:          result.Cell,
		Symbol:        result.Symbol,
		CurrentPlayer: room.Turn,
		Board:         room.Board,
	})

	return nil
}

func (that *Server) handleResetGame(ctx context.Context, conn *connection, payload json.RawMessage) error {
	log := conn.log.With("method", "handleResetGame")

	var payloadReq ResetGamePayload
	if err := json.Unmarshal(payload, &payloadReq); err != nil {
		log.Error("malformed payload", "error", err)
		return conn.send(eventMoveError, ErrorPayload{Message: msgNotInRoom})
	}

	room, err := that.rooms.Reset(ctx, conn.id, payloadReq.RoomCode)
	if err != nil {
		log.Error("failed to reset", "roomCode", payloadReq.RoomCode, "error", err)
		return conn.send(eventMoveError, ErrorPayload{Message: resetErrorMessage(err)})
	}

	payloadResp := GameResetPayload{
		CurrentPlayer: room.Turn,
		Player1Symbol: room.Creator().Symbol,
	}
	if opponent := room.OpponentOf(room.Creator().ID); opponent != nil {
		payloadResp.Player2Symbol = opponent.Symbol
	}

	that.broadcast(room, eventGameReset, payloadResp)

	log.Info("round reset", "roomCode", room.Code, "turn", room.Turn)

	return nil
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperror.ErrRoomFull):
		return msgRoomFull
	case errors.Is(err, apperror.ErrRoomNotFound):
		return msgRoomNotFound
	default:
		return msgRoomUnavailable
	}
}

func moveErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperror.ErrGameNotInProgress):
		return msgNotInProgress
	case errors.Is(err, apperror.ErrNotYourTurn):
		return msgNotYourTurn
	case errors.Is(err, apperror.ErrCellOccupied):
		return msgCellOccupied
	case errors.Is(err, apperror.ErrInvalidCell):
		return msgInvalidCell
	default:
		return msgInvalidMove
	}
}

func resetErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		return msgRoomNotFound
	case errors.Is(err, apperror.ErrNotInRoom):
		return msgNotInRoom
	default:
		return msgInvalidMove
	}
}
