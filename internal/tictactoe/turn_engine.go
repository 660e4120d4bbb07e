package tictactoe

import (
	"fmt"

	"github.com/playxo/xo-backend/internal/apperror"
	"github.com/playxo/xo-backend/internal/entity"
)

// ApplyMove validates a move against the room state, places the symbol and
// advances the game: finishes it on a win or a draw, toggles the turn
// otherwise. The room is left untouched when an error is returned.
func ApplyMove(room *entity.Room, symbol entity.Symbol, cell int) error {
	if !room.IsPlaying() {
		return apperror.ErrGameNotInProgress
	}

	if err := validateMove(room, symbol, cell); err != nil {
		return err
	}

	room.Board[cell] = symbol
	advance(room, symbol)

	return nil
}

// validateMove - checks bounds, turn order and occupancy.
func validateMove(room *entity.Room, symbol entity.Symbol, cell int) error {
	if cell < 0 || cell >= len(room.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if room.Turn != symbol {
		return apperror.ErrNotYourTurn
	}

	if room.Board[cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}

// advance - evaluates the board after a move. A win takes precedence over a draw.
func advance(room *entity.Room, symbol entity.Symbol) {
	switch winner := Outcome(room.Board); winner {
	case entity.WinnerX, entity.WinnerO, entity.WinnerDraw:
		room.Winner = winner
		room.Status = entity.StatusFinished
	default:
		room.Turn = symbol.Other()
	}
}

// Outcome returns the winner of the board, WinnerDraw for a full board without
// a winning triple, or WinnerNone while the game is still open.
func Outcome(board [entity.BoardSize]entity.Symbol) entity.Winner {
	for _, triple := range entity.WinTriples {
		a, b, c := board[triple[0]], board[triple[1]], board[triple[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return entity.Winner(a)
		}
	}

	for _, cell := range board {
		if cell == entity.EmptyCell {
			return entity.WinnerNone
		}
	}

	return entity.WinnerDraw
}

// Reset clears the board for the next round. The creator is handed the
// opposite starting symbol from the previous round and moves first; the other
// participant gets the complement.
func Reset(room *entity.Room) {
	room.ClearBoard()
	room.Winner = entity.WinnerNone
	room.Status = entity.StatusPlaying
	room.CreatorIsX = !room.CreatorIsX

	creatorSymbol := entity.SymbolO
	if room.CreatorIsX {
		creatorSymbol = entity.SymbolX
	}

	for i, participant := range room.Participants {
		if i == 0 {
			participant.Symbol = creatorSymbol
			continue
		}
		participant.Symbol = creatorSymbol.Other()
	}

	room.Turn = creatorSymbol
}
