package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playxo/xo-backend/internal/apperror"
	"github.com/playxo/xo-backend/internal/entity"
	"github.com/playxo/xo-backend/internal/usecase"
)

// In-memory repositories backing the real RoomManager, so the full
// join/move/broadcast path runs without Redis.
type memRoomRepo struct {
	rooms map[string]*entity.Room
}

func (that *memRoomRepo) CreateOrUpdate(_ context.Context, room *entity.Room) error {
	that.rooms[room.Code] = clone(room)
	return nil
}

func (that *memRoomRepo) GetByCode(_ context.Context, code string) (*entity.Room, error) {
	room, ok := that.rooms[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}
	return clone(room), nil
}

func (that *memRoomRepo) DeleteByCode(_ context.Context, code string) error {
	delete(that.rooms, code)
	return nil
}

type memParticipantRepo struct {
	participants map[string]*entity.Participant
}

func (that *memParticipantRepo) CreateOrUpdate(_ context.Context, participant *entity.Participant) error {
	that.participants[participant.ID] = clone(participant)
	return nil
}

func (that *memParticipantRepo) GetByID(_ context.Context, id string) (*entity.Participant, error) {
	participant, ok := that.participants[id]
	if !ok {
		return nil, apperror.ErrParticipantNotFound
	}
	return clone(participant), nil
}

func (that *memParticipantRepo) DeleteByID(_ context.Context, id string) error {
	delete(that.participants, id)
	return nil
}

func clone[T any](v *T) *T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	c := new(T)
	if err = json.Unmarshal(raw, c); err != nil {
		panic(err)
	}

	return c
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	return newTestServerWith(t, func(manager roomManager) roomManager { return manager })
}

// newTestServerWith lets a scenario wrap the manager, e.g. to slow a call
// down and provoke a particular interleaving.
func newTestServerWith(t *testing.T, wrap func(roomManager) roomManager) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := usecase.NewRoomManager(
		logger,
		&memRoomRepo{rooms: make(map[string]*entity.Room)},
		&memParticipantRepo{participants: make(map[string]*entity.Participant)},
	)
	server := New(logger, wrap(manager), "*")

	ts := httptest.NewServer(server.Handler(context.Background()))
	t.Cleanup(ts.Close)

	return ts
}

// client is one WebSocket peer in the scenarios below.
type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *client {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	return &client{t: t, conn: conn}
}

func (that *client) emit(action string, payload any) {
	that.t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(that.t, err)

	require.NoError(that.t, that.conn.WriteJSON(Message{Action: action, Payload: raw}))
}

// expect reads the next message and requires it to carry the given action,
// decoding its payload into out when out is non-nil.
func (that *client) expect(action string, out any) {
	that.t.Helper()

	require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var message Message
	require.NoError(that.t, that.conn.ReadJSON(&message))
	require.Equal(that.t, action, message.Action)

	if out != nil {
		require.NoError(that.t, json.Unmarshal(message.Payload, out))
	}
}

// startGame runs the create/join handshake and returns both peers plus the
// room code, consuming all handshake events.
func startGame(t *testing.T, ts *httptest.Server) (*client, *client, string) {
	t.Helper()

	clientA := dial(t, ts)
	clientA.emit(actionJoinGame, JoinGamePayload{})

	var joined GameJoinedPayload
	clientA.expect(eventGameJoined, &joined)

	clientB := dial(t, ts)
	clientB.emit(actionJoinGame, JoinGamePayload{RoomCode: joined.RoomCode})
	clientB.expect(eventGameJoined, nil)
	clientB.expect(eventGameStart, nil)

	clientA.expect(eventOpponentJoined, nil)
	clientA.expect(eventGameStart, nil)

	return clientA, clientB, joined.RoomCode
}

func TestServer_JoinHandshake(t *testing.T) {
	ts := newTestServer(t)

	// Given: connection A creates a game
	clientA := dial(t, ts)
	clientA.emit(actionJoinGame, JoinGamePayload{})

	// Then: A gets a fresh room code, symbol X and the first turn
	var joinedA GameJoinedPayload
	clientA.expect(eventGameJoined, &joinedA)
	assert.Len(t, joinedA.RoomCode, 8)
	assert.Equal(t, entity.SymbolX, joinedA.Symbol)
	assert.True(t, joinedA.YourTurn)

	// When: connection B joins by code
	clientB := dial(t, ts)
	clientB.emit(actionJoinGame, JoinGamePayload{RoomCode: joinedA.RoomCode})

	// Then: B gets symbol O without the turn
	var joinedB GameJoinedPayload
	clientB.expect(eventGameJoined, &joinedB)
	assert.Equal(t, joinedA.RoomCode, joinedB.RoomCode)
	assert.Equal(t, entity.SymbolO, joinedB.Symbol)
	assert.False(t, joinedB.YourTurn)

	// Then: both hear the game start with X to move
	var start GameStartPayload
	clientB.expect(eventGameStart, &start)
	assert.Equal(t, entity.SymbolX, start.CurrentPlayer)

	var opponent OpponentJoinedPayload
	clientA.expect(eventOpponentJoined, &opponent)
	assert.Equal(t, entity.SymbolX, opponent.Symbol)
	assert.True(t, opponent.YourTurn)

	clientA.expect(eventGameStart, &start)
	assert.Equal(t, entity.SymbolX, start.CurrentPlayer)
}

func TestServer_JoinErrors(t *testing.T) {
	t.Run("Unknown room code", func(t *testing.T) {
		ts := newTestServer(t)

		clientA := dial(t, ts)
		clientA.emit(actionJoinGame, JoinGamePayload{RoomCode: "NOSUCHRM"})

		var joinErr ErrorPayload
		clientA.expect(eventJoinError, &joinErr)
		assert.Equal(t, msgRoomNotFound, joinErr.Message)
	})

	t.Run("Full room", func(t *testing.T) {
		ts := newTestServer(t)
		_, _, roomCode := startGame(t, ts)

		clientC := dial(t, ts)
		clientC.emit(actionJoinGame, JoinGamePayload{RoomCode: roomCode})

		var joinErr ErrorPayload
		clientC.expect(eventJoinError, &joinErr)
		assert.Equal(t, msgRoomFull, joinErr.Message)
	})
}

func TestServer_MoveBroadcast(t *testing.T) {
	ts := newTestServer(t)
	clientA, clientB, roomCode := startGame(t, ts)

	// When: X moves to cell 4
	cell := 4
	clientA.emit(actionMakeMove, MakeMovePayload{RoomCode: roomCode, Cell: &cell})

	// Then: both participants see the same authoritative state
	for _, peer := range []*client{clientA, clientB} {
		var move MoveMadePayload
		peer.expect(eventMoveMade, &move)
		assert.Equal(t, 4, move.Cell)
		assert.Equal(t, entity.SymbolX, move.Symbol)
		assert.Equal(t, entity.SymbolO, move.CurrentPlayer)
		assert.Equal(t, entity.SymbolX, move.Board[4])
	}
}

func TestServer_MoveErrors(t *testing.T) {
	ts := newTestServer(t)
	clientA, clientB, roomCode := startGame(t, ts)

	// When: O moves while it is X's turn
	cell := 0
	clientB.emit(actionMakeMove, MakeMovePayload{RoomCode: roomCode, Cell: &cell})

	// Then: only B hears about it
	var moveErr ErrorPayload
	clientB.expect(eventMoveError, &moveErr)
	assert.Equal(t, msgNotYourTurn, moveErr.Message)

	// And: the board is unchanged; A's next event is a clean first move
	clientA.emit(actionMakeMove, MakeMovePayload{RoomCode: roomCode, Cell: &cell})

	var move MoveMadePayload
	clientA.expect(eventMoveMade, &move)
	assert.Equal(t, [entity.BoardSize]entity.Symbol{0: entity.SymbolX}, move.Board)
	clientB.expect(eventMoveMade, nil)

	// When: a move arrives without a cell
	clientB.emit(actionMakeMove, ResetGamePayload{RoomCode: roomCode})

	// Then: it is a validation error, not a server fault
	clientB.expect(eventMoveError, &moveErr)
	assert.Equal(t, msgInvalidMove, moveErr.Message)
}

// laggedMoveManager delays the return of the first move, widening the gap
// between the committed state and its fan-out.
type laggedMoveManager struct {
	roomManager
	lagged atomic.Bool
}

func (that *laggedMoveManager) MakeMove(ctx context.Context, connID, roomCode string, cell int) (*usecase.MoveResult, error) {
	result, err := that.roomManager.MakeMove(ctx, connID, roomCode, cell)
	if that.lagged.CompareAndSwap(false, true) {
		time.Sleep(150 * time.Millisecond)
	}
	return result, err
}

func TestServer_MoveBroadcastsKeepCommitOrder(t *testing.T) {
	ts := newTestServerWith(t, func(manager roomManager) roomManager {
		return &laggedMoveManager{roomManager: manager}
	})
	clientA, clientB, roomCode := startGame(t, ts)

	// When: X's move is slow to fan out and O answers right away
	cellA := 0
	clientA.emit(actionMakeMove, MakeMovePayload{RoomCode: roomCode, Cell: &cellA})
	time.Sleep(30 * time.Millisecond)
	cellB := 3
	clientB.emit(actionMakeMove, MakeMovePayload{RoomCode: roomCode, Cell: &cellB})

	// Then: both peers see the moves in commit order, and the last
	// board carries both marks
	for _, peer := range []*client{clientA, clientB} {
		var first, second MoveMadePayload
		peer.expect(eventMoveMade, &first)
		peer.expect(eventMoveMade, &second)

		assert.Equal(t, 0, first.Cell)
		assert.Equal(t, 3, second.Cell)
		assert.Equal(t, entity.SymbolX, second.Board[0])
		assert.Equal(t, entity.SymbolO, second.Board[3])
	}
}

func TestServer_FailedSwitchStillVacatesSeat(t *testing.T) {
	ts := newTestServer(t)
	clientA, clientB, _ := startGame(t, ts)

	// When: B tries to switch to a room that does not exist
	clientB.emit(actionJoinGame, JoinGamePayload{RoomCode: "NOSUCHRM"})

	// Then: B is refused, but its old seat is already gone and A hears
	// about the departure
	var joinErr ErrorPayload
	clientB.expect(eventJoinError, &joinErr)
	assert.Equal(t, msgRoomNotFound, joinErr.Message)

	clientA.expect(eventOpponentLeft, nil)
}

func TestServer_TopRowWin(t *testing.T) {
	ts := newTestServer(t)
	clientA, clientB, roomCode := startGame(t, ts)

	// When: X fills the top row with O interleaving on the middle row
	moves := []struct {
		peer *client
		cell int
	}{
		{clientA, 0}, {clientB, 3}, {clientA, 1}, {clientB, 4}, {clientA, 2},
	}

	for i, move := range moves {
		cell := move.cell
		move.peer.emit(actionMakeMove, MakeMovePayload{RoomCode: roomCode, Cell: &cell})

		event := eventMoveMade
		if i == len(moves)-1 {
			event = eventGameOver
		}
		clientA.expect(event, nil)

		if i == len(moves)-1 {
			// Then: both receive game-over with the winning board
			var over GameOverPayload
			clientB.expect(eventGameOver, &over)
			assert.Equal(t, entity.WinnerX, over.Winner)
			for _, cell := range []int{0, 1, 2} {
				assert.Equal(t, entity.SymbolX, over.Board[cell])
			}
		} else {
			clientB.expect(eventMoveMade, nil)
		}
	}
}

func TestServer_ResetBroadcast(t *testing.T) {
	ts := newTestServer(t)
	clientA, clientB, roomCode := startGame(t, ts)

	// When: a participant resets the room
	clientA.emit(actionResetGame, ResetGamePayload{RoomCode: roomCode})

	// Then: both hear the new assignment, creator now on O and starting
	for _, peer := range []*client{clientA, clientB} {
		var reset GameResetPayload
		peer.expect(eventGameReset, &reset)
		assert.Equal(t, entity.SymbolO, reset.CurrentPlayer)
		assert.Equal(t, entity.SymbolO, reset.Player1Symbol)
		assert.Equal(t, entity.SymbolX, reset.Player2Symbol)
	}

	// When: a stranger in its own room resets someone else's game
	clientC := dial(t, ts)
	clientC.emit(actionJoinGame, JoinGamePayload{})
	clientC.expect(eventGameJoined, nil)
	clientC.emit(actionResetGame, ResetGamePayload{RoomCode: roomCode})

	// Then: the stranger alone is told off
	var resetErr ErrorPayload
	clientC.expect(eventMoveError, &resetErr)
	assert.Equal(t, msgNotInRoom, resetErr.Message)
}

func TestServer_OpponentLeft(t *testing.T) {
	ts := newTestServer(t)
	clientA, clientB, _ := startGame(t, ts)

	// When: B disconnects mid-game
	require.NoError(t, clientB.conn.Close())

	// Then: A is notified that the opponent left
	clientA.expect(eventOpponentLeft, nil)
}

func TestServer_SwitchRoomNotifiesOldOpponent(t *testing.T) {
	ts := newTestServer(t)
	clientA, clientB, _ := startGame(t, ts)

	// When: B voluntarily moves to a fresh room
	clientB.emit(actionJoinGame, JoinGamePayload{})
	clientB.expect(eventGameJoined, nil)

	// Then: A hears that the opponent left
	clientA.expect(eventOpponentLeft, nil)
}
