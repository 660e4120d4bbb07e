package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/playxo/xo-backend/internal/apperror"
	"github.com/playxo/xo-backend/internal/entity"
	"github.com/playxo/xo-backend/internal/pkg"
	"github.com/playxo/xo-backend/internal/tictactoe"
)

const maxRoomCodeAttempts = 5

var ErrRoomCodeExhausted = errors.New("could not allocate a unique room code")

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	DeleteByCode(ctx context.Context, code string) error
}

type participantRepo interface {
	CreateOrUpdate(ctx context.Context, participant *entity.Participant) error
	GetByID(ctx context.Context, id string) (*entity.Participant, error)
	DeleteByID(ctx context.Context, id string) error
}

// RoomManager owns every room and binding transition. All operations run
// under one mutex, so two events can never interleave on the same room.
type RoomManager struct {
	logger *slog.Logger

	mu              sync.Mutex
	roomRepo        roomRepo
	participantRepo participantRepo
}

func NewRoomManager(logger *slog.Logger, roomRepo roomRepo, participantRepo participantRepo) *RoomManager {
	return &RoomManager{
		logger: logger,

		roomRepo:        roomRepo,
		participantRepo: participantRepo,
	}
}

// JoinResult describes the outcome of CreateOrJoin for the transport layer.
// Vacated is set when the connection had to leave a previous room first.
type JoinResult struct {
	Room    *entity.Room
	Self    *entity.Participant
	Created bool
	Vacated *LeaveResult
}

// LeaveResult names the room a connection departed from. Remaining is the
// participant still seated there, or nil when the room was destroyed.
type LeaveResult struct {
	RoomCode  string
	Remaining *entity.Participant
}

type MoveResult struct {
	Room   *entity.Room
	Cell   int
	Symbol entity.Symbol
}

// CreateOrJoin binds a connection to a room: a fresh one when roomCode is
// empty, the referenced one otherwise. A connection holds only one binding at
// a time, so an existing binding is released first; even when the join itself
// fails, the returned result carries that departure so the old opponent can
// still be notified.
func (that *RoomManager) CreateOrJoin(ctx context.Context, connID, roomCode string) (*JoinResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	result := &JoinResult{}

	binding, err := that.participantRepo.GetByID(ctx, connID)
	if err != nil && !errors.Is(err, apperror.ErrParticipantNotFound) {
		return result, fmt.Errorf("failed to get binding: %w", err)
	}

	if binding != nil && binding.RoomCode != "" {
		vacated, leaveErr := that.leaveLocked(ctx, binding)
		if leaveErr != nil {
			return result, fmt.Errorf("failed to leave previous room: %w", leaveErr)
		}
		result.Vacated = vacated
	}

	roomCode = NormalizeRoomCode(roomCode)
	if roomCode == "" {
		return that.createRoomLocked(ctx, connID, result)
	}

	return that.joinRoomLocked(ctx, connID, roomCode, result)
}

func (that *RoomManager) createRoomLocked(ctx context.Context, connID string, result *JoinResult) (*JoinResult, error) {
	log := that.logger.With("method", "createRoom")

	code, err := that.allocateRoomCode(ctx)
	if err != nil {
		return result, err
	}

	room := entity.NewRoom(code)

	participant := &entity.Participant{
		ID:       connID,
		Symbol:   entity.SymbolX,
		RoomCode: code,
	}

	if err = room.AddParticipant(participant); err != nil {
		return result, fmt.Errorf("failed to seat creator: %w", err)
	}

	if err = that.participantRepo.CreateOrUpdate(ctx, participant); err != nil {
		return result, fmt.Errorf("failed to save binding: %w", err)
	}

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return result, fmt.Errorf("failed to save room: %w", err)
	}

	log.Info("room created", "roomCode", code, "connID", connID)

	result.Room = room
	result.Self = participant
	result.Created = true

	return result, nil
}

func (that *RoomManager) joinRoomLocked(ctx context.Context, connID, roomCode string, result *JoinResult) (*JoinResult, error) {
	log := that.logger.With("method", "joinRoom")

	room, err := that.roomRepo.GetByCode(ctx, roomCode)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return result, apperror.ErrRoomNotFound
	}

	if err != nil {
		return result, fmt.Errorf("failed to get room: %w", err)
	}

	if room.IsFull() {
		return result, apperror.ErrRoomFull
	}

	if !room.IsWaiting() || len(room.Participants) != 1 {
		return result, apperror.ErrRoomUnavailable
	}

	participant := &entity.Participant{
		ID:       connID,
		Symbol:   room.Creator().Symbol.Other(),
		RoomCode: roomCode,
	}

	if err = room.AddParticipant(participant); err != nil {
		return result, err
	}

	room.Status = entity.StatusPlaying

	if err = that.participantRepo.CreateOrUpdate(ctx, participant); err != nil {
		return result, fmt.Errorf("failed to save binding: %w", err)
	}

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return result, fmt.Errorf("failed to save room: %w", err)
	}

	log.Info("participant joined room", "roomCode", roomCode, "connID", connID)

	result.Room = room
	result.Self = participant

	return result, nil
}

// Leave releases the connection's binding, destroying the room when it
// becomes empty. A nil result means the connection was not bound anywhere.
func (that *RoomManager) Leave(ctx context.Context, connID string) (*LeaveResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	binding, err := that.participantRepo.GetByID(ctx, connID)
	if errors.Is(err, apperror.ErrParticipantNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}

	return that.leaveLocked(ctx, binding)
}

// Disconnect is Leave triggered by a transport-level disconnection.
func (that *RoomManager) Disconnect(ctx context.Context, connID string) (*LeaveResult, error) {
	return that.Leave(ctx, connID)
}

func (that *RoomManager) leaveLocked(ctx context.Context, binding *entity.Participant) (*LeaveResult, error) {
	log := that.logger.With("method", "leave")

	result := &LeaveResult{RoomCode: binding.RoomCode}

	room, err := that.roomRepo.GetByCode(ctx, binding.RoomCode)
	if err != nil && !errors.Is(err, apperror.ErrRoomNotFound) {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if room != nil {
		room.RemoveParticipant(binding.ID)

		if room.IsEmpty() {
			if err = that.roomRepo.DeleteByCode(ctx, room.Code); err != nil {
				log.Error("failed to delete empty room", "roomCode", room.Code, "error", err)
			}
			log.Info("room destroyed", "roomCode", room.Code)
		} else {
			// The remaining participant is simply left waiting; the room
			// status is deliberately not reverted.
			if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
				return nil, fmt.Errorf("failed to save room: %w", err)
			}
			result.Remaining = room.Participants[0]
		}
	}

	if err = that.participantRepo.DeleteByID(ctx, binding.ID); err != nil {
		return nil, fmt.Errorf("failed to delete binding: %w", err)
	}

	log.Info("participant left room", "roomCode", binding.RoomCode, "connID", binding.ID)

	return result, nil
}

// MakeMove applies a move for the connection bound to roomCode.
func (that *RoomManager) MakeMove(ctx context.Context, connID, roomCode string, cell int) (*MoveResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	binding, err := that.participantRepo.GetByID(ctx, connID)
	if errors.Is(err, apperror.ErrParticipantNotFound) {
		return nil, apperror.ErrInvalidMove
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}

	if binding.RoomCode != NormalizeRoomCode(roomCode) {
		return nil, apperror.ErrInvalidMove
	}

	room, err := that.roomRepo.GetByCode(ctx, binding.RoomCode)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return nil, apperror.ErrInvalidMove
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if err = tictactoe.ApplyMove(room, binding.Symbol, cell); err != nil {
		return nil, err
	}

	// Finished rooms stay alive: the next round starts on reset.
	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to save room: %w", err)
	}

	return &MoveResult{
		Room:   room,
		Cell:   cell,
		Symbol: binding.Symbol,
	}, nil
}

// Reset starts the next round in the requester's room. Only a participant
// bound to that room may reset it.
func (that *RoomManager) Reset(ctx context.Context, connID, roomCode string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	binding, err := that.participantRepo.GetByID(ctx, connID)
	if errors.Is(err, apperror.ErrParticipantNotFound) {
		return nil, apperror.ErrNotInRoom
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get binding: %w", err)
	}

	roomCode = NormalizeRoomCode(roomCode)

	room, err := that.roomRepo.GetByCode(ctx, roomCode)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if binding.RoomCode != room.Code {
		return nil, apperror.ErrNotInRoom
	}

	tictactoe.Reset(room)

	// Symbols may have swapped, push the reassignment into the bindings.
	for _, participant := range room.Participants {
		if err = that.participantRepo.CreateOrUpdate(ctx, participant); err != nil {
			return nil, fmt.Errorf("failed to save binding: %w", err)
		}
	}

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to save room: %w", err)
	}

	that.logger.With("method", "reset").Info("room reset", "roomCode", room.Code, "turn", room.Turn)

	return room, nil
}

func (that *RoomManager) allocateRoomCode(ctx context.Context) (string, error) {
	for i := 0; i < maxRoomCodeAttempts; i++ {
		code := pkg.GenerateRoomCode()

		_, err := that.roomRepo.GetByCode(ctx, code)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			return code, nil
		}

		if err != nil {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}
	}

	return "", ErrRoomCodeExhausted
}

// NormalizeRoomCode trims and uppercases a hand-entered room code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
