package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/playxo/xo-backend/internal/entity"
	"github.com/playxo/xo-backend/internal/pkg"
	"github.com/playxo/xo-backend/internal/usecase"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

type roomManager interface {
	CreateOrJoin(ctx context.Context, connID, roomCode string) (*usecase.JoinResult, error)
	Disconnect(ctx context.Context, connID string) (*usecase.LeaveResult, error)
	MakeMove(ctx context.Context, connID, roomCode string, cell int) (*usecase.MoveResult, error)
	Reset(ctx context.Context, connID, roomCode string) (*entity.Room, error)
}

type Server struct {
	logger *slog.Logger
	rooms  roomManager

	upgrader websocket.Upgrader

	// eventMutex keeps each inbound event atomic from state change through
	// the broadcasts it produces, so no two events interleave in between.
	eventMutex sync.Mutex

	connectionsMutex sync.RWMutex
	connections      map[string]*connection

	handlers map[string]func(ctx context.Context, conn *connection, payload json.RawMessage) error
}

// connection is one live client. Broadcasts may target it from another
// client's read goroutine, so writes go through its own mutex.
type connection struct {
	id  string
	ws  *websocket.Conn
	mu  sync.Mutex
	log *slog.Logger
}

func (that *connection) send(action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if err = that.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err = that.ws.WriteJSON(Message{Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func New(logger *slog.Logger, rooms roomManager, allowedOrigin string) *Server {
	server := &Server{
		logger: logger,
		rooms:  rooms,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},

		connections: make(map[string]*connection),
		handlers:    make(map[string]func(context.Context, *connection, json.RawMessage) error),
	}

	server.handlers[actionJoinGame] = server.handleJoinGame
	server.handlers[actionMakeMove] = server.handleMakeMove
	server.handlers[actionResetGame] = server.handleResetGame

	return server
}

func originChecker(allowedOrigin string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		if allowedOrigin == "*" {
			return true
		}
		return req.Header.Get("Origin") == allowedOrigin
	}
}

// Start - starts the WebSocket server and keeps it up until ctx is canceled.
func (that *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}

		return nil
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
}

// Handler exposes the /ws endpoint for tests.
func (that *Server) Handler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	connID := pkg.GenerateConnectionID()
	conn := &connection{
		id:  connID,
		ws:  ws,
		log: that.logger.With("connID", connID),
	}

	ws.SetReadLimit(maxMessageSize)

	that.connectionsMutex.Lock()
	that.connections[connID] = conn
	that.connectionsMutex.Unlock()

	log.Info("connection established", "connID", connID)

	defer that.closeConnection(ctx, conn)

	that.readLoop(ctx, conn)
}

func (that *Server) readLoop(ctx context.Context, conn *connection) {
	log := conn.log.With("method", "readLoop")

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("unexpected close", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(raw, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		that.dispatch(ctx, conn, message.Action, handler, message.Payload)
	}
}

// dispatch runs one handler, confining a panic to this connection.
func (that *Server) dispatch(ctx context.Context, conn *connection, action string, handler func(context.Context, *connection, json.RawMessage) error, payload json.RawMessage) {
	log := conn.log.With("method", "dispatch", "action", action)

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", "panic", r)
		}
	}()

	that.eventMutex.Lock()
	defer that.eventMutex.Unlock()

	if err := handler(ctx, conn, payload); err != nil {
		log.Error("failed to process message", "error", err)
	}
}

func (that *Server) closeConnection(ctx context.Context, conn *connection) {
	log := conn.log.With("method", "closeConnection")

	that.connectionsMutex.Lock()
	delete(that.connections, conn.id)
	that.connectionsMutex.Unlock()

	_ = conn.ws.Close()

	that.eventMutex.Lock()
	defer that.eventMutex.Unlock()

	result, err := that.rooms.Disconnect(ctx, conn.id)
	if err != nil {
		log.Error("failed to release binding", "error", err)
		return
	}

	if result != nil && result.Remaining != nil {
		that.notify(result.Remaining.ID, eventOpponentLeft, struct{}{})
	}

	log.Info("connection closed")
}

// notify sends an event to a single participant if it is still connected.
func (that *Server) notify(connID, action string, payload any) {
	that.connectionsMutex.RLock()
	conn, ok := that.connections[connID]
	that.connectionsMutex.RUnlock()

	if !ok {
		that.logger.Warn("connection not found for participant", "connID", connID)
		return
	}

	if err := conn.send(action, payload); err != nil {
		that.logger.Error("failed to send event", "action", action, "connID", connID, "error", err)
	}
}

// broadcast sends an event to every participant of the room.
func (that *Server) broadcast(room *entity.Room, action string, payload any) {
	for _, participant := range room.Participants {
		that.notify(participant.ID, action, payload)
	}
}
