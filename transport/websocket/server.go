package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/playgrid/tictactoe-server/internal/entity"
	"github.com/playgrid/tictactoe-server/internal/monitor"
	"github.com/playgrid/tictactoe-server/internal/protocol"
	"github.com/playgrid/tictactoe-server/internal/registry"
)

type roomRegistry interface {
	Join(player *entity.Player) (*registry.Room, bool, error)
	Leave(playerID string) (*registry.Room, *entity.GameStateView)
	RoomOf(playerID string) (*registry.Room, bool)
}

type playerRepository interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
}

// Server accepts websocket connections and runs one coordinator goroutine
// per connection: decode, validate, dispatch, broadcast. Room and session
// mutation happens inside the registry; no lock is ever held across a
// socket write.
type Server struct {
	logger  *slog.Logger
	rooms   roomRegistry
	players playerRepository
	metrics *monitor.Metrics

	upgrader websocket.Upgrader

	connsMu sync.RWMutex
	conns   map[string]*conn

	handlers map[protocol.Kind]func(ctx context.Context, c *conn, envelope *protocol.Envelope) error
}

// conn is the per-connection coordinator state. The write mutex keeps
// broadcasts from interleaving frames, gorilla allows one writer at a time.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	player  *entity.Player
}

func New(logger *slog.Logger, rooms roomRegistry, players playerRepository, metrics *monitor.Metrics) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		rooms:   rooms,
		players: players,
		metrics: metrics,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},

		conns: make(map[string]*conn),

		handlers: make(map[protocol.Kind]func(context.Context, *conn, *protocol.Envelope) error),
	}

	server.handlers[protocol.KindJoin] = server.handleJoin
	server.handlers[protocol.KindMove] = server.handleMove
	server.handlers[protocol.KindHeartbeat] = server.handleHeartbeat

	return server
}

// Start - starts the websocket server and shuts it down when ctx ends.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.handleConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Handler exposes the /ws endpoint for tests that run their own listener.
func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.handleConnection(r.Context(), w, r)
	})

	return mux
}

func (that *Server) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleConnection")

	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	that.metrics.OnlinePlayers.Inc()

	c := &conn{ws: ws}

	log.Info("connection established", "remote", ws.RemoteAddr().String())

	that.readLoop(ctx, c)

	that.handleDisconnect(c)

	that.metrics.OnlinePlayers.Dec()

	_ = ws.Close()
}

// readLoop - reads envelopes until the connection closes. Decode failures
// answer only this connection and never stop the loop; a read error is the
// disconnect signal.
func (that *Server) readLoop(ctx context.Context, c *conn) {
	log := that.logger.With("method", "readLoop")

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			log.Info("connection read ended", "error", err)
			return
		}

		that.metrics.MessagesReceived.Inc()

		envelope, err := protocol.Decode(raw)
		if err != nil {
			log.Warn("rejected envelope", "error", err)
			that.sendError(c, err.Error(), "protocol")
			continue
		}

		handler, ok := that.handlers[envelope.Kind]
		if !ok {
			that.sendError(c, fmt.Sprintf("kind %q is not accepted by the server", envelope.Kind), "protocol")
			continue
		}

		if err = handler(ctx, c, envelope); err != nil {
			log.Error("handler failed", "kind", envelope.Kind, "error", err)
		}
	}
}

func (that *Server) registerConn(playerID string, c *conn) {
	that.connsMu.Lock()
	defer that.connsMu.Unlock()

	that.conns[playerID] = c
}

func (that *Server) lookupConn(playerID string) (*conn, bool) {
	that.connsMu.RLock()
	defer that.connsMu.RUnlock()

	c, ok := that.conns[playerID]

	return c, ok
}

func (that *Server) dropConn(playerID string) {
	that.connsMu.Lock()
	defer that.connsMu.Unlock()

	delete(that.conns, playerID)
}

// broadcast fans an envelope out to every player bound to the room. Writes
// happen outside any room lock.
func (that *Server) broadcast(room *registry.Room, kind protocol.Kind, payload any) {
	log := that.logger.With("method", "broadcast", "roomID", room.ID)

	for _, player := range room.Players() {
		c, ok := that.lookupConn(player.ID)
		if !ok {
			log.Warn("connection not found for player", "playerID", player.ID)
			continue
		}

		if err := c.send(kind, payload); err != nil {
			log.Error("failed to send broadcast", "playerID", player.ID, "error", err)
		}
	}
}

func (that *Server) sendError(c *conn, message, code string) {
	if err := c.send(protocol.KindError, protocol.ErrorPayload{Message: message, Code: code}); err != nil {
		that.logger.Error("failed to send error response", "error", err)
	}
}

func (that *conn) send(kind protocol.Kind, payload any) error {
	raw, err := protocol.Encode(kind, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", kind, err)
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err = that.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("failed to write %s envelope: %w", kind, err)
	}

	return nil
}
