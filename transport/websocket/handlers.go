package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/playgrid/tictactoe-server/internal/apperror"
	"github.com/playgrid/tictactoe-server/internal/entity"
	"github.com/playgrid/tictactoe-server/internal/protocol"
	"github.com/playgrid/tictactoe-server/internal/registry"
)

const waitingMessage = "waiting for an opponent"

func (that *Server) handleJoin(ctx context.Context, c *conn, envelope *protocol.Envelope) error {
	log := that.logger.With("method", "handleJoin")

	var payload protocol.JoinPayload
	if err := envelope.DecodePayload(&payload); err != nil {
		that.sendError(c, "malformed join payload", "validation")
		return fmt.Errorf("failed to decode join payload: %w", err)
	}

	if err := protocol.ValidateJoin(&payload); err != nil {
		that.sendError(c, err.Error(), "validation")
		return nil
	}

	if c.player != nil {
		that.sendError(c, apperror.ErrAlreadyJoined.Error(), "validation")
		return nil
	}

	player := &entity.Player{
		ID:   payload.Player.ID,
		Name: payload.Player.Name,
	}
	if player.ID == "" {
		player.ID = uuid.NewString()
	}

	if err := that.players.CreateOrUpdate(ctx, player); err != nil {
		log.Error("failed to store player", "playerID", player.ID, "error", err)
		that.sendError(c, "failed to register player", "internal")
		return nil
	}

	room, started, err := that.rooms.Join(player)
	if errors.Is(err, apperror.ErrAlreadyJoined) {
		that.sendError(c, err.Error(), "validation")
		return nil
	}

	if err != nil {
		// Room full from the open room means matchmaking broke its own
		// invariant; the client only gets a generic error.
		log.Error("failed to bind player", "playerID", player.ID, "error", err)
		that.sendError(c, "failed to join a game", "internal")
		return nil
	}

	// The connection claims the identity only once the bind went through;
	// a refused join must not shadow the id's existing connection or leave
	// disconnect cleanup armed.
	c.player = player
	that.registerConn(player.ID, c)

	log = log.With("roomID", room.ID, "playerID", player.ID)

	if !started {
		log.Info("player waiting for opponent")

		if err = c.send(protocol.KindWaiting, protocol.WaitingPayload{
			Message:    waitingMessage,
			YourSymbol: player.Symbol,
		}); err != nil {
			return fmt.Errorf("failed to send waiting response: %w", err)
		}

		return nil
	}

	that.metrics.ActiveGames.Inc()

	that.broadcast(room, protocol.KindGameStart, protocol.GameStartPayload{
		Players:        room.Players(),
		RoomID:         room.ID,
		StartingSymbol: entity.PlayerX,
	})

	if view := room.Snapshot(); view != nil {
		that.broadcast(room, protocol.KindGameState, view)
	}

	log.Info("game started")

	return nil
}

func (that *Server) handleMove(_ context.Context, c *conn, envelope *protocol.Envelope) error {
	log := that.logger.With("method", "handleMove")

	if c.player == nil {
		that.sendError(c, "join a game before moving", "validation")
		return nil
	}

	var payload protocol.MovePayload
	if err := envelope.DecodePayload(&payload); err != nil {
		that.sendError(c, "malformed move payload", "validation")
		return fmt.Errorf("failed to decode move payload: %w", err)
	}

	if err := protocol.ValidateMove(&payload); err != nil {
		that.sendError(c, err.Error(), "validation")
		return nil
	}

	if payload.Player.ID != c.player.ID {
		that.sendError(c, "move player does not match this connection", "validation")
		return nil
	}

	room, ok := that.rooms.RoomOf(c.player.ID)
	if !ok {
		that.sendError(c, "player is not bound to a room", "validation")
		return nil
	}

	log = log.With("roomID", room.ID, "playerID", c.player.ID)

	outcome, view, err := room.ApplyMove(c.player.ID, payload.Row, payload.Col)
	if err != nil {
		if isGameRuleError(err) {
			that.sendError(c, err.Error(), "game")
			return nil
		}

		that.sendError(c, "failed to apply move", "internal")
		return fmt.Errorf("failed to apply move: %w", err)
	}

	that.metrics.MovesTotal.Inc()

	that.broadcast(room, protocol.KindGameState, view)

	if outcome.GameOver {
		that.finishGame(room, view)
		log.Info("game finished", "winner", view.Winner, "moves", view.MoveCount)
		return nil
	}

	log.Info("player made a move", "row", payload.Row, "col", payload.Col)

	return nil
}

func (that *Server) handleHeartbeat(_ context.Context, _ *conn, _ *protocol.Envelope) error {
	// Liveness probe only; absence of heartbeats is not fatal and the
	// acknowledgement is intentionally a no-op.
	return nil
}

// handleDisconnect - runs after the read loop ends, for clean closes and
// transport failures alike. An ongoing game is forfeited and the survivor
// is told before the channel is released.
func (that *Server) handleDisconnect(c *conn) {
	if c.player == nil {
		return
	}

	log := that.logger.With("method", "handleDisconnect", "playerID", c.player.ID)

	that.dropConn(c.player.ID)

	room, view := that.rooms.Leave(c.player.ID)
	if room == nil {
		return
	}

	if view == nil {
		log.Info("player left before the game started", "roomID", room.ID)
		return
	}

	that.broadcast(room, protocol.KindGameState, view)
	that.finishGame(room, view)

	log.Info("player disconnected mid-game", "roomID", room.ID)
}

func (that *Server) finishGame(room *registry.Room, view *entity.GameStateView) {
	that.metrics.ActiveGames.Dec()
	that.metrics.GamesFinished.WithLabelValues(view.Winner).Inc()

	that.broadcast(room, protocol.KindGameEnd, protocol.GameEndPayload{
		Winner:     view.Winner,
		FinalBoard: view.Board,
		MoveCount:  view.MoveCount,
	})
}

func isGameRuleError(err error) bool {
	return errors.Is(err, apperror.ErrNotYourTurn) ||
		errors.Is(err, apperror.ErrGameIsNotStarted) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrCellOccupied) ||
		errors.Is(err, apperror.ErrInvalidCell) ||
		errors.Is(err, apperror.ErrNotInGame)
}
