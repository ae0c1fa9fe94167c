package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/playgrid/tictactoe-server/internal/entity"
	"github.com/playgrid/tictactoe-server/internal/protocol"
)

// Events collects the callbacks the presentation layer plugs into the
// client driver. OnYourTurn returns the intended move; ok false skips the
// turn and waits for the next push.
type Events struct {
	OnWaiting   func(message, symbol string)
	OnGameStart func(payload *protocol.GameStartPayload)
	OnState     func(view *entity.GameStateView)
	OnYourTurn  func(view *entity.GameStateView) (row, col int, ok bool)
	OnGameEnd   func(payload *protocol.GameEndPayload)
	OnError     func(message string)
}

// Client is the thin client-side mirror of the coordinator: it sends join
// and move envelopes and passively receives state pushes.
type Client struct {
	logger *slog.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex

	player entity.Player
}

// Dial connects to a server's /ws endpoint.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	return &Client{
		logger: logger.With("component", "client"),
		ws:     ws,
	}, nil
}

// Join announces this player to the server. The symbol arrives later with
// the waiting or game_start push.
func (that *Client) Join(name string) error {
	that.player = entity.Player{
		ID:   uuid.NewString(),
		Name: name,
	}

	return that.send(protocol.KindJoin, protocol.JoinPayload{Player: &that.player})
}

// SendMove emits one move intent for the joined player.
func (that *Client) SendMove(row, col int) error {
	return that.send(protocol.KindMove, protocol.MovePayload{
		Row:    row,
		Col:    col,
		Player: &that.player,
	})
}

// Player returns the joined identity, symbol included once assigned.
func (that *Client) Player() entity.Player {
	return that.player
}

func (that *Client) Close() error {
	return that.ws.Close()
}

// Listen runs the receive loop until the game ends or the connection
// drops. A move is emitted only when a state push says it is this
// player's turn.
func (that *Client) Listen(ctx context.Context, events Events) error {
	log := that.logger.With("method", "Listen")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := that.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("connection closed: %w", err)
		}

		envelope, err := protocol.Decode(raw)
		if err != nil {
			log.Warn("dropped server envelope", "error", err)
			continue
		}

		done, err := that.dispatch(envelope, events)
		if err != nil {
			return err
		}

		if done {
			return nil
		}
	}
}

func (that *Client) dispatch(envelope *protocol.Envelope, events Events) (bool, error) {
	switch envelope.Kind {
	case protocol.KindWaiting:
		var payload protocol.WaitingPayload
		if err := envelope.DecodePayload(&payload); err != nil {
			return false, err
		}

		that.player.Symbol = payload.YourSymbol

		if events.OnWaiting != nil {
			events.OnWaiting(payload.Message, payload.YourSymbol)
		}

	case protocol.KindGameStart:
		var payload protocol.GameStartPayload
		if err := envelope.DecodePayload(&payload); err != nil {
			return false, err
		}

		for _, player := range payload.Players {
			if player.ID == that.player.ID {
				that.player.Symbol = player.Symbol
				break
			}
		}

		if events.OnGameStart != nil {
			events.OnGameStart(&payload)
		}

	case protocol.KindGameState:
		var view entity.GameStateView
		if err := envelope.DecodePayload(&view); err != nil {
			return false, err
		}

		if events.OnState != nil {
			events.OnState(&view)
		}

		if view.IsGameOver || view.CurrentPlayer != that.player.Symbol {
			break
		}

		if events.OnYourTurn == nil {
			break
		}

		row, col, ok := events.OnYourTurn(&view)
		if !ok {
			break
		}

		if err := that.SendMove(row, col); err != nil {
			return false, err
		}

	case protocol.KindGameEnd:
		var payload protocol.GameEndPayload
		if err := envelope.DecodePayload(&payload); err != nil {
			return false, err
		}

		if events.OnGameEnd != nil {
			events.OnGameEnd(&payload)
		}

		return true, nil

	case protocol.KindError:
		var payload protocol.ErrorPayload
		if err := envelope.DecodePayload(&payload); err != nil {
			return false, err
		}

		if events.OnError != nil {
			events.OnError(payload.Message)
		}

	case protocol.KindHeartbeat:
		// nothing to do

	default:
		return false, fmt.Errorf("%w: server pushed %q", errUnexpectedKind, envelope.Kind)
	}

	return false, nil
}

var errUnexpectedKind = errors.New("unexpected message kind")

func (that *Client) send(kind protocol.Kind, payload any) error {
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
