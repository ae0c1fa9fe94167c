package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgrid/tictactoe-server/internal/entity"
	"github.com/playgrid/tictactoe-server/internal/monitor"
	"github.com/playgrid/tictactoe-server/internal/protocol"
	"github.com/playgrid/tictactoe-server/internal/registry"
)

const readTimeout = 5 * time.Second

// fakePlayerRepo keeps identities in memory so the end-to-end tests run
// without redis.
type fakePlayerRepo struct {
	mu      sync.Mutex
	players map[string]entity.Player
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[string]entity.Player)}
}

func (that *fakePlayerRepo) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.players[player.ID] = *player

	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := New(logger, registry.New(logger), newFakePlayerRepo(), monitor.NewMetrics("test"))

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return ts
}

// testConn drives one raw websocket participant.
type testConn struct {
	t  *testing.T
	ws *gws.Conn
}

func dialTestConn(t *testing.T, ts *httptest.Server) *testConn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = ws.Close() })

	return &testConn{t: t, ws: ws}
}

func (that *testConn) send(kind protocol.Kind, payload any) {
	that.t.Helper()

	raw, err := protocol.Encode(kind, payload)
	require.NoError(that.t, err)
	require.NoError(that.t, that.ws.WriteMessage(gws.TextMessage, raw))
}

func (that *testConn) sendRaw(raw string) {
	that.t.Helper()

	require.NoError(that.t, that.ws.WriteMessage(gws.TextMessage, []byte(raw)))
}

func (that *testConn) read() *protocol.Envelope {
	that.t.Helper()

	require.NoError(that.t, that.ws.SetReadDeadline(time.Now().Add(readTimeout)))

	_, raw, err := that.ws.ReadMessage()
	require.NoError(that.t, err)

	envelope, err := protocol.Decode(raw)
	require.NoError(that.t, err)

	return envelope
}

// readKind reads the next envelope and requires it to be of the given kind.
func (that *testConn) readKind(kind protocol.Kind) *protocol.Envelope {
	that.t.Helper()

	envelope := that.read()
	require.Equal(that.t, kind, envelope.Kind, "unexpected envelope %s", envelope.Data)

	return envelope
}

func (that *testConn) join(id, name string) {
	that.t.Helper()

	that.send(protocol.KindJoin, protocol.JoinPayload{Player: &entity.Player{ID: id, Name: name}})
}

func (that *testConn) move(id, symbol string, row, col int) {
	that.t.Helper()

	that.send(protocol.KindMove, protocol.MovePayload{
		Row:    row,
		Col:    col,
		Player: &entity.Player{ID: id, Name: "n", Symbol: symbol},
	})
}

func TestServer_Matchmaking(t *testing.T) {
	t.Run("First joiner waits, second join starts the game for both", func(t *testing.T) {
		// Given: a running server
		ts := newTestServer(t)

		// When: the first player joins
		p1 := dialTestConn(t, ts)
		p1.join("p1", "alice")

		// Then: they are told to wait as X
		var waiting protocol.WaitingPayload
		require.NoError(t, p1.readKind(protocol.KindWaiting).DecodePayload(&waiting))
		assert.Equal(t, entity.PlayerX, waiting.YourSymbol)

		// When: the second player joins
		p2 := dialTestConn(t, ts)
		p2.join("p2", "bob")

		// Then: both receive game_start with X starting
		for _, c := range []*testConn{p1, p2} {
			var start protocol.GameStartPayload
			require.NoError(t, c.readKind(protocol.KindGameStart).DecodePayload(&start))
			assert.Equal(t, entity.PlayerX, start.StartingSymbol)
			assert.NotEmpty(t, start.RoomID)
			require.Len(t, start.Players, 2)
			assert.Equal(t, entity.PlayerX, start.Players[0].Symbol)
			assert.Equal(t, entity.PlayerO, start.Players[1].Symbol)
		}

		// And: both receive the opening game_state
		for _, c := range []*testConn{p1, p2} {
			var view entity.GameStateView
			require.NoError(t, c.readKind(protocol.KindGameState).DecodePayload(&view))
			assert.Equal(t, entity.StatusOngoing, view.Status)
			assert.Equal(t, entity.PlayerX, view.CurrentPlayer)
			assert.Zero(t, view.MoveCount)
		}
	})
}

func TestServer_DuplicateJoin(t *testing.T) {
	t.Run("A refused duplicate id cannot disturb the running game", func(t *testing.T) {
		// Given: a started game between p1 and p2
		ts := newTestServer(t)
		p1, p2 := startGame(t, ts)

		// When: a third connection joins with p1's id and then drops
		intruder := dialTestConn(t, ts)
		intruder.join("p1", "mallory")

		var payload protocol.ErrorPayload
		require.NoError(t, intruder.readKind(protocol.KindError).DecodePayload(&payload))
		assert.Equal(t, "validation", payload.Code)

		require.NoError(t, intruder.ws.Close())

		// Then: the game is still ongoing and broadcasts keep reaching
		// the original players
		p1.move("p1", entity.PlayerX, 0, 0)

		for _, c := range []*testConn{p1, p2} {
			var view entity.GameStateView
			require.NoError(t, c.readKind(protocol.KindGameState).DecodePayload(&view))
			assert.False(t, view.IsGameOver)
			assert.Equal(t, entity.StatusOngoing, view.Status)
			assert.Equal(t, 1, view.MoveCount)
		}
	})
}

// startGame joins two players and consumes the game_start and opening
// game_state envelopes on both sides.
func startGame(t *testing.T, ts *httptest.Server) (*testConn, *testConn) {
	t.Helper()

	p1 := dialTestConn(t, ts)
	p1.join("p1", "alice")
	p1.readKind(protocol.KindWaiting)

	p2 := dialTestConn(t, ts)
	p2.join("p2", "bob")

	for _, c := range []*testConn{p1, p2} {
		c.readKind(protocol.KindGameStart)
		c.readKind(protocol.KindGameState)
	}

	return p1, p2
}

func TestServer_GamePlay(t *testing.T) {
	t.Run("X wins the top row and both sides see the end", func(t *testing.T) {
		// Given: a started game
		ts := newTestServer(t)
		p1, p2 := startGame(t, ts)

		// When: the players interleave until X completes the top row
		moves := []struct {
			conn     *testConn
			id, sym  string
			row, col int
		}{
			{p1, "p1", entity.PlayerX, 0, 0},
			{p2, "p2", entity.PlayerO, 1, 0},
			{p1, "p1", entity.PlayerX, 0, 1},
			{p2, "p2", entity.PlayerO, 1, 1},
			{p1, "p1", entity.PlayerX, 0, 2},
		}

		var lastView entity.GameStateView
		for _, move := range moves {
			move.conn.move(move.id, move.sym, move.row, move.col)

			// every accepted move is broadcast to both participants
			for _, c := range []*testConn{p1, p2} {
				require.NoError(t, c.readKind(protocol.KindGameState).DecodePayload(&lastView))
			}
		}

		// Then: the final state reports the win
		assert.True(t, lastView.IsGameOver)
		assert.Equal(t, entity.PlayerX, lastView.Winner)
		assert.Equal(t, 5, lastView.MoveCount)

		// And: both sides receive game_end
		for _, c := range []*testConn{p1, p2} {
			var end protocol.GameEndPayload
			require.NoError(t, c.readKind(protocol.KindGameEnd).DecodePayload(&end))
			assert.Equal(t, entity.PlayerX, end.Winner)
			assert.Equal(t, 5, end.MoveCount)
			assert.Equal(t, entity.PlayerX, end.FinalBoard[0][0])
		}
	})

	t.Run("A move out of turn is answered to the sender only", func(t *testing.T) {
		// Given: a started game where X is on turn
		ts := newTestServer(t)
		p1, p2 := startGame(t, ts)

		// When: O moves first
		p2.move("p2", entity.PlayerO, 0, 0)

		// Then: only O receives an error envelope
		var payload protocol.ErrorPayload
		require.NoError(t, p2.readKind(protocol.KindError).DecodePayload(&payload))
		assert.Contains(t, payload.Message, "turn")

		// And: the game continues undisturbed for X
		p1.move("p1", entity.PlayerX, 0, 0)

		var view entity.GameStateView
		require.NoError(t, p1.readKind(protocol.KindGameState).DecodePayload(&view))
		assert.Equal(t, 1, view.MoveCount)
	})

	t.Run("An occupied cell is rejected without desyncing the room", func(t *testing.T) {
		// Given: a game with X on (0,0)
		ts := newTestServer(t)
		p1, p2 := startGame(t, ts)

		p1.move("p1", entity.PlayerX, 0, 0)
		p1.readKind(protocol.KindGameState)
		p2.readKind(protocol.KindGameState)

		// When: O targets the same cell
		p2.move("p2", entity.PlayerO, 0, 0)

		// Then: O gets a rule error and the board did not change
		var payload protocol.ErrorPayload
		require.NoError(t, p2.readKind(protocol.KindError).DecodePayload(&payload))
		assert.Contains(t, payload.Message, "occupied")

		// And: a legal O move still works
		p2.move("p2", entity.PlayerO, 1, 1)

		var view entity.GameStateView
		require.NoError(t, p2.readKind(protocol.KindGameState).DecodePayload(&view))
		assert.Equal(t, 2, view.MoveCount)
	})
}

func TestServer_Disconnect(t *testing.T) {
	t.Run("A mid-game drop forfeits the match for the survivor", func(t *testing.T) {
		// Given: a started game with one move played
		ts := newTestServer(t)
		p1, p2 := startGame(t, ts)

		p1.move("p1", entity.PlayerX, 0, 0)
		p1.readKind(protocol.KindGameState)
		p2.readKind(protocol.KindGameState)

		// When: the second player's connection drops
		require.NoError(t, p2.ws.Close())

		// Then: the survivor sees the abandoned state and game_end
		var view entity.GameStateView
		require.NoError(t, p1.readKind(protocol.KindGameState).DecodePayload(&view))
		assert.Equal(t, entity.WinnerAbandoned, view.Winner)
		assert.True(t, view.IsGameOver)

		var end protocol.GameEndPayload
		require.NoError(t, p1.readKind(protocol.KindGameEnd).DecodePayload(&end))
		assert.Equal(t, entity.WinnerAbandoned, end.Winner)

		// And: the room accepts no further moves
		p1.move("p1", entity.PlayerX, 1, 1)

		var payload protocol.ErrorPayload
		require.NoError(t, p1.readKind(protocol.KindError).DecodePayload(&payload))
		assert.Contains(t, payload.Message, "finished")
	})
}

func TestServer_ProtocolErrors(t *testing.T) {
	t.Run("Malformed input is answered with an error envelope", func(t *testing.T) {
		// Given: a connected client
		ts := newTestServer(t)
		c := dialTestConn(t, ts)

		// When: it sends junk
		c.sendRaw("this is not json")

		// Then: only an error envelope comes back
		var payload protocol.ErrorPayload
		require.NoError(t, c.readKind(protocol.KindError).DecodePayload(&payload))
		assert.Equal(t, "protocol", payload.Code)
	})

	t.Run("An unknown kind is refused", func(t *testing.T) {
		// Given: a connected client
		ts := newTestServer(t)
		c := dialTestConn(t, ts)

		// When: it sends a well-shaped envelope of a foreign kind
		c.sendRaw(`{"type": "chat", "timestamp": 1, "data": {}}`)

		// Then: the server answers with a protocol error
		var payload protocol.ErrorPayload
		require.NoError(t, c.readKind(protocol.KindError).DecodePayload(&payload))
		assert.Equal(t, "protocol", payload.Code)
	})

	t.Run("A move before joining is refused", func(t *testing.T) {
		// Given: a connected client that never joined
		ts := newTestServer(t)
		c := dialTestConn(t, ts)

		// When: it sends a move
		c.move("p1", entity.PlayerX, 0, 0)

		// Then: a validation error comes back
		var payload protocol.ErrorPayload
		require.NoError(t, c.readKind(protocol.KindError).DecodePayload(&payload))
		assert.Equal(t, "validation", payload.Code)
	})

	t.Run("A heartbeat is silently accepted", func(t *testing.T) {
		// Given: a connected client
		ts := newTestServer(t)
		c := dialTestConn(t, ts)

		// When: it sends a heartbeat and then joins
		c.send(protocol.KindHeartbeat, protocol.HeartbeatPayload{})
		c.join("p1", "alice")

		// Then: the next envelope is the waiting response, no error in
		// between
		c.readKind(protocol.KindWaiting)
	})
}
