package registry

import (
	"fmt"
	"sync"

	"github.com/playgrid/tictactoe-server/internal/apperror"
	"github.com/playgrid/tictactoe-server/internal/entity"
)

// Capacity is fixed: a room pairs exactly two players.
const Capacity = 2

// Room is the matchmaking container owning one session. Its mutex guards
// the participant list and the game; it is never held across socket I/O.
// Rooms are created by the registry and stay around inert after the game
// finishes.
type Room struct {
	ID      string
	Ordinal uint64

	mu      sync.Mutex
	players []*entity.Player
	game    *entity.Game
	status  string
}

func newRoom(id string, ordinal uint64) *Room {
	return &Room{
		ID:      id,
		Ordinal: ordinal,
		status:  entity.StatusWaiting,
	}
}

// Bind attaches a player and assigns the first free symbol: X for the
// first binder, O for the second. Filling the room instantiates the
// session in the same critical section, so both connections observe the
// ongoing state together. Returns whether this bind started the game.
func (that *Room) Bind(player *entity.Player) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.players) >= Capacity {
		return false, fmt.Errorf("%w: room %s", apperror.ErrRoomFull, that.ID)
	}

	if len(that.players) == 0 {
		player.Symbol = entity.PlayerX
	} else {
		player.Symbol = entity.PlayerO
	}

	that.players = append(that.players, player)

	if len(that.players) < Capacity {
		return false, nil
	}

	that.game = entity.NewGame(that.players[0], that.players[1])
	that.status = entity.StatusOngoing

	return true, nil
}

// Unbind removes a player. When the session is still ongoing the match is
// forfeited: the game finishes with the abandoned outcome and the final
// snapshot is returned so the coordinator can notify the survivor.
func (that *Room) Unbind(playerID string) *entity.GameStateView {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i, player := range that.players {
		if player.ID == playerID {
			that.players = append(that.players[:i], that.players[i+1:]...)
			break
		}
	}

	if that.game == nil || !that.game.Abandon() {
		if that.game == nil {
			that.status = entity.StatusWaiting
		}
		return nil
	}

	that.status = entity.StatusFinished

	return that.game.Snapshot()
}

// ApplyMove forwards one move to the session under the room lock and
// returns the outcome together with a fresh snapshot.
func (that *Room) ApplyMove(playerID string, row, col int) (*entity.MoveOutcome, *entity.GameStateView, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.game == nil {
		return nil, nil, apperror.ErrGameIsNotStarted
	}

	outcome, err := that.game.ApplyMove(playerID, row, col)
	if err != nil {
		return nil, nil, err
	}

	if outcome.GameOver {
		that.status = entity.StatusFinished
	}

	return outcome, that.game.Snapshot(), nil
}

// Snapshot returns the session state, or nil while the room is waiting.
func (that *Room) Snapshot() *entity.GameStateView {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.game == nil {
		return nil
	}

	return that.game.Snapshot()
}

// Players returns a copy of the bound participant list in join order.
func (that *Room) Players() []entity.Player {
	that.mu.Lock()
	defer that.mu.Unlock()

	players := make([]entity.Player, 0, len(that.players))
	for _, player := range that.players {
		players = append(players, *player)
	}

	return players
}

func (that *Room) isFull() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.players) >= Capacity
}
