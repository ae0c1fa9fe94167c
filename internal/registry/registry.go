package registry

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/playgrid/tictactoe-server/internal/apperror"
	"github.com/playgrid/tictactoe-server/internal/entity"
)

// Registry pairs incoming players into rooms, first come first served.
// At most one room is open for joining at a time; a new one is created
// only after the previous one fills. The registry mutex covers room
// selection and the player index, each room guards its own state.
type Registry struct {
	logger *slog.Logger

	mu          sync.Mutex
	rooms       map[string]*Room
	open        *Room
	byPlayer    map[string]*Room
	nextOrdinal uint64
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("component", "registry"),
		rooms:    make(map[string]*Room),
		byPlayer: make(map[string]*Room),
	}
}

// Join binds a player into the current open room, creating one when
// needed. Selecting the room and binding happen under the registry lock,
// so two concurrent joiners can never both see an empty room. Returns the
// room and whether this join started the game.
func (that *Registry) Join(player *entity.Player) (*Room, bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.byPlayer[player.ID]; ok {
		return nil, false, apperror.ErrAlreadyJoined
	}

	room := that.currentOpenRoom()

	started, err := room.Bind(player)
	if err != nil {
		// Matchmaking never routes a bind into a full room; this is an
		// internal invariant breach.
		that.logger.Error("bind into full room", "roomID", room.ID, "playerID", player.ID)
		return nil, false, err
	}

	that.byPlayer[player.ID] = room

	if started {
		that.open = nil
	}

	that.logger.Info("player bound to room", "roomID", room.ID, "playerID", player.ID, "symbol", player.Symbol, "started", started)

	return room, started, nil
}

// Leave detaches a player from their room. The returned snapshot is
// non-nil only when the departure abandoned an ongoing game.
func (that *Registry) Leave(playerID string) (*Room, *entity.GameStateView) {
	that.mu.Lock()
	room, ok := that.byPlayer[playerID]
	if ok {
		delete(that.byPlayer, playerID)
	}
	that.mu.Unlock()

	if !ok {
		return nil, nil
	}

	view := room.Unbind(playerID)
	if view != nil {
		that.logger.Info("game abandoned", "roomID", room.ID, "playerID", playerID)
	}

	return room, view
}

// RoomOf resolves the room a player is currently bound to.
func (that *Registry) RoomOf(playerID string) (*Room, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.byPlayer[playerID]

	return room, ok
}

// RoomCount reports how many rooms exist, open and inert alike.
func (that *Registry) RoomCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.rooms)
}

// currentOpenRoom must be called with the registry lock held.
func (that *Registry) currentOpenRoom() *Room {
	if that.open != nil && !that.open.isFull() {
		return that.open
	}

	that.nextOrdinal++
	room := newRoom(uuid.NewString(), that.nextOrdinal)
	that.rooms[room.ID] = room
	that.open = room

	that.logger.Info("room created", "roomID", room.ID, "ordinal", room.Ordinal)

	return room
}
