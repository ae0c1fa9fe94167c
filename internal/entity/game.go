package entity

import (
	"fmt"

	"github.com/playgrid/tictactoe-server/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"

	WinnerTie       = "tie"
	WinnerAbandoned = "abandoned"
)

// Game is the session state machine for one match. ApplyMove is the only
// mutator once the game is ongoing; Abandon is the only other transition.
// The game carries no lock of its own, the owning room serializes access.
type Game struct {
	board     *Board
	players   [2]*Player
	turn      string
	status    string
	winner    string
	moveCount int
}

// MoveOutcome describes the effect of one accepted move.
type MoveOutcome struct {
	Row      int
	Col      int
	Symbol   string
	GameOver bool
	Winner   string
}

// GameStateView is an immutable deep copy of the session state, safe to
// hand across goroutines. It doubles as the game_state wire payload.
type GameStateView struct {
	Board         [BoardSize][BoardSize]string `json:"board"`
	CurrentPlayer string                       `json:"current_player"`
	Status        string                       `json:"status"`
	Winner        string                       `json:"winner"`
	MoveCount     int                          `json:"move_count"`
	IsGameOver    bool                         `json:"is_game_over"`
	Players       []Player                     `json:"players,omitempty"`
}

// NewGame starts a session for two bound players. The second bind is what
// creates the game, so it begins ongoing with X to move.
func NewGame(first, second *Player) *Game {
	return &Game{
		board:   NewBoard(),
		players: [2]*Player{first, second},
		turn:    PlayerX,
		status:  StatusOngoing,
	}
}

// ApplyMove validates and commits one move. On any error the board, the
// move counter and the turn are left exactly as they were.
func (that *Game) ApplyMove(playerID string, row, col int) (*MoveOutcome, error) {
	switch that.status {
	case StatusWaiting:
		return nil, apperror.ErrGameIsNotStarted
	case StatusFinished:
		return nil, apperror.ErrGameFinished
	}

	player := that.playerByID(playerID)
	if player == nil {
		return nil, fmt.Errorf("%w: %s", apperror.ErrNotInGame, playerID)
	}

	if player.Symbol != that.turn {
		return nil, apperror.ErrNotYourTurn
	}

	if err := that.board.Place(row, col, player.Symbol); err != nil {
		return nil, err
	}

	that.moveCount++

	outcome := &MoveOutcome{
		Row:    row,
		Col:    col,
		Symbol: player.Symbol,
	}

	// Win is checked before the full board: a move that completes a line
	// and fills the last cell is a win, not a tie.
	switch winner := that.board.Winner(); {
	case winner != EmptyCell:
		that.finish(winner)
		outcome.GameOver = true
		outcome.Winner = winner
	case that.board.IsFull():
		that.finish(WinnerTie)
		outcome.GameOver = true
		outcome.Winner = WinnerTie
	default:
		that.turn = toggleSymbol(that.turn)
	}

	return outcome, nil
}

// Abandon finishes an ongoing game because a player dropped. Finished games
// stay finished.
func (that *Game) Abandon() bool {
	if that.status != StatusOngoing {
		return false
	}

	that.finish(WinnerAbandoned)

	return true
}

func (that *Game) IsFinished() bool {
	return that.status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.status == StatusOngoing
}

// Snapshot returns a deep copy of the current state.
func (that *Game) Snapshot() *GameStateView {
	view := &GameStateView{
		Board:         that.board.Cells(),
		CurrentPlayer: that.turn,
		Status:        that.status,
		Winner:        that.winner,
		MoveCount:     that.moveCount,
		IsGameOver:    that.status == StatusFinished,
	}

	for _, player := range that.players {
		if player != nil {
			view.Players = append(view.Players, *player)
		}
	}

	return view
}

func (that *Game) finish(winner string) {
	that.winner = winner
	that.status = StatusFinished
	that.turn = EmptyCell
}

func (that *Game) playerByID(id string) *Player {
	for _, player := range that.players {
		if player != nil && player.ID == id {
			return player
		}
	}

	return nil
}

func toggleSymbol(symbol string) string {
	if symbol == PlayerX {
		return PlayerO
	}

	return PlayerX
}
