package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/playgrid/tictactoe-server/internal/entity"
)

// Semantic payload validation, run by the coordinator after decode and
// before anything reaches the session. The codec only guarantees envelope
// shape; the rules here guard field contents.

const maxNameLength = 20

var ErrInvalidPayload = errors.New("invalid payload")

// ValidateJoin checks the join payload: a player with a name of sane
// length, and no self-assigned symbol other than X or O.
func ValidateJoin(payload *JoinPayload) error {
	if payload.Player == nil {
		return fmt.Errorf("%w: player is required", ErrInvalidPayload)
	}

	if payload.Player.Name == "" {
		return fmt.Errorf("%w: player name is required", ErrInvalidPayload)
	}

	if utf8.RuneCountInString(payload.Player.Name) > maxNameLength {
		return fmt.Errorf("%w: player name longer than %d characters", ErrInvalidPayload, maxNameLength)
	}

	if payload.Player.Symbol != "" && !payload.Player.HasSymbol() {
		return fmt.Errorf("%w: symbol must be %q or %q", ErrInvalidPayload, entity.PlayerX, entity.PlayerO)
	}

	return nil
}

// ValidateMove checks coordinates and the player reference of a move.
func ValidateMove(payload *MovePayload) error {
	if payload.Row < 0 || payload.Row >= entity.BoardSize {
		return fmt.Errorf("%w: row %d out of range", ErrInvalidPayload, payload.Row)
	}

	if payload.Col < 0 || payload.Col >= entity.BoardSize {
		return fmt.Errorf("%w: col %d out of range", ErrInvalidPayload, payload.Col)
	}

	if payload.Player == nil {
		return fmt.Errorf("%w: player is required", ErrInvalidPayload)
	}

	if payload.Player.ID == "" {
		return fmt.Errorf("%w: player id is required", ErrInvalidPayload)
	}

	if !payload.Player.HasSymbol() {
		return fmt.Errorf("%w: symbol must be %q or %q", ErrInvalidPayload, entity.PlayerX, entity.PlayerO)
	}

	return nil
}
