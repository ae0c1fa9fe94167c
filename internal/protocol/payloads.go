package protocol

import "github.com/playgrid/tictactoe-server/internal/entity"

// JoinPayload is sent by a client that wants to be paired. The symbol is
// left empty on send, the server fills it in.
type JoinPayload struct {
	Player *entity.Player `json:"player"`
}

// WaitingPayload answers the first binder of a room.
type WaitingPayload struct {
	Message    string `json:"message"`
	YourSymbol string `json:"your_symbol"`
}

// GameStartPayload is broadcast to both players when a room fills up.
type GameStartPayload struct {
	Players        []entity.Player `json:"players"`
	RoomID         string          `json:"room_id"`
	StartingSymbol string          `json:"starting_symbol"`
}

// MovePayload carries one move intent from a client.
type MovePayload struct {
	Row    int            `json:"row"`
	Col    int            `json:"col"`
	Player *entity.Player `json:"player"`
}

// The game_state payload is entity.GameStateView, emitted as-is.

// GameEndPayload closes a session on the wire, for wins, ties and
// abandoned games alike.
type GameEndPayload struct {
	Winner     string                                     `json:"winner"`
	FinalBoard [entity.BoardSize][entity.BoardSize]string `json:"final_board"`
	MoveCount  int                                        `json:"move_count"`
}

// ErrorPayload is only ever sent to the offending connection.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// HeartbeatPayload is intentionally empty.
type HeartbeatPayload struct{}
