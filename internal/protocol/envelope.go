package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of wire message kinds. Anything outside this set
// is rejected at decode time.
type Kind string

const (
	KindJoin      Kind = "join"
	KindWaiting   Kind = "waiting"
	KindGameStart Kind = "game_start"
	KindMove      Kind = "move"
	KindGameState Kind = "game_state"
	KindGameEnd   Kind = "game_end"
	KindError     Kind = "error"
	KindHeartbeat Kind = "heartbeat"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownKind       = errors.New("unknown message kind")
)

var knownKinds = map[Kind]struct{}{
	KindJoin:      {},
	KindWaiting:   {},
	KindGameStart: {},
	KindMove:      {},
	KindGameState: {},
	KindGameEnd:   {},
	KindError:     {},
	KindHeartbeat: {},
}

// Envelope is the wire-level wrapper. It is immutable once decoded; the
// codec only reads it and emits new envelopes.
type Envelope struct {
	Kind      Kind            `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Encode wraps a payload into an envelope of the given kind and marshals it.
func Encode(kind Kind, payload any) ([]byte, error) {
	if _, ok := knownKinds[kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	envelope := Envelope{
		Kind:      kind,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return raw, nil
}

// Decode parses an envelope and checks its shape: a JSON object carrying a
// known kind and a data field. Payload semantics are the validator's job.
func Decode(raw []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	if envelope.Kind == "" {
		return nil, fmt.Errorf("%w: missing type field", ErrMalformedEnvelope)
	}

	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data field", ErrMalformedEnvelope)
	}

	if _, ok := knownKinds[envelope.Kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, envelope.Kind)
	}

	return &envelope, nil
}

// DecodePayload unmarshals the envelope data into a kind-specific payload.
func (that *Envelope) DecodePayload(v any) error {
	if err := json.Unmarshal(that.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", that.Kind, err)
	}

	return nil
}
