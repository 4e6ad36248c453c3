package wire

import (
	"encoding/json"
	"fmt"

	"example.com/liftlink/internal/domain"
)

// MarshalEnvelope serializes an envelope for the transport.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// UnmarshalEnvelope decodes a transport record into an envelope, rejecting
// unknown actions so stringly-typed dispatch never leaks past the boundary.
func UnmarshalEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	if !env.Action.Known() {
		return Envelope{}, fmt.Errorf("%w: unknown action %q", domain.ErrDecodeFailure, env.Action)
	}
	return env, nil
}

// EncodePayload serializes a collection payload into an opaque blob.
func EncodePayload(v any) ([]byte, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return blob, nil
}

// DecodeExercises decodes an exercises blob.
func DecodeExercises(blob []byte) ([]Exercise, error) {
	var out []Exercise
	if err := json.Unmarshal(blob, &out); err != nil {
		return nil, fmt.Errorf("%w: exercises payload: %v", domain.ErrDecodeFailure, err)
	}
	return out, nil
}

// DecodeSets decodes a sets blob.
func DecodeSets(blob []byte) ([]Set, error) {
	var out []Set
	if err := json.Unmarshal(blob, &out); err != nil {
		return nil, fmt.Errorf("%w: sets payload: %v", domain.ErrDecodeFailure, err)
	}
	return out, nil
}

// DecodeSet decodes a single-set blob.
func DecodeSet(blob []byte) (Set, error) {
	var out Set
	if err := json.Unmarshal(blob, &out); err != nil {
		return Set{}, fmt.Errorf("%w: set payload: %v", domain.ErrDecodeFailure, err)
	}
	return out, nil
}

// DecodeLastWeights decodes a last-weights blob.
func DecodeLastWeights(blob []byte) (domain.LastWeights, error) {
	var out domain.LastWeights
	if err := json.Unmarshal(blob, &out); err != nil {
		return nil, fmt.Errorf("%w: last-weights payload: %v", domain.ErrDecodeFailure, err)
	}
	return out, nil
}
