package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wamstack/wamstack/pkg/types"
)

// ErrUnknownType is returned by Decode for envelopes with an unrecognized type.
var ErrUnknownType = errors.New("stream: unknown message type")

// Message is one decoded stream frame: Reading, Alert or Thresholds.
type Message interface {
	kind() string
}

// Reading carries one raw record to be normalized and appended.
type Reading struct {
	Record map[string]any
}

// Alert carries a human-readable server-side alert.
type Alert struct {
	Text string
}

// Thresholds signals that the server-side thresholds changed.
type Thresholds struct {
	Raw json.RawMessage
}

func (Reading) kind() string    { return types.KindReading }
func (Alert) kind() string      { return types.KindAlert }
func (Thresholds) kind() string { return types.KindThresholds }

// Decode parses one envelope.
func Decode(b []byte) (Message, error) {
	var env types.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("stream: decode envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("stream: %q envelope without data", env.Type)
	}

	switch env.Type {
	case types.KindReading:
		var rec map[string]any
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			return nil, fmt.Errorf("stream: decode reading: %w", err)
		}
		return Reading{Record: rec}, nil

	case types.KindAlert:
		var a types.AlertPayload
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("stream: decode alert: %w", err)
		}
		return Alert{Text: a.Message}, nil

	case types.KindThresholds:
		return Thresholds{Raw: env.Data}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
