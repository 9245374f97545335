package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame is one message on the shared channel. Inbound game frames carry a
// JSON array of positional arguments as their payload.
type Frame struct {
	Tag     string          `json:"name"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DispatchEnvelope starts an action.
type DispatchEnvelope struct {
	ActionID   string `json:"actionId"`
	ActionType string `json:"actionType"`
	Params     any    `json:"params"`
}

// CancelEnvelope requests cancellation of an action.
type CancelEnvelope struct {
	ActionID string `json:"actionId"`
	Cancel   bool   `json:"cancel"`
}

// SubscriptionEnvelope starts or stops push delivery for a character.
type SubscriptionEnvelope struct {
	Subscribe   bool   `json:"subscribe,omitempty"`
	Unsubscribe bool   `json:"unsubscribe,omitempty"`
	CharID      string `json:"charId"`
}

// NewFrame marshals v into a game-tagged frame.
func NewFrame(topic string, v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s: %w", topic, err)
	}
	return Frame{Tag: Tag, Topic: topic, Payload: b}, nil
}

// ArgsFrame builds an inbound-style frame whose payload is the positional
// argument list. Transports use it to answer actions.
func ArgsFrame(topic string, args ...any) (Frame, error) {
	if args == nil {
		args = []any{}
	}
	return NewFrame(topic, args)
}

// Args splits the frame payload into positional arguments. A payload that
// is not a JSON array is treated as a single argument.
func (f Frame) Args() []json.RawMessage {
	p := bytes.TrimSpace(f.Payload)
	if len(p) == 0 {
		return nil
	}
	var args []json.RawMessage
	if p[0] == '[' && json.Unmarshal(p, &args) == nil {
		return args
	}
	return []json.RawMessage{p}
}

// DecodePayload decodes an action payload without failing: empty input
// yields an empty object and invalid JSON yields {"raw": <input>}.
func DecodePayload(b []byte) any {
	if len(bytes.TrimSpace(b)) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return map[string]any{"raw": string(b)}
	}
	return v
}

// DecodeArg decodes one push argument. String arguments are themselves
// parsed as JSON when possible; anything undecodable is kept as a string.
func DecodeArg(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	var inner any
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return s
	}
	return inner
}

// unquote returns the contents of a JSON string argument, or the raw bytes
// of any other value.
func unquote(raw json.RawMessage) []byte {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}
