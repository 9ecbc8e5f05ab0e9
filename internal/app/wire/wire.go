// Package wire implements the bridge's broker-facing payload envelope:
// JSON objects of the shape {"value": <unwrapped variant>}, plus the small
// JSON-array-of-strings format the keepalive topic accepts for its
// subscribe-patterns payload.
package wire

import (
	"encoding/json"
	"fmt"

	"dbusmqtt/internal/app/errors"
	"dbusmqtt/internal/objectbus"
)

type envelope struct {
	Value interface{} `json:"value"`
}

// Encode serializes value for a broker publish. A nil value (retraction)
// encodes to a zero-length payload; anything else encodes as the
// {"value": ...} envelope.
func Encode(value *objectbus.Variant) []byte {
	if value == nil {
		return []byte{}
	}

	data, err := json.Marshal(envelope{Value: value.Unwrap()})
	if err != nil {
		return []byte{}
	}

	return data
}

// Decode parses a W/R request body's {"value": ...} envelope into a
// Variant.
func Decode(payload []byte) (objectbus.Variant, error) {
	var env envelope

	if err := json.Unmarshal(payload, &env); err != nil {
		return objectbus.Variant{}, fmt.Errorf("%w: %w", errors.ErrMalformedPayload, err)
	}

	return objectbus.FromGo(env.Value), nil
}

// DecodePatterns parses a non-empty keepalive payload as a JSON array of
// topic patterns.
func DecodePatterns(payload []byte) ([]string, error) {
	var patterns []string

	if err := json.Unmarshal(payload, &patterns); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMalformedPayload, err)
	}

	return patterns, nil
}
