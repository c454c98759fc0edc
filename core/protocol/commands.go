package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kilianp07/vmc/core/model"
)

// Command is one of VendCommand, StatusCommand or HealthCommand.
type Command interface {
	command()
}

// VendCommand asks the machine to dispense Items in order.
type VendCommand struct {
	Items []model.Item
}

// StatusCommand queries the current state.
type StatusCommand struct{}

// HealthCommand is a liveness probe.
type HealthCommand struct{}

func (VendCommand) command()   {}
func (StatusCommand) command() {}
func (HealthCommand) command() {}

type envelope struct {
	Type  string          `json:"type"`
	Items json.RawMessage `json:"items"`
}

// Decode parses payload into a Command. It returns ErrMalformedPayload for
// anything that is not a JSON object, *UnknownTypeError for unsupported types
// and *ValidationError for a vend command whose items are not a sequence of
// identifiers.
func Decode(payload []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	switch env.Type {
	case TypeVend:
		items, err := ParseItems(env.Items)
		if err != nil {
			return nil, err
		}
		return VendCommand{Items: items}, nil
	case TypeStatus:
		return StatusCommand{}, nil
	case TypeHealth:
		return HealthCommand{}, nil
	default:
		return nil, &UnknownTypeError{Type: env.Type}
	}
}

// ParseItems decodes a JSON array of item identifiers. Emptiness is left to
// the controller so that every entry point applies the same rule.
func ParseItems(raw json.RawMessage) ([]model.Item, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &ValidationError{Reason: "items is not an array"}
	}
	var items []model.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	return items, nil
}
