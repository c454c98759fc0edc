package protocol

import (
	"errors"
	"fmt"

	"github.com/kilianp07/vmc/core/model"
)

// ErrMalformedPayload is returned when a payload is not a JSON object.
var ErrMalformedPayload = errors.New("malformed payload")

// UnknownTypeError is returned for a well-formed envelope whose type is not a
// known command.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// ValidationError reports a vend command whose items are unusable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid items: " + e.Reason
}

// BusyError reports a vend command received while another vend is in flight.
type BusyError struct {
	Items []model.Item
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("busy vending %s", model.JoinItems(e.Items))
}

// ReplyFor converts a command error into the message sent back to the
// requester. Unknown errors map to a generic error message.
func ReplyFor(err error) Message {
	var (
		busy    *BusyError
		invalid *ValidationError
		unknown *UnknownTypeError
	)
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return NewError(MsgInvalidJSON)
	case errors.As(err, &busy):
		return NewVendBusy(busy.Items)
	case errors.As(err, &invalid):
		return NewVendInvalid()
	case errors.As(err, &unknown):
		return NewError("Unknown message type: " + unknown.Type)
	default:
		return NewError(err.Error())
	}
}
