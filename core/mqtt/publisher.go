package mqtt

import "errors"

// ErrNotConnected is returned when publishing while the broker connection is down.
var ErrNotConnected = errors.New("mqtt client not connected")

// Publisher sends raw payloads to broker topics.
type Publisher interface {
	// Publish sends payload to topic. retained asks the broker to keep the
	// last message for late subscribers.
	Publish(topic string, payload []byte, retained bool) error
}
