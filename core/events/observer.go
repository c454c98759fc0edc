package events

import "time"

// ObserverConnected is published after an observer joined the registry.
type ObserverConnected struct {
	ObserverID string
	Observers  int
	Time       time.Time
}

// ObserverDisconnected is published after an observer left the registry.
type ObserverDisconnected struct {
	ObserverID string
	Observers  int
	Time       time.Time
}

// DeliveryFailed is published when a broadcast could not be enqueued for an
// observer. The observer is removed right after.
type DeliveryFailed struct {
	ObserverID  string
	MessageType string
	Err         error
	Time        time.Time
}
