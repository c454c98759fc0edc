package events

import (
	"time"

	"github.com/kilianp07/vmc/core/model"
)

// Rejection reasons carried by VendRejected.
const (
	ReasonBusy    = "busy"
	ReasonInvalid = "invalid"
)

// VendStarted is published when the machine enters the vending state.
type VendStarted struct {
	ObserverID string
	Items      []model.Item
	Estimated  time.Duration
	Time       time.Time
}

// VendRejected is published for each refused vend command.
type VendRejected struct {
	ObserverID string
	Reason     string
	Time       time.Time
}

// VendCompleted is published when the machine returns to idle.
type VendCompleted struct {
	Items    []model.Item
	Duration time.Duration
	Time     time.Time
}
