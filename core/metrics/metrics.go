package metrics

import "time"

// Vend outcomes used as the result label of vend counters.
const (
	ResultAccepted = "accepted"
	ResultBusy     = "busy"
	ResultInvalid  = "invalid"
)

// VendStartedEvent describes an accepted vend command.
type VendStartedEvent struct {
	ObserverID string
	Items      int
	Estimated  time.Duration
	Time       time.Time
}

// VendCompletedEvent describes a finished dispense cycle.
type VendCompletedEvent struct {
	Items    int
	Duration time.Duration
	Time     time.Time
}

// VendRejectedEvent describes a refused vend command.
type VendRejectedEvent struct {
	ObserverID string
	Reason     string
	Time       time.Time
}

// MetricsSink records the vend lifecycle for observability purposes.
type MetricsSink interface {
	RecordVendStarted(ev VendStartedEvent) error
	RecordVendCompleted(ev VendCompletedEvent) error
	RecordVendRejected(ev VendRejectedEvent) error
}

// ObserverCountRecorder records the number of connected observers.
type ObserverCountRecorder interface {
	RecordObservers(count int) error
}

// DeliveryFailureEvent describes a broadcast that could not reach an observer.
type DeliveryFailureEvent struct {
	ObserverID  string
	MessageType string
	Error       string
	Time        time.Time
}

// DeliveryFailureRecorder records failed deliveries.
type DeliveryFailureRecorder interface {
	RecordDeliveryFailure(ev DeliveryFailureEvent) error
}

// NopSink is a MetricsSink that discards all events.
type NopSink struct{}

func (NopSink) RecordVendStarted(VendStartedEvent) error         { return nil }
func (NopSink) RecordVendCompleted(VendCompletedEvent) error     { return nil }
func (NopSink) RecordVendRejected(VendRejectedEvent) error       { return nil }
func (NopSink) RecordObservers(int) error                        { return nil }
func (NopSink) RecordDeliveryFailure(DeliveryFailureEvent) error { return nil }
