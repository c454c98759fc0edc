package metrics

import "errors"

// MultiSink fans events out to multiple sinks. Every sink sees every event;
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordVendStarted(ev VendStartedEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordVendStarted(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordVendCompleted(ev VendCompletedEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordVendCompleted(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordVendRejected(ev VendRejectedEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordVendRejected(ev))
	}
	return errors.Join(errs...)
}

// RecordObservers forwards to sinks implementing ObserverCountRecorder.
func (m *MultiSink) RecordObservers(count int) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ObserverCountRecorder); ok {
			errs = append(errs, r.RecordObservers(count))
		}
	}
	return errors.Join(errs...)
}

// RecordDeliveryFailure forwards to sinks implementing DeliveryFailureRecorder.
func (m *MultiSink) RecordDeliveryFailure(ev DeliveryFailureEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(DeliveryFailureRecorder); ok {
			errs = append(errs, r.RecordDeliveryFailure(ev))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
