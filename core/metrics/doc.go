// Package metrics defines the sink interfaces used to observe the vending
// machine. Sinks are built from configuration through a factory registry;
// NewMetricsSink returns a MultiSink automatically when several sinks are
// configured. StartEventCollector feeds a sink from the internal event bus.
package metrics
