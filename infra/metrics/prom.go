package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/vmc/core/metrics"
)

// PromSink records the vend lifecycle in Prometheus metrics.
type PromSink struct {
	vends     *prometheus.CounterVec
	items     prometheus.Counter
	duration  prometheus.Histogram
	observers prometheus.Gauge
	failures  *prometheus.CounterVec
}

// NewPromSink registers vend metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already present on the registerer are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	vends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vmc_vend_requests_total",
		Help: "Vend commands by outcome",
	}, []string{"result"})
	items := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vmc_items_vended_total",
		Help: "Items dispensed by completed vends",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vmc_vend_duration_seconds",
		Help:    "Time between vend start and completion",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 7.5, 10},
	})
	observers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vmc_observers_connected",
		Help: "Currently connected observers",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vmc_broadcast_delivery_failures_total",
		Help: "Messages that could not be delivered to an observer",
	}, []string{"message_type"})

	var err error
	if vends, err = register(reg, vends); err != nil {
		return nil, err
	}
	if items, err = register(reg, items); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if observers, err = register(reg, observers); err != nil {
		return nil, err
	}
	if failures, err = register(reg, failures); err != nil {
		return nil, err
	}
	return &PromSink{vends: vends, items: items, duration: duration, observers: observers, failures: failures}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordVendStarted counts an accepted vend.
func (s *PromSink) RecordVendStarted(coremetrics.VendStartedEvent) error {
	s.vends.WithLabelValues(coremetrics.ResultAccepted).Inc()
	return nil
}

// RecordVendCompleted observes the dispense duration.
func (s *PromSink) RecordVendCompleted(ev coremetrics.VendCompletedEvent) error {
	s.items.Add(float64(ev.Items))
	s.duration.Observe(ev.Duration.Seconds())
	return nil
}

// RecordVendRejected counts a refused vend under its reason.
func (s *PromSink) RecordVendRejected(ev coremetrics.VendRejectedEvent) error {
	s.vends.WithLabelValues(ev.Reason).Inc()
	return nil
}

// RecordObservers sets the connected observers gauge.
func (s *PromSink) RecordObservers(count int) error {
	s.observers.Set(float64(count))
	return nil
}

// RecordDeliveryFailure counts a dropped broadcast.
func (s *PromSink) RecordDeliveryFailure(ev coremetrics.DeliveryFailureEvent) error {
	s.failures.WithLabelValues(ev.MessageType).Inc()
	return nil
}
