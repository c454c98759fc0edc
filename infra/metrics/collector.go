package metrics

import (
	"context"

	"github.com/kilianp07/vmc/core/events"
	coremetrics "github.com/kilianp07/vmc/core/metrics"
	"github.com/kilianp07/vmc/infra/logger"
	"github.com/kilianp07/vmc/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// vend and observer events. The returned channel is closed once the collector
// has stopped, either because ctx was canceled or the bus was closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.VendStarted:
		return sink.RecordVendStarted(coremetrics.VendStartedEvent{
			ObserverID: e.ObserverID,
			Items:      len(e.Items),
			Estimated:  e.Estimated,
			Time:       e.Time,
		})
	case events.VendCompleted:
		return sink.RecordVendCompleted(coremetrics.VendCompletedEvent{
			Items:    len(e.Items),
			Duration: e.Duration,
			Time:     e.Time,
		})
	case events.VendRejected:
		return sink.RecordVendRejected(coremetrics.VendRejectedEvent{
			ObserverID: e.ObserverID,
			Reason:     e.Reason,
			Time:       e.Time,
		})
	case events.ObserverConnected:
		if r, ok := sink.(coremetrics.ObserverCountRecorder); ok {
			return r.RecordObservers(e.Observers)
		}
	case events.ObserverDisconnected:
		if r, ok := sink.(coremetrics.ObserverCountRecorder); ok {
			return r.RecordObservers(e.Observers)
		}
	case events.DeliveryFailed:
		if r, ok := sink.(coremetrics.DeliveryFailureRecorder); ok {
			msg := ""
			if e.Err != nil {
				msg = e.Err.Error()
			}
			return r.RecordDeliveryFailure(coremetrics.DeliveryFailureEvent{
				ObserverID:  e.ObserverID,
				MessageType: e.MessageType,
				Error:       msg,
				Time:        e.Time,
			})
		}
	}
	return nil
}
