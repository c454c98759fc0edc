package mqtt

import (
	"context"
	"encoding/json"

	"github.com/kilianp07/vmc/core/events"
	"github.com/kilianp07/vmc/core/model"
	coremqtt "github.com/kilianp07/vmc/core/mqtt"
	"github.com/kilianp07/vmc/core/protocol"
	"github.com/kilianp07/vmc/infra/logger"
	"github.com/kilianp07/vmc/internal/eventbus"
)

// Event kinds, used as the last topic segment under <prefix>/events/.
const (
	KindVendStarted          = "vend-started"
	KindVendRejected         = "vend-rejected"
	KindVendCompleted        = "vend-completed"
	KindObserverConnected    = "observer-connected"
	KindObserverDisconnected = "observer-disconnected"
	KindDeliveryFailed       = "delivery-failed"
)

// EventPayload is the JSON document published for every mirrored event.
type EventPayload struct {
	Kind        string       `json:"kind"`
	ObserverID  string       `json:"observerId,omitempty"`
	Items       []model.Item `json:"items,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	EstimatedMS int64        `json:"estimatedTime,omitempty"`
	DurationMS  int64        `json:"duration,omitempty"`
	Observers   *int         `json:"observers,omitempty"`
	MessageType string       `json:"messageType,omitempty"`
	Error       string       `json:"error,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

// StatePayload is the retained document on <prefix>/state.
type StatePayload struct {
	Status    model.Status `json:"status"`
	Items     []model.Item `json:"items"`
	Timestamp string       `json:"timestamp"`
}

// Mirror republishes bus events to MQTT topics.
type Mirror struct {
	pub    coremqtt.Publisher
	prefix string
	log    logger.Logger
}

// NewMirror returns a Mirror publishing under prefix.
func NewMirror(pub coremqtt.Publisher, prefix string) *Mirror {
	if prefix == "" {
		prefix = "vmc"
	}
	return &Mirror{pub: pub, prefix: prefix, log: logger.New("mqtt_mirror")}
}

// EventTopic returns the topic for an event kind.
func (m *Mirror) EventTopic(kind string) string {
	return m.prefix + "/events/" + kind
}

// StateTopic returns the retained machine state topic.
func (m *Mirror) StateTopic() string {
	return m.prefix + "/state"
}

// Start subscribes to the bus and mirrors events until ctx is canceled or the
// bus is closed. The returned channel is closed when the mirror stops.
func (m *Mirror) Start(ctx context.Context, bus eventbus.EventBus) <-chan struct{} {
	done := make(chan struct{})
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
				if err := m.Mirror(ev); err != nil {
					m.log.Warnf("mirror %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

// Mirror publishes one event. Unknown events are ignored.
func (m *Mirror) Mirror(ev eventbus.Event) error {
	var p EventPayload
	switch e := ev.(type) {
	case events.VendStarted:
		p = EventPayload{Kind: KindVendStarted, ObserverID: e.ObserverID, Items: e.Items,
			EstimatedMS: e.Estimated.Milliseconds(), Timestamp: protocol.Timestamp(e.Time)}
		if err := m.publishState(model.StatusVending, e.Items, p.Timestamp); err != nil {
			return err
		}
	case events.VendCompleted:
		p = EventPayload{Kind: KindVendCompleted, Items: e.Items,
			DurationMS: e.Duration.Milliseconds(), Timestamp: protocol.Timestamp(e.Time)}
		if err := m.publishState(model.StatusIdle, nil, p.Timestamp); err != nil {
			return err
		}
	case events.VendRejected:
		p = EventPayload{Kind: KindVendRejected, ObserverID: e.ObserverID, Reason: e.Reason,
			Timestamp: protocol.Timestamp(e.Time)}
	case events.ObserverConnected:
		n := e.Observers
		p = EventPayload{Kind: KindObserverConnected, ObserverID: e.ObserverID, Observers: &n,
			Timestamp: protocol.Timestamp(e.Time)}
	case events.ObserverDisconnected:
		n := e.Observers
		p = EventPayload{Kind: KindObserverDisconnected, ObserverID: e.ObserverID, Observers: &n,
			Timestamp: protocol.Timestamp(e.Time)}
	case events.DeliveryFailed:
		p = EventPayload{Kind: KindDeliveryFailed, ObserverID: e.ObserverID, MessageType: e.MessageType,
			Timestamp: protocol.Timestamp(e.Time)}
		if e.Err != nil {
			p.Error = e.Err.Error()
		}
	default:
		return nil
	}
	return m.publish(m.EventTopic(p.Kind), p, false)
}

func (m *Mirror) publishState(status model.Status, items []model.Item, ts string) error {
	return m.publish(m.StateTopic(), StatePayload{Status: status, Items: model.CloneItems(items), Timestamp: ts}, true)
}

func (m *Mirror) publish(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.pub.Publish(topic, payload, retained)
}
