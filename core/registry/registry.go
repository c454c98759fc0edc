package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/kilianp07/vmc/core/events"
	"github.com/kilianp07/vmc/core/logger"
	"github.com/kilianp07/vmc/core/protocol"
	"github.com/kilianp07/vmc/internal/eventbus"
)

// Errors returned by Observer.Send implementations.
var (
	ErrObserverClosed = errors.New("observer closed")
	ErrSendBufferFull = errors.New("observer send buffer full")
)

// Observer is a connected client receiving notifications.
type Observer interface {
	// ID returns an identity unique among live observers.
	ID() string
	// Send enqueues msg for delivery. It must not block.
	Send(msg protocol.Message) error
	// Close releases the underlying connection. It must be idempotent.
	Close()
}

// Registry tracks the live observers and fans messages out to them.
type Registry struct {
	mu        sync.RWMutex
	observers map[string]Observer
	bus       eventbus.EventBus
	log       logger.Logger
	now       func() time.Time
}

// New creates an empty Registry. bus may be nil.
func New(bus eventbus.EventBus, log logger.Logger) *Registry {
	return &Registry{
		observers: make(map[string]Observer),
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// Register adds o and immediately sends it snapshot. An observer that cannot
// take the snapshot is dropped again.
func (r *Registry) Register(o Observer, snapshot protocol.Message) {
	r.mu.Lock()
	r.observers[o.ID()] = o
	n := len(r.observers)
	r.mu.Unlock()

	r.log.Infof("observer %s connected (%d connected)", o.ID(), n)
	r.publish(events.ObserverConnected{ObserverID: o.ID(), Observers: n, Time: r.now()})

	if err := o.Send(snapshot); err != nil {
		r.deliveryFailed(o, snapshot, err)
	}
}

// Unregister removes o and closes it. Removing an unknown observer is a no-op.
func (r *Registry) Unregister(o Observer) {
	r.mu.Lock()
	cur, ok := r.observers[o.ID()]
	if ok && cur == o {
		delete(r.observers, o.ID())
	}
	n := len(r.observers)
	r.mu.Unlock()
	if !ok || cur != o {
		return
	}
	o.Close()
	r.log.Infof("observer %s disconnected (%d connected)", o.ID(), n)
	r.publish(events.ObserverDisconnected{ObserverID: o.ID(), Observers: n, Time: r.now()})
}

// Broadcast delivers msg to every registered observer. Observers that cannot
// take the message are removed; the failure never reaches the caller.
func (r *Registry) Broadcast(msg protocol.Message) {
	r.mu.RLock()
	targets := make([]Observer, 0, len(r.observers))
	for _, o := range r.observers {
		targets = append(targets, o)
	}
	r.mu.RUnlock()

	for _, o := range targets {
		if err := o.Send(msg); err != nil {
			r.deliveryFailed(o, msg, err)
		}
	}
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// Close unregisters every observer.
func (r *Registry) Close() {
	r.mu.RLock()
	all := make([]Observer, 0, len(r.observers))
	for _, o := range r.observers {
		all = append(all, o)
	}
	r.mu.RUnlock()
	for _, o := range all {
		r.Unregister(o)
	}
}

func (r *Registry) deliveryFailed(o Observer, msg protocol.Message, err error) {
	r.log.Warnf("delivery of %s to observer %s failed: %v", msg.MessageType(), o.ID(), err)
	r.publish(events.DeliveryFailed{
		ObserverID:  o.ID(),
		MessageType: msg.MessageType(),
		Err:         err,
		Time:        r.now(),
	})
	r.Unregister(o)
}

func (r *Registry) publish(ev eventbus.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}
