package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the channel capacity handed to each subscriber.
const DefaultBuffer = 32

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation using fan-out channels.
// Publishing never blocks: a subscriber whose buffer is full misses the event
// and the drop is counted.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Event
	closed  bool
	buffer  int
	dropped atomic.Uint64
}

// New creates a Bus with DefaultBuffer sized subscriptions.
func New() *Bus { return NewWithBuffer(DefaultBuffer) }

// NewWithBuffer creates a Bus whose subscriber channels hold size events.
func NewWithBuffer(size int) *Bus {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Bus{buffer: size}
}

// Publish sends the event to all subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
