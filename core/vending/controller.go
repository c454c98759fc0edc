package vending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/vmc/core/events"
	"github.com/kilianp07/vmc/core/logger"
	"github.com/kilianp07/vmc/core/model"
	"github.com/kilianp07/vmc/core/protocol"
	"github.com/kilianp07/vmc/core/registry"
	"github.com/kilianp07/vmc/internal/eventbus"
)

// DefaultDispenseDuration is the simulated time needed to dispense a vend.
const DefaultDispenseDuration = 5000 * time.Millisecond

// ServiceName is reported by health replies.
const ServiceName = "VMC Mock Server"

// ErrClosed is returned for vend commands received after Close.
var ErrClosed = errors.New("controller closed")

const msgShuttingDown = "Vending machine is shutting down"

// Notifier delivers messages to observers.
type Notifier interface {
	Register(o registry.Observer, snapshot protocol.Message)
	Unregister(o registry.Observer)
	Broadcast(msg protocol.Message)
}

// Controller serialises every command against the vending State.
type Controller struct {
	mu         sync.Mutex
	state      *State
	notifier   Notifier
	bus        eventbus.EventBus
	log        logger.Logger
	dispense   time.Duration
	now        func() time.Time
	generation uint64
	closed     bool
	timers     sync.WaitGroup
}

// NewController creates a Controller driving state. A zero dispense duration
// selects DefaultDispenseDuration. bus may be nil.
func NewController(state *State, notifier Notifier, bus eventbus.EventBus, log logger.Logger, dispense time.Duration) (*Controller, error) {
	if state == nil {
		return nil, fmt.Errorf("state is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if dispense < 0 {
		return nil, fmt.Errorf("dispense duration must not be negative, got %s", dispense)
	}
	if dispense == 0 {
		dispense = DefaultDispenseDuration
	}
	return &Controller{
		state:    state,
		notifier: notifier,
		bus:      bus,
		log:      log,
		dispense: dispense,
		now:      time.Now,
	}, nil
}

// SetClock replaces the time source used for timestamps and elapsed time.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// DispenseDuration returns the simulated dispensing time.
func (c *Controller) DispenseDuration() time.Duration { return c.dispense }

// Connect registers o and sends it the current state. The snapshot is taken
// under the controller lock so o cannot miss a later transition.
func (c *Controller) Connect(o registry.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier.Register(o, protocol.NewStatusSnapshot(c.state.snapshot()))
}

// Disconnect removes o. Calling it twice is harmless.
func (c *Controller) Disconnect(o registry.Observer) {
	c.notifier.Unregister(o)
}

// Handle decodes payload and runs the resulting command for o. Decode
// failures are answered to o and returned.
func (c *Controller) Handle(o registry.Observer, payload []byte) error {
	cmd, err := protocol.Decode(payload)
	if err != nil {
		var invalid *protocol.ValidationError
		if errors.As(err, &invalid) {
			c.publish(events.VendRejected{ObserverID: o.ID(), Reason: events.ReasonInvalid, Time: time.Now()})
		}
		c.reply(o, protocol.ReplyFor(err))
		return err
	}
	return c.Execute(o, cmd)
}

// Execute runs a decoded command for o.
func (c *Controller) Execute(o registry.Observer, cmd protocol.Command) error {
	switch cmd := cmd.(type) {
	case protocol.VendCommand:
		return c.Vend(o, cmd.Items)
	case protocol.StatusCommand:
		c.Status(o)
		return nil
	case protocol.HealthCommand:
		c.Health(o)
		return nil
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

// Vend starts dispensing items. The requester receives the acknowledgement
// before the state change is broadcast to every observer. It returns a
// *protocol.ValidationError for an empty item list and a *protocol.BusyError
// while another vend is in flight; both are answered to o only.
func (c *Controller) Vend(o registry.Observer, items []model.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(items) == 0 {
		err := &protocol.ValidationError{Reason: "items is empty"}
		c.reject(o, err, events.ReasonInvalid)
		return err
	}
	if c.closed {
		c.reply(o, protocol.NewError(msgShuttingDown))
		return ErrClosed
	}
	if !c.state.machine.Can(EventVend) {
		err := &protocol.BusyError{Items: model.CloneItems(c.state.items)}
		c.reject(o, err, events.ReasonBusy)
		return err
	}
	if err := c.state.machine.Event(context.Background(), EventVend); err != nil {
		return fmt.Errorf("vend transition: %w", err)
	}

	now := c.now()
	c.state.items = model.CloneItems(items)
	c.state.startTime = now
	c.generation++
	gen := c.generation
	c.timers.Add(1)
	c.state.pending = time.AfterFunc(c.dispense, func() { c.complete(gen) })

	c.log.Infof("Vending started for items: %s", model.JoinItems(items))
	c.reply(o, protocol.NewVendAccepted(items, c.dispense))
	c.notifier.Broadcast(protocol.NewVendingStarted(items))
	c.publish(events.VendStarted{
		ObserverID: o.ID(),
		Items:      model.CloneItems(items),
		Estimated:  c.dispense,
		Time:       now,
	})
	return nil
}

// complete is the timer callback returning the machine to idle.
func (c *Controller) complete(gen uint64) {
	defer c.timers.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation || !c.state.machine.Can(EventComplete) {
		return
	}
	if err := c.state.machine.Event(context.Background(), EventComplete); err != nil {
		c.log.Errorf("complete transition: %v", err)
		return
	}

	now := c.now()
	vended := c.state.items
	started := c.state.startTime
	c.state.items = nil
	c.state.startTime = time.Time{}
	c.state.pending = nil

	c.notifier.Broadcast(protocol.NewVendComplete(vended, now))
	c.log.Infof("Vending completed for items: %s", model.JoinItems(vended))
	c.publish(events.VendCompleted{Items: vended, Duration: now.Sub(started), Time: now})
}

// Status answers o with the current state.
func (c *Controller) Status(o registry.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply(o, protocol.NewStatusReply(c.state.snapshot(), c.now()))
}

// Health answers o with a liveness message. It does not read the state.
func (c *Controller) Health(o registry.Observer) {
	c.reply(o, protocol.NewHealth(ServiceName, time.Now()))
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// Close cancels the pending completion timer and waits for a callback that
// is already running. No completion is broadcast afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		if c.state.pending != nil && c.state.pending.Stop() {
			c.timers.Done()
		}
		c.state.pending = nil
	}
	c.mu.Unlock()
	c.timers.Wait()
}

func (c *Controller) reject(o registry.Observer, err error, reason string) {
	c.log.Debugf("vend from %s rejected: %v", o.ID(), err)
	c.reply(o, protocol.ReplyFor(err))
	c.publish(events.VendRejected{ObserverID: o.ID(), Reason: reason, Time: c.now()})
}

func (c *Controller) reply(o registry.Observer, msg protocol.Message) {
	if err := o.Send(msg); err != nil {
		c.log.Debugf("reply %s to %s dropped: %v", msg.MessageType(), o.ID(), err)
	}
}

func (c *Controller) publish(ev eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}
