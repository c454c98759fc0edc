package vending

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vmc/core/events"
	"github.com/kilianp07/vmc/core/model"
	"github.com/kilianp07/vmc/core/protocol"
	"github.com/kilianp07/vmc/core/registry"
	"github.com/kilianp07/vmc/infra/logger"
	"github.com/kilianp07/vmc/internal/eventbus"
)

const testDispense = 40 * time.Millisecond

type recorder struct {
	id   string
	mu   sync.Mutex
	msgs []protocol.Message
}

func newRecorder(id string) *recorder { return &recorder{id: id} }

func (r *recorder) ID() string { return r.id }
func (r *recorder) Close()     {}

func (r *recorder) Send(m protocol.Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Message(nil), r.msgs...)
}

func (r *recorder) last() protocol.Message {
	all := r.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (r *recorder) ofType(typ string) []protocol.Message {
	var out []protocol.Message
	for _, m := range r.all() {
		if m.MessageType() == typ {
			out = append(out, m)
		}
	}
	return out
}

func newTestController(t *testing.T, d time.Duration) (*Controller, *registry.Registry, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	reg := registry.New(bus, logger.NopLogger{})
	ctrl, err := NewController(NewState(), reg, bus, logger.NopLogger{}, d)
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	return ctrl, reg, bus
}

func items(names ...string) []model.Item {
	out := make([]model.Item, len(names))
	for i, n := range names {
		out[i] = model.NamedItem(n)
	}
	return out
}

func TestNewControllerValidation(t *testing.T) {
	reg := registry.New(nil, logger.NopLogger{})
	_, err := NewController(nil, reg, nil, logger.NopLogger{}, 0)
	assert.Error(t, err)
	_, err = NewController(NewState(), nil, nil, logger.NopLogger{}, 0)
	assert.Error(t, err)
	_, err = NewController(NewState(), reg, nil, logger.NopLogger{}, -time.Second)
	assert.Error(t, err)

	ctrl, err := NewController(NewState(), reg, nil, logger.NopLogger{}, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDispenseDuration, ctrl.DispenseDuration())
}

func TestConnectSendsSnapshot(t *testing.T) {
	ctrl, reg, _ := newTestController(t, testDispense)
	a := newRecorder("a")
	ctrl.Connect(a)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, protocol.NewStatusSnapshot(model.Snapshot{Status: model.StatusIdle}), a.last())
}

func TestVendLifecycle(t *testing.T) {
	ctrl, _, bus := newTestController(t, testDispense)
	sub := bus.Subscribe()
	requester, watcher := newRecorder("req"), newRecorder("watch")
	ctrl.Connect(requester)
	ctrl.Connect(watcher)

	want := items("A1", "B3")
	require.NoError(t, ctrl.Vend(requester, want))

	snap := ctrl.Snapshot()
	assert.Equal(t, model.StatusVending, snap.Status)
	assert.Equal(t, want, snap.Items)
	assert.False(t, snap.StartTime.IsZero())

	reqMsgs := requester.all()
	require.Len(t, reqMsgs, 3)
	assert.Equal(t, protocol.NewVendAccepted(want, testDispense), reqMsgs[1])
	assert.Equal(t, protocol.NewVendingStarted(want), reqMsgs[2])
	assert.Equal(t, protocol.NewVendingStarted(want), watcher.last())

	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Status == model.StatusIdle
	}, time.Second, 5*time.Millisecond)

	for _, o := range []*recorder{requester, watcher} {
		done := o.ofType(protocol.TypeVendComplete)
		require.Len(t, done, 1)
		complete := done[0].(protocol.VendComplete)
		assert.Equal(t, want, complete.VendedItems)
		assert.Equal(t, model.StatusIdle, complete.Status)
	}
	snap = ctrl.Snapshot()
	assert.Empty(t, snap.Items)
	assert.True(t, snap.StartTime.IsZero())

	var started, completed bool
	for len(sub) > 0 {
		switch ev := (<-sub).(type) {
		case events.VendStarted:
			started = true
			assert.Equal(t, "req", ev.ObserverID)
		case events.VendCompleted:
			completed = true
			assert.GreaterOrEqual(t, ev.Duration, time.Duration(0))
		}
	}
	assert.True(t, started)
	assert.True(t, completed)
}

func TestCompletionWaitsForFullDuration(t *testing.T) {
	ctrl, _, _ := newTestController(t, 150*time.Millisecond)
	o := newRecorder("o")
	ctrl.Connect(o)
	start := time.Now()
	require.NoError(t, ctrl.Vend(o, items("A1")))
	require.Eventually(t, func() bool {
		return len(o.ofType(protocol.TypeVendComplete)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestVendWhileBusy(t *testing.T) {
	ctrl, _, _ := newTestController(t, time.Hour)
	first, second := newRecorder("first"), newRecorder("second")
	ctrl.Connect(first)
	ctrl.Connect(second)
	require.NoError(t, ctrl.Vend(first, items("A1", "B3")))
	before := len(first.all())

	err := ctrl.Vend(second, items("C2"))
	var busy *protocol.BusyError
	require.True(t, errors.As(err, &busy))
	assert.Equal(t, items("A1", "B3"), busy.Items)
	assert.Equal(t, protocol.NewVendBusy(items("A1", "B3")), second.last())
	assert.Len(t, first.all(), before, "rejection must not be broadcast")

	snap := ctrl.Snapshot()
	assert.Equal(t, model.StatusVending, snap.Status)
	assert.Equal(t, items("A1", "B3"), snap.Items)
}

func TestVendEmptyItems(t *testing.T) {
	ctrl, _, _ := newTestController(t, testDispense)
	req, other := newRecorder("req"), newRecorder("other")
	ctrl.Connect(req)
	ctrl.Connect(other)

	err := ctrl.Vend(req, nil)
	var invalid *protocol.ValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, protocol.NewVendInvalid(), req.last())
	assert.Len(t, other.all(), 1)
	assert.Equal(t, model.StatusIdle, ctrl.Snapshot().Status)
}

func TestHandleMalformedAndUnknown(t *testing.T) {
	ctrl, _, _ := newTestController(t, testDispense)
	o := newRecorder("o")
	ctrl.Connect(o)

	err := ctrl.Handle(o, []byte("{oops"))
	assert.ErrorIs(t, err, protocol.ErrMalformedPayload)
	assert.Equal(t, protocol.NewError("Invalid JSON"), o.last())

	err = ctrl.Handle(o, []byte(`{"type":"refund"}`))
	var unknown *protocol.UnknownTypeError
	assert.True(t, errors.As(err, &unknown))
	assert.Equal(t, protocol.NewError("Unknown message type: refund"), o.last())

	err = ctrl.Handle(o, []byte(`{"type":"vend","items":"A1"}`))
	var invalid *protocol.ValidationError
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, protocol.NewVendInvalid(), o.last())

	assert.Equal(t, model.StatusIdle, ctrl.Snapshot().Status)
}

func TestHandleStatusQueries(t *testing.T) {
	ctrl, _, _ := newTestController(t, time.Hour)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ctrl.SetClock(func() time.Time { return now })
	o := newRecorder("o")
	ctrl.Connect(o)

	require.NoError(t, ctrl.Handle(o, []byte(`{"type":"status"}`)))
	idle := o.last().(protocol.StatusReply)
	assert.Equal(t, model.StatusIdle, idle.Status)
	assert.Equal(t, protocol.MsgMachineIdle, idle.Message)
	assert.Nil(t, idle.Items)
	assert.Nil(t, idle.ElapsedTime)

	require.NoError(t, ctrl.Handle(o, []byte(`{"type":"vend","items":["A1",2]}`)))
	now = base.Add(1200 * time.Millisecond)
	require.NoError(t, ctrl.Handle(o, []byte(`{"type":"status"}`)))
	busy := o.last().(protocol.StatusReply)
	assert.Equal(t, model.StatusVending, busy.Status)
	assert.Equal(t, []model.Item{model.NamedItem("A1"), model.NumberedItem(2)}, busy.Items)
	require.NotNil(t, busy.ElapsedTime)
	assert.Equal(t, int64(1200), *busy.ElapsedTime)
	assert.Equal(t, "2024-05-01T12:00:01.200Z", busy.Timestamp)
}

func TestHandleHealth(t *testing.T) {
	ctrl, _, _ := newTestController(t, testDispense)
	o := newRecorder("o")
	require.NoError(t, ctrl.Handle(o, []byte(`{"type":"health"}`)))
	h := o.last().(protocol.Health)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, ServiceName, h.Service)
}

func TestObserverJoiningAfterCompletionSeesIdle(t *testing.T) {
	ctrl, _, _ := newTestController(t, testDispense)
	o := newRecorder("o")
	ctrl.Connect(o)
	require.NoError(t, ctrl.Vend(o, items("A1")))
	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Status == model.StatusIdle
	}, time.Second, 5*time.Millisecond)

	late := newRecorder("late")
	ctrl.Connect(late)
	assert.Equal(t, []protocol.Message{protocol.NewStatusSnapshot(model.Snapshot{Status: model.StatusIdle})}, late.all())
}

func TestObserverJoiningMidVendSeesVending(t *testing.T) {
	ctrl, _, _ := newTestController(t, time.Hour)
	o := newRecorder("o")
	require.NoError(t, ctrl.Vend(o, items("A1")))
	mid := newRecorder("mid")
	ctrl.Connect(mid)
	snap := mid.last().(protocol.StatusSnapshot)
	assert.Equal(t, model.StatusVending, snap.Status)
	assert.Equal(t, items("A1"), snap.Items)
}

func TestConcurrentVendsAcceptExactlyOne(t *testing.T) {
	ctrl, _, _ := newTestController(t, time.Hour)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := newRecorder(fmt.Sprintf("o%d", i))
			if err := ctrl.Vend(o, items(fmt.Sprintf("X%d", i))); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}

func TestSequentialVendsAfterCompletion(t *testing.T) {
	ctrl, _, _ := newTestController(t, testDispense)
	o := newRecorder("o")
	ctrl.Connect(o)
	for _, it := range []string{"A1", "B2"} {
		require.NoError(t, ctrl.Vend(o, items(it)))
		require.Eventually(t, func() bool {
			return ctrl.Snapshot().Status == model.StatusIdle
		}, time.Second, 5*time.Millisecond)
	}
	done := o.ofType(protocol.TypeVendComplete)
	require.Len(t, done, 2)
	assert.Equal(t, items("B2"), done[1].(protocol.VendComplete).VendedItems)
}

func TestCloseCancelsPendingCompletion(t *testing.T) {
	ctrl, _, _ := newTestController(t, testDispense)
	o := newRecorder("o")
	ctrl.Connect(o)
	require.NoError(t, ctrl.Vend(o, items("A1")))
	ctrl.Close()
	time.Sleep(3 * testDispense)
	assert.Empty(t, o.ofType(protocol.TypeVendComplete))

	err := ctrl.Vend(o, items("B1"))
	assert.ErrorIs(t, err, ErrClosed)
	ctrl.Close()
}
