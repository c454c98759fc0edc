package vending

import (
	"time"

	"github.com/looplab/fsm"

	"github.com/kilianp07/vmc/core/model"
)

// Machine events.
const (
	EventVend     = "vend"
	EventComplete = "complete"
)

// State is the vending machine state. It is not safe for concurrent use; the
// Controller that owns it serialises every access.
type State struct {
	machine   *fsm.FSM
	items     []model.Item
	startTime time.Time
	pending   *time.Timer
}

// NewState returns an idle machine.
func NewState() *State {
	return &State{
		machine: fsm.NewFSM(
			string(model.StatusIdle),
			fsm.Events{
				{Name: EventVend, Src: []string{string(model.StatusIdle)}, Dst: string(model.StatusVending)},
				{Name: EventComplete, Src: []string{string(model.StatusVending)}, Dst: string(model.StatusIdle)},
			},
			fsm.Callbacks{},
		),
	}
}

// Status returns the current machine state.
func (s *State) Status() model.Status { return model.Status(s.machine.Current()) }

func (s *State) snapshot() model.Snapshot {
	return model.Snapshot{
		Status:    s.Status(),
		Items:     model.CloneItems(s.items),
		StartTime: s.startTime,
	}
}
