package model

import "time"

// Status is the operating state of the vending machine.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusVending Status = "vending"
)

func (s Status) String() string { return string(s) }

// Snapshot is a read-only copy of the machine state at a point in time.
type Snapshot struct {
	Status    Status    `json:"status"`
	Items     []Item    `json:"items"`
	StartTime time.Time `json:"start_time,omitempty"`
}

// Elapsed returns the time spent vending at now, or zero when idle.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.Status != StatusVending || s.StartTime.IsZero() {
		return 0
	}
	return now.Sub(s.StartTime)
}
