package maintenance

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a schedule item does not exist.
var ErrNotFound = errors.New("maintenance: not found")

// Item is one entry of a device maintenance schedule.
type Item struct {
	ID              string    `json:"id"`
	DeviceID        string    `json:"deviceId,omitempty"`
	TaskName        string    `json:"taskName"`
	Description     string    `json:"description,omitempty"`
	Frequency       string    `json:"frequency"`
	Priority        string    `json:"priority,omitempty"`
	EstimatedMins   int       `json:"estimatedMins,omitempty"`
	LastMaintenance time.Time `json:"lastMaintenance"`
	NextMaintenance time.Time `json:"nextMaintenance"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

// Validate checks item invariants.
func (i Item) Validate() error {
	if i.TaskName == "" {
		return errors.New("maintenance item: empty task name")
	}
	return nil
}

// WithSchedule returns a copy of the item with normalized frequency and the
// last/next maintenance dates filled relative to now.
func (i Item) WithSchedule(now time.Time) Item {
	out := i
	out.Frequency = NormalizeFrequency(i.Frequency)
	if out.LastMaintenance.IsZero() {
		out.LastMaintenance = now
	}
	if out.NextMaintenance.IsZero() {
		out.NextMaintenance = NextDate(out.LastMaintenance, out.Frequency)
	}
	return out
}
