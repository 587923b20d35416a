// Package announce holds the announcement model, the in-memory schedule
// store and the validation gate that enforces operational limits.
package announce

import (
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
)

// Announcement is the central scheduled entity.
//
// At always points at the NEXT pending fire. For recurring rules it is
// recomputed after every fire; for one-time announcements it is fixed until
// the item retires.
type Announcement struct {
	ID      string
	Content string
	At      time.Time

	Rule recurrence.Rule
	// Days is the ISO weekday set (1=Monday..7=Sunday); only meaningful for
	// Custom rules.
	Days []int
	// TimeOfDay is the wall-clock fire time for recurring rules.
	TimeOfDay recurrence.TimeOfDay

	// Active is true while at least one future occurrence is pending. It
	// flips to false when a one-time announcement has fired or the item was
	// cancelled.
	Active bool

	// Metadata is caller-supplied and opaque to the engine; it is passed
	// through to delivery and queries untouched.
	Metadata map[string]any
}

// Clone returns a copy that shares no mutable state with the original.
// Metadata values are assumed immutable by convention (JSON-shaped data).
func (a Announcement) Clone() Announcement {
	cp := a
	if a.Days != nil {
		cp.Days = append([]int(nil), a.Days...)
	}
	if a.Metadata != nil {
		m := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			m[k] = v
		}
		cp.Metadata = m
	}
	return cp
}

// SameDay reports whether a's next fire falls on the given calendar day in loc.
func (a Announcement) SameDay(day time.Time, loc *time.Location) bool {
	x := a.At.In(loc)
	y := day.In(loc)
	return x.Year() == y.Year() && x.Month() == y.Month() && x.Day() == y.Day()
}
