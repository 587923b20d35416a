package storage

import (
	"errors"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/announce"
	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON snapshot file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is the schema-stable persisted form of an announcement.
// Keep it compact; null-handling must round-trip exactly.
type Record struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	ScheduledAtMS int64          `json:"scheduled_at_ms"`
	Recurrence    *int           `json:"recurrence,omitempty"` // nil for one-time
	CustomDays    []int          `json:"custom_days,omitempty"`
	TimeOfDay     string         `json:"time_of_day,omitempty"`
	Active        bool           `json:"active"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// EncodeRecord flattens an announcement into its persisted form.
func EncodeRecord(a announce.Announcement) Record {
	r := Record{
		ID:            a.ID,
		Content:       a.Content,
		ScheduledAtMS: a.At.UnixMilli(),
		Active:        a.Active,
		Metadata:      a.Metadata,
	}
	if a.Rule.Recurring() {
		idx := int(a.Rule)
		r.Recurrence = &idx
		r.TimeOfDay = a.TimeOfDay.String()
		if a.Rule == recurrence.Custom {
			r.CustomDays = a.Days
		}
	}
	return r
}

// DecodeRecord rebuilds an announcement; the next-fire instant is restored in
// loc so calendar-day math matches the configured zone.
func DecodeRecord(r Record, loc *time.Location) (announce.Announcement, error) {
	if loc == nil {
		loc = time.Local
	}
	a := announce.Announcement{
		ID:       r.ID,
		Content:  r.Content,
		At:       time.UnixMilli(r.ScheduledAtMS).In(loc),
		Active:   r.Active,
		Metadata: r.Metadata,
	}
	if r.Recurrence != nil {
		rule := recurrence.Rule(*r.Recurrence)
		if !rule.Recurring() {
			return announce.Announcement{}, errors.New("record has non-recurring rule index")
		}
		a.Rule = rule
		tod, err := recurrence.ParseTimeOfDay(r.TimeOfDay)
		if err != nil {
			return announce.Announcement{}, err
		}
		a.TimeOfDay = tod
		if rule == recurrence.Custom {
			if !recurrence.ValidDays(r.CustomDays) {
				return announce.Announcement{}, errors.New("record has invalid custom days")
			}
			a.Days = r.CustomDays
		}
	}
	return a, nil
}
