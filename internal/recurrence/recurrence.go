// Package recurrence computes the next occurrence of a repeating
// announcement. It is pure: no clocks, no I/O. Callers pass the reference
// instant and the target timezone explicitly, which keeps results
// reproducible across process restarts.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule is the repetition pattern of a scheduled announcement.
type Rule int

const (
	// None marks a one-time announcement; it carries its target instant
	// directly and never goes through Next.
	None Rule = iota
	Daily
	Weekdays
	Weekends
	// Custom fires on an explicit set of ISO weekdays (1=Monday .. 7=Sunday).
	Custom
)

var ruleNames = map[Rule]string{
	None:     "none",
	Daily:    "daily",
	Weekdays: "weekdays",
	Weekends: "weekends",
	Custom:   "custom",
}

func (r Rule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// Valid reports whether r is a known rule.
func (r Rule) Valid() bool {
	_, ok := ruleNames[r]
	return ok
}

// Recurring reports whether the rule produces more than one occurrence.
func (r Rule) Recurring() bool { return r.Valid() && r != None }

// ParseRule maps a config string to a Rule.
func ParseRule(s string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "once":
		return None, nil
	case "daily":
		return Daily, nil
	case "weekdays":
		return Weekdays, nil
	case "weekends":
		return Weekends, nil
	case "custom", "weekly":
		return Custom, nil
	default:
		return None, fmt.Errorf("unknown recurrence %q", s)
	}
}

// TimeOfDay is a wall-clock time in the scheduler's timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// ISOWeekday converts a time.Weekday (Sunday=0) to ISO numbering
// (1=Monday .. 7=Sunday).
func ISOWeekday(d time.Weekday) int {
	return (int(d)+6)%7 + 1
}

// ValidDays reports whether every entry is an ISO weekday in 1..7.
// Duplicates are tolerated; an empty set is not valid.
func ValidDays(days []int) bool {
	if len(days) == 0 {
		return false
	}
	for _, d := range days {
		if d < 1 || d > 7 {
			return false
		}
	}
	return true
}

// Next returns the first occurrence of (rule, days, tod) strictly after from,
// evaluated in loc. An occurrence landing exactly on from counts as already
// consumed. days is only consulted for Custom.
func Next(rule Rule, days []int, tod TimeOfDay, from time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if !rule.Recurring() {
		return time.Time{}, fmt.Errorf("rule %s has no next occurrence", rule)
	}
	if rule == Custom && !ValidDays(days) {
		return time.Time{}, errors.New("custom recurrence requires weekdays in 1..7")
	}

	ref := from.In(loc)
	// Scan at most a full week plus today: the widest gap between matching
	// weekdays is 7 days.
	for off := 0; off <= 7; off++ {
		d := ref.AddDate(0, 0, off)
		cand := time.Date(d.Year(), d.Month(), d.Day(), tod.Hour, tod.Minute, 0, 0, loc)
		if !cand.After(from) {
			continue
		}
		if matches(rule, days, cand.Weekday()) {
			return cand, nil
		}
	}
	// Unreachable for valid input, but the scan is bounded on purpose.
	return time.Time{}, errors.New("no occurrence within 7 days")
}

func matches(rule Rule, days []int, wd time.Weekday) bool {
	switch rule {
	case Daily:
		return true
	case Weekdays:
		return wd != time.Saturday && wd != time.Sunday
	case Weekends:
		return wd == time.Saturday || wd == time.Sunday
	case Custom:
		iso := ISOWeekday(wd)
		for _, d := range days {
			if d == iso {
				return true
			}
		}
	}
	return false
}
