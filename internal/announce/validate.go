package announce

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
)

// ErrValidation wraps every schedule-request rejection so callers can match
// the whole class with errors.Is.
var ErrValidation = errors.New("invalid schedule request")

// Limits are the operational quotas enforced before any mutation.
type Limits struct {
	// MaxPerDay caps active items firing on the same calendar day.
	MaxPerDay int
	// MaxScheduled caps active items overall.
	MaxScheduled int
}

// Request is the part of a schedule call the gate inspects.
type Request struct {
	Content string
	At      time.Time
	Rule    recurrence.Rule
	Days    []int
}

// Validate runs every check against the current store snapshot and returns
// the first violation. It never mutates anything; a rejection leaves the
// store untouched by construction.
func Validate(req Request, st *Store, limits Limits, loc *time.Location) error {
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%w: content is empty", ErrValidation)
	}
	if !req.Rule.Valid() {
		return fmt.Errorf("%w: unknown recurrence", ErrValidation)
	}
	if req.Rule == recurrence.Custom && !recurrence.ValidDays(req.Days) {
		return fmt.Errorf("%w: custom recurrence requires weekdays in 1..7", ErrValidation)
	}
	if limits.MaxScheduled > 0 && st.ActiveLen()+1 > limits.MaxScheduled {
		return fmt.Errorf("%w: schedule is full (%d items max)", ErrValidation, limits.MaxScheduled)
	}
	if limits.MaxPerDay > 0 && st.CountActiveOnDay(req.At, loc)+1 > limits.MaxPerDay {
		return fmt.Errorf("%w: daily quota reached (%d per day max)", ErrValidation, limits.MaxPerDay)
	}
	return nil
}
