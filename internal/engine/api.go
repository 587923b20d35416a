package engine

import (
	"fmt"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/announce"
	"github.com/koorzenb/notification-scheduler-sub001/internal/eventbus"
	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

// ScheduleOneTime registers a single fire at the given instant. id may be
// empty, in which case the engine generates one. The returned id is stable
// for Cancel and queries.
func (s *Service) ScheduleOneTime(content string, at time.Time, metadata map[string]any, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return "", ErrNotRunning
	}

	req := announce.Request{Content: content, At: at, Rule: recurrence.None}
	if err := announce.Validate(req, s.store, s.cfg.Limits, s.loc); err != nil {
		return "", err
	}
	if id == "" {
		id = s.genIDLocked()
	} else if _, exists := s.store.Get(id); exists {
		return "", fmt.Errorf("%w: id %q already registered", announce.ErrValidation, id)
	}

	a := announce.Announcement{
		ID:       id,
		Content:  content,
		At:       at.In(s.loc),
		Rule:     recurrence.None,
		Active:   true,
		Metadata: metadata,
	}
	s.store.Put(a)
	s.armLocked(id, a.At)
	s.publish(StatusScheduled, a, "")
	s.log.Debug("scheduled one-time", logx.String("id", id), logx.Time("at", a.At))
	return id, nil
}

// ScheduleDaily fires every day at the given wall-clock time.
func (s *Service) ScheduleDaily(content, atHHMM string, metadata map[string]any) (string, error) {
	return s.ScheduleRecurring(content, atHHMM, recurrence.Daily, nil, metadata, "")
}

// ScheduleWeekdays fires Monday through Friday.
func (s *Service) ScheduleWeekdays(content, atHHMM string, metadata map[string]any) (string, error) {
	return s.ScheduleRecurring(content, atHHMM, recurrence.Weekdays, nil, metadata, "")
}

// ScheduleWeekends fires Saturday and Sunday.
func (s *Service) ScheduleWeekends(content, atHHMM string, metadata map[string]any) (string, error) {
	return s.ScheduleRecurring(content, atHHMM, recurrence.Weekends, nil, metadata, "")
}

// ScheduleWeekly fires on an explicit ISO weekday set (1=Monday..7=Sunday).
func (s *Service) ScheduleWeekly(content, atHHMM string, days []int, metadata map[string]any) (string, error) {
	return s.ScheduleRecurring(content, atHHMM, recurrence.Custom, days, metadata, "")
}

// ScheduleRecurring is the general form: callers that need a stable id
// (e.g. config-declared announcements) pass one, everyone else passes "".
func (s *Service) ScheduleRecurring(content, atHHMM string, rule recurrence.Rule, days []int, metadata map[string]any, id string) (string, error) {
	tod, err := recurrence.ParseTimeOfDay(atHHMM)
	if err != nil {
		return "", fmt.Errorf("%w: %v", announce.ErrValidation, err)
	}
	if rule == recurrence.Custom && !recurrence.ValidDays(days) {
		return "", fmt.Errorf("%w: custom recurrence requires weekdays in 1..7", announce.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return "", ErrNotRunning
	}

	first, err := recurrence.Next(rule, days, tod, time.Now(), s.loc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", announce.ErrValidation, err)
	}
	req := announce.Request{Content: content, At: first, Rule: rule, Days: days}
	if err := announce.Validate(req, s.store, s.cfg.Limits, s.loc); err != nil {
		return "", err
	}

	if id == "" {
		id = s.genIDLocked()
	} else if _, exists := s.store.Get(id); exists {
		return "", fmt.Errorf("%w: id %q already registered", announce.ErrValidation, id)
	}
	a := announce.Announcement{
		ID:        id,
		Content:   content,
		At:        first,
		Rule:      rule,
		Days:      days,
		TimeOfDay: tod,
		Active:    true,
		Metadata:  metadata,
	}
	s.store.Put(a)
	s.armLocked(id, first)
	s.publish(StatusScheduled, a, "")
	s.log.Debug("scheduled recurring",
		logx.String("id", id),
		logx.String("rule", rule.String()),
		logx.Time("first", first))
	return id, nil
}

// Cancel disarms and removes one announcement. Cancelling an id that was
// already cancelled (or never existed) returns ErrNotFound. If a fire is in
// flight, its delivery completes and its outcome event is still published,
// but the item will not rearm.
func (s *Service) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	a, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	s.disarmLocked(id)
	s.store.Remove(id)
	if a.Active {
		s.publish(StatusCancelled, a, "")
	}
	s.log.Debug("cancelled", logx.String("id", id))
	return nil
}

// CancelAll disarms every timer and clears the store, emitting one cancelled
// event per removed item. Returns the number of items removed.
func (s *Service) CancelAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0, ErrNotRunning
	}
	items := s.store.ListAll()
	for _, a := range items {
		s.disarmLocked(a.ID)
		s.store.Remove(a.ID)
		s.publish(StatusCancelled, a, "")
	}
	if len(items) > 0 {
		s.log.Info("cancelled all", logx.Int("count", len(items)))
	}
	return len(items), nil
}

// List returns snapshot copies of every announcement, retired ones included,
// ordered by next fire time.
func (s *Service) List() ([]announce.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrNotRunning
	}
	return s.store.ListAll(), nil
}

// ListActive returns snapshot copies of announcements with a pending fire.
func (s *Service) ListActive() ([]announce.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrNotRunning
	}
	return s.store.ListActive(), nil
}

// StatusStream subscribes to lifecycle events published after this call (no
// replay). The returned unsubscribe must be called to release the buffer.
func (s *Service) StatusStream(buffer int) (<-chan eventbus.Event, func()) {
	return s.bus.Subscribe(buffer)
}

// genIDLocked produces a unique timestamp-derived id. Call with s.mu held.
func (s *Service) genIDLocked() string {
	id := fmt.Sprintf("ann:%d", time.Now().UnixNano())
	for {
		if _, ok := s.store.Get(id); !ok {
			return id
		}
		id = fmt.Sprintf("ann:%d-%d", time.Now().UnixNano(), s.idSeq.Add(1))
	}
}
