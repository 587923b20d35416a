package engine

import (
	"context"
	"errors"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

// fired is the timer callback for (id, ver). A stale version means the item
// was cancelled or rescheduled after the timer was armed; those callbacks
// bail out without touching anything.
func (s *Service) fired(id string, ver uint64) {
	s.mu.Lock()
	if !s.running || s.vers[id] != ver {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	a, ok := s.store.Get(id)
	q := s.queue
	s.mu.Unlock()

	if !ok || !a.Active {
		return
	}
	job := fireJob{a: a, firedAt: time.Now()}
	select {
	case q <- job:
	default:
		// A full queue means deliveries are badly backed up. The fire is
		// recorded as failed so the item still rearms or retires.
		s.log.Warn("fire queue full", logx.String("id", id), logx.Int("queue_cap", cap(q)))
		s.publish(StatusFiring, a, "")
		s.finish(job, errors.New("fire queue full"))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan fireJob) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case j := <-queue:
			s.execOne(ctx, j)
		}
	}
}

// execOne runs one delivery attempt. The store lock is NOT held across the
// collaborator call, so slow deliveries never block schedule/cancel/query.
func (s *Service) execOne(ctx context.Context, j fireJob) {
	s.publish(StatusFiring, j.a, "")
	start := time.Now()
	err := s.deliver.Deliver(ctx, j.a)
	dur := time.Since(start)
	if err != nil {
		s.log.Warn("delivery failed", logx.String("id", j.a.ID), logx.Err(err), logx.Duration("dur", dur))
	} else {
		s.log.Debug("delivered", logx.String("id", j.a.ID), logx.Duration("dur", dur))
	}
	s.finish(j, err)
}

// finish records the fire outcome and decides the item's next state:
// recurring items rearm from the fire instant, one-time items retire.
// Cancellation that raced the fire wins: a missing or inactive store entry
// suppresses the rearm, while the outcome event is still published.
func (s *Service) finish(j fireJob, derr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if derr != nil {
		s.publish(StatusFailed, j.a, derr.Error())
	} else {
		s.publish(StatusDelivered, j.a, "")
	}

	cur, ok := s.store.Get(j.a.ID)
	if !ok || !cur.Active {
		return
	}
	if !cur.Rule.Recurring() {
		cur.Active = false
		s.store.Put(cur)
		delete(s.vers, cur.ID)
		return
	}

	next, err := recurrence.Next(cur.Rule, cur.Days, cur.TimeOfDay, j.firedAt, s.loc)
	if err != nil {
		// Should only happen on corrupted state; retire rather than loop.
		s.log.Error("rearm failed", logx.String("id", cur.ID), logx.Err(err))
		cur.Active = false
		s.store.Put(cur)
		delete(s.vers, cur.ID)
		return
	}
	cur.At = next
	s.store.Put(cur)
	if s.running {
		s.armLocked(cur.ID, next)
		s.log.Debug("rearmed", logx.String("id", cur.ID), logx.Time("next", next))
	}
}
