// Package engine orchestrates announcement scheduling: validation, first
// occurrence computation, one-shot timers, delivery dispatch and
// rearm-or-retire after each fire.
package engine

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/announce"
	"github.com/koorzenb/notification-scheduler-sub001/internal/delivery"
	"github.com/koorzenb/notification-scheduler-sub001/internal/eventbus"
	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

func New(cfg Config, store *announce.Store, deliver delivery.Deliverer, bus eventbus.Bus, log logx.Logger) (*Service, error) {
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, err
		}
		loc = l
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log,
		cfg:     cfg,
		loc:     loc,
		store:   store,
		bus:     bus,
		deliver: deliver,
		timers:  map[string]*time.Timer{},
		vers:    map[string]uint64{},
	}, nil
}

// Location returns the engine's resolved timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Running reports whether the engine accepts operations.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ApplyLimits swaps the validation quotas at runtime (config hot reload).
// Existing items above a lowered limit stay; only new requests see it.
func (s *Service) ApplyLimits(l announce.Limits) {
	s.mu.Lock()
	s.cfg.Limits = l
	s.mu.Unlock()
}

// Start spins up the worker pool and arms timers for every active item
// already in the store (snapshot restore). Recurring items whose next fire
// was missed while the process was down are recomputed from now; stale
// one-time items fire immediately. Start is idempotent while running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	queueSize := s.cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	// Fresh queue per run so a stop/start cycle never executes stale fires.
	s.queue = make(chan fireJob, queueSize)

	// Local captures prevent races if fields are swapped during Stop().
	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in engine worker", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(runCtx, stopCh, queue)
		}()
	}

	now := time.Now()
	armed := 0
	for _, a := range s.store.ListActive() {
		if a.Rule.Recurring() && !a.At.After(now) {
			next, err := recurrence.Next(a.Rule, a.Days, a.TimeOfDay, now, s.loc)
			if err != nil {
				s.log.Warn("dropping restored item with bad recurrence", logx.String("id", a.ID), logx.Err(err))
				s.store.Remove(a.ID)
				continue
			}
			a.At = next
			s.store.Put(a)
		}
		s.armLocked(a.ID, a.At)
		armed++
	}

	s.log.Info("engine started",
		logx.Int("workers", workers),
		logx.String("tz", s.loc.String()),
		logx.Int("armed", armed))
	return nil
}

// Stop disarms every timer and shuts the worker pool down. In-flight
// deliveries finish (delivery is not preemptible here); their outcome events
// are still published. Stop is idempotent.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for id, t := range s.timers {
		_ = t.Stop()
		delete(s.timers, id)
	}
	stopCh := s.stopCh
	cancel := s.runCancel
	s.stopCh = nil
	s.runCancel = nil
	s.queue = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("engine stopped")
	case <-ctx.Done():
		s.log.Warn("engine stop timed out waiting for workers")
	}
}

// armLocked registers a one-shot timer for id. The bumped version makes any
// previously armed callback for the same id a no-op. Call with s.mu held.
func (s *Service) armLocked(id string, at time.Time) {
	ver := s.vers[id] + 1
	s.vers[id] = ver
	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
	}
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fired(id, ver) })
}

// disarmLocked drops the timer and version entry for id. Call with s.mu held.
func (s *Service) disarmLocked(id string) {
	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
		delete(s.timers, id)
	}
	delete(s.vers, id)
}

func (s *Service) publish(st Status, a announce.Announcement, errMsg string) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	s.bus.Publish(eventbus.Event{
		Type: eventType(st),
		Time: now,
		Data: StatusEvent{
			ID:       a.ID,
			Status:   st,
			At:       now,
			Content:  a.Content,
			Error:    errMsg,
			Metadata: a.Metadata,
		},
	})
}
