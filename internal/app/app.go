// Package app wires the daemon together and gates its lifecycle:
// Uninitialized -> Ready -> Disposed. Start while Ready is idempotent;
// anything after Stop fails rather than silently no-oping.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/koorzenb/notification-scheduler-sub001/internal/announce"
	"github.com/koorzenb/notification-scheduler-sub001/internal/config"
	"github.com/koorzenb/notification-scheduler-sub001/internal/delivery"
	"github.com/koorzenb/notification-scheduler-sub001/internal/engine"
	"github.com/koorzenb/notification-scheduler-sub001/internal/eventbus"
	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
	"github.com/koorzenb/notification-scheduler-sub001/internal/storage"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

var ErrDisposed = errors.New("app disposed")

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateDisposed
)

const defaultFlushInterval = 30 * time.Second

type App struct {
	mu    sync.Mutex
	state State

	cfgm *config.Manager
	cfg  *config.Config

	log       logx.Logger
	logCloser io.Closer

	bus     eventbus.Bus
	store   *announce.Store
	persist storage.Store
	eng     *engine.Service

	flusher     *cron.Cron
	watchCancel context.CancelFunc
}

// New parses and validates the config. A config error leaves the process
// with nothing started (the engine stays uninitialized).
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log, closer, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, err
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	return &App{
		cfgm:      cfgm,
		cfg:       cfg,
		log:       log,
		logCloser: closer,
		bus:       eventbus.New(),
		store:     announce.NewStore(),
	}, nil
}

// Engine returns the engine handle. Consumers receive it by injection from
// here; there is no ambient global lookup.
func (a *App) Engine() *engine.Service { return a.eng }

// Bus exposes the status stream for subscribers outside the engine.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Start opens storage, restores the snapshot, starts the engine, seeds
// config-declared announcements and kicks off the flush job and config
// watcher. Calling Start while Ready returns the existing instance's nil
// error; calling it after Stop fails.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case StateReady:
		return nil
	case StateDisposed:
		return ErrDisposed
	}

	cfg := a.cfg

	st, err := storage.Open(storageConfig(cfg), a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	a.persist = st

	eng, err := engine.New(engine.Config{
		Timezone: cfg.Timezone,
		Limits: announce.Limits{
			MaxPerDay:    cfg.Limits.MaxPerDay,
			MaxScheduled: cfg.Limits.MaxScheduled,
		},
		Workers:   cfg.Engine.Workers,
		QueueSize: cfg.Engine.QueueSize,
	}, a.store, a.buildDeliverer(cfg), a.bus, a.log.With(logx.String("comp", "engine")))
	if err != nil {
		a.closePersistLocked()
		return err
	}
	a.eng = eng

	if err := a.restoreLocked(ctx); err != nil {
		a.closePersistLocked()
		return err
	}
	if err := eng.Start(ctx); err != nil {
		a.closePersistLocked()
		return err
	}
	a.seedLocked(cfg)

	if err := a.startFlusherLocked(cfg, eng.Location()); err != nil {
		eng.Stop(ctx)
		a.closePersistLocked()
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	go func() {
		if err := a.cfgm.Watch(watchCtx, a.applyConfig); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.state = StateReady
	a.log.Info("app ready", logx.String("tz", eng.Location().String()))
	return nil
}

// Stop flushes a final snapshot, stops the engine and closes the status
// stream. Idempotent; every engine call afterwards returns an error.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateReady {
		a.state = StateDisposed
		a.mu.Unlock()
		return nil
	}
	a.state = StateDisposed
	watchCancel := a.watchCancel
	flusher := a.flusher
	a.watchCancel = nil
	a.flusher = nil
	a.mu.Unlock()

	if watchCancel != nil {
		watchCancel()
	}
	// Stop the flusher before touching persist: Stop() waits for an
	// in-flight flush job to finish.
	if flusher != nil {
		<-flusher.Stop().Done()
	}
	a.eng.Stop(ctx)
	a.flush(ctx)

	a.mu.Lock()
	a.closePersistLocked()
	a.mu.Unlock()

	a.bus.Close()
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
	a.log.Info("app disposed")
	return nil
}

func (a *App) buildDeliverer(cfg *config.Config) delivery.Deliverer {
	speech := delivery.Speech{Rate: 0.5, Pitch: 0.5, Volume: 1}
	if cfg.Speech != nil {
		speech = delivery.Speech{Rate: cfg.Speech.Rate, Pitch: cfg.Speech.Pitch, Volume: cfg.Speech.Volume}
	}
	if strings.EqualFold(cfg.Delivery.Driver, "telegram") {
		tg, err := delivery.NewTelegram(delivery.TelegramConfig{
			Token:      cfg.Delivery.Telegram.Token,
			ChatID:     cfg.Delivery.Telegram.ChatID,
			RatePerSec: cfg.Delivery.Telegram.RatePerSec,
		}, a.log.With(logx.String("comp", "telegram")))
		if err == nil {
			return tg
		}
		a.log.Error("telegram deliverer unavailable; falling back to log", logx.Err(err))
	}
	return delivery.NewLogDeliverer(a.log.With(logx.String("comp", "deliver")), speech)
}

// restoreLocked loads the persisted snapshot into the store. Individual bad
// records are skipped with a warning rather than failing startup.
func (a *App) restoreLocked(ctx context.Context) error {
	if a.persist == nil {
		return nil
	}
	records, err := a.persist.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	restored := 0
	for _, r := range records {
		item, err := storage.DecodeRecord(r, a.eng.Location())
		if err != nil {
			a.log.Warn("skipping bad record", logx.String("id", r.ID), logx.Err(err))
			continue
		}
		a.store.Put(item)
		restored++
	}
	if restored > 0 {
		a.log.Info("snapshot restored", logx.Int("records", restored))
	}
	return nil
}

// seedLocked schedules config-declared announcements. Ids are stable across
// restarts so restored snapshot entries win over re-seeding.
func (a *App) seedLocked(cfg *config.Config) {
	for i, ac := range cfg.Announcements {
		id := ac.ID
		if id == "" {
			id = fmt.Sprintf("cfg:%d", i)
		}
		if _, exists := a.store.Get(id); exists {
			continue
		}
		var err error
		if ac.At != "" {
			var at time.Time
			at, err = time.Parse(time.RFC3339, ac.At)
			if err == nil {
				if !at.After(time.Now()) {
					a.log.Warn("skipping stale one-time announcement", logx.String("id", id), logx.Time("at", at))
					continue
				}
				_, err = a.eng.ScheduleOneTime(ac.Content, at, ac.Metadata, id)
			}
		} else {
			var rule recurrence.Rule
			rule, err = recurrence.ParseRule(ac.Recurrence)
			if err == nil {
				_, err = a.eng.ScheduleRecurring(ac.Content, ac.Time, rule, ac.Days, ac.Metadata, id)
			}
		}
		if err != nil {
			a.log.Warn("seed announcement rejected", logx.String("id", id), logx.Err(err))
		}
	}
}

func (a *App) startFlusherLocked(cfg *config.Config, loc *time.Location) error {
	if a.persist == nil {
		return nil
	}
	interval, err := config.ParseDurationOrDefault("engine.flush_interval", cfg.Engine.FlushInterval, defaultFlushInterval)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}
	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.flush(ctx)
	})
	if err != nil {
		return err
	}
	c.Start()
	a.flusher = c
	a.log.Debug("flush job started", logx.Duration("interval", interval))
	return nil
}

// flush saves the current snapshot. It deliberately avoids a.mu: store and
// persist are individually thread-safe, and Stop() only closes persist after
// the flush job has been stopped.
func (a *App) flush(ctx context.Context) {
	if a.persist == nil {
		return
	}
	items := a.store.ListAll()
	records := make([]storage.Record, 0, len(items))
	for _, it := range items {
		records = append(records, storage.EncodeRecord(it))
	}
	if err := a.persist.SaveSnapshot(ctx, records); err != nil {
		a.log.Warn("snapshot save failed", logx.Err(err))
	}
}

// applyConfig handles hot reloads. Only the validation limits apply live;
// structural changes (storage driver, delivery, timezone) need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateReady {
		return
	}
	old := a.cfg
	a.cfg = cfg
	if old.Limits != cfg.Limits {
		a.eng.ApplyLimits(announce.Limits{
			MaxPerDay:    cfg.Limits.MaxPerDay,
			MaxScheduled: cfg.Limits.MaxScheduled,
		})
		a.log.Info("limits updated",
			logx.Int("max_per_day", cfg.Limits.MaxPerDay),
			logx.Int("max_scheduled", cfg.Limits.MaxScheduled))
	}
	if old.Timezone != cfg.Timezone || storageConfig(old) != storageConfig(cfg) ||
		old.Delivery.Driver != cfg.Delivery.Driver {
		a.log.Warn("structural config change requires restart")
	}
}

func (a *App) closePersistLocked() {
	if a.persist != nil {
		_ = a.persist.Close()
		a.persist = nil
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	if cfg.Storage == nil {
		return storage.Config{}
	}
	busy, _ := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}
