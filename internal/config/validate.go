package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
)

// Validate checks everything that must hold before the engine initializes.
// The first violation is returned, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("%w: timezone: %v", ErrInvalid, err)
		}
	}

	if c.Limits.MaxPerDay <= 0 {
		return fmt.Errorf("%w: limits.max_per_day must be positive", ErrInvalid)
	}
	if c.Limits.MaxScheduled <= 0 {
		return fmt.Errorf("%w: limits.max_scheduled must be positive", ErrInvalid)
	}

	if c.Engine.Workers < 0 {
		return fmt.Errorf("%w: engine.workers must not be negative", ErrInvalid)
	}
	if c.Engine.QueueSize < 0 {
		return fmt.Errorf("%w: engine.queue_size must not be negative", ErrInvalid)
	}
	if _, err := ParseDurationOrDefault("engine.flush_interval", c.Engine.FlushInterval, 0); err != nil {
		return err
	}

	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(c.Storage.Path) == "" {
				return fmt.Errorf("%w: storage.path is required for driver %q", ErrInvalid, c.Storage.Driver)
			}
		default:
			return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalid, c.Storage.Driver)
		}
		if _, err := ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 0); err != nil {
			return err
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Delivery.Driver)) {
	case "", "log":
	case "telegram":
		if c.Delivery.Telegram == nil {
			return fmt.Errorf("%w: delivery.telegram section is required for the telegram driver", ErrInvalid)
		}
		if strings.TrimSpace(c.Delivery.Telegram.Token) == "" {
			return fmt.Errorf("%w: delivery.telegram.token is empty", ErrInvalid)
		}
		if c.Delivery.Telegram.ChatID == 0 {
			return fmt.Errorf("%w: delivery.telegram.chat_id is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown delivery.driver %q", ErrInvalid, c.Delivery.Driver)
	}

	if c.Speech != nil {
		for name, v := range map[string]float64{
			"speech.rate":   c.Speech.Rate,
			"speech.pitch":  c.Speech.Pitch,
			"speech.volume": c.Speech.Volume,
		} {
			if v < 0 || v > 1 {
				return fmt.Errorf("%w: %s must be in [0,1]", ErrInvalid, name)
			}
		}
	}

	for i, a := range c.Announcements {
		if err := validateAnnouncement(a); err != nil {
			return fmt.Errorf("%w: announcements[%d]: %v", ErrInvalid, i, err)
		}
	}
	return nil
}

func validateAnnouncement(a AnnouncementConfig) error {
	if strings.TrimSpace(a.Content) == "" {
		return fmt.Errorf("content is empty")
	}
	oneTime := strings.TrimSpace(a.At) != ""
	recurring := strings.TrimSpace(a.Time) != "" || strings.TrimSpace(a.Recurrence) != ""
	switch {
	case oneTime && recurring:
		return fmt.Errorf("set either at or time+recurrence, not both")
	case oneTime:
		if _, err := time.Parse(time.RFC3339, a.At); err != nil {
			return fmt.Errorf("at: %v", err)
		}
	case recurring:
		if _, err := recurrence.ParseTimeOfDay(a.Time); err != nil {
			return err
		}
		rule, err := recurrence.ParseRule(a.Recurrence)
		if err != nil {
			return err
		}
		if !rule.Recurring() {
			return fmt.Errorf("recurrence %q is not repeating", a.Recurrence)
		}
		if rule == recurrence.Custom && !recurrence.ValidDays(a.Days) {
			return fmt.Errorf("custom recurrence requires days in 1..7")
		}
	default:
		return fmt.Errorf("set at (one-time) or time+recurrence (repeating)")
	}
	return nil
}
