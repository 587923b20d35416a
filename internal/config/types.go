package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid wraps every configuration rejection so startup code can match
// the whole class with errors.Is.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	// Timezone is the IANA zone all wall-clock times resolve in.
	// Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Limits  LimitsConfig  `json:"limits"`
	Engine  EngineConfig  `json:"engine,omitempty"`

	// Storage is the optional durability layer. Omitted means announcements
	// do not survive a restart.
	Storage *StorageConfig `json:"storage,omitempty"`

	Delivery DeliveryConfig `json:"delivery"`

	// Speech carries text-to-speech presentation parameters, passed through
	// to delivery. Each value is in [0,1].
	Speech *SpeechConfig `json:"speech,omitempty"`

	// Announcements are seeded into the engine at startup. Entries whose id
	// already exists in a restored snapshot are skipped.
	Announcements []AnnouncementConfig `json:"announcements,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LimitsConfig struct {
	// MaxPerDay caps active announcements firing on the same calendar day.
	MaxPerDay int `json:"max_per_day"`
	// MaxScheduled caps active announcements overall.
	MaxScheduled int `json:"max_scheduled"`
}

// EngineConfig controls execution settings.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type EngineConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	// FlushInterval is how often the schedule snapshot is persisted.
	// Use "0s" to disable periodic flushing (still flushed on shutdown).
	FlushInterval string `json:"flush_interval,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./announced.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DeliveryConfig selects the delivery collaborator.
//
// Driver values: "log" (default) or "telegram".
type DeliveryConfig struct {
	Driver   string          `json:"driver,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type SpeechConfig struct {
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

type AnnouncementConfig struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`

	// At is an RFC3339 instant for a one-time announcement.
	At string `json:"at,omitempty"`

	// Time ("HH:MM") plus Recurrence describe a repeating announcement.
	Time       string `json:"time,omitempty"`
	Recurrence string `json:"recurrence,omitempty"` // daily|weekdays|weekends|custom
	// Days is the ISO weekday set for custom recurrence (1=Monday..7=Sunday).
	Days []int `json:"days,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// ParseDurationField parses a Go duration string, reporting the config path
// on failure.
func ParseDurationField(path, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with an empty-string default.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return ParseDurationField(path, raw)
}
