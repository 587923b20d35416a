package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

// Store is the persistence collaborator: a snapshot of every scheduled
// announcement, saved as a unit and reloaded at startup. It offers no
// guarantees beyond "last saved snapshot survives a restart".
type Store interface {
	SaveSnapshot(ctx context.Context, records []Record) error
	LoadSnapshot(ctx context.Context) ([]Record, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
