package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS announcements (
	id              TEXT PRIMARY KEY,
	content         TEXT NOT NULL,
	scheduled_at_ms INTEGER NOT NULL,
	recurrence      INTEGER,
	custom_days     TEXT,
	time_of_day     TEXT,
	active          INTEGER NOT NULL,
	metadata        TEXT
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSnapshot replaces the full table in one transaction, so a reader never
// observes a half-written snapshot.
func (s *sqliteStore) SaveSnapshot(ctx context.Context, records []Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM announcements`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO announcements(id, content, scheduled_at_ms, recurrence, custom_days, time_of_day, active, metadata)
		 VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		days, err := nullJSON(r.CustomDays)
		if err != nil {
			return err
		}
		meta, err := nullJSON(r.Metadata)
		if err != nil {
			return err
		}
		var rec any
		if r.Recurrence != nil {
			rec = *r.Recurrence
		}
		active := 0
		if r.Active {
			active = 1
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Content, r.ScheduledAtMS, rec, days, nullStr(r.TimeOfDay), active, meta,
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("snapshot saved", logx.Int("records", len(records)))
	return nil
}

func (s *sqliteStore) LoadSnapshot(ctx context.Context) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, scheduled_at_ms, recurrence, custom_days, time_of_day, active, metadata
		 FROM announcements ORDER BY scheduled_at_ms, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var rec sql.NullInt64
		var days, tod, meta sql.NullString
		var active int
		if err := rows.Scan(&r.ID, &r.Content, &r.ScheduledAtMS, &rec, &days, &tod, &active, &meta); err != nil {
			return nil, err
		}
		if rec.Valid {
			idx := int(rec.Int64)
			r.Recurrence = &idx
		}
		if days.Valid && days.String != "" {
			if err := json.Unmarshal([]byte(days.String), &r.CustomDays); err != nil {
				return nil, err
			}
		}
		if tod.Valid {
			r.TimeOfDay = tod.String
		}
		r.Active = active != 0
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullJSON(v any) (any, error) {
	switch x := v.(type) {
	case []int:
		if x == nil {
			return nil, nil
		}
	case map[string]any:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
