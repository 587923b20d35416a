package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one JSON file holding
// the full snapshot, replaced atomically (write temp, rename) on every save.
type fileStore struct {
	log  logx.Logger
	mu   sync.Mutex
	path string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) SaveSnapshot(ctx context.Context, records []Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = []Record{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	s.log.Debug("snapshot saved", logx.Int("records", len(records)), logx.String("path", s.path))
	return nil
}

func (s *fileStore) LoadSnapshot(ctx context.Context) ([]Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, err
	}
	return records, nil
}
