package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/ports"
)

// FileStore keeps the seen-label state in a single JSON document:
// {"lastRun": "...", "ttbIds": ["...", ...]}.
type FileStore struct {
	path   string
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.SeenStore = (*FileStore)(nil)

// NewFileStore stores state at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, now: time.Now, logger: logger}
}

// Load returns the stored state, or an empty one when the file is missing,
// unreadable or malformed.
func (s *FileStore) Load(_ context.Context) domain.SeenLabels {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.warn("cannot read state, starting empty", "path", s.path, "error", err)
		}
		return emptyState()
	}

	var state domain.SeenLabels
	if err := json.Unmarshal(raw, &state); err != nil {
		s.warn("malformed state, starting empty", "path", s.path, "error", err)
		return emptyState()
	}
	if state.TTBIDs == nil {
		state.TTBIDs = []string{}
	}
	return state
}

// Save stamps the current time onto state and replaces the file atomically.
func (s *FileStore) Save(_ context.Context, state *domain.SeenLabels) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	state.Touch(s.now())
	if state.TTBIDs == nil {
		state.TTBIDs = []string{}
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".seen-labels-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func emptyState() domain.SeenLabels {
	return domain.SeenLabels{TTBIDs: []string{}}
}

func (s *FileStore) warn(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, args...)
}
