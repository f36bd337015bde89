// Package session persists anti-bot session state between runs so one manual
// CAPTCHA solve stays reusable.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

// Store reads and writes the session cache file. No merge or versioning:
// last write wins.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore returns a store rooted at path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("session cache path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}, nil
}

// Load returns the cached session, or (nil, nil) on a cold start.
func (s *Store) Load() (*scholar.SessionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session cache %s: %w", s.path, err)
	}
	var state scholar.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session cache %s: %w", s.path, err)
	}
	return &state, nil
}

// Save persists the session atomically.
func (s *Store) Save(state scholar.SessionState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create session cache dir %s: %w", dir, err)
	}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write temp session %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session cache %s: %w", s.path, err)
	}
	s.logger.Info("session cache saved",
		zap.String("path", s.path),
		zap.Int("cookies", len(state.Cookies)),
	)
	return nil
}

// Discard removes the cache file; a missing file is not an error.
func (s *Store) Discard() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session cache %s: %w", s.path, err)
	}
	return nil
}
