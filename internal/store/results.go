// Package store persists the scrape dataset as a JSON document on disk.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

// ResultStore loads and atomically saves the dataset. Writes go to a
// temporary file that replaces the previous one, so a crash mid-write never
// corrupts the last good checkpoint.
type ResultStore struct {
	path   string
	logger *zap.Logger
}

// NewResultStore returns a store rooted at path.
func NewResultStore(path string, logger *zap.Logger) (*ResultStore, error) {
	if path == "" {
		return nil, fmt.Errorf("results path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create results dir %s: %w", dir, err)
	}
	return &ResultStore{path: path, logger: logger}, nil
}

// Load reads the dataset from disk. An absent file yields an empty dataset.
func (s *ResultStore) Load() (*scholar.Dataset, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("results file absent, starting fresh", zap.String("path", s.path))
			return scholar.NewDataset(), nil
		}
		return nil, fmt.Errorf("read results %s: %w", s.path, err)
	}

	ds := scholar.NewDataset()
	if err := json.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", s.path, err)
	}
	if ds.Authors == nil {
		ds.Authors = make(map[string]*scholar.Author)
	}
	if ds.Publications == nil {
		ds.Publications = make(map[string]*scholar.Publication)
	}
	s.logger.Info("results loaded",
		zap.String("path", s.path),
		zap.Int("authors", len(ds.Authors)),
		zap.Int("publications", len(ds.Publications)),
	)
	return ds, nil
}

// Save writes the full dataset atomically.
func (s *ResultStore) Save(ds *scholar.Dataset) error {
	payload, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write temp results %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		// Leave the previous good file untouched; remove only our temp.
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("orphaned temp results file", zap.String("path", tmp), zap.Error(rmErr))
		}
		return fmt.Errorf("replace results %s: %w", s.path, err)
	}
	return nil
}
