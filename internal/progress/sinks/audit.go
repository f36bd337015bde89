package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/JakeFAU/scholar-tracker/internal/progress"
)

// AuditSink appends one JSON line per event to an audit file so failures and
// CAPTCHA pauses are reviewable after the run rather than printed and lost.
type AuditSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewAuditSink opens (or creates) the audit file in append mode.
func NewAuditSink(path string) (*AuditSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file %s: %w", path, err)
	}
	return &AuditSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Consume appends the event as a JSON line.
func (s *AuditSink) Consume(_ context.Context, evt progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(evt); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the audit file.
func (s *AuditSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
