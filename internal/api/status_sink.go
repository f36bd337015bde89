package api

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/scholar-tracker/internal/progress"
)

// StatusSink folds the progress stream into the snapshot served at
// /v1/status. It implements progress.Sink.
type StatusSink struct {
	mu     sync.Mutex
	status RunStatus
}

// NewStatusSink constructs an empty sink.
func NewStatusSink() *StatusSink {
	return &StatusSink{}
}

// Consume updates the snapshot from one event.
func (s *StatusSink) Consume(_ context.Context, evt progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.RunID == "" && evt.RunID != uuid.Nil {
		s.status.RunID = evt.RunID.String()
	}
	ts := evt.TS
	s.status.LastEventAt = &ts
	s.status.LastStage = evt.Stage

	switch evt.Stage {
	case progress.StageRunStart:
		s.status.StartedAt = &ts
	case progress.StageRunDone:
		s.status.Done = true
		s.status.CurrentAuthor = ""
	case progress.StageAuthorStart:
		s.status.CurrentAuthor = evt.AuthorID
	case progress.StageFetchDone:
		s.status.Fetched++
		s.status.CaptchaPaused = false
	case progress.StageSkip:
		s.status.Skipped++
	case progress.StageFailure:
		s.status.Failed++
	case progress.StageCaptchaPause:
		s.status.CaptchaPaused = true
	case progress.StageCheckpoint:
		s.status.Checkpoints++
	}
	return nil
}

// Close implements progress.Sink.
func (s *StatusSink) Close(context.Context) error {
	return nil
}

// Snapshot returns a copy of the current status.
func (s *StatusSink) Snapshot() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
