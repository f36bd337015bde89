// Package progress defines the event structures emitted by a scrape run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageAuthorStart  Stage = "AUTHOR_START"
	StageAuthorDone   Stage = "AUTHOR_DONE"
	StageFetchDone    Stage = "FETCH_DONE"
	StageSkip         Stage = "SKIP_FRESH"
	StageFailure      Stage = "FETCH_FAILED"
	StageCaptchaPause Stage = "CAPTCHA_PAUSE"
	StageCheckpoint   Stage = "CHECKPOINT"
)

// Event captures a single milestone of scrape progress.
type Event struct {
	// RunID uniquely identifies a scrape run.
	RunID uuid.UUID `json:"run_id"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Stage denotes which lifecycle or fetch milestone occurred.
	Stage Stage `json:"stage"`
	// AuthorID scopes author and publication events.
	AuthorID string `json:"author_id,omitempty"`
	// PubID scopes publication events.
	PubID string `json:"pub_id,omitempty"`
	// Kind carries the failure kind for FETCH_FAILED events.
	Kind string `json:"kind,omitempty"`
	// Dur captures execution latency for fetches and run completion.
	Dur time.Duration `json:"dur,omitempty"`
	// Note lets emitters attach low-volume context (e.g. error text or the
	// operator instruction accompanying a CAPTCHA pause).
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageCheckpoint:
	case StageAuthorStart, StageAuthorDone:
		if e.AuthorID == "" {
			return errors.New("author events require author id")
		}
	case StageFetchDone, StageSkip:
		if e.PubID == "" && e.AuthorID == "" {
			return errors.New("fetch events require a subject")
		}
	case StageFailure:
		if e.Kind == "" {
			return errors.New("failure events require a kind")
		}
	case StageCaptchaPause:
		if e.Note == "" {
			return errors.New("captcha pause requires an operator note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
