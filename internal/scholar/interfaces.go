package scholar

import (
	"context"
	"time"
)

// Fetcher performs a single network request and classifies failures into
// FetchError kinds.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
	// SetSession injects refreshed anti-bot session state into the underlying
	// transport so a manual solve is reusable mid-run.
	SetSession(state SessionState) error
}

// Parser turns raw documents into typed records at the boundary; nothing past
// it operates on untyped data.
type Parser interface {
	ParseAuthorPage(doc Document) (AuthorProfile, []PublicationRef, error)
	ParsePublicationPage(doc Document) (PublicationFields, error)
}

// SessionStore persists anti-bot session state across runs. Last write wins.
type SessionStore interface {
	Load() (*SessionState, error)
	Save(state SessionState) error
	Discard() error
}

// ResultStore loads and atomically persists the full dataset.
type ResultStore interface {
	Load() (*Dataset, error)
	Save(ds *Dataset) error
}

// Merger consumes the scheduler's outcome stream. Flush forces a checkpoint of
// everything applied so far.
type Merger interface {
	Apply(ctx context.Context, out Outcome) error
	Flush(ctx context.Context) error
}

// Intervention hands a challenge to an operator and blocks until it is
// resolved. Implementations return ErrNoIntervention when no operator channel
// exists (headless mode).
type Intervention interface {
	ResolveChallenge(ctx context.Context, url string) (SessionState, error)
}

// RetryPolicy decides retry eligibility and backoff for transient failures.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Pacer spaces requests against the source's single rate-limit budget.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
