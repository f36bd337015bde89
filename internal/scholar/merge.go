package scholar

import (
	"context"
	"fmt"

	"dario.cat/mergo"
	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/progress"
)

// MergeEngine reconciles fetch outcomes with the in-memory dataset and
// checkpoints it through the result store. Checkpoint failures are fatal: a
// run must not keep fetching when progress can no longer be persisted.
type MergeEngine struct {
	ds              *Dataset
	results         ResultStore
	clock           Clock
	emitter         progress.Emitter
	logger          *zap.Logger
	checkpointEvery int
	sinceCheckpoint int
}

// NewMergeEngine wires a merge engine over ds. checkpointEvery bounds how many
// processed items may accumulate before a flush; author-batch boundaries
// always flush. emitter may be nil to disable checkpoint events.
func NewMergeEngine(ds *Dataset, results ResultStore, clock Clock, checkpointEvery int, emitter progress.Emitter, logger *zap.Logger) *MergeEngine {
	if checkpointEvery <= 0 {
		checkpointEvery = 25
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeEngine{
		ds:              ds,
		results:         results,
		clock:           clock,
		emitter:         emitter,
		logger:          logger,
		checkpointEvery: checkpointEvery,
	}
}

// Apply folds one outcome into the dataset.
func (m *MergeEngine) Apply(ctx context.Context, out Outcome) error {
	switch out.Kind {
	case OutcomeSkipped:
		// Fresh records are left untouched.
	case OutcomeSuccess:
		if err := m.applySuccess(out); err != nil {
			return err
		}
		m.sinceCheckpoint++
	case OutcomeFailed:
		m.applyFailure(out)
		m.sinceCheckpoint++
	default:
		return fmt.Errorf("unknown outcome kind %q", out.Kind)
	}

	if out.EndOfBatch || m.sinceCheckpoint >= m.checkpointEvery {
		if m.sinceCheckpoint > 0 {
			if err := m.Flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// applySuccess upserts the publication by ID. Fetched non-zero fields
// overwrite prior values; fields the source omitted this time keep their
// previously known values.
func (m *MergeEngine) applySuccess(out Outcome) error {
	pub, ok := m.ds.Publications[out.PubID]
	if !ok {
		pub = &Publication{ID: out.PubID}
		m.ds.Publications[out.PubID] = pub
	}

	patch := publicationPatch(out.Fields)
	if err := mergo.Merge(pub, patch, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge publication %s: %w", out.PubID, err)
	}

	now := m.clock.Now()
	pub.LastScraped = &now
	pub.FetchError = ""
	m.linkAuthor(out.AuthorID, pub)
	return nil
}

// applyFailure stamps the failure kind without touching last_scraped, so the
// staleness policy retries the record next run.
func (m *MergeEngine) applyFailure(out Outcome) {
	pub, ok := m.ds.Publications[out.PubID]
	if !ok {
		pub = &Publication{ID: out.PubID}
		m.ds.Publications[out.PubID] = pub
	}
	if out.Err != nil {
		pub.FetchError = string(out.Err.Kind)
	} else {
		pub.FetchError = string(KindTransient)
	}
	m.linkAuthor(out.AuthorID, pub)
}

func (m *MergeEngine) linkAuthor(authorID string, pub *Publication) {
	if authorID == "" {
		return
	}
	pub.AddAuthorID(authorID)
	author := m.ds.EnsureAuthor(authorID)
	if !author.HasPublication(pub.ID) {
		author.Publications = append(author.Publications, pub.ID)
	}
}

// Flush persists the full dataset atomically.
func (m *MergeEngine) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.results.Save(m.ds); err != nil {
		return fmt.Errorf("checkpoint dataset: %w", err)
	}
	m.sinceCheckpoint = 0
	TotalCheckpoints.Inc()
	if m.emitter != nil {
		m.emitter.Emit(progress.Event{Stage: progress.StageCheckpoint})
	}
	m.logger.Debug("dataset checkpointed",
		zap.Int("authors", len(m.ds.Authors)),
		zap.Int("publications", len(m.ds.Publications)),
	)
	return nil
}

func publicationPatch(f PublicationFields) Publication {
	return Publication{
		Title:        f.Title,
		Authors:      f.Authors,
		Abstract:     f.Abstract,
		Venue:        f.Venue,
		Journal:      f.Journal,
		Volume:       f.Volume,
		Number:       f.Number,
		Pages:        f.Pages,
		Publisher:    f.Publisher,
		Year:         f.Year,
		NumCitations: f.NumCitations,
		CitesPerYear: f.CitesPerYear,
		PubURL:       f.PubURL,
		RelatedURL:   f.RelatedURL,
		URLs:         f.URLs,
	}
}
