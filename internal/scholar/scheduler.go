package scholar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/progress"
)

// SchedulerConfig captures the per-run knobs the scheduler needs.
type SchedulerConfig struct {
	// AuthorIDs is processed in configured order; within an author,
	// publications are processed in discovery order. The ordering is what
	// makes runs reproducible and resumable.
	AuthorIDs     []string
	ThresholdDays int
	// ValidateSession controls whether a cached session is probed with one
	// cheap fetch before the run; a blocked probe discards the cache.
	ValidateSession bool
}

// Scheduler walks the configured author list, staleness-gates every fetch,
// executes fetches through the retry/backoff/CAPTCHA protocol, and streams
// outcomes into the merge engine. One fetch in flight at a time: the source's
// abuse detection is the reason, not simplicity.
type Scheduler struct {
	cfg       SchedulerConfig
	ds        *Dataset
	fetcher   Fetcher
	parser    Parser
	sessions  SessionStore
	merger    Merger
	retry     RetryPolicy
	pacer     Pacer
	clock     Clock
	intervene Intervention
	emitter   progress.Emitter
	logger    *zap.Logger

	stats       RunStats
	captchaSeen bool
}

// NewScheduler wires a scheduler. intervene may be nil (headless mode): a
// challenge then fails the single item instead of pausing the run. emitter
// may be nil to disable progress events; a progress.RunEmitter stamps the
// shared run identity.
func NewScheduler(
	cfg SchedulerConfig,
	ds *Dataset,
	fetcher Fetcher,
	parser Parser,
	sessions SessionStore,
	merger Merger,
	retry RetryPolicy,
	pacer Pacer,
	clock Clock,
	intervene Intervention,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:       cfg,
		ds:        ds,
		fetcher:   fetcher,
		parser:    parser,
		sessions:  sessions,
		merger:    merger,
		retry:     retry,
		pacer:     pacer,
		clock:     clock,
		intervene: intervene,
		emitter:   emitter,
		logger:    logger,
	}
}

// Run executes the full scrape. Per-item failures never abort the run; the
// only fatal errors are context cancellation and checkpoint persistence
// failures. ErrCaptchaUnresolved is reported after the final checkpoint when
// a challenge was hit with no way to resolve it.
func (s *Scheduler) Run(ctx context.Context) (RunStats, error) {
	start := s.clock.Now()
	s.emit(progress.Event{Stage: progress.StageRunStart})

	s.bootstrapSession(ctx)

	for _, authorID := range s.cfg.AuthorIDs {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, start, err)
		}
		if err := s.processAuthor(ctx, authorID); err != nil {
			return s.finish(ctx, start, err)
		}
	}

	return s.finish(ctx, start, nil)
}

func (s *Scheduler) finish(ctx context.Context, start time.Time, runErr error) (RunStats, error) {
	// Flush whatever merged so far; interruption loses only the unflushed
	// increment. A flush failure outranks the run error.
	flushCtx := ctx
	if flushCtx.Err() != nil {
		flushCtx = context.Background()
	}
	if err := s.merger.Flush(flushCtx); err != nil {
		return s.stats, err
	}
	s.emit(progress.Event{Stage: progress.StageRunDone, Dur: s.clock.Now().Sub(start)})
	if runErr == nil && s.captchaSeen {
		runErr = ErrCaptchaUnresolved
	}
	return s.stats, runErr
}

// bootstrapSession loads persisted session state into the fetcher, optionally
// probing the source root to confirm the session still clears the anti-bot
// wall. A failed probe discards the cache so next run starts cold.
func (s *Scheduler) bootstrapSession(ctx context.Context) {
	state, err := s.sessions.Load()
	if err != nil {
		s.logger.Warn("session cache unreadable, starting cold", zap.Error(err))
		return
	}
	if state == nil {
		return
	}
	if err := s.fetcher.SetSession(*state); err != nil {
		s.logger.Warn("session injection failed, starting cold", zap.Error(err))
		return
	}
	s.logger.Info("session cache loaded",
		zap.Int("cookies", len(state.Cookies)),
		zap.Time("captured_at", state.CapturedAt),
	)
	if !s.cfg.ValidateSession {
		return
	}
	if _, err := s.fetcher.Fetch(ctx, BaseURL+"/"); err != nil {
		fe := AsFetchError(BaseURL, err)
		if fe.Kind == KindBlocked || fe.Kind == KindCaptcha {
			s.logger.Info("cached session no longer clears the anti-bot wall, discarding it")
			if derr := s.sessions.Discard(); derr != nil {
				s.logger.Warn("session cache discard failed", zap.Error(derr))
			}
		}
	}
}

func (s *Scheduler) processAuthor(ctx context.Context, authorID string) error {
	author := s.ds.EnsureAuthor(authorID)
	s.stats.AuthorsProcessed++
	s.emit(progress.Event{Stage: progress.StageAuthorStart, AuthorID: authorID})

	refs := s.refreshAuthor(ctx, author)

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := s.processPublication(ctx, authorID, ref)
		out.EndOfBatch = i == len(refs)-1
		if err := s.merger.Apply(ctx, out); err != nil {
			return err
		}
	}
	if len(refs) == 0 {
		// No queue for this author; still checkpoint profile updates.
		if err := s.merger.Flush(ctx); err != nil {
			return err
		}
	}
	s.emit(progress.Event{Stage: progress.StageAuthorDone, AuthorID: authorID})
	return nil
}

// refreshAuthor fetches the author's publication-list page when the author
// record itself is stale, mirroring the publication staleness rule. On any
// failure it falls back to the already-known publication list so one bad
// author page never aborts the rest of the run.
func (s *Scheduler) refreshAuthor(ctx context.Context, author *Author) []PublicationRef {
	if !NeedsRefresh(author.LastScraped, s.cfg.ThresholdDays, s.clock.Now()) {
		s.stats.Skipped++
		TotalSkips.Inc()
		s.emit(progress.Event{Stage: progress.StageSkip, AuthorID: author.ID})
		return s.knownRefs(author)
	}

	doc, ferr := s.executeFetch(ctx, ProfileURL(author.ID))
	if ferr != nil {
		author.FetchError = string(ferr.Kind)
		s.stats.Failed++
		TotalFailures.WithLabelValues(string(ferr.Kind)).Inc()
		s.emit(progress.Event{Stage: progress.StageFailure, AuthorID: author.ID, Kind: string(ferr.Kind), Note: ferr.Error()})
		return s.knownRefs(author)
	}

	profile, refs, err := s.parser.ParseAuthorPage(doc)
	if err != nil {
		author.FetchError = string(KindParse)
		s.stats.Failed++
		TotalFailures.WithLabelValues(string(KindParse)).Inc()
		s.emit(progress.Event{Stage: progress.StageFailure, AuthorID: author.ID, Kind: string(KindParse), Note: err.Error()})
		return s.knownRefs(author)
	}

	author.Name = profile.Name
	author.Affiliation = profile.Affiliation
	if profile.Homepage != "" {
		author.Homepage = profile.Homepage
	}
	if len(profile.Interests) > 0 {
		author.Interests = profile.Interests
	}
	if profile.CitedBy > 0 {
		author.CitedBy = profile.CitedBy
	}
	if len(profile.CitesPerYear) > 0 {
		author.CitesPerYear = profile.CitesPerYear
	}
	if len(profile.Coauthors) > 0 {
		author.Coauthors = profile.Coauthors
	}
	now := s.clock.Now()
	author.LastScraped = &now
	author.FetchError = ""
	s.emit(progress.Event{Stage: progress.StageFetchDone, AuthorID: author.ID})
	return s.mergeRefs(author, refs)
}

// knownRefs rebuilds the queue from the author's persisted publication list,
// preserving its stored (discovery) order.
func (s *Scheduler) knownRefs(author *Author) []PublicationRef {
	refs := make([]PublicationRef, 0, len(author.Publications))
	for _, pubID := range author.Publications {
		// Always the citation page; a stored pub_url points at the external
		// paper, not a page this pipeline can parse.
		ref := PublicationRef{ID: pubID, URL: CitationURL(pubID)}
		if pub, ok := s.ds.Publications[pubID]; ok {
			ref.Title = pub.Title
		}
		refs = append(refs, ref)
	}
	return refs
}

// mergeRefs combines freshly discovered refs with already-known publications
// the listing no longer mentions, known first so resumption order is stable.
func (s *Scheduler) mergeRefs(author *Author, discovered []PublicationRef) []PublicationRef {
	seen := make(map[string]struct{}, len(discovered))
	refs := make([]PublicationRef, 0, len(discovered)+len(author.Publications))
	for _, pubID := range author.Publications {
		refs = append(refs, PublicationRef{ID: pubID, URL: CitationURL(pubID)})
		seen[pubID] = struct{}{}
	}
	for _, ref := range discovered {
		if ref.ID == "" {
			continue
		}
		if _, ok := seen[ref.ID]; ok {
			continue
		}
		seen[ref.ID] = struct{}{}
		if ref.URL == "" {
			ref.URL = CitationURL(ref.ID)
		}
		refs = append(refs, ref)
	}
	return refs
}

func (s *Scheduler) processPublication(ctx context.Context, authorID string, ref PublicationRef) Outcome {
	if pub, ok := s.ds.Publications[ref.ID]; ok {
		if !NeedsRefresh(pub.LastScraped, s.cfg.ThresholdDays, s.clock.Now()) {
			s.stats.Skipped++
			TotalSkips.Inc()
			s.emit(progress.Event{Stage: progress.StageSkip, AuthorID: authorID, PubID: ref.ID})
			return Outcome{Kind: OutcomeSkipped, AuthorID: authorID, PubID: ref.ID}
		}
	}

	doc, ferr := s.executeFetch(ctx, ref.URL)
	if ferr != nil {
		s.stats.Failed++
		TotalFailures.WithLabelValues(string(ferr.Kind)).Inc()
		s.emit(progress.Event{Stage: progress.StageFailure, AuthorID: authorID, PubID: ref.ID, Kind: string(ferr.Kind), Note: ferr.Error()})
		return Outcome{Kind: OutcomeFailed, AuthorID: authorID, PubID: ref.ID, Err: ferr}
	}

	fields, err := s.parser.ParsePublicationPage(doc)
	if err != nil {
		pe := NewFetchError(KindParse, ref.URL, err)
		s.stats.Failed++
		TotalFailures.WithLabelValues(string(KindParse)).Inc()
		s.emit(progress.Event{Stage: progress.StageFailure, AuthorID: authorID, PubID: ref.ID, Kind: string(KindParse), Note: err.Error()})
		return Outcome{Kind: OutcomeFailed, AuthorID: authorID, PubID: ref.ID, Err: pe}
	}
	if fields.Title == "" {
		fields.Title = ref.Title
	}
	s.emit(progress.Event{Stage: progress.StageFetchDone, AuthorID: authorID, PubID: ref.ID})
	return Outcome{Kind: OutcomeSuccess, AuthorID: authorID, PubID: ref.ID, Fields: fields}
}

// executeFetch runs one URL through the recovery protocol: paced attempts,
// bounded exponential backoff on transient failures, and the suspend/resume
// handoff on challenges. It returns the document or the terminal failure.
func (s *Scheduler) executeFetch(ctx context.Context, url string) (Document, *FetchError) {
	attempt := 0
	for {
		if err := s.pacer.Wait(ctx); err != nil {
			return Document{}, AsFetchError(url, err)
		}

		doc, err := s.fetcher.Fetch(ctx, url)
		if err == nil {
			s.stats.Fetched++
			TotalFetches.Inc()
			return doc, nil
		}

		fe := AsFetchError(url, err)
		switch fe.Kind {
		case KindTransient:
			if s.retry.ShouldRetry(fe, attempt) {
				delay := s.retry.Backoff(attempt)
				attempt++
				s.stats.Retries++
				TotalRetries.Inc()
				s.logger.Debug("transient fetch failure, backing off",
					zap.String("url", url),
					zap.Int("attempt", attempt),
					zap.Duration("backoff", delay),
					zap.Error(fe),
				)
				if serr := sleepCtx(ctx, delay); serr != nil {
					return Document{}, AsFetchError(url, serr)
				}
				continue
			}
			return Document{}, fe
		case KindCaptcha, KindBlocked:
			if s.awaitIntervention(ctx, url, fe) {
				// Resume from the exact fetch that was blocked.
				continue
			}
			if fe.Kind == KindCaptcha {
				s.captchaSeen = true
			}
			return Document{}, fe
		default:
			return Document{}, fe
		}
	}
}

// awaitIntervention suspends the loop while an operator resolves a challenge.
// It reports true once refreshed session state has been persisted and
// injected, at which point the caller retries the blocked fetch.
func (s *Scheduler) awaitIntervention(ctx context.Context, url string, fe *FetchError) bool {
	if s.intervene == nil {
		return false
	}
	note := fmt.Sprintf("challenge at %s: solve it in the opened browser, the run resumes automatically", url)
	s.emit(progress.Event{Stage: progress.StageCaptchaPause, AuthorID: "", Note: note})
	s.logger.Warn("manual intervention required",
		zap.String("url", url),
		zap.String("kind", string(fe.Kind)),
	)
	TotalCaptchaPauses.Inc()
	s.stats.CaptchaPauses++

	state, err := s.intervene.ResolveChallenge(ctx, url)
	if err != nil {
		if !errors.Is(err, ErrNoIntervention) {
			s.logger.Warn("manual solve failed", zap.Error(err))
		}
		return false
	}
	if err := s.sessions.Save(state); err != nil {
		s.logger.Warn("persisting solved session failed", zap.Error(err))
	}
	if err := s.fetcher.SetSession(state); err != nil {
		s.logger.Warn("injecting solved session failed", zap.Error(err))
		return false
	}
	s.logger.Info("session refreshed by operator, resuming")
	return true
}

func (s *Scheduler) emit(evt progress.Event) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(evt)
}
