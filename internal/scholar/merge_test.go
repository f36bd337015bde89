package scholar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scholar-tracker/internal/progress"
)

// captureEmitter records emitted events in order.
type captureEmitter struct {
	events []progress.Event
}

func (e *captureEmitter) Emit(evt progress.Event) {
	e.events = append(e.events, evt)
}

func stageEvents(events []progress.Event, stage progress.Stage) []progress.Event {
	var out []progress.Event
	for _, evt := range events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

// fakeClock returns a programmable instant.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// memResultStore keeps the dataset in memory and counts checkpoints.
type memResultStore struct {
	ds      *Dataset
	saves   int
	saveErr error
}

func (s *memResultStore) Load() (*Dataset, error) {
	if s.ds == nil {
		return NewDataset(), nil
	}
	return s.ds, nil
}

func (s *memResultStore) Save(ds *Dataset) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.ds = ds
	s.saves++
	return nil
}

func intPtr(n int) *int {
	return &n
}

func newMergeFixture(checkpointEvery int) (*MergeEngine, *Dataset, *memResultStore, *fakeClock) {
	ds := NewDataset()
	results := &memResultStore{}
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewMergeEngine(ds, results, clock, checkpointEvery, nil, nil), ds, results, clock
}

func TestMergeUpsertNeverDuplicates(t *testing.T) {
	engine, ds, _, _ := newMergeFixture(100)
	ctx := context.Background()

	out := Outcome{
		Kind:     OutcomeSuccess,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Fields:   PublicationFields{Title: "Deep Thought"},
	}
	require.NoError(t, engine.Apply(ctx, out))
	require.NoError(t, engine.Apply(ctx, out))

	require.Len(t, ds.Publications, 1)
	require.Len(t, ds.Authors["A1"].Publications, 1)
	require.Equal(t, []string{"A1"}, ds.Publications["A1:pub1"].AuthorIDs)
}

func TestMergePreservesOmittedFields(t *testing.T) {
	engine, ds, _, clock := newMergeFixture(100)
	ctx := context.Background()

	first := Outcome{
		Kind:     OutcomeSuccess,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Fields: PublicationFields{
			Title:        "Deep Thought",
			Abstract:     "On the ultimate question.",
			NumCitations: intPtr(10),
		},
	}
	require.NoError(t, engine.Apply(ctx, first))
	firstScrape := *ds.Publications["A1:pub1"].LastScraped

	clock.now = clock.now.Add(time.Hour)
	second := Outcome{
		Kind:     OutcomeSuccess,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Fields: PublicationFields{
			Title:        "Deep Thought",
			Pages:        "1-42",
			NumCitations: intPtr(17),
		},
	}
	require.NoError(t, engine.Apply(ctx, second))

	pub := ds.Publications["A1:pub1"]
	require.Equal(t, "On the ultimate question.", pub.Abstract, "omitted fields keep their prior value")
	require.Equal(t, "1-42", pub.Pages)
	require.Equal(t, 17, *pub.NumCitations)
	require.True(t, pub.LastScraped.After(firstScrape))
}

func TestMergeLinksPublicationToEveryCoAuthor(t *testing.T) {
	engine, ds, _, _ := newMergeFixture(100)
	ctx := context.Background()

	fields := PublicationFields{Title: "Joint Work"}
	require.NoError(t, engine.Apply(ctx, Outcome{Kind: OutcomeSuccess, AuthorID: "B2", PubID: "P:shared", Fields: fields}))
	require.NoError(t, engine.Apply(ctx, Outcome{Kind: OutcomeSuccess, AuthorID: "A1", PubID: "P:shared", Fields: fields}))

	require.Equal(t, []string{"A1", "B2"}, ds.Publications["P:shared"].AuthorIDs, "author set stays sorted")
	require.True(t, ds.Authors["A1"].HasPublication("P:shared"))
	require.True(t, ds.Authors["B2"].HasPublication("P:shared"))
}

func TestMergeFailureIsNonDestructive(t *testing.T) {
	engine, ds, _, clock := newMergeFixture(100)
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, Outcome{
		Kind:     OutcomeSuccess,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Fields:   PublicationFields{Title: "Deep Thought", Abstract: "Kept."},
	}))
	scraped := *ds.Publications["A1:pub1"].LastScraped

	clock.now = clock.now.Add(time.Hour)
	require.NoError(t, engine.Apply(ctx, Outcome{
		Kind:     OutcomeFailed,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Err:      NewFetchError(KindTransient, "https://example.org", errors.New("reset")),
	}))

	pub := ds.Publications["A1:pub1"]
	require.Equal(t, "Deep Thought", pub.Title)
	require.Equal(t, "Kept.", pub.Abstract)
	require.Equal(t, scraped, *pub.LastScraped, "failures never advance last_scraped")
	require.Equal(t, string(KindTransient), pub.FetchError)
}

func TestMergeFailureCreatesPlaceholderRecord(t *testing.T) {
	engine, ds, _, _ := newMergeFixture(100)

	require.NoError(t, engine.Apply(context.Background(), Outcome{
		Kind:     OutcomeFailed,
		AuthorID: "A1",
		PubID:    "A1:new",
		Err:      NewFetchError(KindBlocked, "https://example.org", nil),
	}))

	pub := ds.Publications["A1:new"]
	require.NotNil(t, pub)
	require.Nil(t, pub.LastScraped, "a never-fetched record stays due for refresh")
	require.Equal(t, string(KindBlocked), pub.FetchError)
}

func TestMergeSuccessClearsFetchError(t *testing.T) {
	engine, ds, _, _ := newMergeFixture(100)
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, Outcome{
		Kind:     OutcomeFailed,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Err:      NewFetchError(KindTransient, "https://example.org", nil),
	}))
	require.NoError(t, engine.Apply(ctx, Outcome{
		Kind:     OutcomeSuccess,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Fields:   PublicationFields{Title: "Recovered"},
	}))

	require.Empty(t, ds.Publications["A1:pub1"].FetchError)
}

func TestCheckpointCadence(t *testing.T) {
	engine, _, results, _ := newMergeFixture(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		out := Outcome{
			Kind:     OutcomeSuccess,
			AuthorID: "A1",
			PubID:    "A1:pub" + string(rune('a'+i)),
			Fields:   PublicationFields{Title: "T"},
		}
		require.NoError(t, engine.Apply(ctx, out))
	}
	require.Equal(t, 2, results.saves, "every second item checkpoints")

	require.NoError(t, engine.Apply(ctx, Outcome{
		Kind:       OutcomeSuccess,
		AuthorID:   "A1",
		PubID:      "A1:last",
		Fields:     PublicationFields{Title: "T"},
		EndOfBatch: true,
	}))
	require.Equal(t, 3, results.saves, "batch boundaries force a checkpoint")
}

func TestSkippedItemsDoNotCheckpoint(t *testing.T) {
	engine, _, results, _ := newMergeFixture(2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, engine.Apply(ctx, Outcome{Kind: OutcomeSkipped, AuthorID: "A1", PubID: "A1:p"}))
	}
	require.NoError(t, engine.Apply(ctx, Outcome{Kind: OutcomeSkipped, AuthorID: "A1", PubID: "A1:p", EndOfBatch: true}))
	require.Zero(t, results.saves, "a run with nothing new writes nothing")
}

func TestFlushEmitsCheckpointEvent(t *testing.T) {
	ds := NewDataset()
	results := &memResultStore{}
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	emitter := &captureEmitter{}
	engine := NewMergeEngine(ds, results, clock, 100, emitter, nil)
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, Outcome{
		Kind:     OutcomeSuccess,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Fields:   PublicationFields{Title: "T"},
	}))
	require.Empty(t, stageEvents(emitter.events, progress.StageCheckpoint), "no checkpoint before a flush")

	require.NoError(t, engine.Apply(ctx, Outcome{
		Kind:       OutcomeSuccess,
		AuthorID:   "A1",
		PubID:      "A1:pub2",
		Fields:     PublicationFields{Title: "T"},
		EndOfBatch: true,
	}))
	require.Len(t, stageEvents(emitter.events, progress.StageCheckpoint), 1)

	require.NoError(t, engine.Flush(ctx))
	require.Len(t, stageEvents(emitter.events, progress.StageCheckpoint), 2, "every successful flush announces itself")
}

func TestFailedFlushEmitsNoCheckpointEvent(t *testing.T) {
	ds := NewDataset()
	results := &memResultStore{saveErr: errors.New("disk full")}
	emitter := &captureEmitter{}
	engine := NewMergeEngine(ds, results, &fakeClock{}, 1, emitter, nil)

	require.Error(t, engine.Flush(context.Background()))
	require.Empty(t, stageEvents(emitter.events, progress.StageCheckpoint))
}

func TestCheckpointFailureIsFatal(t *testing.T) {
	engine, _, results, _ := newMergeFixture(1)
	results.saveErr = errors.New("disk full")

	err := engine.Apply(context.Background(), Outcome{
		Kind:     OutcomeSuccess,
		AuthorID: "A1",
		PubID:    "A1:pub1",
		Fields:   PublicationFields{Title: "T"},
	})
	require.ErrorContains(t, err, "disk full")
}
