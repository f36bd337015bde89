package api

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scholar-tracker/internal/progress"
)

func TestStatusSinkFoldsRunLifecycle(t *testing.T) {
	sink := NewStatusSink()
	ctx := context.Background()
	runID := uuid.New()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	emit := func(stage progress.Stage, authorID string) {
		require.NoError(t, sink.Consume(ctx, progress.Event{RunID: runID, TS: ts, Stage: stage, AuthorID: authorID}))
		ts = ts.Add(time.Second)
	}

	emit(progress.StageRunStart, "")
	emit(progress.StageAuthorStart, "A1")
	emit(progress.StageFetchDone, "A1")
	emit(progress.StageSkip, "A1")
	emit(progress.StageFailure, "A1")
	emit(progress.StageCheckpoint, "")

	status := sink.Snapshot()
	require.Equal(t, runID.String(), status.RunID)
	require.Equal(t, "A1", status.CurrentAuthor)
	require.Equal(t, 1, status.Fetched)
	require.Equal(t, 1, status.Skipped)
	require.Equal(t, 1, status.Failed)
	require.Equal(t, 1, status.Checkpoints)
	require.False(t, status.Done)

	emit(progress.StageRunDone, "")
	status = sink.Snapshot()
	require.True(t, status.Done)
	require.Empty(t, status.CurrentAuthor)
}

func TestStatusSinkTracksCaptchaPause(t *testing.T) {
	sink := NewStatusSink()
	ctx := context.Background()
	runID := uuid.New()
	ts := time.Now().UTC()

	require.NoError(t, sink.Consume(ctx, progress.Event{RunID: runID, TS: ts, Stage: progress.StageCaptchaPause, Note: "solve it"}))
	require.True(t, sink.Snapshot().CaptchaPaused)

	require.NoError(t, sink.Consume(ctx, progress.Event{RunID: runID, TS: ts, Stage: progress.StageFetchDone, PubID: "A1:p1"}))
	require.False(t, sink.Snapshot().CaptchaPaused, "a completed fetch means the pause is over")
}
