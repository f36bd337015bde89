package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func TestRunEmitterStampsIdentity(t *testing.T) {
	sink := &recordingSink{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	emitter := NewRunEmitter(fixedClock{now: now}, NewFanout(nil, sink))

	emitter.Emit(Event{Stage: StageCheckpoint})
	emitter.Emit(Event{Stage: StageRunStart})

	require.Len(t, sink.events, 2, "stamped events pass validation")
	require.Equal(t, emitter.RunID(), sink.events[0].RunID)
	require.Equal(t, emitter.RunID(), sink.events[1].RunID)
	require.True(t, sink.events[0].TS.Equal(now))
}

func TestRunEmitterOverridesCallerIdentity(t *testing.T) {
	sink := &recordingSink{}
	emitter := NewRunEmitter(fixedClock{now: time.Now().UTC()}, NewFanout(nil, sink))

	emitter.Emit(Event{RunID: uuid.New(), Stage: StageRunStart})
	require.Equal(t, emitter.RunID(), sink.events[0].RunID)
}

func TestNilRunEmitterIsNoop(t *testing.T) {
	var emitter *RunEmitter
	emitter.Emit(Event{Stage: StageRunStart})

	emitter = NewRunEmitter(nil, nil)
	emitter.Emit(Event{Stage: StageRunStart})
	require.NotEqual(t, uuid.Nil, emitter.RunID())
}
