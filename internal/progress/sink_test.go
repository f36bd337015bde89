package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events     []Event
	consumeErr error
	closed     bool
}

func (s *recordingSink) Consume(_ context.Context, evt Event) error {
	if s.consumeErr != nil {
		return s.consumeErr
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.closed = true
	return nil
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	fanout := NewFanout(nil, a, b)

	evt := Event{RunID: uuid.New(), TS: time.Now().UTC(), Stage: StageRunStart}
	fanout.Emit(evt)

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	require.Equal(t, evt.RunID, a.events[0].RunID)
}

func TestFanoutDropsInvalidEvents(t *testing.T) {
	sink := &recordingSink{}
	fanout := NewFanout(nil, sink)

	fanout.Emit(Event{Stage: StageRunStart})
	require.Empty(t, sink.events)
}

func TestFanoutSinkFailureDoesNotStopOthers(t *testing.T) {
	failing := &recordingSink{consumeErr: errors.New("broken pipe")}
	healthy := &recordingSink{}
	fanout := NewFanout(nil, failing, healthy)

	fanout.Emit(Event{RunID: uuid.New(), TS: time.Now().UTC(), Stage: StageRunStart})
	require.Len(t, healthy.events, 1)
}

func TestNilFanoutIsNoop(t *testing.T) {
	var fanout *Fanout
	fanout.Emit(Event{RunID: uuid.New(), TS: time.Now().UTC(), Stage: StageRunStart})
	require.NoError(t, fanout.Close(context.Background()))
}

func TestFanoutCloseClosesEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	fanout := NewFanout(nil, a, b)

	require.NoError(t, fanout.Close(context.Background()))
	require.True(t, a.closed)
	require.True(t, b.closed)
}
