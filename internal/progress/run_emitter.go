package progress

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies event timestamps.
type Clock interface {
	Now() time.Time
}

// RunEmitter stamps every event with one run's identity before forwarding it,
// so every producer in the pipeline shares the same run id.
type RunEmitter struct {
	runID uuid.UUID
	clock Clock
	next  Emitter
}

// NewRunEmitter allocates a fresh run id around next.
func NewRunEmitter(clock Clock, next Emitter) *RunEmitter {
	return &RunEmitter{runID: uuid.New(), clock: clock, next: next}
}

// RunID returns the run identity stamped onto events.
func (e *RunEmitter) RunID() uuid.UUID {
	return e.runID
}

// Emit stamps and forwards evt. A nil RunEmitter or next emitter is a no-op.
func (e *RunEmitter) Emit(evt Event) {
	if e == nil || e.next == nil {
		return
	}
	evt.RunID = e.runID
	if e.clock != nil {
		evt.TS = e.clock.Now()
	} else {
		evt.TS = time.Now().UTC()
	}
	e.next.Emit(evt)
}
