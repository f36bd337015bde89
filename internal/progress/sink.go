package progress

import (
	"context"

	"go.uber.org/zap"
)

// Sink consumes individual progress events. The scrape loop is strictly
// sequential, so sinks are called synchronously and need no locking.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Fanout satisfies this interface so the
// scheduler can remain agnostic about where events end up.
type Emitter interface {
	Emit(evt Event)
}

// Fanout forwards each event to every registered sink. A nil Fanout is a
// valid no-op emitter.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout builds a Fanout over the given sinks.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: sinks, logger: logger}
}

// Emit validates and forwards evt. Invalid or failing events are logged and
// dropped; progress reporting never aborts a run.
func (f *Fanout) Emit(evt Event) {
	if f == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		f.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	ctx := context.Background()
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Consume(ctx, evt); err != nil {
			f.logger.Warn("progress sink consume failed", zap.Error(err))
		}
	}
}

// Close shuts down every sink.
func (f *Fanout) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	var firstErr error
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
