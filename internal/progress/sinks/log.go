// Package sinks provides progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/progress"
)

// LogSink emits structured logs for a scrape run. CAPTCHA pauses are logged
// at warn level so the operator instruction is hard to miss.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	fields := []zap.Field{
		zap.String("run_id", evt.RunID.String()),
		zap.String("stage", string(evt.Stage)),
	}
	if evt.AuthorID != "" {
		fields = append(fields, zap.String("author_id", evt.AuthorID))
	}
	if evt.PubID != "" {
		fields = append(fields, zap.String("pub_id", evt.PubID))
	}
	if evt.Kind != "" {
		fields = append(fields, zap.String("kind", evt.Kind))
	}
	if evt.Dur > 0 {
		fields = append(fields, zap.Duration("dur", evt.Dur))
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}
	switch evt.Stage {
	case progress.StageCaptchaPause:
		s.logger.Warn("manual intervention required", fields...)
	case progress.StageFailure:
		s.logger.Warn("fetch failed", fields...)
	default:
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
