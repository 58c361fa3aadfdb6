package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event is one activity log record.
type Event struct {
	Timestamp time.Time
	Action    string
	UserID    string
	IP        string
	UserAgent string
	Details   map[string]string
}

// Sink persists or forwards events. A returned error is reported to the
// dispatcher's error hook and the event is not retried.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Record(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Record(context.Context, Event) error { return nil }

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Record(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// LoggerSink writes each event as a structured log line.
type LoggerSink struct {
	log *zap.Logger
}

func NewLoggerSink(log *zap.Logger) *LoggerSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggerSink{log: log}
}

func (s *LoggerSink) Record(_ context.Context, event Event) error {
	fields := make([]zap.Field, 0, 4+len(event.Details))
	fields = append(fields,
		zap.Time("at", event.Timestamp),
		zap.String("action", event.Action),
		zap.String("user_id", event.UserID),
		zap.String("ip", event.IP),
	)
	for k, v := range event.Details {
		fields = append(fields, zap.String(k, v))
	}
	s.log.Info("activity", fields...)
	return nil
}

// Tee records each event on every sink in order and returns the first error.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, event Event) error {
		var first error
		for _, s := range sinks {
			if err := s.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
