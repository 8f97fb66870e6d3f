// Package events defines the structured event stream the engine emits for
// every fetch attempt and extraction fallback decision. The engine invokes a
// Sink directly; the caller decides where events go (console, socket, API
// feed) instead of patching logger methods at runtime.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is one observability record.
type Event struct {
	ID      string         `json:"id"`
	Level   Level          `json:"level"`
	Message string         `json:"message"`
	Time    time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Sink receives events. Implementations must not block the emitting
// goroutine indefinitely.
type Sink interface {
	Emit(ev Event)
}

// New builds an event with ID and timestamp filled in.
func New(level Level, msg string, fields map[string]any) Event {
	return Event{
		ID:      uuid.New().String(),
		Level:   level,
		Message: msg,
		Time:    time.Now(),
		Fields:  fields,
	}
}

// SlogSink forwards events to a slog logger.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ev Event) {
	attrs := make([]any, 0, len(ev.Fields)*2+2)
	attrs = append(attrs, "event_id", ev.ID)
	for k, v := range ev.Fields {
		attrs = append(attrs, k, v)
	}

	switch ev.Level {
	case LevelDebug:
		s.logger.Debug(ev.Message, attrs...)
	case LevelWarn:
		s.logger.Warn(ev.Message, attrs...)
	case LevelError:
		s.logger.Error(ev.Message, attrs...)
	default:
		s.logger.Info(ev.Message, attrs...)
	}
}

// ChannelSink buffers events for a consumer such as the API's live feed.
// When the buffer is full the oldest event is dropped so the engine never
// stalls on a slow consumer.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (c *ChannelSink) Emit(ev Event) {
	for {
		select {
		case c.ch <- ev:
			return
		default:
			select {
			case <-c.ch:
			default:
			}
		}
	}
}

// Next blocks until an event is available or the context is done.
func (c *ChannelSink) Next(ctx context.Context) (Event, bool) {
	select {
	case ev := <-c.ch:
		return ev, true
	case <-ctx.Done():
		return Event{}, false
	}
}

// Drain returns all currently buffered events without blocking.
func (c *ChannelSink) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-c.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// MultiSink fans out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Discard drops every event. Useful as a default when the caller does not
// care about the stream.
type Discard struct{}

func (Discard) Emit(Event) {}
