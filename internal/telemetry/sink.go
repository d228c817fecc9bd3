// Package telemetry records outreach events. Recording is fire-and-forget:
// sinks swallow their own failures.
package telemetry

import (
	"context"

	"github.com/rs/zerolog"
)

const (
	EventCacheHit          = "icebreaker_cache_hit"
	EventGenerated         = "icebreaker_generated"
	EventGenerationError   = "icebreaker_error"
	EventMessageSent       = "message_sent"
	EventOutreachCompleted = "outreach_completed"
	EventOutreachError     = "outreach_error"
	EventQuotaExceeded     = "quota_exceeded"
)

// Attrs are event attributes.
type Attrs map[string]any

type Sink interface {
	Record(ctx context.Context, event, subjectID string, attrs Attrs)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, string, string, Attrs) {}

// LogSink writes events to the logger.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Record(_ context.Context, event, subjectID string, attrs Attrs) {
	s.Log.Info().
		Str("event_type", event).
		Str("profile_id", subjectID).
		Fields(map[string]any(attrs)).
		Msg("telemetry event")
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Record(ctx context.Context, event, subjectID string, attrs Attrs) {
	for _, s := range m {
		s.Record(ctx, event, subjectID, attrs)
	}
}
