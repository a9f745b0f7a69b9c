// Package audit records permanent engine failures for operators.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event types written to the audit trail.
const (
	EventAutoPickFailed = "AutoPickFailed"
	EventPickSkipped    = "PickSkipped"
)

// Entry is one audit record. ParticipantID and OverallPick are optional.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	DraftID       uuid.UUID  `json:"draft_id"`
	ParticipantID *uuid.UUID `json:"participant_id,omitempty"`
	OverallPick   int        `json:"overall_pick,omitempty"`
	EventType     string     `json:"event_type"`
	Message       string     `json:"message,omitempty"`
	Payload       any        `json:"payload,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// LogSink writes audit entries to the process log at error level.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Record(_ context.Context, e Entry) error {
	ev := log.Error().
		Str("audit_event", e.EventType).
		Str("draft_id", e.DraftID.String()).
		Int("overall_pick", e.OverallPick).
		Interface("payload", e.Payload)
	if e.ParticipantID != nil {
		ev = ev.Str("participant_id", e.ParticipantID.String())
	}
	ev.Msg(e.Message)
	return nil
}
