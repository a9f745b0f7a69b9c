package broadcast

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// Fanout publishes every event to each of its notifiers in order
type Fanout []events.Notifier

func (f Fanout) Publish(ctx context.Context, draftID uuid.UUID, eventType string, payload any) {
	for _, n := range f {
		n.Publish(ctx, draftID, eventType, payload)
	}
}

// LogNotifier writes events to the process log. Timer ticks go to debug.
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, draftID uuid.UUID, eventType string, payload any) {
	ev := log.Info()
	if eventType == events.TimerTick {
		ev = log.Debug()
	}
	ev.Str("draft_id", draftID.String()).
		Str("event_type", eventType).
		Interface("payload", payload).
		Msg("draft event")
}
