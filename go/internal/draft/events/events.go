package events

import (
	"context"

	"github.com/google/uuid"
)

// Event names published on every engine state transition.
const (
	PickStarted      = "PickStarted"
	PickMade         = "PickMade"
	DraftStarted     = "DraftStarted"
	DraftPaused      = "DraftPaused"
	DraftResumed     = "DraftResumed"
	DraftCompleted   = "DraftCompleted"
	OrderSet         = "OrderSet"
	TimerTick        = "TimerTick"
	AutodraftToggled = "AutodraftToggled"
	TimeAdjusted     = "TimeAdjusted"
	AutoPickFailed   = "AutoPickFailed"
	DerbyStarted     = "DerbyStarted"
	DerbySelection   = "DerbySelectionMade"
	DerbyCompleted   = "DerbyCompleted"
)

// Notifier receives engine events. Publish is fire-and-forget: implementations log their own
// delivery failures and never report them back to the engine.
type Notifier interface {
	Publish(ctx context.Context, draftID uuid.UUID, eventType string, payload any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, draftID uuid.UUID, eventType string, payload any)

func (f NotifierFunc) Publish(ctx context.Context, draftID uuid.UUID, eventType string, payload any) {
	f(ctx, draftID, eventType, payload)
}

// Nop discards every event.
var Nop Notifier = NotifierFunc(func(context.Context, uuid.UUID, string, any) {})
