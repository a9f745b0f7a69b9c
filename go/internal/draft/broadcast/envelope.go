// Package broadcast delivers engine events to watchers outside the process.
package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form of every broadcast event
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	DraftID   string          `json:"draftId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and stamps the envelope with a fresh event id.
func NewEnvelope(draftID uuid.UUID, eventType string, payload any, at time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		DraftID:   draftID.String(),
		Timestamp: at.UTC(),
		Payload:   raw,
	}, nil
}

// Subject returns the subject an event type is published on.
func Subject(prefix, eventType string) string {
	return fmt.Sprintf("%s.draft.%s", prefix, eventType)
}
