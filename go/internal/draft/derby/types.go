package derby

import (
	"github.com/google/uuid"
)

// ClaimPositionRequest represents a request to claim a draft position
type ClaimPositionRequest struct {
	DraftID       uuid.UUID `json:"draft_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Position      int       `json:"position"`
	ActorID       uuid.UUID `json:"-"`
}
