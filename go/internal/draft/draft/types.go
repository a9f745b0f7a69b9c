package draft

import (
	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/models"
)

// CreateDraftRequest represents a request to create a new draft
type CreateDraftRequest struct {
	LeagueID uuid.UUID            `json:"league_id"`
	Style    models.DraftStyle    `json:"style"`
	Settings models.DraftSettings `json:"settings"`
	ActorID  uuid.UUID            `json:"-"`
}

// SetTurnOrderRequest assigns draft positions in list order, position 1 first
type SetTurnOrderRequest struct {
	DraftID        uuid.UUID   `json:"draft_id"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	ActorID        uuid.UUID   `json:"-"`
}

// SetAutodraftRequest toggles a participant's autodraft flag
type SetAutodraftRequest struct {
	DraftID       uuid.UUID `json:"draft_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Enabled       bool      `json:"enabled"`
	ActorID       uuid.UUID `json:"-"`
}

// AdjustTimeRequest adds DeltaSec to a participant's chess budget
type AdjustTimeRequest struct {
	DraftID       uuid.UUID `json:"draft_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	DeltaSec      int       `json:"delta_sec"`
	ActorID       uuid.UUID `json:"-"`
}
