package pick

import (
	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/models"
)

// MakePickRequest represents a request to make a draft pick
type MakePickRequest struct {
	DraftID       uuid.UUID `json:"draft_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	PlayerID      uuid.UUID `json:"player_id"`
	IsAutoPick    bool      `json:"is_auto_pick"`
	// ExpectedPick pins the request to a pick number; zero accepts whatever pick is current.
	ExpectedPick int       `json:"expected_pick,omitempty"`
	ActorID      uuid.UUID `json:"-"`
}

// SkipPickRequest advances the turn without a selection.
type SkipPickRequest struct {
	DraftID      uuid.UUID `json:"draft_id"`
	ExpectedPick int       `json:"expected_pick,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	ActorID      uuid.UUID `json:"-"`
}

// PickResult is the committed pick and the draft state after it.
type PickResult struct {
	Pick      models.DraftPick `json:"pick"`
	Draft     *models.Draft    `json:"draft"`
	Completed bool             `json:"completed"`
}
