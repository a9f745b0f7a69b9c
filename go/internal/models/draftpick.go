package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftPick represents a single completed selection in a draft.
type DraftPick struct {
	ID            uuid.UUID  `json:"id"`
	DraftID       uuid.UUID  `json:"draft_id"`
	Round         int        `json:"round"`
	Pick          int        `json:"pick"`         // pick number in the round
	OverallPick   int        `json:"overall_pick"` // pick number overall
	ParticipantID uuid.UUID  `json:"participant_id"`
	PlayerID      *uuid.UUID `json:"player_id,omitempty"` // nil for a skipped turn
	IsAutoPick    bool       `json:"is_auto_pick"`
	IsSkipped     bool       `json:"is_skipped"`
	TimeSpentSec  int        `json:"time_spent_sec"`
	PickedAt      time.Time  `json:"picked_at"`
}
