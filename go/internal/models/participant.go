package models

import (
	"github.com/google/uuid"
	"time"
)

// Participant is a fantasy team taking part in a draft.
type Participant struct {
	ID        uuid.UUID `json:"id"`
	LeagueID  uuid.UUID `json:"league_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
