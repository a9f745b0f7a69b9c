package models

import (
	"github.com/google/uuid"
)

// Player is a draftable item in the ranked player pool.
type Player struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Position string    `json:"position"` // 'QB', 'RB', 'WR', etc.
	Rank     int       `json:"rank"`     // lower is more desirable
}
