package models

import (
	"time"

	"github.com/google/uuid"
)

// RosterPosition is the lineup slot a player holds. Drafted players start on the bench.
type RosterPosition string

const RosterPositionBench RosterPosition = "BENCH"

// AcquisitionType records how a roster row came to exist. The engine only writes DRAFT.
type AcquisitionType string

const AcquisitionTypeDraft AcquisitionType = "DRAFT"

// Roster is one player held by a participant after the draft.
type Roster struct {
	ID              uuid.UUID       `json:"id"`
	ParticipantID   uuid.UUID       `json:"participant_id"`
	PlayerID        uuid.UUID       `json:"player_id"`
	Position        RosterPosition  `json:"position"`
	AcquiredAt      time.Time       `json:"acquired_at"`
	AcquisitionType AcquisitionType `json:"acquisition_type"`
}
