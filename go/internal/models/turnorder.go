package models

import (
	"github.com/google/uuid"
)

// TurnOrderEntry maps a draft position to a participant.
type TurnOrderEntry struct {
	DraftID          uuid.UUID `json:"draft_id"`
	ParticipantID    uuid.UUID `json:"participant_id"`
	DraftPosition    int       `json:"draft_position"`
	IsAutodrafting   bool      `json:"is_autodrafting"`
	TimeRemainingSec int       `json:"time_remaining_sec"` // chess mode only
	TimeUsedSec      int       `json:"time_used_sec"`      // chess mode only
}

// TurnOrder is the full order of a draft, indexed by position.
type TurnOrder []TurnOrderEntry

// ParticipantAt returns the participant holding the 1-based draft position.
func (o TurnOrder) ParticipantAt(position int) (uuid.UUID, bool) {
	for _, e := range o {
		if e.DraftPosition == position {
			return e.ParticipantID, true
		}
	}
	return uuid.Nil, false
}

// Entry returns the row for a participant.
func (o TurnOrder) Entry(participantID uuid.UUID) (TurnOrderEntry, bool) {
	for _, e := range o {
		if e.ParticipantID == participantID {
			return e, true
		}
	}
	return TurnOrderEntry{}, false
}
