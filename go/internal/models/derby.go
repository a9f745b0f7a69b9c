package models

import (
	"time"

	"github.com/google/uuid"
)

// DerbyStatus defines the status of a draft-position derby.
type DerbyStatus string

const (
	DerbyStatusNotStarted DerbyStatus = "NOT_STARTED"
	DerbyStatusInProgress DerbyStatus = "IN_PROGRESS"
	DerbyStatusCompleted  DerbyStatus = "COMPLETED"
)

// Derby lets participants choose their draft position before the draft starts.
type Derby struct {
	ID           uuid.UUID   `json:"id"`
	DraftID      uuid.UUID   `json:"draft_id"`
	Status       DerbyStatus `json:"status"`
	DerbyOrder   []uuid.UUID `json:"derby_order"`
	CurrentTurn  int         `json:"current_turn"`
	TurnTimeSec  int         `json:"turn_time_sec"`
	TurnDeadline *time.Time  `json:"turn_deadline,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CurrentParticipant returns the participant whose turn it is.
func (d *Derby) CurrentParticipant() (uuid.UUID, bool) {
	if d.Status != DerbyStatusInProgress || d.CurrentTurn < 0 || d.CurrentTurn >= len(d.DerbyOrder) {
		return uuid.Nil, false
	}
	return d.DerbyOrder[d.CurrentTurn], true
}

// Clone returns a deep copy.
func (d *Derby) Clone() *Derby {
	if d == nil {
		return nil
	}
	c := *d
	c.DerbyOrder = append([]uuid.UUID(nil), d.DerbyOrder...)
	c.TurnDeadline = cloneTime(d.TurnDeadline)
	return &c
}

// DerbySelection records which participant claimed a draft position.
type DerbySelection struct {
	DerbyID       uuid.UUID `json:"derby_id"`
	DraftPosition int       `json:"draft_position"`
	ParticipantID uuid.UUID `json:"participant_id"`
	IsAuto        bool      `json:"is_auto"`
	SelectedAt    time.Time `json:"selected_at"`
}
