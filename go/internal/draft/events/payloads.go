package events

import (
	"time"
)

// Event payload types that are shared between the engine, the gateway and the broadcast bus

// PickStartedPayload is the payload for a PickStarted event
type PickStartedPayload struct {
	ParticipantID  string     `json:"participant_id"`
	Round          int        `json:"round"`
	Pick           int        `json:"pick"`
	OverallPick    int        `json:"overall_pick"`
	StartedAt      time.Time  `json:"started_at"`
	TimeoutAt      *time.Time `json:"timeout_at,omitempty"`
	TimePerPickSec int        `json:"time_per_pick_sec"`
	IsAutodrafting bool       `json:"is_autodrafting"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	PickID        string    `json:"pick_id"`
	ParticipantID string    `json:"participant_id"`
	PlayerID      string    `json:"player_id,omitempty"`
	Round         int       `json:"round"`
	Pick          int       `json:"pick"`
	OverallPick   int       `json:"overall_pick"`
	IsAutoPick    bool      `json:"is_auto_pick"`
	IsSkipped     bool      `json:"is_skipped"`
	TimeSpentSec  int       `json:"time_spent_sec"`
	MadeAt        time.Time `json:"made_at"`
}

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	DraftID     string    `json:"draft_id"`
	Style       string    `json:"style"`
	StartedAt   time.Time `json:"started_at"`
	TotalRounds int       `json:"total_rounds"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	DraftID     string    `json:"draft_id"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftPausedPayload is the payload for a DraftPaused event
type DraftPausedPayload struct {
	DraftID  string    `json:"draft_id"`
	PausedAt time.Time `json:"paused_at"`
	PausedBy string    `json:"paused_by"`
}

// DraftResumedPayload is the payload for a DraftResumed event
type DraftResumedPayload struct {
	DraftID   string     `json:"draft_id"`
	ResumedAt time.Time  `json:"resumed_at"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

// OrderSetPayload is the payload for an OrderSet event
type OrderSetPayload struct {
	DraftID string   `json:"draft_id"`
	Order   []string `json:"order"` // participant ids by draft position
}

// TimerTickPayload contains periodic timer updates
type TimerTickPayload struct {
	ParticipantID    string    `json:"participant_id"`
	OverallPick      int       `json:"overall_pick"`
	TimeRemainingSec int       `json:"time_remaining_sec"`
	TickedAt         time.Time `json:"ticked_at"`
}

// AutodraftToggledPayload is the payload for an AutodraftToggled event
type AutodraftToggledPayload struct {
	ParticipantID  string `json:"participant_id"`
	IsAutodrafting bool   `json:"is_autodrafting"`
	Forced         bool   `json:"forced"`
}

// TimeAdjustedPayload is the payload for a TimeAdjusted event
type TimeAdjustedPayload struct {
	ParticipantID    string `json:"participant_id"`
	DeltaSec         int    `json:"delta_sec"`
	TimeRemainingSec int    `json:"time_remaining_sec"`
}

// AutoPickFailedPayload is published to the audit sink when a forced pick gives up
type AutoPickFailedPayload struct {
	DraftID       string    `json:"draft_id"`
	ParticipantID string    `json:"participant_id"`
	OverallPick   int       `json:"overall_pick"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error"`
	FailedAt      time.Time `json:"failed_at"`
}

// DerbyStartedPayload is the payload for a DerbyStarted event
type DerbyStartedPayload struct {
	DerbyID      string     `json:"derby_id"`
	DerbyOrder   []string   `json:"derby_order"`
	TurnDeadline *time.Time `json:"turn_deadline,omitempty"`
}

// DerbySelectionPayload is the payload for a DerbySelectionMade event
type DerbySelectionPayload struct {
	DerbyID       string     `json:"derby_id"`
	ParticipantID string     `json:"participant_id"`
	DraftPosition int        `json:"draft_position"`
	IsAuto        bool       `json:"is_auto"`
	NextTurn      int        `json:"next_turn"`
	TurnDeadline  *time.Time `json:"turn_deadline,omitempty"`
}

// DerbyCompletedPayload is the payload for a DerbyCompleted event
type DerbyCompletedPayload struct {
	DerbyID     string    `json:"derby_id"`
	CompletedAt time.Time `json:"completed_at"`
}
