package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftStyle defines how turn order is derived from the pick number.
type DraftStyle string

const (
	DraftStyleLinear      DraftStyle = "LINEAR"
	DraftStyleSnake       DraftStyle = "SNAKE"
	DraftStyleAuction     DraftStyle = "AUCTION"
	DraftStyleSlowAuction DraftStyle = "SLOW_AUCTION"
)

// IsAuction reports whether the style has no fixed turn order.
func (s DraftStyle) IsAuction() bool {
	return s == DraftStyleAuction || s == DraftStyleSlowAuction
}

// DraftStatus defines the status of a draft.
type DraftStatus string

const (
	DraftStatusNotStarted DraftStatus = "NOT_STARTED"
	DraftStatusInProgress DraftStatus = "IN_PROGRESS"
	DraftStatusPaused     DraftStatus = "PAUSED"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
)

// TimerMode selects between a fixed per-pick countdown and a chess clock.
type TimerMode string

const (
	TimerModeTraditional TimerMode = "TRADITIONAL"
	TimerModeChess       TimerMode = "CHESS"
)

// DraftSettings holds JSONB configuration for drafts.
type DraftSettings struct {
	Rounds             int       `json:"rounds"`
	TimePerPickSec     int       `json:"time_per_pick_sec"`
	ThirdRoundReversal bool      `json:"third_round_reversal,omitempty"`
	TimerMode          TimerMode `json:"timer_mode,omitempty"`
	ChessBudgetSec     int       `json:"chess_budget_sec,omitempty"` // chess mode only
}

// IsChess reports whether the draft uses per-participant time budgets.
func (s DraftSettings) IsChess() bool {
	return s.TimerMode == TimerModeChess
}

// Draft represents a draft instance and its live turn state.
type Draft struct {
	ID       uuid.UUID     `json:"id"`
	LeagueID uuid.UUID     `json:"league_id"`
	Style    DraftStyle    `json:"style"`
	Status   DraftStatus   `json:"status"`
	Settings DraftSettings `json:"settings"`

	CurrentPick       int        `json:"current_pick"`
	CurrentRound      int        `json:"current_round"`
	CurrentTurnHolder *uuid.UUID `json:"current_turn_holder,omitempty"`
	PickDeadline      *time.Time `json:"pick_deadline,omitempty"`
	TurnStartedAt     *time.Time `json:"turn_started_at,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so stores can hand out snapshots safely.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	if d.CurrentTurnHolder != nil {
		h := *d.CurrentTurnHolder
		c.CurrentTurnHolder = &h
	}
	c.PickDeadline = cloneTime(d.PickDeadline)
	c.TurnStartedAt = cloneTime(d.TurnStartedAt)
	c.StartedAt = cloneTime(d.StartedAt)
	c.CompletedAt = cloneTime(d.CompletedAt)
	return &c
}

// IsTurnHolder reports whether participantID currently holds the turn.
func (d *Draft) IsTurnHolder(participantID uuid.UUID) bool {
	return d.CurrentTurnHolder != nil && *d.CurrentTurnHolder == participantID
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
