// Package turn moves a draft between picks. Both the state machine and pick application use
// it so the turn holder and deadline are always derived the same way.
package turn

import (
	"fmt"
	"time"

	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/order"
	"github.com/mcdev12/draftengine/go/internal/models"
)

// ValidateOrder checks that positions form a 1..N permutation of unique participants.
func ValidateOrder(o models.TurnOrder) error {
	if len(o) == 0 {
		return fmt.Errorf("turn order is empty: %w", drafterr.ErrInvalidTurnOrder)
	}
	positions := make(map[int]bool, len(o))
	participants := make(map[string]bool, len(o))
	for _, e := range o {
		if e.DraftPosition < 1 || e.DraftPosition > len(o) {
			return fmt.Errorf("position %d out of range 1..%d: %w", e.DraftPosition, len(o), drafterr.ErrInvalidTurnOrder)
		}
		if positions[e.DraftPosition] {
			return fmt.Errorf("position %d assigned twice: %w", e.DraftPosition, drafterr.ErrInvalidTurnOrder)
		}
		key := e.ParticipantID.String()
		if participants[key] {
			return fmt.Errorf("participant %s listed twice: %w", key, drafterr.ErrInvalidTurnOrder)
		}
		positions[e.DraftPosition] = true
		participants[key] = true
	}
	return nil
}

// Assign puts the draft on pickNumber: round, turn holder, turn start and deadline.
// The turn clock starts at start, which may be later than now to grant a grace period.
func Assign(d *models.Draft, o models.TurnOrder, pickNumber int, start time.Time) (models.TurnOrderEntry, error) {
	slot, err := order.Position(pickNumber, len(o), d.Style, d.Settings.ThirdRoundReversal)
	if err != nil {
		return models.TurnOrderEntry{}, fmt.Errorf("failed to compute slot for pick %d: %w", pickNumber, err)
	}
	holderID, ok := o.ParticipantAt(slot.DraftPosition)
	if !ok {
		return models.TurnOrderEntry{}, fmt.Errorf("no participant at position %d: %w", slot.DraftPosition, drafterr.ErrInvalidTurnOrder)
	}
	entry, _ := o.Entry(holderID)

	d.CurrentPick = pickNumber
	d.CurrentRound = slot.Round
	d.CurrentTurnHolder = &holderID
	d.TurnStartedAt = &start
	d.PickDeadline = Deadline(d, entry, start)
	return entry, nil
}

// Deadline is the instant the holder's turn expires, or nil for untimed drafts.
// In chess mode it is informational; the holder's live budget is authoritative.
func Deadline(d *models.Draft, holder models.TurnOrderEntry, start time.Time) *time.Time {
	var deadline time.Time
	switch {
	case d.Settings.IsChess():
		deadline = start.Add(time.Duration(holder.TimeRemainingSec) * time.Second)
	case d.Settings.TimePerPickSec > 0:
		deadline = start.Add(time.Duration(d.Settings.TimePerPickSec) * time.Second)
	default:
		return nil
	}
	return &deadline
}

// Complete marks the draft finished and clears the turn.
func Complete(d *models.Draft, now time.Time) {
	d.Status = models.DraftStatusCompleted
	d.CompletedAt = &now
	d.CurrentTurnHolder = nil
	d.PickDeadline = nil
	d.TurnStartedAt = nil
}

// TotalPicks is the number of picks in a complete draft.
func TotalPicks(d *models.Draft, o models.TurnOrder) int {
	return order.TotalPicks(len(o), d.Settings.Rounds)
}

// Elapsed returns whole seconds the current holder has been on the clock, using the chess
// tracker when it was armed for the draft's current pick and the persisted turn start otherwise.
func Elapsed(d *models.Draft, tracker *chesstimer.Tracker, now time.Time) int {
	if tracker != nil {
		if elapsed, ok := tracker.ElapsedFor(d); ok {
			return elapsed
		}
	}
	if d.TurnStartedAt == nil {
		return 0
	}
	return chesstimer.WholeSeconds(now.Sub(*d.TurnStartedAt))
}

// StartedPayload describes the turn that was just assigned.
func StartedPayload(d *models.Draft, holder models.TurnOrderEntry, participants int) events.PickStartedPayload {
	p := events.PickStartedPayload{
		ParticipantID:  holder.ParticipantID.String(),
		Round:          d.CurrentRound,
		OverallPick:    d.CurrentPick,
		TimeoutAt:      d.PickDeadline,
		TimePerPickSec: d.Settings.TimePerPickSec,
		IsAutodrafting: holder.IsAutodrafting,
	}
	if participants > 0 {
		p.Pick = (d.CurrentPick-1)%participants + 1
	}
	if d.TurnStartedAt != nil {
		p.StartedAt = *d.TurnStartedAt
	}
	return p
}
