// Package order maps a global pick number to its round, pick-in-round and draft position.
package order

import (
	"fmt"

	"github.com/mcdev12/draftengine/go/internal/models"
)

// Slot is the derived position of a single global pick.
type Slot struct {
	Round         int `json:"round"`
	PickInRound   int `json:"pick_in_round"`
	DraftPosition int `json:"draft_position"`
}

// Position derives the slot for pickNumber. It is pure and can be re-derived at any time from
// its inputs, so callers never persist the derived values separately from the pick number.
func Position(pickNumber, totalParticipants int, style models.DraftStyle, thirdRoundReversal bool) (Slot, error) {
	if style.IsAuction() {
		return Slot{Round: 1, PickInRound: 1, DraftPosition: 1}, nil
	}
	if totalParticipants <= 0 {
		return Slot{}, fmt.Errorf("total participants must be greater than 0, got %d", totalParticipants)
	}
	if pickNumber <= 0 {
		return Slot{}, fmt.Errorf("pick number must be greater than 0, got %d", pickNumber)
	}

	round := (pickNumber + totalParticipants - 1) / totalParticipants
	pickInRound := (pickNumber-1)%totalParticipants + 1

	position := pickInRound
	if style == models.DraftStyleSnake && isReversed(round, thirdRoundReversal) {
		position = totalParticipants - pickInRound + 1
	}

	return Slot{Round: round, PickInRound: pickInRound, DraftPosition: position}, nil
}

// isReversed reports whether a snake round runs N..1.
// With third-round reversal, round 3 repeats the direction of round 2 and every later round
// flips the usual parity: 1 fwd, 2 rev, 3 rev, 4 fwd, 5 rev, ...
func isReversed(round int, thirdRoundReversal bool) bool {
	if thirdRoundReversal && round >= 3 {
		return round%2 == 1
	}
	return round%2 == 0
}

// TotalPicks returns the number of picks in a full draft.
func TotalPicks(totalParticipants, rounds int) int {
	return totalParticipants * rounds
}
