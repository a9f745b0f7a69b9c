// Package chesstimer tracks per-participant cumulative time budgets.
//
// The tracker only remembers when the current turn holder's clock started. Budgets themselves
// live on the turn order rows and are charged when a turn ends.
package chesstimer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/models"
)

// Tracker holds the turn start timestamp of every active chess-mode draft.
type Tracker struct {
	clock clockwork.Clock

	mu     sync.Mutex
	starts map[uuid.UUID]turnStart
}

// turnStart ties a clock start to the pick number it was armed for.
type turnStart struct {
	pick int
	at   time.Time
}

func NewTracker(clock clockwork.Clock) *Tracker {
	return &Tracker{
		clock:  clock,
		starts: make(map[uuid.UUID]turnStart),
	}
}

// Start records that pick of draftID went on the clock at at. A start in the future
// delays charging until then. A start for an earlier pick than the tracked one is ignored.
func (t *Tracker) Start(draftID uuid.UUID, pick int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.starts[draftID]; ok && cur.pick > pick {
		return
	}
	t.starts[draftID] = turnStart{pick: pick, at: at}
}

// Restore re-arms a draft after a restart unless it is already tracked.
func (t *Tracker) Restore(draftID uuid.UUID, pick int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.starts[draftID]; !ok {
		t.starts[draftID] = turnStart{pick: pick, at: at}
	}
}

// Clear forgets the draft's start timestamp.
func (t *Tracker) Clear(draftID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.starts, draftID)
}

// Elapsed returns whole seconds since the tracked turn started, without clearing it.
func (t *Tracker) Elapsed(draftID uuid.UUID) (int, bool) {
	t.mu.Lock()
	start, ok := t.starts[draftID]
	t.mu.Unlock()
	if !ok {
		return 0, false
	}
	return WholeSeconds(t.clock.Since(start.at)), true
}

// ElapsedFor is Elapsed restricted to the draft's current pick. A start armed for another
// pick is not reported.
func (t *Tracker) ElapsedFor(d *models.Draft) (int, bool) {
	t.mu.Lock()
	start, ok := t.starts[d.ID]
	t.mu.Unlock()
	if !ok || start.pick != d.CurrentPick {
		return 0, false
	}
	return WholeSeconds(t.clock.Since(start.at)), true
}

// Stop returns the elapsed whole seconds and clears the start timestamp.
func (t *Tracker) Stop(draftID uuid.UUID) int {
	t.mu.Lock()
	start, ok := t.starts[draftID]
	delete(t.starts, draftID)
	t.mu.Unlock()
	if !ok {
		return 0
	}
	return WholeSeconds(t.clock.Since(start.at))
}

// Active reports whether the draft has a running turn clock.
func (t *Tracker) Active(draftID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.starts[draftID]
	return ok
}

// WholeSeconds floors d to seconds, never below zero.
func WholeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Remaining is stored minus elapsed, clamped at zero.
func Remaining(stored, elapsed int) int {
	if r := stored - elapsed; r > 0 {
		return r
	}
	return 0
}

// Charge deducts elapsed seconds from the entry's budget.
func Charge(entry *models.TurnOrderEntry, elapsed int) {
	if elapsed <= 0 {
		return
	}
	entry.TimeRemainingSec = Remaining(entry.TimeRemainingSec, elapsed)
	entry.TimeUsedSec += elapsed
}

// Adjust adds delta seconds to the entry's budget, clamped at zero.
func Adjust(entry *models.TurnOrderEntry, delta int) {
	entry.TimeRemainingSec += delta
	if entry.TimeRemainingSec < 0 {
		entry.TimeRemainingSec = 0
	}
}

// Budget is a participant's time bank as reported to clients.
type Budget struct {
	ParticipantID    uuid.UUID `json:"participant_id"`
	DraftPosition    int       `json:"draft_position"`
	TimeRemainingSec int       `json:"time_remaining_sec"`
	TimeUsedSec      int       `json:"time_used_sec"`
	IsActive         bool      `json:"is_active"`
}

// Budgets reports every participant's budget. Only the turn holder's value is live.
func (t *Tracker) Budgets(draft *models.Draft, order models.TurnOrder) []Budget {
	out := make([]Budget, 0, len(order))
	elapsed := t.liveElapsed(draft)
	for _, e := range order {
		b := Budget{
			ParticipantID:    e.ParticipantID,
			DraftPosition:    e.DraftPosition,
			TimeRemainingSec: e.TimeRemainingSec,
			TimeUsedSec:      e.TimeUsedSec,
		}
		if draft.Status == models.DraftStatusInProgress && draft.IsTurnHolder(e.ParticipantID) {
			b.IsActive = true
			b.TimeRemainingSec = Remaining(e.TimeRemainingSec, elapsed)
			b.TimeUsedSec += elapsed
		}
		out = append(out, b)
	}
	return out
}

// LiveRemaining is the turn holder's remaining budget right now.
func (t *Tracker) LiveRemaining(draft *models.Draft, entry models.TurnOrderEntry) int {
	if draft.Status != models.DraftStatusInProgress || !draft.IsTurnHolder(entry.ParticipantID) {
		return entry.TimeRemainingSec
	}
	return Remaining(entry.TimeRemainingSec, t.liveElapsed(draft))
}

// liveElapsed falls back to the persisted turn start when the process has no in-memory one
// for the draft's current pick.
func (t *Tracker) liveElapsed(draft *models.Draft) int {
	if elapsed, ok := t.ElapsedFor(draft); ok {
		return elapsed
	}
	if draft.TurnStartedAt != nil {
		return WholeSeconds(t.clock.Since(*draft.TurnStartedAt))
	}
	return 0
}
