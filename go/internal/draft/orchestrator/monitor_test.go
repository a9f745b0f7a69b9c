package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/audit"
	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/draft"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/drafttest"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/pick"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *auditRecorder) Record(_ context.Context, e audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditRecorder) Entries() []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Entry(nil), a.entries...)
}

// failingPicker always fails with err and counts its calls.
type failingPicker struct {
	err   error
	calls atomic.Int32
}

func (p *failingPicker) AutoPick(context.Context, uuid.UUID, int) (*pick.PickResult, error) {
	p.calls.Add(1)
	return nil, p.err
}

type monitorHarness struct {
	league   *drafttest.League
	clock    *clockwork.FakeClock
	tracker  *chesstimer.Tracker
	recorder *drafttest.Recorder
	audit    *auditRecorder
	drafts   *draft.App
	picks    *pick.App
	monitor  *Monitor
}

func newMonitorHarness(t *testing.T, players int, picker AutoPicker) *monitorHarness {
	t.Helper()
	h := &monitorHarness{
		league:   drafttest.NewLeague(t, 2, players),
		clock:    clockwork.NewFakeClockAt(drafttest.Epoch),
		recorder: &drafttest.Recorder{},
		audit:    &auditRecorder{},
	}
	h.tracker = chesstimer.NewTracker(h.clock)
	store := h.league.Store
	h.drafts = draft.NewApp(store, store, h.tracker, h.recorder, h.clock, draft.Options{ChessResumeBuffer: 10 * time.Second})
	strategy := pick.NewPositionalStrategy(store, store, 50, nil)
	h.picks = pick.NewApp(store, store, store, h.tracker, strategy, h.recorder, h.clock)
	if picker == nil {
		picker = h.picks
	}
	h.monitor = NewMonitor(MonitorConfig{
		Drafts:      store,
		Picker:      picker,
		Autodrafter: h.drafts,
		Tracker:     h.tracker,
		Notifier:    h.recorder,
		Audit:       h.audit,
		Clock:       h.clock,
		Interval:    time.Second,
		Retry:       DefaultRetryPolicy(h.clock),
	})
	h.drafts.SetMonitor(h.monitor)
	h.picks.OnCompleted(h.monitor)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.monitor.Shutdown(ctx)
	})
	return h
}

func (h *monitorHarness) startDraft(t *testing.T, settings models.DraftSettings) *models.Draft {
	t.Helper()
	d := h.league.SeedDraft(t, models.DraftStyleSnake, settings)
	started := h.league.StartSeeded(t, d.ID, h.clock.Now())
	if settings.IsChess() {
		h.tracker.Start(d.ID, started.CurrentPick, h.clock.Now())
	}
	return started
}

func (h *monitorHarness) picksOf(t *testing.T, draftID uuid.UUID) []models.DraftPick {
	t.Helper()
	picks, err := h.league.Store.ListPicks(context.Background(), draftID)
	require.NoError(t, err)
	return picks
}

func TestMonitorTick_ForcesPickAfterDeadline(t *testing.T) {
	h := newMonitorHarness(t, 10, nil)
	ctx := context.Background()
	d := h.startDraft(t, models.DraftSettings{Rounds: 2, TimePerPickSec: 30})
	holder := h.league.Participants[0].ID
	var st loopState

	h.clock.Advance(10 * time.Second)
	done, err := h.monitor.tick(ctx, d.ID, &st)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, h.picksOf(t, d.ID))

	ticks := h.recorder.OfType(events.TimerTick)
	require.Len(t, ticks, 1)
	assert.Equal(t, 20, ticks[0].Payload.(events.TimerTickPayload).TimeRemainingSec)

	h.clock.Advance(20 * time.Second)
	done, err = h.monitor.tick(ctx, d.ID, &st)
	require.NoError(t, err)
	assert.False(t, done)

	picks := h.picksOf(t, d.ID)
	require.Len(t, picks, 1)
	assert.True(t, picks[0].IsAutoPick)
	assert.Equal(t, holder, picks[0].ParticipantID)
	assert.Equal(t, 30, picks[0].TimeSpentSec)

	o, err := h.league.Store.GetTurnOrder(ctx, d.ID)
	require.NoError(t, err)
	entry, _ := o.Entry(holder)
	assert.True(t, entry.IsAutodrafting, "a missed deadline switches the participant to autodraft")
	assert.Len(t, h.recorder.OfType(events.AutodraftToggled), 1)
}

func TestMonitorTick_AutodraftingHolderPicksImmediately(t *testing.T) {
	h := newMonitorHarness(t, 10, nil)
	ctx := context.Background()
	d := h.startDraft(t, models.DraftSettings{Rounds: 1, TimePerPickSec: 90})
	holder := h.league.Participants[0]

	_, err := h.drafts.SetAutodraft(ctx, draft.SetAutodraftRequest{
		DraftID:       d.ID,
		ParticipantID: holder.ID,
		Enabled:       true,
		ActorID:       holder.OwnerID,
	})
	require.NoError(t, err)

	var st loopState
	_, err = h.monitor.tick(ctx, d.ID, &st)
	require.NoError(t, err)
	require.Len(t, h.picksOf(t, d.ID), 1)

	// the second participant is not autodrafting and still has time
	_, err = h.monitor.tick(ctx, d.ID, &st)
	require.NoError(t, err)
	assert.Len(t, h.picksOf(t, d.ID), 1)
}

func TestMonitorTick_ChessBudgetExhausted(t *testing.T) {
	h := newMonitorHarness(t, 10, nil)
	ctx := context.Background()
	d := h.startDraft(t, models.DraftSettings{Rounds: 1, TimerMode: models.TimerModeChess, ChessBudgetSec: 5})
	var st loopState

	h.clock.Advance(4 * time.Second)
	_, err := h.monitor.tick(ctx, d.ID, &st)
	require.NoError(t, err)
	assert.Empty(t, h.picksOf(t, d.ID))

	h.clock.Advance(time.Second)
	_, err = h.monitor.tick(ctx, d.ID, &st)
	require.NoError(t, err)
	require.Len(t, h.picksOf(t, d.ID), 1)

	o, err := h.league.Store.GetTurnOrder(ctx, d.ID)
	require.NoError(t, err)
	first, _ := o.Entry(h.league.Participants[0].ID)
	second, _ := o.Entry(h.league.Participants[1].ID)
	assert.Equal(t, 0, first.TimeRemainingSec)
	assert.Equal(t, 5, first.TimeUsedSec)
	assert.Equal(t, 5, second.TimeRemainingSec)
}

func TestMonitorTick_StopsWhenDraftNotInProgress(t *testing.T) {
	h := newMonitorHarness(t, 10, nil)
	ctx := context.Background()
	d := h.league.SeedDraft(t, models.DraftStyleLinear, models.DraftSettings{Rounds: 1})

	done, err := h.monitor.tick(ctx, d.ID, &loopState{})
	require.NoError(t, err)
	assert.True(t, done)

	done, err = h.monitor.tick(ctx, uuid.New(), &loopState{})
	assert.ErrorIs(t, err, drafterr.ErrNotFound)
	assert.True(t, done)
}

func TestMonitorTick_EscalatesExhaustedRetries(t *testing.T) {
	picker := &failingPicker{err: drafterr.ErrConcurrentModification}
	h := newMonitorHarness(t, 10, picker)
	d := h.startDraft(t, models.DraftSettings{Rounds: 1, TimePerPickSec: 30})
	h.clock.Advance(30 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var st loopState
	errCh := make(chan error, 1)
	go func() {
		_, err := h.monitor.tick(ctx, d.ID, &st)
		errCh <- err
	}()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(time.Second)
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(2 * time.Second)

	err := <-errCh
	assert.ErrorIs(t, err, drafterr.ErrAutoPickFailed)
	assert.Equal(t, int32(3), picker.calls.Load())
	assert.Equal(t, 1, st.failedPick)

	entries := h.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventAutoPickFailed, entries[0].EventType)
	assert.Equal(t, 1, entries[0].OverallPick)

	failed := h.recorder.OfType(events.AutoPickFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Payload.(events.AutoPickFailedPayload).Attempts)

	// the failed turn is left for manual intervention
	_, err = h.monitor.tick(ctx, d.ID, &st)
	require.NoError(t, err)
	assert.Equal(t, int32(3), picker.calls.Load())
}

func TestMonitorTick_SupersededPickIsNotEscalated(t *testing.T) {
	picker := &failingPicker{err: drafterr.ErrNotYourTurn}
	h := newMonitorHarness(t, 10, picker)
	d := h.startDraft(t, models.DraftSettings{Rounds: 1, TimePerPickSec: 30})
	h.clock.Advance(time.Minute)

	done, err := h.monitor.tick(context.Background(), d.ID, &loopState{})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, int32(1), picker.calls.Load())
	assert.Empty(t, h.audit.Entries())
}

func TestMonitorTick_SkipsWhenNoPlayersLeft(t *testing.T) {
	h := newMonitorHarness(t, 0, nil)
	d := h.startDraft(t, models.DraftSettings{Rounds: 1, TimePerPickSec: 10})
	h.clock.Advance(10 * time.Second)

	_, err := h.monitor.tick(context.Background(), d.ID, &loopState{})
	require.NoError(t, err)

	picks := h.picksOf(t, d.ID)
	require.Len(t, picks, 1)
	assert.True(t, picks[0].IsSkipped)
	entries := h.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventPickSkipped, entries[0].EventType)
}

func TestMonitor_LoopPicksWithinOneTick(t *testing.T) {
	h := newMonitorHarness(t, 10, nil)
	d := h.startDraft(t, models.DraftSettings{Rounds: 1, TimePerPickSec: 5})

	h.monitor.Start(d.ID)
	require.True(t, h.monitor.Running(d.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(5 * time.Second)

	require.Eventually(t, func() bool {
		return len(h.picksOf(t, d.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	picks := h.picksOf(t, d.ID)
	assert.True(t, picks[0].IsAutoPick)
}

func TestMonitor_StopsAfterCompletion(t *testing.T) {
	h := newMonitorHarness(t, 10, nil)
	ctx := context.Background()
	d := h.startDraft(t, models.DraftSettings{Rounds: 1})
	h.monitor.Start(d.ID)

	for _, p := range h.league.Participants {
		_, err := h.picks.AutoPick(ctx, d.ID, 0)
		require.NoError(t, err, p.Name)
	}

	require.Eventually(t, func() bool { return !h.monitor.Running(d.ID) }, time.Second, 5*time.Millisecond)
}

func TestMonitor_Recover(t *testing.T) {
	h := newMonitorHarness(t, 10, nil)
	d := h.startDraft(t, models.DraftSettings{Rounds: 1, TimerMode: models.TimerModeChess, ChessBudgetSec: 60})
	h.league.SeedDraft(t, models.DraftStyleLinear, models.DraftSettings{Rounds: 1})
	h.tracker.Clear(d.ID)

	n, err := h.monitor.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, h.monitor.Running(d.ID))
	assert.True(t, h.tracker.Active(d.ID))
}

func TestRetryableForcedPick(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{drafterr.ErrConcurrentModification, true},
		{drafterr.ErrItemAlreadyPicked, true},
		{errors.New("connection reset"), true},
		{drafterr.ErrNotYourTurn, false},
		{drafterr.ErrDraftNotInProgress, false},
		{drafterr.ErrValidation, false},
		{drafterr.ErrForbidden, false},
		{context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, retryableForcedPick(tt.err))
		})
	}
}
