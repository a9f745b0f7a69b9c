package pick

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/access"
	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/drafttest"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/draft/turn"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	app      *App
	league   *drafttest.League
	clock    *clockwork.FakeClock
	tracker  *chesstimer.Tracker
	recorder *drafttest.Recorder
}

func newHarness(t *testing.T, participants, players int) *harness {
	t.Helper()
	h := &harness{
		league:   drafttest.NewLeague(t, participants, players),
		clock:    clockwork.NewFakeClockAt(drafttest.Epoch),
		recorder: &drafttest.Recorder{},
	}
	h.tracker = chesstimer.NewTracker(h.clock)
	strategy := NewPositionalStrategy(h.league.Store, h.league.Store, 50, nil)
	h.app = NewApp(h.league.Store, h.league.Store, h.league.Store, h.tracker, strategy, h.recorder, h.clock)
	return h
}

func (h *harness) start(t *testing.T, style models.DraftStyle, settings models.DraftSettings) *models.Draft {
	t.Helper()
	d := h.league.SeedDraft(t, style, settings)
	return h.league.StartSeeded(t, d.ID, h.clock.Now())
}

func (h *harness) pickFor(ctx context.Context, d *models.Draft, participant uuid.UUID, player models.Player) (*PickResult, error) {
	return h.app.MakePick(ctx, MakePickRequest{
		DraftID:       d.ID,
		ParticipantID: participant,
		PlayerID:      player.ID,
		ActorID:       h.league.Owner(participant),
	})
}

func TestMakePick_RunsSnakeDraftToCompletion(t *testing.T) {
	h := newHarness(t, 3, 10)
	ctx := context.Background()
	d := h.start(t, models.DraftStyleSnake, models.DraftSettings{Rounds: 2, TimePerPickSec: 60})

	var completed []*models.Draft
	h.app.OnCompleted(CompletionHookFunc(func(_ context.Context, d *models.Draft, picks []models.DraftPick) error {
		completed = append(completed, d)
		assert.Len(t, picks, 6)
		return nil
	}))

	ids := h.league.ParticipantIDs()
	expected := []uuid.UUID{ids[0], ids[1], ids[2], ids[2], ids[1], ids[0]}
	for i, participant := range expected {
		h.clock.Advance(5 * time.Second)
		res, err := h.pickFor(ctx, d, participant, h.league.Players[i])
		require.NoError(t, err, "pick %d", i+1)
		assert.Equal(t, i+1, res.Pick.OverallPick)
		assert.Equal(t, 5, res.Pick.TimeSpentSec)
		assert.Equal(t, i == len(expected)-1, res.Completed)
	}

	picks, err := h.league.Store.ListPicks(ctx, d.ID)
	require.NoError(t, err)
	for i, p := range picks {
		assert.Equal(t, i+1, p.OverallPick)
		assert.Equal(t, expected[i], p.ParticipantID)
	}
	assert.Equal(t, 2, picks[3].Round)
	assert.Equal(t, 1, picks[3].Pick)

	final, err := h.league.Store.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCompleted, final.Status)
	assert.Nil(t, final.CurrentTurnHolder)
	assert.Nil(t, final.PickDeadline)
	require.Len(t, completed, 1)

	assert.Len(t, h.recorder.OfType(events.PickMade), 6)
	assert.Len(t, h.recorder.OfType(events.PickStarted), 5)
	assert.Len(t, h.recorder.OfType(events.DraftCompleted), 1)

	_, err = h.pickFor(ctx, d, ids[0], h.league.Players[9])
	assert.ErrorIs(t, err, drafterr.ErrDraftNotInProgress)
}

func TestMakePick_Rejections(t *testing.T) {
	h := newHarness(t, 2, 5)
	ctx := context.Background()
	d := h.start(t, models.DraftStyleLinear, models.DraftSettings{Rounds: 2})
	ids := h.league.ParticipantIDs()

	_, err := h.pickFor(ctx, d, ids[0], h.league.Players[0])
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     MakePickRequest
		wantErr error
	}{
		{
			name:    "not your turn",
			req:     MakePickRequest{DraftID: d.ID, ParticipantID: ids[0], PlayerID: h.league.Players[1].ID, ActorID: h.league.Owner(ids[0])},
			wantErr: drafterr.ErrNotYourTurn,
		},
		{
			name:    "player already picked",
			req:     MakePickRequest{DraftID: d.ID, ParticipantID: ids[1], PlayerID: h.league.Players[0].ID, ActorID: h.league.Owner(ids[1])},
			wantErr: drafterr.ErrItemAlreadyPicked,
		},
		{
			name:    "stale expected pick",
			req:     MakePickRequest{DraftID: d.ID, ParticipantID: ids[1], PlayerID: h.league.Players[1].ID, ExpectedPick: 1, ActorID: h.league.Owner(ids[1])},
			wantErr: drafterr.ErrNotYourTurn,
		},
		{
			name:    "unknown player",
			req:     MakePickRequest{DraftID: d.ID, ParticipantID: ids[1], PlayerID: uuid.New(), ActorID: h.league.Owner(ids[1])},
			wantErr: drafterr.ErrValidation,
		},
		{
			name:    "missing player",
			req:     MakePickRequest{DraftID: d.ID, ParticipantID: ids[1], ActorID: h.league.Owner(ids[1])},
			wantErr: drafterr.ErrValidation,
		},
		{
			name:    "someone else's team",
			req:     MakePickRequest{DraftID: d.ID, ParticipantID: ids[1], PlayerID: h.league.Players[1].ID, ActorID: h.league.Owner(ids[0])},
			wantErr: drafterr.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.app.MakePick(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			picks, err := h.league.Store.ListPicks(ctx, d.ID)
			require.NoError(t, err)
			assert.Len(t, picks, 1)
		})
	}
}

func TestMakePick_ConcurrentSamePlayer(t *testing.T) {
	h := newHarness(t, 1, 5)
	ctx := context.Background()
	d := h.start(t, models.DraftStyleLinear, models.DraftSettings{Rounds: 5})
	holder := h.league.Participants[0]

	const callers = 16
	var (
		wg   sync.WaitGroup
		errs = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.pickFor(ctx, d, holder.ID, h.league.Players[0])
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		code := drafterr.CodeOf(err)
		assert.Contains(t, []drafterr.Code{drafterr.CodeStateConflict, drafterr.CodeLockContention}, code, err.Error())
	}
	assert.Equal(t, 1, succeeded)

	picks, err := h.league.Store.ListPicks(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, 1, picks[0].OverallPick)
}

func TestSkipPick_RecordsPlaceholder(t *testing.T) {
	h := newHarness(t, 2, 5)
	ctx := context.Background()
	d := h.start(t, models.DraftStyleLinear, models.DraftSettings{Rounds: 1})
	ids := h.league.ParticipantIDs()

	_, err := h.app.SkipPick(ctx, SkipPickRequest{DraftID: d.ID, ActorID: h.league.Owner(ids[0])})
	assert.ErrorIs(t, err, drafterr.ErrForbidden)

	res, err := h.app.SkipPick(ctx, SkipPickRequest{DraftID: d.ID, ActorID: h.league.Commissioner, Reason: "absent"})
	require.NoError(t, err)
	assert.True(t, res.Pick.IsSkipped)
	assert.True(t, res.Pick.IsAutoPick)
	assert.Nil(t, res.Pick.PlayerID)
	assert.Equal(t, ids[0], res.Pick.ParticipantID)
	assert.Equal(t, ids[1], *res.Draft.CurrentTurnHolder)
	assert.Equal(t, 2, res.Draft.CurrentPick)
}

func TestAutoPick(t *testing.T) {
	ctx := context.Background()

	t.Run("fills positions by priority", func(t *testing.T) {
		h := newHarness(t, 1, 8)
		d := h.start(t, models.DraftStyleLinear, models.DraftSettings{Rounds: 3})

		// players cycle QB, RB, WR, TE by rank; take the QB by hand first
		_, err := h.pickFor(ctx, d, h.league.Participants[0].ID, h.league.Players[0])
		require.NoError(t, err)

		res, err := h.app.AutoPick(ctx, d.ID, 2)
		require.NoError(t, err)
		assert.True(t, res.Pick.IsAutoPick)
		assert.Equal(t, h.league.Players[1].ID, *res.Pick.PlayerID)

		_, err = h.app.AutoPick(ctx, d.ID, 2)
		assert.ErrorIs(t, err, drafterr.ErrNotYourTurn)
	})

	t.Run("skips when nothing is available", func(t *testing.T) {
		h := newHarness(t, 2, 0)
		d := h.start(t, models.DraftStyleLinear, models.DraftSettings{Rounds: 1})

		res, err := h.app.AutoPick(ctx, d.ID, 1)
		require.NoError(t, err)
		assert.True(t, res.Pick.IsSkipped)
		assert.Equal(t, 2, res.Draft.CurrentPick)
	})
}

func TestPositionalStrategy_Select(t *testing.T) {
	ctx := context.Background()

	// players cycle QB, RB, WR, TE by rank
	tests := []struct {
		name     string
		priority []string
		picked   []int
		want     int
	}{
		{name: "first priority position", want: 0},
		{name: "custom priority", priority: []string{"WR", "QB"}, want: 2},
		{name: "filled position is passed over", picked: []int{0}, want: 1},
		{name: "position missing from pool", priority: []string{"K", "RB"}, want: 1},
		{name: "all priority positions filled", priority: []string{"TE"}, picked: []int{3}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1, 8)
			d := h.start(t, models.DraftStyleLinear, models.DraftSettings{Rounds: 8})
			participant := h.league.Participants[0].ID
			for _, i := range tt.picked {
				_, err := h.pickFor(ctx, d, participant, h.league.Players[i])
				require.NoError(t, err)
			}

			strategy := NewPositionalStrategy(h.league.Store, h.league.Store, 50, tt.priority)
			got, err := strategy.Select(ctx, d, participant)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, h.league.Players[tt.want].ID, got.ID)
		})
	}
}

func TestMakePick_ChargesChessBudget(t *testing.T) {
	h := newHarness(t, 2, 5)
	ctx := context.Background()
	d := h.league.SeedDraft(t, models.DraftStyleLinear, models.DraftSettings{
		Rounds:         2,
		TimerMode:      models.TimerModeChess,
		ChessBudgetSec: 100,
	})
	d = h.league.StartSeeded(t, d.ID, h.clock.Now())
	h.tracker.Start(d.ID, d.CurrentPick, h.clock.Now())
	ids := h.league.ParticipantIDs()

	h.clock.Advance(30*time.Second + 900*time.Millisecond)
	res, err := h.pickFor(ctx, d, ids[0], h.league.Players[0])
	require.NoError(t, err)
	assert.Equal(t, 30, res.Pick.TimeSpentSec)

	o, err := h.league.Store.GetTurnOrder(ctx, d.ID)
	require.NoError(t, err)
	first, _ := o.Entry(ids[0])
	second, _ := o.Entry(ids[1])
	assert.Equal(t, 70, first.TimeRemainingSec)
	assert.Equal(t, 30, first.TimeUsedSec)
	assert.Equal(t, 100, second.TimeRemainingSec)

	// the next holder's clock starts now
	require.NotNil(t, res.Draft.PickDeadline)
	assert.Equal(t, h.clock.Now().Add(100*time.Second), *res.Draft.PickDeadline)
	elapsed, ok := h.tracker.Elapsed(d.ID)
	require.True(t, ok)
	assert.Equal(t, 0, elapsed)

	_, err = h.app.MakePick(ctx, MakePickRequest{
		DraftID:       d.ID,
		ParticipantID: ids[1],
		PlayerID:      h.league.Players[1].ID,
		IsAutoPick:    true,
		ActorID:       access.System,
	})
	require.NoError(t, err)
}

// The tracker is re-armed after the pick's lock is released. A next pick that wins the lock in
// between must be charged from its own turn start.
func TestMakePick_ChessChargesFromCurrentTurnWhenTrackerLags(t *testing.T) {
	h := newHarness(t, 2, 5)
	ctx := context.Background()
	d := h.league.SeedDraft(t, models.DraftStyleLinear, models.DraftSettings{
		Rounds:         2,
		TimerMode:      models.TimerModeChess,
		ChessBudgetSec: 100,
	})
	d = h.league.StartSeeded(t, d.ID, h.clock.Now())
	h.tracker.Start(d.ID, d.CurrentPick, h.clock.Now())
	ids := h.league.ParticipantIDs()

	// Pick 1 commits after 40s but the tracker still holds its start.
	h.clock.Advance(40 * time.Second)
	turnTwo := h.clock.Now()
	require.NoError(t, h.league.Store.WithDraftLock(ctx, d.ID, func(tx repository.DraftTx) error {
		locked := tx.Draft()
		o, err := tx.TurnOrder(ctx)
		if err != nil {
			return err
		}
		if _, err := turn.Assign(locked, o, 2, turnTwo); err != nil {
			return err
		}
		return tx.UpdateDraft(ctx, locked)
	}))

	h.clock.Advance(5 * time.Second)
	res, err := h.pickFor(ctx, d, ids[1], h.league.Players[0])
	require.NoError(t, err)
	assert.Equal(t, 5, res.Pick.TimeSpentSec)

	o, err := h.league.Store.GetTurnOrder(ctx, d.ID)
	require.NoError(t, err)
	second, _ := o.Entry(ids[1])
	assert.Equal(t, 95, second.TimeRemainingSec)
	assert.Equal(t, 5, second.TimeUsedSec)

	// A late re-arm for pick 2 does not override the start of pick 3.
	h.tracker.Start(d.ID, 2, turnTwo)
	elapsed, ok := h.tracker.ElapsedFor(res.Draft)
	require.True(t, ok)
	assert.Equal(t, 0, elapsed)
}
