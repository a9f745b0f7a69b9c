package derby

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/draft"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/drafttest"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	app      *App
	league   *drafttest.League
	draft    *models.Draft
	clock    *clockwork.FakeClock
	recorder *drafttest.Recorder
	watcher  *drafttest.MonitorSpy
}

// newHarness seeds a draft and starts a derby whose order equals the seeding order.
func newHarness(t *testing.T, participants int) *harness {
	t.Helper()
	h := &harness{
		league:   drafttest.NewLeague(t, participants, 0),
		clock:    clockwork.NewFakeClockAt(drafttest.Epoch),
		recorder: &drafttest.Recorder{},
		watcher:  &drafttest.MonitorSpy{},
	}
	h.draft = h.league.SeedDraft(t, models.DraftStyleSnake, models.DraftSettings{Rounds: 2, TimePerPickSec: 60})
	h.app = NewApp(h.league.Store, h.league.Store, h.league.Store, h.recorder, h.clock, 30)
	h.app.SetWatcher(h.watcher)
	h.app.SetShuffler(func([]uuid.UUID) {})
	return h
}

func (h *harness) start(t *testing.T) *models.Derby {
	t.Helper()
	derby, err := h.app.StartDerby(context.Background(), h.draft.ID, h.league.Commissioner)
	require.NoError(t, err)
	return derby
}

func (h *harness) claim(participant uuid.UUID, position int) error {
	_, err := h.app.ClaimPosition(context.Background(), ClaimPositionRequest{
		DraftID:       h.draft.ID,
		ParticipantID: participant,
		Position:      position,
		ActorID:       h.league.Owner(participant),
	})
	return err
}

func TestStartDerby(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	derby := h.start(t)

	assert.Equal(t, models.DerbyStatusInProgress, derby.Status)
	assert.Equal(t, h.league.ParticipantIDs(), derby.DerbyOrder)
	assert.Equal(t, 0, derby.CurrentTurn)
	require.NotNil(t, derby.TurnDeadline)
	assert.Equal(t, drafttest.Epoch.Add(30*time.Second), *derby.TurnDeadline)
	assert.Equal(t, []uuid.UUID{h.draft.ID}, h.watcher.Started)
	assert.Equal(t, []string{events.DerbyStarted}, h.recorder.Types())

	o, err := h.league.Store.GetTurnOrder(ctx, h.draft.ID)
	require.NoError(t, err)
	assert.Empty(t, o, "turn order is rebuilt from claims")
}

func TestStartDerby_Rejections(t *testing.T) {
	t.Run("not commissioner", func(t *testing.T) {
		h := newHarness(t, 2)
		_, err := h.app.StartDerby(context.Background(), h.draft.ID, h.league.Participants[0].OwnerID)
		assert.ErrorIs(t, err, drafterr.ErrForbidden)
	})

	t.Run("draft already started", func(t *testing.T) {
		h := newHarness(t, 2)
		h.league.StartSeeded(t, h.draft.ID, drafttest.Epoch)
		_, err := h.app.StartDerby(context.Background(), h.draft.ID, h.league.Commissioner)
		assert.ErrorIs(t, err, drafterr.ErrInvalidTransition)
	})

	t.Run("derby exists", func(t *testing.T) {
		h := newHarness(t, 2)
		h.start(t)
		_, err := h.app.StartDerby(context.Background(), h.draft.ID, h.league.Commissioner)
		assert.ErrorIs(t, err, drafterr.ErrInvalidTransition)
	})
}

func TestClaimPosition_FullDerby(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	ids := h.league.ParticipantIDs()
	h.start(t)

	require.NoError(t, h.claim(ids[0], 3))
	h.clock.Advance(5 * time.Second)
	require.NoError(t, h.claim(ids[1], 1))
	require.NoError(t, h.claim(ids[2], 2))

	derby, selections, err := h.app.GetDerby(ctx, h.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DerbyStatusCompleted, derby.Status)
	assert.Nil(t, derby.TurnDeadline)
	assert.Len(t, selections, 3)

	o, err := h.league.Store.GetTurnOrder(ctx, h.draft.ID)
	require.NoError(t, err)
	for pos, want := range map[int]uuid.UUID{1: ids[1], 2: ids[2], 3: ids[0]} {
		got, ok := o.ParticipantAt(pos)
		require.True(t, ok)
		assert.Equal(t, want, got, "position %d", pos)
	}

	assert.Equal(t, []uuid.UUID{h.draft.ID}, h.watcher.Stopped)
	assert.Equal(t, []string{
		events.DerbyStarted,
		events.DerbySelection,
		events.DerbySelection,
		events.DerbySelection,
		events.DerbyCompleted,
		events.OrderSet,
	}, h.recorder.Types())

	second := h.recorder.OfType(events.DerbySelection)[1].Payload.(events.DerbySelectionPayload)
	assert.Equal(t, 2, second.NextTurn)
	require.NotNil(t, second.TurnDeadline)
	assert.Equal(t, drafttest.Epoch.Add(35*time.Second), *second.TurnDeadline)
}

func TestClaimPosition_Rejections(t *testing.T) {
	h := newHarness(t, 3)
	ids := h.league.ParticipantIDs()
	h.start(t)
	require.NoError(t, h.claim(ids[0], 2))

	tests := []struct {
		name     string
		who      uuid.UUID
		position int
		wantErr  error
	}{
		{name: "out of turn", who: ids[2], position: 1, wantErr: drafterr.ErrNotYourDerbyTurn},
		{name: "already claimed", who: ids[1], position: 2, wantErr: drafterr.ErrPositionAlreadyClaimed},
		{name: "position zero", who: ids[1], position: 0, wantErr: drafterr.ErrValidation},
		{name: "position beyond league size", who: ids[1], position: 4, wantErr: drafterr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.claim(tt.who, tt.position)
			assert.ErrorIs(t, err, tt.wantErr)

			derby, _, err := h.app.GetDerby(context.Background(), h.draft.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, derby.CurrentTurn, "rejected claim must not advance the derby")
		})
	}

	t.Run("claim for another participant", func(t *testing.T) {
		_, err := h.app.ClaimPosition(context.Background(), ClaimPositionRequest{
			DraftID:       h.draft.ID,
			ParticipantID: ids[1],
			Position:      1,
			ActorID:       h.league.Owner(ids[2]),
		})
		assert.ErrorIs(t, err, drafterr.ErrForbidden)
	})
}

func TestClaimPosition_DerbyNotInProgress(t *testing.T) {
	h := newHarness(t, 1)
	ids := h.league.ParticipantIDs()

	assert.ErrorIs(t, h.claim(ids[0], 1), drafterr.ErrNotFound)

	h.start(t)
	require.NoError(t, h.claim(ids[0], 1))
	assert.ErrorIs(t, h.claim(ids[0], 1), drafterr.ErrDerbyNotInProgress)
}

func TestSkipDerbyTurn(t *testing.T) {
	h := newHarness(t, 3)
	ids := h.league.ParticipantIDs()
	h.start(t)
	require.NoError(t, h.claim(ids[0], 1))

	_, err := h.app.SkipDerbyTurn(context.Background(), h.draft.ID, h.league.Owner(ids[1]))
	assert.ErrorIs(t, err, drafterr.ErrForbidden)

	sel, err := h.app.SkipDerbyTurn(context.Background(), h.draft.ID, h.league.Commissioner)
	require.NoError(t, err)
	assert.Equal(t, ids[1], sel.ParticipantID)
	assert.Equal(t, 2, sel.DraftPosition, "lowest open position")
	assert.True(t, sel.IsAuto)
}

func TestAutoAssign(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	ids := h.league.ParticipantIDs()
	h.start(t)

	require.NoError(t, h.claim(ids[0], 1))

	err := h.app.AutoAssign(ctx, h.draft.ID, 0)
	assert.ErrorIs(t, err, drafterr.ErrNotYourDerbyTurn, "stale turn is not reassigned")

	require.NoError(t, h.app.AutoAssign(ctx, h.draft.ID, 1))

	derby, selections, err := h.app.GetDerby(ctx, h.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DerbyStatusCompleted, derby.Status)
	require.Len(t, selections, 2)
	assert.Equal(t, ids[1], selections[1].ParticipantID)
	assert.Equal(t, 2, selections[1].DraftPosition)
}

func TestStartDerby_UntimedTurns(t *testing.T) {
	h := newHarness(t, 2)
	h.app = NewApp(h.league.Store, h.league.Store, h.league.Store, h.recorder, h.clock, 0)
	h.app.SetShuffler(func(ids []uuid.UUID) { ids[0], ids[1] = ids[1], ids[0] })

	derby, err := h.app.StartDerby(context.Background(), h.draft.ID, h.league.Commissioner)
	require.NoError(t, err)
	assert.Nil(t, derby.TurnDeadline)
	ids := h.league.ParticipantIDs()
	assert.Equal(t, []uuid.UUID{ids[1], ids[0]}, derby.DerbyOrder)
}

func TestStartDerby_DraftLockedLeavesNothingBehind(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	var startErr error
	require.NoError(t, h.league.Store.WithDraftLock(ctx, h.draft.ID, func(repository.DraftTx) error {
		_, startErr = h.app.StartDerby(ctx, h.draft.ID, h.league.Commissioner)
		return nil
	}))
	require.ErrorIs(t, startErr, drafterr.ErrConcurrentModification)

	_, _, err := h.app.GetDerby(ctx, h.draft.ID)
	assert.ErrorIs(t, err, drafterr.ErrNotFound)
	assert.Empty(t, h.watcher.Started)
	assert.Empty(t, h.recorder.Types())
	o, err := h.league.Store.GetTurnOrder(ctx, h.draft.ID)
	require.NoError(t, err)
	assert.Len(t, o, 3, "seeded turn order untouched")

	derby := h.start(t)
	assert.Equal(t, models.DerbyStatusInProgress, derby.Status)
	assert.Equal(t, []uuid.UUID{h.draft.ID}, h.watcher.Started)
}

func TestDerby_GuardsDraftTurnOrder(t *testing.T) {
	tests := []struct {
		name        string
		claims      int
		op          string
		expectErr   error
		wantStatus  models.DraftStatus
		wantSeatsIn int
	}{
		{name: "start draft mid-derby", claims: 1, op: "start", expectErr: drafterr.ErrInvalidTransition, wantStatus: models.DraftStatusNotStarted, wantSeatsIn: 1},
		{name: "start draft before any claim", claims: 0, op: "start", expectErr: drafterr.ErrInvalidTransition, wantStatus: models.DraftStatusNotStarted, wantSeatsIn: 0},
		{name: "set turn order mid-derby", claims: 2, op: "order", expectErr: drafterr.ErrInvalidTransition, wantStatus: models.DraftStatusNotStarted, wantSeatsIn: 2},
		{name: "start draft after derby", claims: 3, op: "start", wantStatus: models.DraftStatusInProgress, wantSeatsIn: 3},
		{name: "set turn order after derby", claims: 3, op: "order", wantStatus: models.DraftStatusNotStarted, wantSeatsIn: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 3)
			ctx := context.Background()
			ids := h.league.ParticipantIDs()
			drafts := draft.NewApp(h.league.Store, h.league.Store, chesstimer.NewTracker(h.clock), h.recorder, h.clock, draft.Options{})
			h.start(t)
			for i := 0; i < tt.claims; i++ {
				require.NoError(t, h.claim(ids[i], i+1))
			}

			var err error
			switch tt.op {
			case "start":
				_, err = drafts.StartDraft(ctx, h.draft.ID, h.league.Commissioner)
			case "order":
				_, err = drafts.SetTurnOrder(ctx, draft.SetTurnOrderRequest{
					DraftID:        h.draft.ID,
					ParticipantIDs: []uuid.UUID{ids[2], ids[1], ids[0]},
					ActorID:        h.league.Commissioner,
				})
			}
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				require.NoError(t, err)
			}

			d, err := h.league.Store.GetDraft(ctx, h.draft.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, d.Status)
			o, err := h.league.Store.GetTurnOrder(ctx, h.draft.ID)
			require.NoError(t, err)
			assert.Len(t, o, tt.wantSeatsIn)
		})
	}
}

func TestClaimPosition_RefusedOnceDraftRuns(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	ids := h.league.ParticipantIDs()
	h.start(t)

	// Force the draft forward behind the derby's back.
	require.NoError(t, h.league.Store.WithDraftLock(ctx, h.draft.ID, func(tx repository.DraftTx) error {
		d := tx.Draft()
		d.Status = models.DraftStatusInProgress
		return tx.UpdateDraft(ctx, d)
	}))

	err := h.claim(ids[0], 1)
	assert.ErrorIs(t, err, drafterr.ErrInvalidTransition)

	derby, selections, err := h.app.GetDerby(ctx, h.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, derby.CurrentTurn)
	assert.Empty(t, selections)
	o, err := h.league.Store.GetTurnOrder(ctx, h.draft.ID)
	require.NoError(t, err)
	assert.Empty(t, o)
}
