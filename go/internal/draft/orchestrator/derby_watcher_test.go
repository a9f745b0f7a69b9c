package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/drafttest"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDerbies struct {
	derby  *models.Derby
	err    error
	active []uuid.UUID
}

func (s *stubDerbies) GetDerbyByDraft(context.Context, uuid.UUID) (*models.Derby, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.derby.Clone(), nil
}

func (s *stubDerbies) ListDraftIDsWithActiveDerby(context.Context) ([]uuid.UUID, error) {
	return s.active, nil
}

type stubAssigner struct {
	err   error
	turns []int
}

func (a *stubAssigner) AutoAssign(_ context.Context, _ uuid.UUID, expectedTurn int) error {
	a.turns = append(a.turns, expectedTurn)
	return a.err
}

func TestDerbyWatcherTick(t *testing.T) {
	clock := clockwork.NewFakeClockAt(drafttest.Epoch)
	past := drafttest.Epoch.Add(-time.Second)
	future := drafttest.Epoch.Add(time.Minute)

	tests := []struct {
		name        string
		derby       *models.Derby
		readErr     error
		assignErr   error
		wantDone    bool
		wantErr     bool
		wantAssigns []int
	}{
		{
			name:  "deadline not reached",
			derby: &models.Derby{Status: models.DerbyStatusInProgress, CurrentTurn: 1, TurnDeadline: &future},
		},
		{
			name:  "untimed turn",
			derby: &models.Derby{Status: models.DerbyStatusInProgress, CurrentTurn: 1},
		},
		{
			name:        "expired turn is assigned",
			derby:       &models.Derby{Status: models.DerbyStatusInProgress, CurrentTurn: 2, TurnDeadline: &past},
			wantAssigns: []int{2},
		},
		{
			name:        "claimed meanwhile",
			derby:       &models.Derby{Status: models.DerbyStatusInProgress, CurrentTurn: 2, TurnDeadline: &past},
			assignErr:   drafterr.ErrNotYourDerbyTurn,
			wantAssigns: []int{2},
		},
		{
			name:        "lock busy",
			derby:       &models.Derby{Status: models.DerbyStatusInProgress, CurrentTurn: 0, TurnDeadline: &past},
			assignErr:   drafterr.ErrConcurrentModification,
			wantAssigns: []int{0},
		},
		{
			name:        "derby ended meanwhile",
			derby:       &models.Derby{Status: models.DerbyStatusInProgress, CurrentTurn: 3, TurnDeadline: &past},
			assignErr:   drafterr.ErrDerbyNotInProgress,
			wantDone:    true,
			wantAssigns: []int{3},
		},
		{
			name:        "assign failure keeps watching",
			derby:       &models.Derby{Status: models.DerbyStatusInProgress, CurrentTurn: 1, TurnDeadline: &past},
			assignErr:   errors.New("boom"),
			wantErr:     true,
			wantAssigns: []int{1},
		},
		{
			name:     "completed derby",
			derby:    &models.Derby{Status: models.DerbyStatusCompleted},
			wantDone: true,
		},
		{
			name:     "derby gone",
			readErr:  drafterr.ErrNotFound,
			wantDone: true,
			wantErr:  true,
		},
		{
			name:    "read failure",
			readErr: errors.New("connection reset"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assigner := &stubAssigner{err: tt.assignErr}
			w := NewDerbyWatcher(&stubDerbies{derby: tt.derby, err: tt.readErr}, clock, time.Second)
			w.SetAssigner(assigner)

			done, err := w.tick(context.Background(), uuid.New())
			assert.Equal(t, tt.wantDone, done)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAssigns, assigner.turns)
		})
	}
}

func TestDerbyWatcher_Recover(t *testing.T) {
	clock := clockwork.NewFakeClockAt(drafttest.Epoch)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	derbies := &stubDerbies{
		derby:  &models.Derby{Status: models.DerbyStatusInProgress},
		active: ids,
	}
	w := NewDerbyWatcher(derbies, clock, time.Second)
	w.SetAssigner(&stubAssigner{})

	n, err := w.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, id := range ids {
		assert.True(t, w.Running(id))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	for _, id := range ids {
		assert.False(t, w.Running(id))
	}
}
