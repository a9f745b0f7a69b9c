package turn

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderOf(ids ...uuid.UUID) models.TurnOrder {
	o := make(models.TurnOrder, len(ids))
	for i, id := range ids {
		o[i] = models.TurnOrderEntry{ParticipantID: id, DraftPosition: i + 1, TimeRemainingSec: 90}
	}
	return o
}

func TestValidateOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tests := []struct {
		name  string
		order models.TurnOrder
		ok    bool
	}{
		{"valid", orderOf(a, b), true},
		{"empty", nil, false},
		{"gap", models.TurnOrder{{ParticipantID: a, DraftPosition: 1}, {ParticipantID: b, DraftPosition: 3}}, false},
		{"duplicate position", models.TurnOrder{{ParticipantID: a, DraftPosition: 1}, {ParticipantID: b, DraftPosition: 1}}, false},
		{"duplicate participant", models.TurnOrder{{ParticipantID: a, DraftPosition: 1}, {ParticipantID: a, DraftPosition: 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrder(tt.order)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, drafterr.ErrInvalidTurnOrder)
		})
	}
}

func TestAssign(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	o := orderOf(a, b, c)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	t.Run("snake second round reverses", func(t *testing.T) {
		d := &models.Draft{Style: models.DraftStyleSnake, Settings: models.DraftSettings{Rounds: 3, TimePerPickSec: 60}}
		holder, err := Assign(d, o, 4, now)
		require.NoError(t, err)
		assert.Equal(t, c, holder.ParticipantID)
		assert.Equal(t, 2, d.CurrentRound)
		assert.Equal(t, now.Add(time.Minute), *d.PickDeadline)
		assert.Equal(t, now, *d.TurnStartedAt)
	})

	t.Run("chess deadline uses holder budget", func(t *testing.T) {
		d := &models.Draft{Style: models.DraftStyleLinear, Settings: models.DraftSettings{Rounds: 1, TimerMode: models.TimerModeChess, ChessBudgetSec: 90}}
		_, err := Assign(d, o, 2, now)
		require.NoError(t, err)
		assert.True(t, d.IsTurnHolder(b))
		assert.Equal(t, now.Add(90*time.Second), *d.PickDeadline)
	})

	t.Run("untimed draft has no deadline", func(t *testing.T) {
		d := &models.Draft{Style: models.DraftStyleLinear, Settings: models.DraftSettings{Rounds: 1}}
		_, err := Assign(d, o, 1, now)
		require.NoError(t, err)
		assert.Nil(t, d.PickDeadline)
	})

	t.Run("missing position", func(t *testing.T) {
		d := &models.Draft{Style: models.DraftStyleLinear, Settings: models.DraftSettings{Rounds: 1}}
		_, err := Assign(d, models.TurnOrder{{ParticipantID: a, DraftPosition: 2}}, 1, now)
		assert.ErrorIs(t, err, drafterr.ErrInvalidTurnOrder)
	})
}

func TestStartedPayload(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	o := orderOf(a, b, c)
	now := time.Now()
	d := &models.Draft{Style: models.DraftStyleSnake, Settings: models.DraftSettings{Rounds: 2, TimePerPickSec: 30}}
	holder, err := Assign(d, o, 5, now)
	require.NoError(t, err)

	p := StartedPayload(d, holder, len(o))
	assert.Equal(t, b.String(), p.ParticipantID)
	assert.Equal(t, 2, p.Round)
	assert.Equal(t, 2, p.Pick)
	assert.Equal(t, 5, p.OverallPick)
	assert.Equal(t, now, p.StartedAt)
}
