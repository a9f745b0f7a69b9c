// Package drafttest builds seeded in-memory leagues and records published events for tests.
package drafttest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/draft/repository/memory"
	"github.com/mcdev12/draftengine/go/internal/draft/turn"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/stretchr/testify/require"
)

// Epoch is the fake clock start used across engine tests.
var Epoch = time.Date(2025, time.August, 30, 18, 0, 0, 0, time.UTC)

// League is a seeded league with its participants and owners.
type League struct {
	Store        *memory.Store
	League       models.League
	Commissioner uuid.UUID
	Participants []models.Participant
	Players      []models.Player
}

var positions = []string{"QB", "RB", "WR", "TE"}

// NewLeague seeds a league with n participants and players ranked 1..players.
func NewLeague(t *testing.T, n, players int) *League {
	t.Helper()
	store := memory.NewStore()
	l := &League{Store: store, Commissioner: uuid.New()}
	l.League = models.League{
		ID:             uuid.New(),
		Name:           "Test League",
		CommissionerID: l.Commissioner,
		Status:         models.LeagueStatusPending,
		Season:         "2025",
		CreatedAt:      Epoch,
		UpdatedAt:      Epoch,
	}
	for i := 0; i < n; i++ {
		l.Participants = append(l.Participants, models.Participant{
			ID:        uuid.New(),
			LeagueID:  l.League.ID,
			OwnerID:   uuid.New(),
			Name:      fmt.Sprintf("Team %d", i+1),
			CreatedAt: Epoch,
		})
	}
	store.AddLeague(l.League, l.Participants...)

	for i := 0; i < players; i++ {
		l.Players = append(l.Players, models.Player{
			ID:       uuid.New(),
			FullName: fmt.Sprintf("Player %d", i+1),
			Position: positions[i%len(positions)],
			Rank:     i + 1,
		})
	}
	store.AddPlayers(l.Players...)
	return l
}

// ParticipantIDs returns participant ids in seeding order.
func (l *League) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(l.Participants))
	for i, p := range l.Participants {
		ids[i] = p.ID
	}
	return ids
}

// Owner returns the owner of participant id.
func (l *League) Owner(id uuid.UUID) uuid.UUID {
	for _, p := range l.Participants {
		if p.ID == id {
			return p.OwnerID
		}
	}
	return uuid.Nil
}

// SeedDraft stores a draft directly with the participants in seeding order.
func (l *League) SeedDraft(t *testing.T, style models.DraftStyle, settings models.DraftSettings) *models.Draft {
	t.Helper()
	ctx := context.Background()
	d := &models.Draft{
		ID:        uuid.New(),
		LeagueID:  l.League.ID,
		Style:     style,
		Status:    models.DraftStatusNotStarted,
		Settings:  settings,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	require.NoError(t, l.Store.CreateDraft(ctx, d))

	o := make(models.TurnOrder, len(l.Participants))
	for i, p := range l.Participants {
		o[i] = models.TurnOrderEntry{
			DraftID:          d.ID,
			ParticipantID:    p.ID,
			DraftPosition:    i + 1,
			TimeRemainingSec: settings.ChessBudgetSec,
		}
	}
	require.NoError(t, l.Store.WithDraftLock(ctx, d.ID, func(tx repository.DraftTx) error {
		return tx.ReplaceTurnOrder(ctx, o)
	}))
	return d
}

// StartSeeded puts a seeded draft in progress on pick 1 with the turn starting at start.
func (l *League) StartSeeded(t *testing.T, draftID uuid.UUID, start time.Time) *models.Draft {
	t.Helper()
	ctx := context.Background()
	var started *models.Draft
	require.NoError(t, l.Store.WithDraftLock(ctx, draftID, func(tx repository.DraftTx) error {
		d := tx.Draft()
		o, err := tx.TurnOrder(ctx)
		if err != nil {
			return err
		}
		d.Status = models.DraftStatusInProgress
		d.StartedAt = &start
		if _, err := turn.Assign(d, o, 1, start); err != nil {
			return err
		}
		started = d
		return tx.UpdateDraft(ctx, d)
	}))
	return started
}

// Event is a published engine event.
type Event struct {
	DraftID uuid.UUID
	Type    string
	Payload any
}

// Recorder is an events.Notifier that keeps everything it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ events.Notifier = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, draftID uuid.UUID, eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{DraftID: draftID, Type: eventType, Payload: payload})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns recorded event types in publish order.
func (r *Recorder) Types() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// MonitorSpy records monitor start and stop calls.
type MonitorSpy struct {
	mu      sync.Mutex
	Started []uuid.UUID
	Stopped []uuid.UUID
}

func (m *MonitorSpy) Start(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = append(m.Started, id)
}

func (m *MonitorSpy) Stop(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stopped = append(m.Stopped, id)
}
