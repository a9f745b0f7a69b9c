// Package derby runs the pre-draft protocol in which participants take turns choosing their
// draft position.
package derby

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/access"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DerbyStore defines what the derby app layer needs from derby storage
type DerbyStore interface {
	GetDerbyByDraft(ctx context.Context, draftID uuid.UUID) (*models.Derby, error)
	ListDerbySelections(ctx context.Context, derbyID uuid.UUID) ([]models.DerbySelection, error)
	WithDerbyLock(ctx context.Context, draftID uuid.UUID, fn func(tx repository.DerbyTx) error) error
}

// DraftStore defines what the derby app layer needs from draft storage
type DraftStore interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	GetTurnOrder(ctx context.Context, draftID uuid.UUID) (models.TurnOrder, error)
	WithDraftLock(ctx context.Context, draftID uuid.UUID, fn func(tx repository.DraftTx) error) error
}

// Directory defines what the derby app layer needs from the league directory
type Directory interface {
	access.Directory
	ListParticipants(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error)
}

// Watcher enforces derby turn deadlines in the background
type Watcher interface {
	Start(draftID uuid.UUID)
	Stop(draftID uuid.UUID)
}

type nopWatcher struct{}

func (nopWatcher) Start(uuid.UUID) {}
func (nopWatcher) Stop(uuid.UUID)  {}

// Shuffler permutes the derby order in place.
type Shuffler func(ids []uuid.UUID)

// RandomShuffle is the default Shuffler.
func RandomShuffle(ids []uuid.UUID) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// App handles derby business logic
type App struct {
	derbies     DerbyStore
	drafts      DraftStore
	directory   Directory
	access      *access.Checker
	notifier    events.Notifier
	watcher     Watcher
	clock       clockwork.Clock
	shuffle     Shuffler
	turnTimeSec int
}

// NewApp creates a new derby App. turnTimeSec of zero disables turn deadlines.
func NewApp(derbies DerbyStore, drafts DraftStore, directory Directory, notifier events.Notifier, clock clockwork.Clock, turnTimeSec int) *App {
	return &App{
		derbies:     derbies,
		drafts:      drafts,
		directory:   directory,
		access:      access.NewChecker(directory),
		notifier:    notifier,
		watcher:     nopWatcher{},
		clock:       clock,
		shuffle:     RandomShuffle,
		turnTimeSec: turnTimeSec,
	}
}

// SetWatcher wires the deadline watcher.
func (a *App) SetWatcher(w Watcher) {
	a.watcher = w
}

// SetShuffler replaces the random derby ordering.
func (a *App) SetShuffler(s Shuffler) {
	a.shuffle = s
}

// StartDerby snapshots a random participant order and opens the first turn. The draft's turn
// order is cleared and rebuilt from the claims. On any error nothing is written.
func (a *App) StartDerby(ctx context.Context, draftID, actorID uuid.UUID) (*models.Derby, error) {
	d, err := a.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, d.LeagueID, actorID); err != nil {
		return nil, err
	}
	if d.Status != models.DraftStatusNotStarted {
		return nil, fmt.Errorf("derby needs a draft that has not started: %w", drafterr.ErrInvalidTransition)
	}
	participants, err := a.directory.ListParticipants(ctx, d.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("league has no participants: %w", drafterr.ErrValidation)
	}

	derbyOrder := make([]uuid.UUID, len(participants))
	for i, p := range participants {
		derbyOrder[i] = p.ID
	}
	a.shuffle(derbyOrder)

	now := a.clock.Now()
	derby := &models.Derby{
		ID:          uuid.New(),
		DraftID:     draftID,
		Status:      models.DerbyStatusInProgress,
		DerbyOrder:  derbyOrder,
		CurrentTurn: 0,
		TurnTimeSec: a.turnTimeSec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	derby.TurnDeadline = a.turnDeadline(now)

	// The derby row and the cleared turn order commit together under the draft lock.
	err = a.drafts.WithDraftLock(ctx, draftID, func(tx repository.DraftTx) error {
		if tx.Draft().Status != models.DraftStatusNotStarted {
			return fmt.Errorf("draft started meanwhile: %w", drafterr.ErrInvalidTransition)
		}
		if err := tx.InsertDerby(ctx, derby); err != nil {
			return err
		}
		return tx.ReplaceTurnOrder(ctx, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start derby: %w", err)
	}

	a.watcher.Start(draftID)

	order := make([]string, len(derbyOrder))
	for i, id := range derbyOrder {
		order[i] = id.String()
	}
	log.Info().
		Str("draft_id", draftID.String()).
		Str("derby_id", derby.ID.String()).
		Int("participants", len(derbyOrder)).
		Msg("derby started")
	a.notifier.Publish(ctx, draftID, events.DerbyStarted, events.DerbyStartedPayload{
		DerbyID:      derby.ID.String(),
		DerbyOrder:   order,
		TurnDeadline: derby.TurnDeadline,
	})
	return derby, nil
}

// GetDerby returns the draft's derby and the positions claimed so far
func (a *App) GetDerby(ctx context.Context, draftID uuid.UUID) (*models.Derby, []models.DerbySelection, error) {
	derby, err := a.derbies.GetDerbyByDraft(ctx, draftID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get derby: %w", err)
	}
	selections, err := a.derbies.ListDerbySelections(ctx, derby.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list derby selections: %w", err)
	}
	return derby, selections, nil
}

// ClaimPosition lets the participant whose derby turn it is take an open draft position
func (a *App) ClaimPosition(ctx context.Context, req ClaimPositionRequest) (*models.DerbySelection, error) {
	d, err := a.drafts.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireParticipant(ctx, d.LeagueID, req.ParticipantID, req.ActorID); err != nil {
		return nil, err
	}

	return a.claim(ctx, req.DraftID, false, func(derby *models.Derby, taken map[int]bool) (uuid.UUID, int, error) {
		current, _ := derby.CurrentParticipant()
		if current != req.ParticipantID {
			return uuid.Nil, 0, fmt.Errorf("participant %s: %w", req.ParticipantID, drafterr.ErrNotYourDerbyTurn)
		}
		if req.Position < 1 || req.Position > len(derby.DerbyOrder) {
			return uuid.Nil, 0, fmt.Errorf("position %d out of range 1..%d: %w", req.Position, len(derby.DerbyOrder), drafterr.ErrValidation)
		}
		if taken[req.Position] {
			return uuid.Nil, 0, fmt.Errorf("position %d: %w", req.Position, drafterr.ErrPositionAlreadyClaimed)
		}
		return current, req.Position, nil
	})
}

// SkipDerbyTurn assigns the lowest open position to the current participant
func (a *App) SkipDerbyTurn(ctx context.Context, draftID, actorID uuid.UUID) (*models.DerbySelection, error) {
	d, err := a.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, d.LeagueID, actorID); err != nil {
		return nil, err
	}
	return a.autoAssign(ctx, draftID, -1)
}

// AutoAssign skips the turn at index expectedTurn after its deadline passed. It fails with
// drafterr.ErrNotYourDerbyTurn if the derby has moved past that turn.
func (a *App) AutoAssign(ctx context.Context, draftID uuid.UUID, expectedTurn int) error {
	_, err := a.autoAssign(ctx, draftID, expectedTurn)
	return err
}

func (a *App) autoAssign(ctx context.Context, draftID uuid.UUID, expectedTurn int) (*models.DerbySelection, error) {
	return a.claim(ctx, draftID, true, func(derby *models.Derby, taken map[int]bool) (uuid.UUID, int, error) {
		if expectedTurn >= 0 && derby.CurrentTurn != expectedTurn {
			return uuid.Nil, 0, fmt.Errorf("turn %d already resolved: %w", expectedTurn, drafterr.ErrNotYourDerbyTurn)
		}
		current, _ := derby.CurrentParticipant()
		for pos := 1; pos <= len(derby.DerbyOrder); pos++ {
			if !taken[pos] {
				return current, pos, nil
			}
		}
		return uuid.Nil, 0, fmt.Errorf("no open positions: %w", drafterr.ErrPositionAlreadyClaimed)
	})
}

// chooser picks the claiming participant and position from the locked derby state.
type chooser func(derby *models.Derby, taken map[int]bool) (uuid.UUID, int, error)

// claim records one selection under the derby lock, mirrors it into the turn order and
// advances the derby.
func (a *App) claim(ctx context.Context, draftID uuid.UUID, isAuto bool, choose chooser) (*models.DerbySelection, error) {
	var (
		sel       models.DerbySelection
		updated   *models.Derby
		completed bool
	)
	now := a.clock.Now()
	err := a.derbies.WithDerbyLock(ctx, draftID, func(tx repository.DerbyTx) error {
		derby := tx.Derby()
		if derby.Status != models.DerbyStatusInProgress {
			return fmt.Errorf("derby is %s: %w", derby.Status, drafterr.ErrDerbyNotInProgress)
		}
		selections, err := tx.Selections(ctx)
		if err != nil {
			return err
		}
		taken := make(map[int]bool, len(selections))
		for _, s := range selections {
			taken[s.DraftPosition] = true
		}

		participantID, position, err := choose(derby, taken)
		if err != nil {
			return err
		}
		sel = models.DerbySelection{
			DerbyID:       derby.ID,
			DraftPosition: position,
			ParticipantID: participantID,
			IsAuto:        isAuto,
			SelectedAt:    now,
		}
		if err := tx.InsertSelection(ctx, sel); err != nil {
			return err
		}
		if err := tx.AssignDraftPosition(ctx, draftID, participantID, position); err != nil {
			return err
		}

		derby.CurrentTurn++
		derby.UpdatedAt = now
		if derby.CurrentTurn >= len(derby.DerbyOrder) {
			derby.Status = models.DerbyStatusCompleted
			derby.TurnDeadline = nil
			completed = true
		} else {
			derby.TurnDeadline = a.turnDeadline(now)
		}
		updated = derby
		return tx.UpdateDerby(ctx, derby)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("draft_id", draftID.String()).
		Str("participant_id", sel.ParticipantID.String()).
		Int("draft_position", sel.DraftPosition).
		Bool("auto", isAuto).
		Msg("derby position claimed")

	payload := events.DerbySelectionPayload{
		DerbyID:       updated.ID.String(),
		ParticipantID: sel.ParticipantID.String(),
		DraftPosition: sel.DraftPosition,
		IsAuto:        isAuto,
		NextTurn:      updated.CurrentTurn,
		TurnDeadline:  updated.TurnDeadline,
	}
	a.notifier.Publish(ctx, draftID, events.DerbySelection, payload)

	if completed {
		a.finish(ctx, draftID, updated)
	}
	return &sel, nil
}

// finish stops the watcher and announces the derby result as the draft's turn order.
func (a *App) finish(ctx context.Context, draftID uuid.UUID, derby *models.Derby) {
	a.watcher.Stop(draftID)
	log.Info().Str("draft_id", draftID.String()).Str("derby_id", derby.ID.String()).Msg("derby completed")
	a.notifier.Publish(ctx, draftID, events.DerbyCompleted, events.DerbyCompletedPayload{
		DerbyID:     derby.ID.String(),
		CompletedAt: derby.UpdatedAt,
	})

	o, err := a.drafts.GetTurnOrder(ctx, draftID)
	if err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to load turn order after derby")
		return
	}
	ids := make([]string, len(o))
	for i, e := range o {
		ids[i] = e.ParticipantID.String()
	}
	a.notifier.Publish(ctx, draftID, events.OrderSet, events.OrderSetPayload{DraftID: draftID.String(), Order: ids})
}

func (a *App) turnDeadline(from time.Time) *time.Time {
	if a.turnTimeSec <= 0 {
		return nil
	}
	deadline := from.Add(time.Duration(a.turnTimeSec) * time.Second)
	return &deadline
}
