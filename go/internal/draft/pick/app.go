// Package pick applies picks to a running draft. Every pick, manual, automatic or skipped,
// goes through the same locked check-and-update.
package pick

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/access"
	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/order"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/draft/turn"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftStore defines what the pick app layer needs from storage
type DraftStore interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.DraftPick, error)
	WithDraftLock(ctx context.Context, draftID uuid.UUID, fn func(tx repository.DraftTx) error) error
}

// Catalog defines what the pick app layer needs from the player pool
type Catalog interface {
	ListAvailablePlayers(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Player, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
}

// CompletionHook runs once a draft reaches completed. Hook errors are logged, the draft stays
// completed.
type CompletionHook interface {
	DraftCompleted(ctx context.Context, draft *models.Draft, picks []models.DraftPick) error
}

// CompletionHookFunc adapts a function to CompletionHook.
type CompletionHookFunc func(ctx context.Context, draft *models.Draft, picks []models.DraftPick) error

func (f CompletionHookFunc) DraftCompleted(ctx context.Context, draft *models.Draft, picks []models.DraftPick) error {
	return f(ctx, draft, picks)
}

// App handles pick business logic
type App struct {
	store    DraftStore
	catalog  Catalog
	access   *access.Checker
	tracker  *chesstimer.Tracker
	strategy Strategy
	notifier events.Notifier
	clock    clockwork.Clock
	hooks    []CompletionHook
}

// NewApp creates a new pick App
func NewApp(store DraftStore, catalog Catalog, directory access.Directory, tracker *chesstimer.Tracker, strategy Strategy, notifier events.Notifier, clock clockwork.Clock) *App {
	return &App{
		store:    store,
		catalog:  catalog,
		access:   access.NewChecker(directory),
		tracker:  tracker,
		strategy: strategy,
		notifier: notifier,
		clock:    clock,
	}
}

// OnCompleted registers hooks run after the final pick commits.
func (a *App) OnCompleted(hooks ...CompletionHook) {
	a.hooks = append(a.hooks, hooks...)
}

// MakePick validates and commits a single pick, then advances or completes the draft
func (a *App) MakePick(ctx context.Context, req MakePickRequest) (*PickResult, error) {
	if err := validateMakePickRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	d, err := a.store.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireParticipant(ctx, d.LeagueID, req.ParticipantID, req.ActorID); err != nil {
		return nil, err
	}
	if _, err := a.catalog.GetPlayer(ctx, req.PlayerID); err != nil {
		if errors.Is(err, drafterr.ErrNotFound) {
			return nil, fmt.Errorf("unknown player %s: %w", req.PlayerID, drafterr.ErrValidation)
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	playerID := req.PlayerID
	return a.apply(ctx, req.DraftID, req.ExpectedPick, func(holder uuid.UUID) (models.DraftPick, error) {
		if holder != req.ParticipantID {
			return models.DraftPick{}, fmt.Errorf("participant %s does not hold the turn: %w", req.ParticipantID, drafterr.ErrNotYourTurn)
		}
		return models.DraftPick{
			ParticipantID: req.ParticipantID,
			PlayerID:      &playerID,
			IsAutoPick:    req.IsAutoPick,
		}, nil
	})
}

// SkipPick records a placeholder pick for the current turn holder and advances the draft.
// Only the commissioner or the engine may skip.
func (a *App) SkipPick(ctx context.Context, req SkipPickRequest) (*PickResult, error) {
	d, err := a.store.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, d.LeagueID, req.ActorID); err != nil {
		return nil, err
	}

	res, err := a.apply(ctx, req.DraftID, req.ExpectedPick, func(holder uuid.UUID) (models.DraftPick, error) {
		return models.DraftPick{
			ParticipantID: holder,
			IsAutoPick:    true,
			IsSkipped:     true,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Warn().
		Str("draft_id", req.DraftID.String()).
		Str("participant_id", res.Pick.ParticipantID.String()).
		Int("overall_pick", res.Pick.OverallPick).
		Str("reason", req.Reason).
		Msg("pick skipped")
	return res, nil
}

// AutoPick drafts for the current turn holder using the strategy, skipping the turn when no
// player is available. expectedPick pins the call to the turn the caller observed.
func (a *App) AutoPick(ctx context.Context, draftID uuid.UUID, expectedPick int) (*PickResult, error) {
	d, err := a.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if d.Status != models.DraftStatusInProgress {
		return nil, fmt.Errorf("draft %s is %s: %w", draftID, d.Status, drafterr.ErrDraftNotInProgress)
	}
	if expectedPick != 0 && d.CurrentPick != expectedPick {
		return nil, fmt.Errorf("pick %d already resolved: %w", expectedPick, drafterr.ErrNotYourTurn)
	}
	if d.CurrentTurnHolder == nil {
		return nil, fmt.Errorf("draft %s has no turn holder: %w", draftID, drafterr.ErrDraftNotInProgress)
	}
	holder := *d.CurrentTurnHolder

	player, err := a.strategy.Select(ctx, d, holder)
	if err != nil {
		return nil, fmt.Errorf("failed to select player: %w", err)
	}
	if player == nil {
		return a.SkipPick(ctx, SkipPickRequest{
			DraftID:      draftID,
			ExpectedPick: d.CurrentPick,
			Reason:       "no players available",
			ActorID:      access.System,
		})
	}
	return a.MakePick(ctx, MakePickRequest{
		DraftID:       draftID,
		ParticipantID: holder,
		PlayerID:      player.ID,
		IsAutoPick:    true,
		ExpectedPick:  d.CurrentPick,
		ActorID:       access.System,
	})
}

// ListAvailablePlayers returns undrafted players, best rank first
func (a *App) ListAvailablePlayers(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Player, error) {
	players, err := a.catalog.ListAvailablePlayers(ctx, draftID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list available players: %w", err)
	}
	return players, nil
}

// apply runs the locked check-and-update shared by every kind of pick. build receives the
// current turn holder and returns the pick to record, or an error to abort without writes.
func (a *App) apply(ctx context.Context, draftID uuid.UUID, expectedPick int, build func(holder uuid.UUID) (models.DraftPick, error)) (*PickResult, error) {
	var (
		res   PickResult
		next  models.TurnOrderEntry
		seats int
		chess bool
	)
	now := a.clock.Now()
	err := a.store.WithDraftLock(ctx, draftID, func(tx repository.DraftTx) error {
		d := tx.Draft()
		if d.Status != models.DraftStatusInProgress {
			return fmt.Errorf("draft %s is %s: %w", draftID, d.Status, drafterr.ErrDraftNotInProgress)
		}
		if expectedPick != 0 && d.CurrentPick != expectedPick {
			return fmt.Errorf("pick %d already resolved, current pick is %d: %w", expectedPick, d.CurrentPick, drafterr.ErrNotYourTurn)
		}
		if d.CurrentTurnHolder == nil {
			return fmt.Errorf("draft %s has no turn holder: %w", draftID, drafterr.ErrDraftNotInProgress)
		}

		pick, err := build(*d.CurrentTurnHolder)
		if err != nil {
			return err
		}
		if pick.PlayerID != nil {
			taken, err := tx.IsPicked(ctx, *pick.PlayerID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("player %s: %w", pick.PlayerID, drafterr.ErrItemAlreadyPicked)
			}
		}

		o, err := tx.TurnOrder(ctx)
		if err != nil {
			return err
		}
		slot, err := order.Position(d.CurrentPick, len(o), d.Style, d.Settings.ThirdRoundReversal)
		if err != nil {
			return fmt.Errorf("failed to compute slot: %w", err)
		}

		elapsed := turn.Elapsed(d, a.tracker, now)
		if d.Settings.IsChess() {
			if o, err = chargeHolder(ctx, tx, o, pick.ParticipantID, elapsed); err != nil {
				return err
			}
		}

		pick.ID = uuid.New()
		pick.DraftID = d.ID
		pick.Round = slot.Round
		pick.Pick = slot.PickInRound
		pick.OverallPick = d.CurrentPick
		pick.TimeSpentSec = elapsed
		pick.PickedAt = now
		if err := tx.InsertPick(ctx, pick); err != nil {
			return err
		}

		d.UpdatedAt = now
		if d.CurrentPick+1 > turn.TotalPicks(d, o) {
			turn.Complete(d, now)
			res.Completed = true
		} else if next, err = turn.Assign(d, o, d.CurrentPick+1, now); err != nil {
			return err
		}
		if err := tx.UpdateDraft(ctx, d); err != nil {
			return err
		}

		res.Pick, res.Draft = pick, d
		seats, chess = len(o), d.Settings.IsChess()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if chess {
		if res.Completed {
			a.tracker.Clear(draftID)
		} else {
			a.tracker.Start(draftID, res.Draft.CurrentPick, now)
		}
	}

	a.publishPick(ctx, res.Pick)
	if res.Completed {
		a.complete(ctx, res.Draft)
	} else {
		a.notifier.Publish(ctx, draftID, events.PickStarted, turn.StartedPayload(res.Draft, next, seats))
	}
	return &res, nil
}

// chargeHolder deducts elapsed seconds from the holder's budget and returns the updated order.
func chargeHolder(ctx context.Context, tx repository.DraftTx, o models.TurnOrder, holder uuid.UUID, elapsed int) (models.TurnOrder, error) {
	for i, e := range o {
		if e.ParticipantID != holder {
			continue
		}
		chesstimer.Charge(&e, elapsed)
		if err := tx.UpdateTurnOrderEntry(ctx, e); err != nil {
			return nil, err
		}
		o[i] = e
		return o, nil
	}
	return nil, fmt.Errorf("turn holder %s not in turn order: %w", holder, drafterr.ErrInvalidTurnOrder)
}

func (a *App) publishPick(ctx context.Context, p models.DraftPick) {
	payload := events.PickMadePayload{
		PickID:        p.ID.String(),
		ParticipantID: p.ParticipantID.String(),
		Round:         p.Round,
		Pick:          p.Pick,
		OverallPick:   p.OverallPick,
		IsAutoPick:    p.IsAutoPick,
		IsSkipped:     p.IsSkipped,
		TimeSpentSec:  p.TimeSpentSec,
		MadeAt:        p.PickedAt,
	}
	if p.PlayerID != nil {
		payload.PlayerID = p.PlayerID.String()
	}

	log.Info().
		Str("draft_id", p.DraftID.String()).
		Str("participant_id", p.ParticipantID.String()).
		Str("player_id", payload.PlayerID).
		Int("overall_pick", p.OverallPick).
		Bool("auto", p.IsAutoPick).
		Msg("pick made")
	a.notifier.Publish(ctx, p.DraftID, events.PickMade, payload)
}

// complete publishes DraftCompleted and runs the completion hooks.
func (a *App) complete(ctx context.Context, d *models.Draft) {
	picks, err := a.store.ListPicks(ctx, d.ID)
	if err != nil {
		log.Error().Err(err).Str("draft_id", d.ID.String()).Msg("failed to list picks for completed draft")
	}

	var duration time.Duration
	if d.StartedAt != nil && d.CompletedAt != nil {
		duration = d.CompletedAt.Sub(*d.StartedAt)
	}
	log.Info().
		Str("draft_id", d.ID.String()).
		Int("total_picks", len(picks)).
		Dur("duration", duration).
		Msg("draft completed")
	a.notifier.Publish(ctx, d.ID, events.DraftCompleted, events.DraftCompletedPayload{
		DraftID:     d.ID.String(),
		CompletedAt: *d.CompletedAt,
		Duration:    duration.String(),
		TotalPicks:  len(picks),
	})

	for _, h := range a.hooks {
		if err := h.DraftCompleted(ctx, d, picks); err != nil {
			log.Error().Err(err).Str("draft_id", d.ID.String()).Msg("draft completion hook failed")
		}
	}
}

// validateMakePickRequest validates make pick request
func validateMakePickRequest(req MakePickRequest) error {
	if req.DraftID == uuid.Nil {
		return fmt.Errorf("draft_id is required: %w", drafterr.ErrValidation)
	}
	if req.ParticipantID == uuid.Nil {
		return fmt.Errorf("participant_id is required: %w", drafterr.ErrValidation)
	}
	if req.PlayerID == uuid.Nil {
		return fmt.Errorf("player_id is required: %w", drafterr.ErrValidation)
	}
	if req.ExpectedPick < 0 {
		return fmt.Errorf("expected_pick cannot be negative: %w", drafterr.ErrValidation)
	}
	return nil
}
