// Package draft owns the draft state machine: not_started -> in_progress <-> paused -> completed.
package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/access"
	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/draft/turn"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftStore defines what the draft app layer needs from storage
type DraftStore interface {
	CreateDraft(ctx context.Context, draft *models.Draft) error
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	GetTurnOrder(ctx context.Context, draftID uuid.UUID) (models.TurnOrder, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.DraftPick, error)
	WithDraftLock(ctx context.Context, draftID uuid.UUID, fn func(tx repository.DraftTx) error) error
}

// Directory defines what the draft app layer needs from the league directory
type Directory interface {
	access.Directory
	ListParticipants(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error)
}

// Monitor is the per-draft background loop the state machine starts and stops
type Monitor interface {
	Start(draftID uuid.UUID)
	Stop(draftID uuid.UUID)
}

type nopMonitor struct{}

func (nopMonitor) Start(uuid.UUID) {}
func (nopMonitor) Stop(uuid.UUID)  {}

// Options tunes timing behaviour.
type Options struct {
	// ChessResumeBuffer delays the turn holder's clock after a resume.
	ChessResumeBuffer time.Duration
}

// App handles draft business logic
type App struct {
	store     DraftStore
	directory Directory
	access    *access.Checker
	tracker   *chesstimer.Tracker
	notifier  events.Notifier
	monitor   Monitor
	clock     clockwork.Clock
	opts      Options
}

// NewApp creates a new draft App
func NewApp(store DraftStore, directory Directory, tracker *chesstimer.Tracker, notifier events.Notifier, clock clockwork.Clock, opts Options) *App {
	return &App{
		store:     store,
		directory: directory,
		access:    access.NewChecker(directory),
		tracker:   tracker,
		notifier:  notifier,
		monitor:   nopMonitor{},
		clock:     clock,
		opts:      opts,
	}
}

// SetMonitor wires the auto-pick monitor. It is set after construction because the monitor
// itself depends on the pick application.
func (a *App) SetMonitor(m Monitor) {
	a.monitor = m
}

// CreateDraft creates a new draft with validation
func (a *App) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error) {
	if err := validateCreateDraftRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, req.LeagueID, req.ActorID); err != nil {
		return nil, err
	}

	now := a.clock.Now()
	d := &models.Draft{
		ID:        uuid.New(),
		LeagueID:  req.LeagueID,
		Style:     req.Style,
		Status:    models.DraftStatusNotStarted,
		Settings:  req.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.Settings.TimerMode == "" {
		d.Settings.TimerMode = models.TimerModeTraditional
	}
	if err := a.store.CreateDraft(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	log.Info().
		Str("draft_id", d.ID.String()).
		Str("league_id", d.LeagueID.String()).
		Str("style", string(d.Style)).
		Msg("draft created")
	return d, nil
}

// GetDraft retrieves a draft by ID
func (a *App) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	d, err := a.store.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return d, nil
}

// GetTurnOrder returns the draft's turn order by position
func (a *App) GetTurnOrder(ctx context.Context, id uuid.UUID) (models.TurnOrder, error) {
	o, err := a.store.GetTurnOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get turn order: %w", err)
	}
	return o, nil
}

// ListPicks returns the draft's picks ordered by pick number
func (a *App) ListPicks(ctx context.Context, id uuid.UUID) ([]models.DraftPick, error) {
	picks, err := a.store.ListPicks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return picks, nil
}

// SetTurnOrder replaces the turn order of a draft that has not started
func (a *App) SetTurnOrder(ctx context.Context, req SetTurnOrderRequest) (models.TurnOrder, error) {
	d, err := a.store.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, d.LeagueID, req.ActorID); err != nil {
		return nil, err
	}
	members, err := a.directory.ListParticipants(ctx, d.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	inLeague := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		inLeague[m.ID] = true
	}

	o := make(models.TurnOrder, len(req.ParticipantIDs))
	for i, id := range req.ParticipantIDs {
		if !inLeague[id] {
			return nil, fmt.Errorf("participant %s is not in league: %w", id, drafterr.ErrInvalidTurnOrder)
		}
		o[i] = models.TurnOrderEntry{
			DraftID:          d.ID,
			ParticipantID:    id,
			DraftPosition:    i + 1,
			TimeRemainingSec: d.Settings.ChessBudgetSec,
		}
	}
	if err := turn.ValidateOrder(o); err != nil {
		return nil, err
	}

	err = a.store.WithDraftLock(ctx, req.DraftID, func(tx repository.DraftTx) error {
		if tx.Draft().Status != models.DraftStatusNotStarted {
			return fmt.Errorf("turn order is fixed once the draft starts: %w", drafterr.ErrInvalidTransition)
		}
		if err := requireNoActiveDerby(ctx, tx); err != nil {
			return err
		}
		return tx.ReplaceTurnOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(o))
	for i, e := range o {
		ids[i] = e.ParticipantID.String()
	}
	a.notifier.Publish(ctx, d.ID, events.OrderSet, events.OrderSetPayload{DraftID: d.ID.String(), Order: ids})
	return o, nil
}

// StartDraft moves a draft from not_started to in_progress and opens pick 1
func (a *App) StartDraft(ctx context.Context, draftID, actorID uuid.UUID) (*models.Draft, error) {
	d, err := a.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, d.LeagueID, actorID); err != nil {
		return nil, err
	}
	if d.Style.IsAuction() {
		return nil, fmt.Errorf("%s drafts: %w", d.Style, drafterr.ErrUnsupportedStyle)
	}

	var (
		started *models.Draft
		holder  models.TurnOrderEntry
		seats   int
		total   int
	)
	now := a.clock.Now()
	err = a.store.WithDraftLock(ctx, draftID, func(tx repository.DraftTx) error {
		locked := tx.Draft()
		if locked.Status != models.DraftStatusNotStarted {
			return fmt.Errorf("cannot start a %s draft: %w", locked.Status, drafterr.ErrInvalidTransition)
		}
		if err := requireNoActiveDerby(ctx, tx); err != nil {
			return err
		}
		o, err := tx.TurnOrder(ctx)
		if err != nil {
			return err
		}
		if err := turn.ValidateOrder(o); err != nil {
			return err
		}
		if locked.Settings.IsChess() {
			if o, err = a.seedBudgets(ctx, tx, locked, o); err != nil {
				return err
			}
		}

		locked.Status = models.DraftStatusInProgress
		locked.StartedAt = &now
		locked.UpdatedAt = now
		if holder, err = turn.Assign(locked, o, 1, now); err != nil {
			return err
		}
		if err := tx.UpdateDraft(ctx, locked); err != nil {
			return err
		}
		started, seats, total = locked, len(o), turn.TotalPicks(locked, o)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if started.Settings.IsChess() {
		a.tracker.Start(draftID, started.CurrentPick, now)
	}
	a.monitor.Start(draftID)

	log.Info().
		Str("draft_id", draftID.String()).
		Int("participants", seats).
		Int("total_picks", total).
		Msg("draft started")

	a.notifier.Publish(ctx, draftID, events.DraftStarted, events.DraftStartedPayload{
		DraftID:     draftID.String(),
		Style:       string(started.Style),
		StartedAt:   now,
		TotalRounds: started.Settings.Rounds,
		TotalPicks:  total,
	})
	a.notifier.Publish(ctx, draftID, events.PickStarted, turn.StartedPayload(started, holder, seats))
	return started, nil
}

// requireNoActiveDerby rejects changes to the turn order while a derby is still filling it.
func requireNoActiveDerby(ctx context.Context, tx repository.DraftTx) error {
	active, err := tx.ActiveDerby(ctx)
	if err != nil {
		return err
	}
	if active {
		return fmt.Errorf("derby is still choosing positions: %w", drafterr.ErrInvalidTransition)
	}
	return nil
}

// seedBudgets gives every participant without a budget the draft's chess allowance.
// Positions claimed through a derby arrive without one.
func (a *App) seedBudgets(ctx context.Context, tx repository.DraftTx, d *models.Draft, o models.TurnOrder) (models.TurnOrder, error) {
	for i, e := range o {
		if e.TimeRemainingSec != 0 || e.TimeUsedSec != 0 {
			continue
		}
		e.TimeRemainingSec = d.Settings.ChessBudgetSec
		if err := tx.UpdateTurnOrderEntry(ctx, e); err != nil {
			return nil, err
		}
		o[i] = e
	}
	return o, nil
}

// PauseDraft stops the clock. In chess mode the turn holder is charged for time used so far.
func (a *App) PauseDraft(ctx context.Context, draftID, actorID uuid.UUID) (*models.Draft, error) {
	d, err := a.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, d.LeagueID, actorID); err != nil {
		return nil, err
	}

	var paused *models.Draft
	now := a.clock.Now()
	err = a.store.WithDraftLock(ctx, draftID, func(tx repository.DraftTx) error {
		locked := tx.Draft()
		if locked.Status != models.DraftStatusInProgress {
			return fmt.Errorf("cannot pause a %s draft: %w", locked.Status, drafterr.ErrInvalidTransition)
		}
		if locked.Settings.IsChess() && locked.CurrentTurnHolder != nil {
			if err := a.chargeHolder(ctx, tx, locked, now); err != nil {
				return err
			}
		}
		locked.Status = models.DraftStatusPaused
		locked.PickDeadline = nil
		locked.TurnStartedAt = nil
		locked.UpdatedAt = now
		if err := tx.UpdateDraft(ctx, locked); err != nil {
			return err
		}
		paused = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.tracker.Clear(draftID)
	a.monitor.Stop(draftID)

	log.Info().Str("draft_id", draftID.String()).Str("paused_by", actorID.String()).Msg("draft paused")
	a.notifier.Publish(ctx, draftID, events.DraftPaused, events.DraftPausedPayload{
		DraftID:  draftID.String(),
		PausedAt: now,
		PausedBy: actorID.String(),
	})
	return paused, nil
}

// chargeHolder deducts the current turn's elapsed time from the holder's budget.
func (a *App) chargeHolder(ctx context.Context, tx repository.DraftTx, d *models.Draft, now time.Time) error {
	o, err := tx.TurnOrder(ctx)
	if err != nil {
		return err
	}
	entry, ok := o.Entry(*d.CurrentTurnHolder)
	if !ok {
		return fmt.Errorf("turn holder %s not in turn order: %w", d.CurrentTurnHolder, drafterr.ErrInvalidTurnOrder)
	}
	chesstimer.Charge(&entry, turn.Elapsed(d, a.tracker, now))
	return tx.UpdateTurnOrderEntry(ctx, entry)
}

// ResumeDraft restarts the clock for the same turn holder. Traditional drafts get a fresh pick
// timer; chess drafts get a short grace period before the holder's budget resumes draining.
func (a *App) ResumeDraft(ctx context.Context, draftID, actorID uuid.UUID) (*models.Draft, error) {
	d, err := a.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, d.LeagueID, actorID); err != nil {
		return nil, err
	}

	var (
		resumed *models.Draft
		holder  models.TurnOrderEntry
		seats   int
	)
	now := a.clock.Now()
	err = a.store.WithDraftLock(ctx, draftID, func(tx repository.DraftTx) error {
		locked := tx.Draft()
		if locked.Status != models.DraftStatusPaused {
			return fmt.Errorf("cannot resume a %s draft: %w", locked.Status, drafterr.ErrInvalidTransition)
		}
		o, err := tx.TurnOrder(ctx)
		if err != nil {
			return err
		}

		start := now
		if locked.Settings.IsChess() {
			start = now.Add(a.opts.ChessResumeBuffer)
		}
		locked.Status = models.DraftStatusInProgress
		locked.UpdatedAt = now
		if holder, err = turn.Assign(locked, o, locked.CurrentPick, start); err != nil {
			return err
		}
		if err := tx.UpdateDraft(ctx, locked); err != nil {
			return err
		}
		resumed, seats = locked, len(o)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resumed.Settings.IsChess() {
		a.tracker.Start(draftID, resumed.CurrentPick, *resumed.TurnStartedAt)
	}
	a.monitor.Start(draftID)

	log.Info().Str("draft_id", draftID.String()).Int("current_pick", resumed.CurrentPick).Msg("draft resumed")
	a.notifier.Publish(ctx, draftID, events.DraftResumed, events.DraftResumedPayload{
		DraftID:   draftID.String(),
		ResumedAt: now,
		Deadline:  resumed.PickDeadline,
	})
	a.notifier.Publish(ctx, draftID, events.PickStarted, turn.StartedPayload(resumed, holder, seats))
	return resumed, nil
}

// SetAutodraft lets a participant (or the commissioner) toggle automatic picking
func (a *App) SetAutodraft(ctx context.Context, req SetAutodraftRequest) (*models.TurnOrderEntry, error) {
	d, err := a.store.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireParticipant(ctx, d.LeagueID, req.ParticipantID, req.ActorID); err != nil {
		return nil, err
	}
	return a.setAutodraft(ctx, req.DraftID, req.ParticipantID, req.Enabled, false)
}

// ForceAutodraft turns autodraft on after a missed deadline so later turns resolve at once
func (a *App) ForceAutodraft(ctx context.Context, draftID, participantID uuid.UUID) error {
	_, err := a.setAutodraft(ctx, draftID, participantID, true, true)
	return err
}

func (a *App) setAutodraft(ctx context.Context, draftID, participantID uuid.UUID, enabled, forced bool) (*models.TurnOrderEntry, error) {
	var (
		updated models.TurnOrderEntry
		changed bool
	)
	err := a.store.WithDraftLock(ctx, draftID, func(tx repository.DraftTx) error {
		if tx.Draft().Status == models.DraftStatusCompleted {
			return fmt.Errorf("draft is completed: %w", drafterr.ErrInvalidTransition)
		}
		o, err := tx.TurnOrder(ctx)
		if err != nil {
			return err
		}
		entry, ok := o.Entry(participantID)
		if !ok {
			return fmt.Errorf("participant %s not in turn order: %w", participantID, drafterr.ErrNotFound)
		}
		updated = entry
		if entry.IsAutodrafting == enabled {
			return nil
		}
		updated.IsAutodrafting = enabled
		changed = true
		return tx.UpdateTurnOrderEntry(ctx, updated)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log.Info().
			Str("draft_id", draftID.String()).
			Str("participant_id", participantID.String()).
			Bool("enabled", enabled).
			Bool("forced", forced).
			Msg("autodraft toggled")
		a.notifier.Publish(ctx, draftID, events.AutodraftToggled, events.AutodraftToggledPayload{
			ParticipantID:  participantID.String(),
			IsAutodrafting: enabled,
			Forced:         forced,
		})
	}
	return &updated, nil
}

// AdjustTime adds or removes seconds from a participant's chess budget, never below zero
func (a *App) AdjustTime(ctx context.Context, req AdjustTimeRequest) (*models.TurnOrderEntry, error) {
	d, err := a.store.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := a.access.RequireCommissioner(ctx, d.LeagueID, req.ActorID); err != nil {
		return nil, err
	}
	if !d.Settings.IsChess() {
		return nil, fmt.Errorf("time adjustments need a chess timer: %w", drafterr.ErrValidation)
	}

	var updated models.TurnOrderEntry
	err = a.store.WithDraftLock(ctx, req.DraftID, func(tx repository.DraftTx) error {
		locked := tx.Draft()
		if locked.Status == models.DraftStatusCompleted {
			return fmt.Errorf("draft is completed: %w", drafterr.ErrInvalidTransition)
		}
		o, err := tx.TurnOrder(ctx)
		if err != nil {
			return err
		}
		entry, ok := o.Entry(req.ParticipantID)
		if !ok {
			return fmt.Errorf("participant %s not in turn order: %w", req.ParticipantID, drafterr.ErrNotFound)
		}
		chesstimer.Adjust(&entry, req.DeltaSec)
		if err := tx.UpdateTurnOrderEntry(ctx, entry); err != nil {
			return err
		}
		updated = entry

		// keep the informational deadline in step with the holder's new budget
		if locked.Status == models.DraftStatusInProgress && locked.IsTurnHolder(entry.ParticipantID) && locked.TurnStartedAt != nil {
			locked.PickDeadline = turn.Deadline(locked, entry, *locked.TurnStartedAt)
			locked.UpdatedAt = a.clock.Now()
			return tx.UpdateDraft(ctx, locked)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("draft_id", req.DraftID.String()).
		Str("participant_id", req.ParticipantID.String()).
		Int("delta_sec", req.DeltaSec).
		Int("time_remaining_sec", updated.TimeRemainingSec).
		Msg("time budget adjusted")
	a.notifier.Publish(ctx, req.DraftID, events.TimeAdjusted, events.TimeAdjustedPayload{
		ParticipantID:    req.ParticipantID.String(),
		DeltaSec:         req.DeltaSec,
		TimeRemainingSec: updated.TimeRemainingSec,
	})
	return &updated, nil
}

// GetTimeBudgets reports every participant's chess budget, live for the turn holder
func (a *App) GetTimeBudgets(ctx context.Context, draftID uuid.UUID) ([]chesstimer.Budget, error) {
	d, err := a.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	o, err := a.store.GetTurnOrder(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turn order: %w", err)
	}
	return a.tracker.Budgets(d, o), nil
}

// validateCreateDraftRequest validates create draft request
func validateCreateDraftRequest(req CreateDraftRequest) error {
	if req.LeagueID == uuid.Nil {
		return fmt.Errorf("league_id is required: %w", drafterr.ErrValidation)
	}
	switch req.Style {
	case models.DraftStyleLinear, models.DraftStyleSnake, models.DraftStyleAuction, models.DraftStyleSlowAuction:
	default:
		return fmt.Errorf("invalid draft style %q: %w", req.Style, drafterr.ErrValidation)
	}
	s := req.Settings
	if s.Rounds <= 0 {
		return fmt.Errorf("rounds must be greater than 0: %w", drafterr.ErrValidation)
	}
	if s.TimePerPickSec < 0 {
		return fmt.Errorf("time_per_pick_sec cannot be negative: %w", drafterr.ErrValidation)
	}
	switch s.TimerMode {
	case "", models.TimerModeTraditional:
	case models.TimerModeChess:
		if s.ChessBudgetSec <= 0 {
			return fmt.Errorf("chess_budget_sec must be greater than 0 in chess mode: %w", drafterr.ErrValidation)
		}
	default:
		return fmt.Errorf("invalid timer mode %q: %w", s.TimerMode, drafterr.ErrValidation)
	}
	if s.ThirdRoundReversal && req.Style != models.DraftStyleSnake {
		return fmt.Errorf("third_round_reversal only applies to snake drafts: %w", drafterr.ErrValidation)
	}
	return nil
}
