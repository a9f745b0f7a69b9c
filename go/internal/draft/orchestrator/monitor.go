// Package orchestrator runs the per-draft background loops: the auto-pick monitor that
// resolves expired and autodrafting turns, and the derby watcher that enforces derby deadlines.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/audit"
	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/pick"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftReader defines what the monitor needs from the draft store
type DraftReader interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	GetTurnOrder(ctx context.Context, draftID uuid.UUID) (models.TurnOrder, error)
	ListDraftIDsByStatus(ctx context.Context, status models.DraftStatus) ([]uuid.UUID, error)
}

// AutoPicker forces a pick for the current turn holder of a draft
type AutoPicker interface {
	AutoPick(ctx context.Context, draftID uuid.UUID, expectedPick int) (*pick.PickResult, error)
}

// Autodrafter switches a participant to autodraft after a missed deadline
type Autodrafter interface {
	ForceAutodraft(ctx context.Context, draftID, participantID uuid.UUID) error
}

// AuditSink receives permanent failures
type AuditSink interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Monitor polls every running draft and forces picks for expired or autodrafting turns.
type Monitor struct {
	drafts    DraftReader
	picker    AutoPicker
	autodraft Autodrafter
	tracker   *chesstimer.Tracker
	notifier  events.Notifier
	audit     AuditSink
	clock     clockwork.Clock
	interval  time.Duration
	retry     RetryPolicy
	registry  *Registry
}

// MonitorConfig holds the monitor's collaborators and timing.
type MonitorConfig struct {
	Drafts      DraftReader
	Picker      AutoPicker
	Autodrafter Autodrafter
	Tracker     *chesstimer.Tracker
	Notifier    events.Notifier
	Audit       AuditSink
	Clock       clockwork.Clock
	Interval    time.Duration
	Retry       RetryPolicy
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Retry.Clock == nil {
		cfg.Retry.Clock = cfg.Clock
	}
	return &Monitor{
		drafts:    cfg.Drafts,
		picker:    cfg.Picker,
		autodraft: cfg.Autodrafter,
		tracker:   cfg.Tracker,
		notifier:  cfg.Notifier,
		audit:     cfg.Audit,
		clock:     cfg.Clock,
		interval:  cfg.Interval,
		retry:     cfg.Retry,
		registry:  NewRegistry("auto-pick monitor"),
	}
}

// Start begins polling a draft, replacing any loop already running for it.
func (m *Monitor) Start(draftID uuid.UUID) {
	m.registry.Start(draftID, func(ctx context.Context) {
		m.run(ctx, draftID)
	})
	log.Info().Str("draft_id", draftID.String()).Dur("interval", m.interval).Msg("auto-pick monitor started")
}

// Stop cancels a draft's loop. It does not wait, so the loop itself may call it.
func (m *Monitor) Stop(draftID uuid.UUID) {
	m.registry.Stop(draftID)
}

// Running reports whether the draft is being monitored.
func (m *Monitor) Running(draftID uuid.UUID) bool {
	return m.registry.Running(draftID)
}

// DraftCompleted stops monitoring a finished draft.
func (m *Monitor) DraftCompleted(_ context.Context, d *models.Draft, _ []models.DraftPick) error {
	m.Stop(d.ID)
	return nil
}

// Shutdown cancels every loop and waits for them to drain.
func (m *Monitor) Shutdown(ctx context.Context) error {
	return m.registry.Shutdown(ctx)
}

// Recover starts monitoring every in-progress draft after a restart. Chess drafts have their
// turn clock re-armed from the persisted turn start.
func (m *Monitor) Recover(ctx context.Context) (int, error) {
	ids, err := m.drafts.ListDraftIDsByStatus(ctx, models.DraftStatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("failed to list in-progress drafts: %w", err)
	}
	for _, id := range ids {
		d, err := m.drafts.GetDraft(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("draft_id", id.String()).Msg("failed to load draft for recovery")
			continue
		}
		if d.Settings.IsChess() && d.TurnStartedAt != nil {
			m.tracker.Restore(id, d.CurrentPick, *d.TurnStartedAt)
		}
		m.Start(id)
	}
	log.Info().Int("drafts", len(ids)).Msg("recovered auto-pick monitors")
	return len(ids), nil
}

// loopState is carried between ticks of one draft's loop.
type loopState struct {
	// failedPick is the pick number whose forced pick exhausted its retries. It is not
	// retried until the draft moves on.
	failedPick int
}

func (m *Monitor) run(ctx context.Context, draftID uuid.UUID) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	var st loopState
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("draft_id", draftID.String()).Msg("auto-pick monitor cancelled")
			return
		case <-ticker.Chan():
		}

		done, err := m.tick(ctx, draftID, &st)
		if err != nil {
			log.Error().Err(err).Str("draft_id", draftID.String()).Msg("auto-pick monitor tick failed")
		}
		if done {
			log.Info().Str("draft_id", draftID.String()).Msg("auto-pick monitor stopped")
			return
		}
	}
}

// tick checks the draft once. It returns true when the loop should end.
func (m *Monitor) tick(ctx context.Context, draftID uuid.UUID, st *loopState) (bool, error) {
	d, err := m.drafts.GetDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, drafterr.ErrNotFound) {
			return true, err
		}
		return false, fmt.Errorf("failed to get draft: %w", err)
	}
	if d.Status != models.DraftStatusInProgress {
		return true, nil
	}
	if d.CurrentTurnHolder == nil || st.failedPick == d.CurrentPick {
		return false, nil
	}

	o, err := m.drafts.GetTurnOrder(ctx, draftID)
	if err != nil {
		return false, fmt.Errorf("failed to get turn order: %w", err)
	}
	holder, ok := o.Entry(*d.CurrentTurnHolder)
	if !ok {
		return false, fmt.Errorf("turn holder %s not in turn order: %w", d.CurrentTurnHolder, drafterr.ErrInvalidTurnOrder)
	}

	now := m.clock.Now()
	remaining, timed := m.remaining(d, holder, now)
	if timed {
		m.notifier.Publish(ctx, draftID, events.TimerTick, events.TimerTickPayload{
			ParticipantID:    holder.ParticipantID.String(),
			OverallPick:      d.CurrentPick,
			TimeRemainingSec: remaining,
			TickedAt:         now,
		})
	}

	switch {
	case holder.IsAutodrafting:
		return m.force(ctx, d, holder, "autodraft", st)
	case timed && remaining <= 0:
		if err := m.autodraft.ForceAutodraft(ctx, draftID, holder.ParticipantID); err != nil {
			log.Error().Err(err).Str("draft_id", draftID.String()).Str("participant_id", holder.ParticipantID.String()).Msg("failed to force autodraft")
		}
		return m.force(ctx, d, holder, "deadline", st)
	}
	return false, nil
}

// remaining is the holder's whole seconds left and whether the turn is timed at all.
func (m *Monitor) remaining(d *models.Draft, holder models.TurnOrderEntry, now time.Time) (int, bool) {
	if d.Settings.IsChess() {
		return m.tracker.LiveRemaining(d, holder), true
	}
	if d.PickDeadline == nil {
		return 0, false
	}
	if !now.Before(*d.PickDeadline) {
		return 0, true
	}
	// round up so a turn with 0.4s left still reports 1
	return int((d.PickDeadline.Sub(now) + time.Second - 1) / time.Second), true
}

// force drives AutoPick through the retry policy and escalates when it cannot succeed.
func (m *Monitor) force(ctx context.Context, d *models.Draft, holder models.TurnOrderEntry, reason string, st *loopState) (bool, error) {
	logger := log.With().
		Str("draft_id", d.ID.String()).
		Str("participant_id", holder.ParticipantID.String()).
		Int("overall_pick", d.CurrentPick).
		Str("reason", reason).
		Logger()

	var result *pick.PickResult
	attempts, err := m.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		res, err := m.picker.AutoPick(ctx, d.ID, d.CurrentPick)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("forced pick attempt failed")
			return err
		}
		result = res
		return nil
	}, retryableForcedPick)

	switch {
	case err == nil:
		if result.Pick.IsSkipped {
			m.recordSkip(ctx, d, holder, result.Pick)
		}
		logger.Info().Int("attempts", attempts).Bool("completed", result.Completed).Msg("forced pick applied")
		return result.Completed, nil
	case ctx.Err() != nil:
		return true, nil
	case superseded(err):
		logger.Info().Err(err).Msg("forced pick no longer needed")
		return errors.Is(err, drafterr.ErrDraftNotInProgress), nil
	}

	st.failedPick = d.CurrentPick
	m.escalate(ctx, d, holder, attempts, err)
	return false, fmt.Errorf("%w: pick %d after %d attempts: %v", drafterr.ErrAutoPickFailed, d.CurrentPick, attempts, err)
}

// escalate reports a forced pick that could not be applied.
func (m *Monitor) escalate(ctx context.Context, d *models.Draft, holder models.TurnOrderEntry, attempts int, cause error) {
	now := m.clock.Now()
	payload := events.AutoPickFailedPayload{
		DraftID:       d.ID.String(),
		ParticipantID: holder.ParticipantID.String(),
		OverallPick:   d.CurrentPick,
		Attempts:      attempts,
		LastError:     cause.Error(),
		FailedAt:      now,
	}
	participant := holder.ParticipantID
	err := m.audit.Record(ctx, audit.Entry{
		DraftID:       d.ID,
		ParticipantID: &participant,
		OverallPick:   d.CurrentPick,
		EventType:     audit.EventAutoPickFailed,
		Message:       fmt.Sprintf("forced pick failed after %d attempts: %v", attempts, cause),
		Payload:       payload,
		OccurredAt:    now,
	})
	if err != nil {
		log.Error().Err(err).Str("draft_id", d.ID.String()).Msg("failed to record auto-pick failure")
	}
	m.notifier.Publish(ctx, d.ID, events.AutoPickFailed, payload)
}

func (m *Monitor) recordSkip(ctx context.Context, d *models.Draft, holder models.TurnOrderEntry, p models.DraftPick) {
	participant := holder.ParticipantID
	err := m.audit.Record(ctx, audit.Entry{
		DraftID:       d.ID,
		ParticipantID: &participant,
		OverallPick:   p.OverallPick,
		EventType:     audit.EventPickSkipped,
		Message:       "no players available, turn skipped",
		OccurredAt:    p.PickedAt,
	})
	if err != nil {
		log.Error().Err(err).Str("draft_id", d.ID.String()).Msg("failed to record skipped pick")
	}
}

// superseded reports errors meaning the turn was resolved or the draft stopped meanwhile.
func superseded(err error) bool {
	return errors.Is(err, drafterr.ErrNotYourTurn) || errors.Is(err, drafterr.ErrDraftNotInProgress)
}

// retryableForcedPick retries contention and transient failures. State changes and
// rejected input end the attempt immediately.
func retryableForcedPick(err error) bool {
	if superseded(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch drafterr.CodeOf(err) {
	case drafterr.CodeValidation, drafterr.CodeForbidden, drafterr.CodeNotFound:
		return false
	}
	return true
}
