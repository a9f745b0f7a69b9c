package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DerbyReader defines what the derby watcher needs from the derby store
type DerbyReader interface {
	GetDerbyByDraft(ctx context.Context, draftID uuid.UUID) (*models.Derby, error)
	ListDraftIDsWithActiveDerby(ctx context.Context) ([]uuid.UUID, error)
}

// DerbyAssigner assigns the lowest open position to the participant holding expectedTurn
type DerbyAssigner interface {
	AutoAssign(ctx context.Context, draftID uuid.UUID, expectedTurn int) error
}

// DerbyWatcher auto-assigns positions when a derby turn runs past its deadline.
type DerbyWatcher struct {
	derbies  DerbyReader
	assigner DerbyAssigner
	clock    clockwork.Clock
	interval time.Duration
	registry *Registry
}

func NewDerbyWatcher(derbies DerbyReader, clock clockwork.Clock, interval time.Duration) *DerbyWatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &DerbyWatcher{
		derbies:  derbies,
		clock:    clock,
		interval: interval,
		registry: NewRegistry("derby watcher"),
	}
}

// SetAssigner wires the derby application, which itself starts and stops the watcher.
func (w *DerbyWatcher) SetAssigner(a DerbyAssigner) {
	w.assigner = a
}

func (w *DerbyWatcher) Start(draftID uuid.UUID) {
	w.registry.Start(draftID, func(ctx context.Context) {
		w.run(ctx, draftID)
	})
	log.Info().Str("draft_id", draftID.String()).Msg("derby watcher started")
}

func (w *DerbyWatcher) Stop(draftID uuid.UUID) {
	w.registry.Stop(draftID)
}

func (w *DerbyWatcher) Running(draftID uuid.UUID) bool {
	return w.registry.Running(draftID)
}

func (w *DerbyWatcher) Shutdown(ctx context.Context) error {
	return w.registry.Shutdown(ctx)
}

// Recover resumes watching every in-progress derby after a restart.
func (w *DerbyWatcher) Recover(ctx context.Context) (int, error) {
	ids, err := w.derbies.ListDraftIDsWithActiveDerby(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active derbies: %w", err)
	}
	for _, id := range ids {
		w.Start(id)
	}
	log.Info().Int("derbies", len(ids)).Msg("recovered derby watchers")
	return len(ids), nil
}

func (w *DerbyWatcher) run(ctx context.Context, draftID uuid.UUID) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		done, err := w.tick(ctx, draftID)
		if err != nil {
			log.Error().Err(err).Str("draft_id", draftID.String()).Msg("derby watcher tick failed")
		}
		if done {
			log.Info().Str("draft_id", draftID.String()).Msg("derby watcher stopped")
			return
		}
	}
}

// tick assigns a position if the current turn expired. It returns true when the derby is over.
func (w *DerbyWatcher) tick(ctx context.Context, draftID uuid.UUID) (bool, error) {
	derby, err := w.derbies.GetDerbyByDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, drafterr.ErrNotFound) {
			return true, err
		}
		return false, fmt.Errorf("failed to get derby: %w", err)
	}
	if derby.Status != models.DerbyStatusInProgress {
		return true, nil
	}
	if derby.TurnDeadline == nil || w.clock.Now().Before(*derby.TurnDeadline) {
		return false, nil
	}

	err = w.assigner.AutoAssign(ctx, draftID, derby.CurrentTurn)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, drafterr.ErrNotYourDerbyTurn):
		// claimed meanwhile
		return false, nil
	case errors.Is(err, drafterr.ErrDerbyNotInProgress):
		return true, nil
	case errors.Is(err, drafterr.ErrConcurrentModification):
		log.Debug().Str("draft_id", draftID.String()).Msg("derby busy, retrying next tick")
		return false, nil
	}
	return false, fmt.Errorf("failed to auto-assign derby position: %w", err)
}
