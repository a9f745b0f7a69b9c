package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/models"
)

func (tx *draftTx) InsertDerby(_ context.Context, derby *models.Derby) error {
	tx.store.mu.RLock()
	_, exists := tx.store.derbies[tx.draft.ID]
	tx.store.mu.RUnlock()
	if exists || tx.derby != nil {
		return fmt.Errorf("derby for draft %s already exists: %w", tx.draft.ID, drafterr.ErrInvalidTransition)
	}
	tx.derby = derby.Clone()
	return nil
}

func (tx *draftTx) ActiveDerby(context.Context) (bool, error) {
	if tx.derby != nil {
		return tx.derby.Status != models.DerbyStatusCompleted, nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	d, ok := tx.store.derbies[tx.draft.ID]
	return ok && d.Status != models.DerbyStatusCompleted, nil
}

func (s *Store) GetDerbyByDraft(_ context.Context, draftID uuid.UUID) (*models.Derby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.derbies[draftID]
	if !ok {
		return nil, fmt.Errorf("derby for draft %s: %w", draftID, drafterr.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *Store) ListDerbySelections(_ context.Context, derbyID uuid.UUID) ([]models.DerbySelection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DerbySelection(nil), s.selections[derbyID]...), nil
}

func (s *Store) ListDraftIDsWithActiveDerby(context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uuid.UUID
	for draftID, d := range s.derbies {
		if d.Status == models.DerbyStatusInProgress {
			ids = append(ids, draftID)
		}
	}
	return ids, nil
}

func (s *Store) WithDerbyLock(ctx context.Context, draftID uuid.UUID, fn func(tx repository.DerbyTx) error) error {
	unlock, err := s.tryLock("derby:" + draftID.String())
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.RLock()
	d, ok := s.derbies[draftID]
	var tx *derbyTx
	if ok {
		tx = &derbyTx{store: s, derby: d.Clone()}
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("derby for draft %s: %w", draftID, drafterr.ErrNotFound)
	}
	defer tx.releaseDrafts()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type positionAssignment struct {
	draftID       uuid.UUID
	participantID uuid.UUID
	position      int
}

type derbyTx struct {
	store *Store

	derby       *models.Derby
	derbyDirty  bool
	selections  []models.DerbySelection
	assignments []positionAssignment
	draftLocks  map[uuid.UUID]func() // draft rows held until commit
}

func (tx *derbyTx) Derby() *models.Derby {
	return tx.derby.Clone()
}

func (tx *derbyTx) Selections(context.Context) ([]models.DerbySelection, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	out := append([]models.DerbySelection(nil), tx.store.selections[tx.derby.ID]...)
	return append(out, tx.selections...), nil
}

func (tx *derbyTx) InsertSelection(_ context.Context, sel models.DerbySelection) error {
	tx.store.mu.RLock()
	err := checkSelectionUnique(tx.store.selections[tx.derby.ID], sel)
	tx.store.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := checkSelectionUnique(tx.selections, sel); err != nil {
		return err
	}
	tx.selections = append(tx.selections, sel)
	return nil
}

func (tx *derbyTx) UpdateDerby(_ context.Context, derby *models.Derby) error {
	if derby.ID != tx.derby.ID {
		return fmt.Errorf("derby %s is not locked by this transaction", derby.ID)
	}
	tx.derby = derby.Clone()
	tx.derbyDirty = true
	return nil
}

func (tx *derbyTx) AssignDraftPosition(_ context.Context, draftID, participantID uuid.UUID, position int) error {
	if _, held := tx.draftLocks[draftID]; !held {
		unlock, err := tx.store.tryLock("draft:" + draftID.String())
		if err != nil {
			return err
		}
		if tx.draftLocks == nil {
			tx.draftLocks = make(map[uuid.UUID]func())
		}
		tx.draftLocks[draftID] = unlock
	}
	tx.store.mu.RLock()
	err := requireNotStarted(tx.store.drafts[draftID], draftID)
	tx.store.mu.RUnlock()
	if err != nil {
		return err
	}

	tx.assignments = append(tx.assignments, positionAssignment{
		draftID:       draftID,
		participantID: participantID,
		position:      position,
	})
	return nil
}

func (tx *derbyTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tx.derby.ID
	for _, sel := range tx.selections {
		if err := checkSelectionUnique(s.selections[id], sel); err != nil {
			return err
		}
	}
	for _, a := range tx.assignments {
		if err := requireNotStarted(s.drafts[a.draftID], a.draftID); err != nil {
			return err
		}
	}
	s.selections[id] = append(s.selections[id], tx.selections...)
	if tx.derbyDirty {
		s.derbies[tx.derby.DraftID] = tx.derby.Clone()
	}
	for _, a := range tx.assignments {
		s.turnOrders[a.draftID] = upsertPosition(s.turnOrders[a.draftID], a)
	}
	return nil
}

func (tx *derbyTx) releaseDrafts() {
	for _, unlock := range tx.draftLocks {
		unlock()
	}
}

func requireNotStarted(d *models.Draft, draftID uuid.UUID) error {
	if d == nil {
		return fmt.Errorf("draft %s: %w", draftID, drafterr.ErrNotFound)
	}
	if d.Status != models.DraftStatusNotStarted {
		return fmt.Errorf("draft is %s: %w", d.Status, drafterr.ErrInvalidTransition)
	}
	return nil
}

func upsertPosition(order models.TurnOrder, a positionAssignment) models.TurnOrder {
	order = cloneOrder(order)
	for i := range order {
		if order[i].ParticipantID == a.participantID {
			order[i].DraftPosition = a.position
			return order
		}
	}
	return append(order, models.TurnOrderEntry{
		DraftID:       a.draftID,
		ParticipantID: a.participantID,
		DraftPosition: a.position,
	})
}

func checkSelectionUnique(existing []models.DerbySelection, sel models.DerbySelection) error {
	for _, e := range existing {
		if e.DraftPosition == sel.DraftPosition || e.ParticipantID == sel.ParticipantID {
			return drafterr.ErrPositionAlreadyClaimed
		}
	}
	return nil
}
