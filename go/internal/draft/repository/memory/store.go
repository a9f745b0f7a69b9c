// Package memory is an in-process implementation of the draft storage contract. Row locks are
// per-key mutexes acquired with TryLock, so contention fails fast exactly like NOWAIT does in
// Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/models"
)

var (
	_ repository.DraftStore   = (*Store)(nil)
	_ repository.DerbyStore   = (*Store)(nil)
	_ repository.Catalog      = (*Store)(nil)
	_ repository.Directory    = (*Store)(nil)
	_ repository.SeasonWriter = (*Store)(nil)
)

type Store struct {
	mu sync.RWMutex

	drafts     map[uuid.UUID]*models.Draft
	turnOrders map[uuid.UUID]models.TurnOrder
	picks      map[uuid.UUID][]models.DraftPick

	derbies    map[uuid.UUID]*models.Derby // keyed by draft id
	selections map[uuid.UUID][]models.DerbySelection

	players      []models.Player // sorted by rank
	leagues      map[uuid.UUID]*models.League
	participants map[uuid.UUID]models.Participant
	rosters      []models.Roster

	rowLocksMu sync.Mutex
	rowLocks   map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		drafts:       make(map[uuid.UUID]*models.Draft),
		turnOrders:   make(map[uuid.UUID]models.TurnOrder),
		picks:        make(map[uuid.UUID][]models.DraftPick),
		derbies:      make(map[uuid.UUID]*models.Derby),
		selections:   make(map[uuid.UUID][]models.DerbySelection),
		leagues:      make(map[uuid.UUID]*models.League),
		participants: make(map[uuid.UUID]models.Participant),
		rowLocks:     make(map[string]*sync.Mutex),
	}
}

// AddPlayers seeds the player pool.
func (s *Store) AddPlayers(players ...models.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = append(s.players, players...)
	sort.SliceStable(s.players, func(i, j int) bool { return s.players[i].Rank < s.players[j].Rank })
}

// AddLeague seeds a league and its participants.
func (s *Store) AddLeague(league models.League, participants ...models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := league
	s.leagues[league.ID] = &l
	for _, p := range participants {
		s.participants[p.ID] = p
	}
}

// Rosters returns every roster row written so far.
func (s *Store) Rosters() []models.Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Roster(nil), s.rosters...)
}

func (s *Store) tryLock(key string) (func(), error) {
	s.rowLocksMu.Lock()
	l, ok := s.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[key] = l
	}
	s.rowLocksMu.Unlock()

	if !l.TryLock() {
		return nil, drafterr.ErrConcurrentModification
	}
	return l.Unlock, nil
}

// Drafts

func (s *Store) CreateDraft(_ context.Context, draft *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.drafts[draft.ID]; exists {
		return fmt.Errorf("draft %s already exists: %w", draft.ID, drafterr.ErrValidation)
	}
	s.drafts[draft.ID] = draft.Clone()
	return nil
}

func (s *Store) GetDraft(_ context.Context, id uuid.UUID) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, drafterr.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *Store) ListDraftIDsByStatus(_ context.Context, status models.DraftStatus) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []uuid.UUID
	for id, d := range s.drafts {
		if d.Status == status {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) GetTurnOrder(_ context.Context, draftID uuid.UUID) (models.TurnOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrder(s.turnOrders[draftID]), nil
}

func (s *Store) ListPicks(_ context.Context, draftID uuid.UUID) ([]models.DraftPick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	picks := append([]models.DraftPick(nil), s.picks[draftID]...)
	sort.Slice(picks, func(i, j int) bool { return picks[i].OverallPick < picks[j].OverallPick })
	return picks, nil
}

func (s *Store) WithDraftLock(ctx context.Context, draftID uuid.UUID, fn func(tx repository.DraftTx) error) error {
	unlock, err := s.tryLock("draft:" + draftID.String())
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.RLock()
	d, ok := s.drafts[draftID]
	var tx *draftTx
	if ok {
		tx = &draftTx{
			store: s,
			draft: d.Clone(),
			order: cloneOrder(s.turnOrders[draftID]),
		}
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("draft %s: %w", draftID, drafterr.ErrNotFound)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// draftTx stages writes and applies them on commit.
type draftTx struct {
	store *Store

	draft      *models.Draft
	draftDirty bool
	order      models.TurnOrder
	orderDirty bool
	picks      []models.DraftPick
	derby      *models.Derby
}

func (tx *draftTx) Draft() *models.Draft {
	return tx.draft.Clone()
}

func (tx *draftTx) TurnOrder(context.Context) (models.TurnOrder, error) {
	return cloneOrder(tx.order), nil
}

func (tx *draftTx) IsPicked(_ context.Context, playerID uuid.UUID) (bool, error) {
	for _, p := range tx.picks {
		if p.PlayerID != nil && *p.PlayerID == playerID {
			return true, nil
		}
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	return containsPlayer(tx.store.picks[tx.draft.ID], playerID), nil
}

func (tx *draftTx) InsertPick(_ context.Context, pick models.DraftPick) error {
	tx.store.mu.RLock()
	committed := tx.store.picks[tx.draft.ID]
	err := checkPickUnique(committed, pick)
	tx.store.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := checkPickUnique(tx.picks, pick); err != nil {
		return err
	}
	tx.picks = append(tx.picks, pick)
	return nil
}

func (tx *draftTx) UpdateDraft(_ context.Context, draft *models.Draft) error {
	if draft.ID != tx.draft.ID {
		return fmt.Errorf("draft %s is not locked by this transaction", draft.ID)
	}
	tx.draft = draft.Clone()
	tx.draftDirty = true
	return nil
}

func (tx *draftTx) ReplaceTurnOrder(_ context.Context, order models.TurnOrder) error {
	seen := make(map[int]bool, len(order))
	for _, e := range order {
		if seen[e.DraftPosition] {
			return drafterr.ErrInvalidTurnOrder
		}
		seen[e.DraftPosition] = true
	}
	tx.order = cloneOrder(order)
	tx.orderDirty = true
	return nil
}

func (tx *draftTx) UpdateTurnOrderEntry(_ context.Context, entry models.TurnOrderEntry) error {
	for i := range tx.order {
		if tx.order[i].ParticipantID == entry.ParticipantID {
			tx.order[i] = entry
			tx.orderDirty = true
			return nil
		}
	}
	return fmt.Errorf("participant %s not in turn order: %w", entry.ParticipantID, drafterr.ErrNotFound)
}

func (tx *draftTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tx.draft.ID
	for _, p := range tx.picks {
		if err := checkPickUnique(s.picks[id], p); err != nil {
			return err
		}
	}
	if tx.derby != nil {
		if _, exists := s.derbies[id]; exists {
			return fmt.Errorf("derby for draft %s already exists: %w", id, drafterr.ErrInvalidTransition)
		}
		s.derbies[id] = tx.derby.Clone()
	}
	s.picks[id] = append(s.picks[id], tx.picks...)
	if tx.draftDirty {
		s.drafts[id] = tx.draft.Clone()
	}
	if tx.orderDirty {
		s.turnOrders[id] = cloneOrder(tx.order)
	}
	return nil
}

func checkPickUnique(existing []models.DraftPick, pick models.DraftPick) error {
	for _, p := range existing {
		if p.OverallPick == pick.OverallPick {
			return drafterr.ErrConcurrentModification
		}
		if pick.PlayerID != nil && p.PlayerID != nil && *p.PlayerID == *pick.PlayerID {
			return drafterr.ErrItemAlreadyPicked
		}
	}
	return nil
}

func containsPlayer(picks []models.DraftPick, playerID uuid.UUID) bool {
	for _, p := range picks {
		if p.PlayerID != nil && *p.PlayerID == playerID {
			return true
		}
	}
	return false
}

func cloneOrder(o models.TurnOrder) models.TurnOrder {
	if o == nil {
		return nil
	}
	return append(models.TurnOrder(nil), o...)
}
