// Package repository defines the storage contract of the draft engine.
//
// Every mutation of a draft or a derby happens inside a locked unit of work. Acquiring the lock
// never waits: if another writer holds the row the call fails with
// drafterr.ErrConcurrentModification and nothing is read or written.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/models"
)

// DraftTx is a unit of work on a single draft whose row is held exclusively until fn returns.
// Writes become visible only if fn returns nil.
type DraftTx interface {
	// Draft returns the locked draft. Callers mutate the copy and pass it to UpdateDraft.
	Draft() *models.Draft
	TurnOrder(ctx context.Context) (models.TurnOrder, error)
	IsPicked(ctx context.Context, playerID uuid.UUID) (bool, error)
	// InsertPick fails with drafterr.ErrItemAlreadyPicked when the player is taken and with
	// drafterr.ErrConcurrentModification when the pick number already exists.
	InsertPick(ctx context.Context, pick models.DraftPick) error
	UpdateDraft(ctx context.Context, draft *models.Draft) error
	ReplaceTurnOrder(ctx context.Context, order models.TurnOrder) error
	UpdateTurnOrderEntry(ctx context.Context, entry models.TurnOrderEntry) error
	// ActiveDerby reports whether the draft has a derby that has not completed.
	ActiveDerby(ctx context.Context) (bool, error)
	// InsertDerby fails with drafterr.ErrInvalidTransition when the draft already has a derby.
	InsertDerby(ctx context.Context, derby *models.Derby) error
}

// DerbyTx is a unit of work on a single derby whose row is held exclusively until fn returns.
type DerbyTx interface {
	Derby() *models.Derby
	Selections(ctx context.Context) ([]models.DerbySelection, error)
	// InsertSelection fails with drafterr.ErrPositionAlreadyClaimed when the position is taken.
	InsertSelection(ctx context.Context, sel models.DerbySelection) error
	UpdateDerby(ctx context.Context, derby *models.Derby) error
	// AssignDraftPosition mirrors a claimed position into the draft's turn order. It fails with
	// drafterr.ErrInvalidTransition unless the draft is not started, and with
	// drafterr.ErrConcurrentModification while the draft row is locked.
	AssignDraftPosition(ctx context.Context, draftID, participantID uuid.UUID, position int) error
}

// DraftStore persists drafts, turn orders and picks.
type DraftStore interface {
	CreateDraft(ctx context.Context, draft *models.Draft) error
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	ListDraftIDsByStatus(ctx context.Context, status models.DraftStatus) ([]uuid.UUID, error)
	GetTurnOrder(ctx context.Context, draftID uuid.UUID) (models.TurnOrder, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.DraftPick, error)
	WithDraftLock(ctx context.Context, draftID uuid.UUID, fn func(tx DraftTx) error) error
}

// DerbyStore persists derbies and their selections.
type DerbyStore interface {
	GetDerbyByDraft(ctx context.Context, draftID uuid.UUID) (*models.Derby, error)
	ListDerbySelections(ctx context.Context, derbyID uuid.UUID) ([]models.DerbySelection, error)
	ListDraftIDsWithActiveDerby(ctx context.Context) ([]uuid.UUID, error)
	WithDerbyLock(ctx context.Context, draftID uuid.UUID, fn func(tx DerbyTx) error) error
}

// Catalog is the read-only ranked player pool.
type Catalog interface {
	// ListAvailablePlayers returns players not yet picked in the draft, best rank first.
	// A limit of zero or less returns every available player.
	ListAvailablePlayers(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Player, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
}

// Directory resolves leagues and their participants.
type Directory interface {
	GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error)
	ListParticipants(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error)
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
}

// SeasonWriter applies the results of a completed draft to the league.
type SeasonWriter interface {
	UpdateLeagueStatus(ctx context.Context, leagueID uuid.UUID, status models.LeagueStatus) error
	InsertRosterEntries(ctx context.Context, entries []models.Roster) error
}
