// Package access decides who may act on a draft.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/models"
)

// System is the actor id the engine uses for its own actions. It passes every check and is
// never accepted from a client.
var System = uuid.Nil

// Directory defines what access checks need from the league directory
type Directory interface {
	GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error)
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
}

type Checker struct {
	directory Directory
}

func NewChecker(directory Directory) *Checker {
	return &Checker{directory: directory}
}

// RequireCommissioner fails with drafterr.ErrForbidden unless actorID runs the league.
func (c *Checker) RequireCommissioner(ctx context.Context, leagueID, actorID uuid.UUID) error {
	if actorID == System {
		return nil
	}
	league, err := c.directory.GetLeague(ctx, leagueID)
	if err != nil {
		return fmt.Errorf("failed to load league: %w", err)
	}
	if league.CommissionerID != actorID {
		return fmt.Errorf("user %s is not the commissioner: %w", actorID, drafterr.ErrForbidden)
	}
	return nil
}

// RequireParticipant fails unless actorID owns the participant or runs the league.
func (c *Checker) RequireParticipant(ctx context.Context, leagueID, participantID, actorID uuid.UUID) error {
	if actorID == System {
		return nil
	}
	p, err := c.directory.GetParticipant(ctx, participantID)
	if err != nil {
		return fmt.Errorf("failed to load participant: %w", err)
	}
	if p.LeagueID != leagueID {
		return fmt.Errorf("participant %s is not in league %s: %w", participantID, leagueID, drafterr.ErrValidation)
	}
	if p.OwnerID == actorID {
		return nil
	}
	return c.RequireCommissioner(ctx, leagueID, actorID)
}
