package pick

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/models"
)

// Strategy chooses the player to draft for a participant. A nil player means nothing is
// available and the turn should be skipped.
type Strategy interface {
	Select(ctx context.Context, draft *models.Draft, participantID uuid.UUID) (*models.Player, error)
}

// DefaultPositionPriority is the order positions are filled when drafting automatically.
var DefaultPositionPriority = []string{"QB", "RB", "WR", "TE"}

// PositionalStrategy drafts from the best-ranked candidates, filling positions in a fixed
// priority order before falling back to the best remaining player.
type PositionalStrategy struct {
	catalog  Catalog
	picks    PickLister
	poolSize int
	priority []string
}

// PickLister defines what the strategy needs to see a participant's previous picks
type PickLister interface {
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.DraftPick, error)
}

// NewPositionalStrategy creates a strategy over the top poolSize available players.
func NewPositionalStrategy(catalog Catalog, picks PickLister, poolSize int, priority []string) *PositionalStrategy {
	if len(priority) == 0 {
		priority = DefaultPositionPriority
	}
	return &PositionalStrategy{
		catalog:  catalog,
		picks:    picks,
		poolSize: poolSize,
		priority: priority,
	}
}

func (s *PositionalStrategy) Select(ctx context.Context, draft *models.Draft, participantID uuid.UUID) (*models.Player, error) {
	pool, err := s.catalog.ListAvailablePlayers(ctx, draft.ID, s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list available players: %w", err)
	}
	if len(pool) == 0 {
		return nil, nil
	}

	filled, err := s.filledPositions(ctx, draft.ID, participantID)
	if err != nil {
		return nil, err
	}
	for _, position := range s.priority {
		if filled[position] {
			continue
		}
		for i := range pool {
			if pool[i].Position == position {
				return &pool[i], nil
			}
		}
	}
	return &pool[0], nil
}

// filledPositions returns positions the participant already drafted.
func (s *PositionalStrategy) filledPositions(ctx context.Context, draftID, participantID uuid.UUID) (map[string]bool, error) {
	picks, err := s.picks.ListPicks(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	filled := make(map[string]bool)
	for _, p := range picks {
		if p.ParticipantID != participantID || p.PlayerID == nil {
			continue
		}
		player, err := s.catalog.GetPlayer(ctx, *p.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get player: %w", err)
		}
		filled[player.Position] = true
	}
	return filled, nil
}
