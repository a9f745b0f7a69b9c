// Package leagues applies the outcome of a completed draft to its league: drafted players join
// their participants' rosters and the league season becomes active.
package leagues

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SeasonRepository defines what the app layer needs from the league store
type SeasonRepository interface {
	GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error)
	UpdateLeagueStatus(ctx context.Context, leagueID uuid.UUID, status models.LeagueStatus) error
	InsertRosterEntries(ctx context.Context, entries []models.Roster) error
}

// App handles season initialization after a draft
type App struct {
	repo SeasonRepository
}

// NewApp creates a new leagues App
func NewApp(repo SeasonRepository) *App {
	return &App{
		repo: repo,
	}
}

// DraftCompleted rosters every drafted player on the bench and activates the league.
// Leagues that are already active are left untouched.
func (a *App) DraftCompleted(ctx context.Context, draft *models.Draft, picks []models.DraftPick) error {
	league, err := a.repo.GetLeague(ctx, draft.LeagueID)
	if err != nil {
		return fmt.Errorf("failed to get league: %w", err)
	}
	if league.Status != models.LeagueStatusPending {
		log.Warn().
			Str("league_id", league.ID.String()).
			Str("league_status", string(league.Status)).
			Msg("league already initialized, skipping season setup")
		return nil
	}

	entries := RosterEntries(picks)
	if len(entries) > 0 {
		if err := a.repo.InsertRosterEntries(ctx, entries); err != nil {
			return fmt.Errorf("failed to insert roster entries: %w", err)
		}
	}
	if err := a.repo.UpdateLeagueStatus(ctx, league.ID, models.LeagueStatusActive); err != nil {
		return fmt.Errorf("failed to activate league: %w", err)
	}

	log.Info().
		Str("league_id", league.ID.String()).
		Str("draft_id", draft.ID.String()).
		Int("rostered", len(entries)).
		Msg("season initialized from draft")
	return nil
}

// RosterEntries converts picks into bench roster rows. Skipped picks are ignored.
func RosterEntries(picks []models.DraftPick) []models.Roster {
	entries := make([]models.Roster, 0, len(picks))
	for _, p := range picks {
		if p.PlayerID == nil {
			continue
		}
		entries = append(entries, models.Roster{
			ID:              uuid.New(),
			ParticipantID:   p.ParticipantID,
			PlayerID:        *p.PlayerID,
			Position:        models.RosterPositionBench,
			AcquiredAt:      p.PickedAt,
			AcquisitionType: models.AcquisitionTypeDraft,
		})
	}
	return entries
}
