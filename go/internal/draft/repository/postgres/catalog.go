package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/draftengine/go/internal/models"
)

func (s *Store) ListAvailablePlayers(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Player, error) {
	query := `
		SELECT p.id, p.full_name, p.position, p.rank
		FROM players p
		WHERE NOT EXISTS (
			SELECT 1 FROM draft_picks dp WHERE dp.draft_id = $1 AND dp.player_id = p.id
		)
		ORDER BY p.rank`
	args := []any{draftID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list available players for draft: %w", err)
	}
	players, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Player])
	if err != nil {
		return nil, fmt.Errorf("failed to scan players: %w", err)
	}
	return players, nil
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	err := s.pool.QueryRow(ctx, `SELECT id, full_name, position, rank FROM players WHERE id = $1`, id).
		Scan(&p.ID, &p.FullName, &p.Position, &p.Rank)
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", mapError(err))
	}
	return &p, nil
}

func (s *Store) GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error) {
	var (
		l      models.League
		status string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, commissioner_id, league_status, season, created_at, updated_at
		FROM leagues WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.CommissionerID, &status, &l.Season, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get league: %w", mapError(err))
	}
	l.Status = models.LeagueStatus(status)
	return &l, nil
}

func (s *Store) ListParticipants(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, league_id, owner_id, name, created_at FROM participants WHERE league_id = $1 ORDER BY id`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	participants, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Participant])
	if err != nil {
		return nil, fmt.Errorf("failed to scan participants: %w", err)
	}
	return participants, nil
}

func (s *Store) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	err := s.pool.QueryRow(ctx, `SELECT id, league_id, owner_id, name, created_at FROM participants WHERE id = $1`, id).
		Scan(&p.ID, &p.LeagueID, &p.OwnerID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", mapError(err))
	}
	return &p, nil
}

func (s *Store) UpdateLeagueStatus(ctx context.Context, leagueID uuid.UUID, status models.LeagueStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE leagues SET league_status = $2, updated_at = NOW() WHERE id = $1`,
		leagueID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update league status: %w", err)
	}
	return nil
}

func (s *Store) InsertRosterEntries(ctx context.Context, entries []models.Roster) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"rosters"},
		[]string{"id", "participant_id", "player_id", "position", "acquired_at", "acquisition_type"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.ID, e.ParticipantID, e.PlayerID, string(e.Position), e.AcquiredAt, string(e.AcquisitionType)}, nil
		}))
	if err != nil {
		return fmt.Errorf("failed to insert roster entries: %w", err)
	}
	return nil
}
