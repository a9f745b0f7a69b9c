package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/models"
)

func (s *Store) ListAvailablePlayers(_ context.Context, draftID uuid.UUID, limit int) ([]models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	picks := s.picks[draftID]
	var out []models.Player
	for _, p := range s.players {
		if containsPlayer(picks, p.ID) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players {
		if p.ID == id {
			player := p
			return &player, nil
		}
	}
	return nil, fmt.Errorf("player %s: %w", id, drafterr.ErrNotFound)
}

func (s *Store) GetLeague(_ context.Context, id uuid.UUID) (*models.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leagues[id]
	if !ok {
		return nil, fmt.Errorf("league %s: %w", id, drafterr.ErrNotFound)
	}
	league := *l
	return &league, nil
}

func (s *Store) ListParticipants(_ context.Context, leagueID uuid.UUID) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Participant
	for _, p := range s.participants {
		if p.LeagueID == leagueID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) GetParticipant(_ context.Context, id uuid.UUID) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, fmt.Errorf("participant %s: %w", id, drafterr.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) UpdateLeagueStatus(_ context.Context, leagueID uuid.UUID, status models.LeagueStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leagues[leagueID]
	if !ok {
		return fmt.Errorf("league %s: %w", leagueID, drafterr.ErrNotFound)
	}
	l.Status = status
	return nil
}

func (s *Store) InsertRosterEntries(_ context.Context, entries []models.Roster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters = append(s.rosters, entries...)
	return nil
}
