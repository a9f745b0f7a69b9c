package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftengine/go/internal/config"
	"github.com/mcdev12/draftengine/go/internal/dbconfig"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/draft/repository/memory"
	"github.com/mcdev12/draftengine/go/internal/draft/repository/postgres"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// engineStore is everything the engine reads and writes
type engineStore interface {
	repository.DraftStore
	repository.DerbyStore
	repository.Catalog
	repository.Directory
	repository.SeasonWriter
}

func setupStorage(ctx context.Context, cfg *config.Config) (engineStore, func(), error) {
	if cfg.Storage.Driver == "memory" {
		store := memory.NewStore()
		if cfg.Storage.SeedFile != "" {
			if err := loadSeed(cfg.Storage.SeedFile, store); err != nil {
				return nil, nil, err
			}
		}
		log.Warn().Msg("using in-memory storage, state is lost on restart")
		return store, func() {}, nil
	}

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := dbCfg.NewPool(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := postgres.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info().
		Str("host", dbCfg.Host).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return store, pool.Close, nil
}

// seedFile is the YAML fixture loaded into the in-memory store
type seedFile struct {
	Leagues []struct {
		ID             uuid.UUID `yaml:"id"`
		Name           string    `yaml:"name"`
		CommissionerID uuid.UUID `yaml:"commissioner_id"`
		Season         string    `yaml:"season"`
		Participants   []struct {
			ID      uuid.UUID `yaml:"id"`
			OwnerID uuid.UUID `yaml:"owner_id"`
			Name    string    `yaml:"name"`
		} `yaml:"participants"`
	} `yaml:"leagues"`
	Players []struct {
		ID       uuid.UUID `yaml:"id"`
		FullName string    `yaml:"full_name"`
		Position string    `yaml:"position"`
		Rank     int       `yaml:"rank"`
	} `yaml:"players"`
}

func loadSeed(path string, store *memory.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	now := time.Now().UTC()
	for _, l := range seed.Leagues {
		league := models.League{
			ID:             l.ID,
			Name:           l.Name,
			CommissionerID: l.CommissionerID,
			Status:         models.LeagueStatusPending,
			Season:         l.Season,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		participants := make([]models.Participant, len(l.Participants))
		for i, p := range l.Participants {
			participants[i] = models.Participant{
				ID:        p.ID,
				LeagueID:  l.ID,
				OwnerID:   p.OwnerID,
				Name:      p.Name,
				CreatedAt: now,
			}
		}
		store.AddLeague(league, participants...)
	}

	players := make([]models.Player, len(seed.Players))
	for i, p := range seed.Players {
		players[i] = models.Player{ID: p.ID, FullName: p.FullName, Position: p.Position, Rank: p.Rank}
	}
	store.AddPlayers(players...)

	log.Info().
		Int("leagues", len(seed.Leagues)).
		Int("players", len(players)).
		Msg("loaded seed data")
	return nil
}
