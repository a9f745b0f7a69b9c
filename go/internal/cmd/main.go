package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	setupLogging()

	cfg, err := config.Load(getEnv("ENGINE_CONFIG", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("draft engine stopped with error")
	}
	log.Info().Msg("draft engine stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	clock := clockwork.NewRealClock()

	store, closeStore, err := setupStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := setupEngine(ctx, cfg, store, clock)
	if err != nil {
		return err
	}
	defer engine.Close()

	if n, err := engine.Monitor.Recover(ctx); err != nil {
		return err
	} else if n > 0 {
		log.Info().Int("drafts", n).Msg("resumed auto-pick monitors")
	}
	if n, err := engine.DerbyWatcher.Recover(ctx); err != nil {
		return err
	} else if n > 0 {
		log.Info().Int("derbies", n).Msg("resumed derby watchers")
	}

	server := setupServer(cfg, engine)
	g, ctx := errgroup.WithContext(ctx)

	if engine.Hub != nil {
		g.Go(func() error { return engine.Hub.Run(ctx) })
	}
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("storage", cfg.Storage.Driver).Msg("starting draft engine")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("shutting down")
		err := server.Shutdown(shutdownCtx)
		return errors.Join(err, engine.Monitor.Shutdown(shutdownCtx), engine.DerbyWatcher.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func setupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if getEnv("LOG_FORMAT", "json") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
