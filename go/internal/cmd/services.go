package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/config"
	"github.com/mcdev12/draftengine/go/internal/dbconfig"
	"github.com/mcdev12/draftengine/go/internal/draft/audit"
	"github.com/mcdev12/draftengine/go/internal/draft/broadcast"
	"github.com/mcdev12/draftengine/go/internal/draft/chesstimer"
	"github.com/mcdev12/draftengine/go/internal/draft/derby"
	"github.com/mcdev12/draftengine/go/internal/draft/draft"
	"github.com/mcdev12/draftengine/go/internal/draft/events"
	"github.com/mcdev12/draftengine/go/internal/draft/gateway"
	"github.com/mcdev12/draftengine/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftengine/go/internal/draft/pick"
	"github.com/mcdev12/draftengine/go/internal/draft/service"
	"github.com/mcdev12/draftengine/go/internal/leagues"
	"github.com/rs/zerolog/log"
)

// Engine holds the wired application
type Engine struct {
	Drafts       *service.DraftService
	Derbies      *service.DerbyService
	Monitor      *orchestrator.Monitor
	DerbyWatcher *orchestrator.DerbyWatcher
	Hub          *gateway.Hub

	closers []func() error
}

// Close releases the broadcast and audit connections.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close engine resource")
		}
	}
}

func setupEngine(ctx context.Context, cfg *config.Config, store engineStore, clock clockwork.Clock) (*Engine, error) {
	// Wire up dependency injection chain
	// Storage → App layer → Background loops → Service layer
	e := &Engine{}

	sink, err := setupAudit(cfg, e)
	if err != nil {
		return nil, err
	}

	notifiers := broadcast.Fanout{broadcast.LogNotifier{}}
	if cfg.NATS.Enabled {
		natsCfg := broadcast.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		natsCfg.StreamName = cfg.NATS.Stream
		pub, err := broadcast.ConnectNATS(ctx, natsCfg, clock)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to connect broadcast bus: %w", err)
		}
		e.closers = append(e.closers, pub.Close)
		notifiers = append(notifiers, pub)
		log.Info().Str("url", natsCfg.URL).Str("stream", natsCfg.StreamName).Msg("broadcasting to NATS")
	}

	tracker := chesstimer.NewTracker(clock)

	// The hub reads connect-time snapshots straight from the store.
	if cfg.WebSocket.Enabled {
		wsCfg := gateway.DefaultConfig()
		wsCfg.ReadBufferSize = cfg.WebSocket.ReadBufferSize
		wsCfg.WriteBufferSize = cfg.WebSocket.WriteBufferSize
		e.Hub = gateway.NewHub(wsCfg, clock, store)
		notifiers = append(notifiers, e.Hub)
	}
	var notifier events.Notifier = notifiers

	draftApp := draft.NewApp(store, store, tracker, notifier, clock, draft.Options{
		ChessResumeBuffer: cfg.Engine.ChessResumeBuffer,
	})
	strategy := pick.NewPositionalStrategy(store, store, cfg.Engine.AutoPickPoolSize, cfg.Engine.PositionPriority)
	pickApp := pick.NewApp(store, store, store, tracker, strategy, notifier, clock)
	derbyApp := derby.NewApp(store, store, store, notifier, clock, cfg.Engine.DerbyTurnTimeSec)
	seasonApp := leagues.NewApp(store)

	e.Monitor = orchestrator.NewMonitor(orchestrator.MonitorConfig{
		Drafts:      store,
		Picker:      pickApp,
		Autodrafter: draftApp,
		Tracker:     tracker,
		Notifier:    notifier,
		Audit:       sink,
		Clock:       clock,
		Interval:    cfg.Engine.PollInterval,
		Retry: orchestrator.RetryPolicy{
			MaxAttempts: cfg.Engine.Retry.MaxAttempts,
			BaseDelay:   cfg.Engine.Retry.BaseDelay,
			Factor:      cfg.Engine.Retry.Factor,
			Clock:       clock,
		},
	})
	draftApp.SetMonitor(e.Monitor)
	pickApp.OnCompleted(e.Monitor, seasonApp)

	e.DerbyWatcher = orchestrator.NewDerbyWatcher(store, clock, cfg.Engine.PollInterval)
	e.DerbyWatcher.SetAssigner(derbyApp)
	derbyApp.SetWatcher(e.DerbyWatcher)

	e.Drafts = service.NewDraftService(draftApp, pickApp)
	e.Derbies = service.NewDerbyService(derbyApp)
	return e, nil
}

func setupAudit(cfg *config.Config, e *Engine) (orchestrator.AuditSink, error) {
	switch cfg.Audit.Driver {
	case "postgres":
		db, err := audit.Open(dbconfig.NewConfigFromEnv().DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		e.closers = append(e.closers, db.Close)
		return audit.NewPostgresSink(db), nil
	case "log":
		return audit.NewLogSink(), nil
	default:
		return nil, errors.New("unknown audit driver " + cfg.Audit.Driver)
	}
}
