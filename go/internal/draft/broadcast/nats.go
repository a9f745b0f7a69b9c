package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type NATSConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	PublishTimeout  time.Duration
	MaxAge          time.Duration // How long to keep messages
	DuplicateWindow time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:             nats.DefaultURL,
		StreamName:      "DRAFT_EVENTS",
		SubjectPrefix:   "draftengine",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		PublishTimeout:  2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		DuplicateWindow: 2 * time.Hour,
	}
}

// msgPublisher is the part of jetstream.JetStream the publisher uses
type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes engine events to a JetStream stream
type NATSPublisher struct {
	nc     *nats.Conn
	js     msgPublisher
	clock  clockwork.Clock
	config NATSConfig
}

// ConnectNATS dials NATS, makes sure the event stream exists and returns a publisher on it
func ConnectNATS(ctx context.Context, cfg NATSConfig, clock clockwork.Clock) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("draftengine"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &NATSPublisher{nc: nc, js: js, clock: clock, config: cfg}, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg NATSConfig) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Draft engine state transitions",
		Subjects:    []string{fmt.Sprintf("%s.draft.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  cfg.DuplicateWindow,
	}

	if _, err := js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().Str("stream", cfg.StreamName).Msg("JetStream stream ready")
	return nil
}

// Publish sends one event. Failures are logged and dropped.
func (p *NATSPublisher) Publish(ctx context.Context, draftID uuid.UUID, eventType string, payload any) {
	env, err := NewEnvelope(draftID, eventType, payload, p.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to build broadcast envelope")
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal broadcast envelope")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.PublishTimeout)
	defer cancel()

	subject := Subject(p.config.SubjectPrefix, eventType)
	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{eventType},
			"Draft-ID":   []string{env.DraftID},
			"Event-ID":   []string{env.EventID},
		},
	},
		jetstream.WithMsgID(env.EventID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		log.Error().Err(err).
			Str("subject", subject).
			Str("draft_id", env.DraftID).
			Msg("failed to publish to JetStream")
		return
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", env.EventID).
		Uint64("sequence", ack.Sequence).
		Msg("published to JetStream")
}

func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}
