// Package gateway streams draft events to browsers over websockets.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/broadcast"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftSnapshot is sent to each client right after it connects.
const DraftSnapshot = "DraftSnapshot"

// DraftReader defines what the hub needs to build connect-time snapshots
type DraftReader interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
}

// Config holds configuration for websocket connections
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	QueueSize       int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default websocket configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		QueueSize:       1000,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

type delivery struct {
	draftID uuid.UUID
	data    []byte
}

// Hub keeps the websocket clients of every draft and fans engine events out to them.
type Hub struct {
	mu       sync.RWMutex
	drafts   map[uuid.UUID]map[*client]struct{}
	upgrader websocket.Upgrader
	config   Config
	clock    clockwork.Clock
	reader   DraftReader
	queue    chan delivery
}

// NewHub creates a hub. reader may be nil, in which case no snapshot is sent on connect.
func NewHub(config Config, clock clockwork.Clock, reader DraftReader) *Hub {
	return &Hub{
		drafts: make(map[uuid.UUID]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		clock:  clock,
		reader: reader,
		queue:  make(chan delivery, config.QueueSize),
	}
}

// Run dispatches queued events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	log.Info().Msg("websocket hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info().Msg("websocket hub shutting down")
			return nil
		case d := <-h.queue:
			h.dispatch(d)
		}
	}
}

// Publish queues an event for the draft's clients. A full queue drops the event.
func (h *Hub) Publish(_ context.Context, draftID uuid.UUID, eventType string, payload any) {
	data, err := h.encode(draftID, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to encode event for websocket")
		return
	}
	select {
	case h.queue <- delivery{draftID: draftID, data: data}:
	default:
		log.Warn().Str("draft_id", draftID.String()).Msg("broadcast queue full, dropping message")
	}
}

func (h *Hub) encode(draftID uuid.UUID, eventType string, payload any) ([]byte, error) {
	env, err := broadcast.NewEnvelope(draftID, eventType, payload, h.clock.Now())
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func (h *Hub) dispatch(d delivery) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.drafts[d.draftID]))
	for c := range h.drafts[d.draftID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- d.data:
		default:
			log.Warn().
				Str("connection_id", c.id).
				Str("draft_id", d.draftID.String()).
				Msg("connection send buffer full, closing connection")
			h.unregister(c)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.drafts[c.draftID] == nil {
		h.drafts[c.draftID] = make(map[*client]struct{})
	}
	h.drafts[c.draftID][c] = struct{}{}
	log.Debug().
		Str("connection_id", c.id).
		Str("draft_id", c.draftID.String()).
		Int("total_connections", len(h.drafts[c.draftID])).
		Msg("connection registered")
}

// unregister removes c and closes its send channel once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.drafts[c.draftID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.drafts, c.draftID)
	}
	log.Info().
		Str("connection_id", c.id).
		Str("draft_id", c.draftID.String()).
		Msg("connection unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for draftID, clients := range h.drafts {
		for c := range clients {
			close(c.send)
		}
		delete(h.drafts, draftID)
	}
}

// Stats is the /ws/stats response
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveDrafts     int            `json:"active_drafts"`
	DraftConnections map[string]int `json:"draft_connections"`
}

// Stats returns counts of active connections
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Stats{ActiveDrafts: len(h.drafts), DraftConnections: make(map[string]int, len(h.drafts))}
	for draftID, clients := range h.drafts {
		s.TotalConnections += len(clients)
		s.DraftConnections[draftID.String()] = len(clients)
	}
	return s
}
