package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes mounts the websocket endpoints on mux
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/drafts/{id}", h.HandleDraftConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleStats)
}

// HandleDraftConnection upgrades the request and subscribes it to one draft's events
func (h *Hub) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid draft id", http.StatusBadRequest)
		return
	}

	var snapshot []byte
	if h.reader != nil {
		d, err := h.reader.GetDraft(r.Context(), draftID)
		if err != nil {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		if snapshot, err = h.encode(draftID, DraftSnapshot, d); err != nil {
			log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to encode draft snapshot")
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to upgrade websocket connection")
		return
	}

	c := &client{
		id:      uuid.NewString(),
		draftID: draftID,
		conn:    conn,
		send:    make(chan []byte, h.config.SendBuffer),
		hub:     h,
	}
	if snapshot != nil {
		c.send <- snapshot
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("draft_id", draftID.String()).
		Msg("websocket connection established")
}

// HandleStats reports active connection counts
func (h *Hub) HandleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write websocket stats")
	}
}
