package server

import (
	"net/http"
	"sync"
	"time"
	"valorant-scout/internal/constants"
	"valorant-scout/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub broadcasts every published event to all connected websocket consumers.
// It is the live half of the event surface; Publish never blocks the pipeline
// beyond the per-client write deadline.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Consumers are local advisory processes; origin checks add nothing.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: constants.HubWriteTimeout,
		logger:       logger,
	}
}

// Publish implements domain.EventSink. Every write carries a deadline; a
// consumer that stops reading times out and is dropped, so a stalled client
// can hold up Publish for at most writeTimeout.
func (h *Hub) Publish(ev domain.TacticalEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug().Err(err).Msg("dropping slow websocket consumer")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// HandleLive upgrades the request and registers the consumer. The read loop
// exists only to observe the close handshake.
func (h *Hub) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("consumers", count).Msg("event consumer connected")

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects all consumers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
