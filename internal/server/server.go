// Package server exposes the pipeline's event surface to the advisory layer:
// JSON endpoints for the bounded event/conclusion windows, the persisted
// history projection, the sqlite archive, and a websocket feed of live events.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"valorant-scout/internal/config"
	"valorant-scout/internal/constants"
	"valorant-scout/internal/middleware"
	"valorant-scout/internal/pipeline"
	"valorant-scout/internal/repository"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const archiveQueryLimit = 100

type Server struct {
	cfg      *config.Config
	detector *pipeline.Detector
	poller   *pipeline.StatePoller
	history  *pipeline.HistoryStore
	events   *repository.EventRepository
	hub      *Hub
	logger   zerolog.Logger
}

func New(
	cfg *config.Config,
	detector *pipeline.Detector,
	poller *pipeline.StatePoller,
	history *pipeline.HistoryStore,
	events *repository.EventRepository,
	hub *Hub,
	logger zerolog.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		detector: detector,
		poller:   poller,
		history:  history,
		events:   events,
		hub:      hub,
		logger:   logger,
	}
}

// Handler assembles the mux with CORS and request-id logging applied to the
// API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/events/latest", s.handleLatestEvents)
	mux.HandleFunc("POST /api/events/clear", s.handleClearEvents)
	mux.HandleFunc("GET /api/conclusions", s.handleConclusions)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/archive/events", s.handleArchive)
	mux.HandleFunc("GET /api/events/live", s.hub.HandleLive)
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.RequestID(s.logger)(c.Handler(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLatestEvents returns the bounded event window. Consumers are expected
// to POST /api/events/clear once they have drained it.
func (s *Server) handleLatestEvents(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events": s.detector.LatestEvents(),
	})
}

func (s *Server) handleClearEvents(w http.ResponseWriter, _ *http.Request) {
	s.detector.ClearEvents()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConclusions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"conclusions": s.detector.Conclusions(),
	})
}

// handleHistory serves the persisted projection, not the in-memory window, so
// it reflects what survives a restart.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.history.ReadPersisted()
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read persisted history")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"summary": s.poller.Summary(),
	}
	if snap := s.poller.Latest(); snap != nil {
		resp["snapshot"] = snap
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	limit := constants.EventWindow
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= archiveQueryLimit {
			limit = n
		}
	}

	events, err := s.events.RecentEvents(r.Context(), s.cfg.GridSeriesID, limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read event archive")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode response")
	}
}
