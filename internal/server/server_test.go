package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"valorant-scout/internal/config"
	"valorant-scout/internal/database"
	"valorant-scout/internal/domain"
	"valorant-scout/internal/pipeline"
	"valorant-scout/internal/repository"

	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*Server, *pipeline.Detector, *repository.EventRepository) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		GridSeriesID: "series-1",
		DBPath:       filepath.Join(dir, "scout.db"),
	}

	db, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	events := repository.NewEventRepository(db, zerolog.Nop())
	detector := pipeline.NewDetector([]string{"Vandal"}, nil, zerolog.Nop())
	history := pipeline.NewHistoryStore(5, filepath.Join(dir, "history.json"), zerolog.Nop())
	poller := pipeline.NewStatePoller(nil, detector, history, pipeline.NewGameTracker(), time.Second, zerolog.Nop())
	hub := NewHub(zerolog.Nop())

	return New(cfg, detector, poller, history, events, hub, zerolog.Nop()), detector, events
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestLatestEventsAndClear(t *testing.T) {
	s, detector, _ := newTestServer(t)

	dead := domain.PlayerState{ID: "b", Name: "b", TeamName: "Bravo", Alive: false, Position: domain.UnknownPosition()}
	snap := &domain.Snapshot{GameID: "g1", Players: map[string]domain.PlayerState{
		"a": {ID: "a", Alive: true},
		"b": dead,
	}}
	detector.ProcessChange(domain.ChangeEvent{Kind: domain.ChangePlayerDied, Player: dead}, snap)

	rec := doRequest(t, s, http.MethodGet, "/api/events/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Events []domain.TacticalEvent `json:"events"`
	}
	decodeBody(t, rec, &body)
	if len(body.Events) != 1 || body.Events[0].EventType != domain.EventFirstDeath {
		t.Fatalf("unexpected events: %+v", body.Events)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/events/clear"); rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/events/latest")
	decodeBody(t, rec, &body)
	if len(body.Events) != 0 {
		t.Errorf("expected empty window after clear, got %d", len(body.Events))
	}
}

func TestSnapshotBeforeFirstPoll(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	summary, _ := body["summary"].(string)
	if !strings.Contains(summary, "No live data") {
		t.Errorf("summary = %q", summary)
	}
	if _, present := body["snapshot"]; present {
		t.Error("snapshot must be omitted before the first poll")
	}
}

func TestHistoryEndpointEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		History []pipeline.PersistedSnapshot `json:"history"`
	}
	decodeBody(t, rec, &body)
	if len(body.History) != 0 {
		t.Errorf("expected empty history, got %d entries", len(body.History))
	}
}

func TestArchiveEndpoint(t *testing.T) {
	s, _, events := newTestServer(t)

	ev := domain.TacticalEvent{EventType: domain.EventKill, Timestamp: time.Now().UTC(), Description: "kill seen"}
	if err := events.InsertEvent(context.Background(), "series-1", "g1", ev); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/archive/events?limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Events []domain.TacticalEvent `json:"events"`
	}
	decodeBody(t, rec, &body)
	if len(body.Events) != 1 || body.Events[0].EventType != domain.EventKill {
		t.Fatalf("unexpected archive contents: %+v", body.Events)
	}
}

func TestRequestIDHeaderSet(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on responses")
	}
}
