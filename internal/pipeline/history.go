package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"valorant-scout/internal/domain"
	"valorant-scout/internal/metrics"

	"github.com/rs/zerolog"
)

// HistoryStore keeps a fixed-capacity rolling window of accepted snapshots in
// memory and mirrors a simplified projection to disk after every append. The
// cap is structural: the ring can never hold more than capacity entries.
// Disk writes are best-effort; a failed write never reaches the poller.
type HistoryStore struct {
	mu    sync.Mutex
	buf   []*domain.Snapshot
	start int // index of the oldest entry
	count int

	path   string
	logger zerolog.Logger
}

// PersistedPlayer is the per-player projection written to the history file.
type PersistedPlayer struct {
	Alive    bool   `json:"alive"`
	HPBucket string `json:"hp_bucket"`
	Weapon   string `json:"weapon"`
}

// PersistedSnapshot is one element of the on-disk history array.
type PersistedSnapshot struct {
	SeriesID  string                     `json:"series_id"`
	GameID    string                     `json:"game_id"`
	Timestamp time.Time                  `json:"timestamp"`
	Players   map[string]PersistedPlayer `json:"players"`
}

func NewHistoryStore(capacity int, path string, logger zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		buf:    make([]*domain.Snapshot, capacity),
		path:   path,
		logger: logger,
	}
}

// Append adds a snapshot to the window, evicting the oldest entry when full,
// then rewrites the persisted projection. Snapshots with no players are
// rejected; they count as failed polls upstream and must never enter history.
func (h *HistoryStore) Append(snap *domain.Snapshot) {
	if snap == nil || len(snap.Players) == 0 {
		return
	}

	h.mu.Lock()
	if h.count == len(h.buf) {
		h.buf[h.start] = snap
		h.start = (h.start + 1) % len(h.buf)
	} else {
		h.buf[(h.start+h.count)%len(h.buf)] = snap
		h.count++
	}
	projection := h.projectionLocked()
	size := h.count
	h.mu.Unlock()

	metrics.HistorySize.Set(float64(size))

	if err := h.persist(projection); err != nil {
		metrics.HistoryWriteFailures.Inc()
		h.logger.Error().Err(err).Str("path", h.path).Msg("failed to persist history")
	}
}

// Reset drops the in-memory window and rewrites the file as empty. Called on
// game rollover so history never mixes two games.
func (h *HistoryStore) Reset() {
	h.mu.Lock()
	for i := range h.buf {
		h.buf[i] = nil
	}
	h.start, h.count = 0, 0
	h.mu.Unlock()

	metrics.HistorySize.Set(0)

	if err := h.persist([]PersistedSnapshot{}); err != nil {
		metrics.HistoryWriteFailures.Inc()
		h.logger.Error().Err(err).Str("path", h.path).Msg("failed to persist history reset")
	}
}

// Snapshots returns the in-memory window, oldest first.
func (h *HistoryStore) Snapshots() []*domain.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*domain.Snapshot, 0, h.count)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

// Len returns the number of snapshots currently held.
func (h *HistoryStore) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// ReadPersisted loads the on-disk projection. Used by consumers that need
// history across process restarts, independently of the in-memory window.
func (h *HistoryStore) ReadPersisted() ([]PersistedSnapshot, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []PersistedSnapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var out []PersistedSnapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}
	return out, nil
}

func (h *HistoryStore) projectionLocked() []PersistedSnapshot {
	out := make([]PersistedSnapshot, 0, h.count)
	for i := 0; i < h.count; i++ {
		snap := h.buf[(h.start+i)%len(h.buf)]
		players := make(map[string]PersistedPlayer, len(snap.Players))
		for id, p := range snap.Players {
			players[id] = PersistedPlayer{
				Alive:    p.Alive,
				HPBucket: string(p.Health),
				Weapon:   p.Weapon,
			}
		}
		out = append(out, PersistedSnapshot{
			SeriesID:  snap.SeriesID,
			GameID:    snap.GameID,
			Timestamp: snap.Timestamp,
			Players:   players,
		})
	}
	return out
}

// persist fully rewrites the history file: write to a temp file in the same
// directory, then rename, so readers never observe a torn write.
func (h *HistoryStore) persist(projection []PersistedSnapshot) error {
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(projection, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "history-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp history file: %w", err)
	}
	if err := os.Rename(tmpName, h.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}
