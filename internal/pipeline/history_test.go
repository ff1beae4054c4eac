package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestHistory(t *testing.T, capacity int) *HistoryStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	return NewHistoryStore(capacity, path, zerolog.Nop())
}

func TestHistoryAppendCapsWindow(t *testing.T) {
	h := newTestHistory(t, 3)

	for _, id := range []string{"g1", "g2", "g3", "g4", "g5"} {
		h.Append(testSnapshot(id, testPlayer("a", "Alpha", true, "Vandal")))
	}

	if h.Len() != 3 {
		t.Fatalf("expected window of 3, got %d", h.Len())
	}

	snaps := h.Snapshots()
	if snaps[0].GameID != "g3" || snaps[2].GameID != "g5" {
		t.Errorf("expected oldest-first g3..g5, got %s..%s", snaps[0].GameID, snaps[2].GameID)
	}
}

func TestHistoryRejectsEmptySnapshot(t *testing.T) {
	h := newTestHistory(t, 3)

	h.Append(nil)
	h.Append(testSnapshot("g1"))

	if h.Len() != 0 {
		t.Fatalf("empty snapshots must be rejected, got len %d", h.Len())
	}
	if _, err := os.Stat(h.path); !os.IsNotExist(err) {
		t.Errorf("rejected appends must not touch the history file")
	}
}

func TestHistoryPersistRoundTrip(t *testing.T) {
	h := newTestHistory(t, 5)

	h.Append(testSnapshot("g1", testPlayer("a", "Alpha", true, "Vandal")))
	h.Append(testSnapshot("g1",
		testPlayer("a", "Alpha", true, "Vandal"),
		testPlayer("b", "Bravo", false, "Phantom"),
	))

	persisted, err := h.ReadPersisted()
	if err != nil {
		t.Fatalf("ReadPersisted: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted snapshots, got %d", len(persisted))
	}

	last := persisted[1]
	if last.SeriesID != "series-1" || last.GameID != "g1" {
		t.Errorf("unexpected ids: %s/%s", last.SeriesID, last.GameID)
	}
	b, ok := last.Players["b"]
	if !ok {
		t.Fatal("player b missing from projection")
	}
	if b.Alive {
		t.Error("player b should be persisted as dead")
	}
	if b.HPBucket != "full" {
		t.Errorf("hp_bucket = %q, want full", b.HPBucket)
	}
	if b.Weapon != "Phantom" {
		t.Errorf("weapon = %q, want Phantom", b.Weapon)
	}
}

func TestHistoryPersistedFileCapped(t *testing.T) {
	h := newTestHistory(t, 2)

	for _, id := range []string{"g1", "g2", "g3"} {
		h.Append(testSnapshot(id, testPlayer("a", "Alpha", true, "Vandal")))
	}

	persisted, err := h.ReadPersisted()
	if err != nil {
		t.Fatalf("ReadPersisted: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("persisted file must mirror the capped window, got %d entries", len(persisted))
	}
	if persisted[0].GameID != "g2" {
		t.Errorf("expected oldest surviving entry g2, got %s", persisted[0].GameID)
	}
}

func TestHistoryReset(t *testing.T) {
	h := newTestHistory(t, 3)

	h.Append(testSnapshot("g1", testPlayer("a", "Alpha", true, "Vandal")))
	h.Reset()

	if h.Len() != 0 {
		t.Fatalf("expected empty window after reset, got %d", h.Len())
	}
	persisted, err := h.ReadPersisted()
	if err != nil {
		t.Fatalf("ReadPersisted: %v", err)
	}
	if len(persisted) != 0 {
		t.Errorf("reset must rewrite the file as empty, got %d entries", len(persisted))
	}
}

func TestHistoryReadPersistedMissingFile(t *testing.T) {
	h := newTestHistory(t, 3)

	persisted, err := h.ReadPersisted()
	if err != nil {
		t.Fatalf("missing file must not be an error, got %v", err)
	}
	if len(persisted) != 0 {
		t.Errorf("expected empty history, got %d entries", len(persisted))
	}
}

func TestHistoryWriteFailureKeepsMemory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// MkdirAll fails because a regular file sits where the directory should be.
	h := NewHistoryStore(3, filepath.Join(blocker, "sub", "history.json"), zerolog.Nop())

	h.Append(testSnapshot("g1", testPlayer("a", "Alpha", true, "Vandal")))

	if h.Len() != 1 {
		t.Fatalf("in-memory window must survive a failed write, got len %d", h.Len())
	}
}
