package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"valorant-scout/internal/domain"

	"github.com/rs/zerolog"
)

// scriptedFetcher returns its results in order, repeating the last one.
type scriptedFetcher struct {
	results []fetchResult
	calls   int
}

type fetchResult struct {
	snap *domain.Snapshot
	err  error
}

func (f *scriptedFetcher) FetchSnapshot(_ context.Context) (*domain.Snapshot, error) {
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	r := f.results[i]
	return r.snap, r.err
}

func newTestPoller(t *testing.T, fetcher SnapshotFetcher) (*StatePoller, *Detector, *HistoryStore) {
	t.Helper()
	detector := NewDetector([]string{"Vandal"}, nil, zerolog.Nop())
	history := NewHistoryStore(5, filepath.Join(t.TempDir(), "history.json"), zerolog.Nop())
	poller := NewStatePoller(fetcher, detector, history, NewGameTracker(), time.Millisecond, zerolog.Nop())
	return poller, detector, history
}

func TestPollerDetectsFirstDeathAcrossTicks(t *testing.T) {
	first := testSnapshot("g1",
		testPlayer("a", "Alpha", true, "Vandal"),
		testPlayer("b", "Bravo", true, "Phantom"),
	)
	second := testSnapshot("g1",
		testPlayer("a", "Alpha", true, "Vandal"),
		testPlayer("b", "Bravo", false, "Phantom"),
	)
	fetcher := &scriptedFetcher{results: []fetchResult{{snap: first}, {snap: second}}}
	poller, detector, history := newTestPoller(t, fetcher)

	poller.tick(context.Background())
	poller.tick(context.Background())

	events := detector.LatestEvents()
	if len(events) != 1 || events[0].EventType != domain.EventFirstDeath {
		t.Fatalf("expected one FIRST_DEATH across ticks, got %v", events)
	}
	if history.Len() != 2 {
		t.Errorf("expected both snapshots in history, got %d", history.Len())
	}
}

func TestPollerSkipsFailedFetch(t *testing.T) {
	snap := testSnapshot("g1", testPlayer("a", "Alpha", true, "Vandal"))
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snap: snap},
		{err: errors.New("upstream unavailable")},
	}}
	poller, _, history := newTestPoller(t, fetcher)

	poller.tick(context.Background())
	poller.tick(context.Background())

	if got := poller.Latest(); got == nil || got.GameID != "g1" {
		t.Fatal("previous snapshot must survive a failed fetch")
	}
	if history.Len() != 1 {
		t.Errorf("failed fetch must not enter history, got %d", history.Len())
	}
}

func TestPollerSkipsEmptySnapshot(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snap: nil}}}
	poller, _, history := newTestPoller(t, fetcher)

	poller.tick(context.Background())

	if poller.Latest() != nil {
		t.Error("empty tick must not set the previous snapshot")
	}
	if history.Len() != 0 {
		t.Errorf("empty tick must not enter history, got %d", history.Len())
	}
}

func TestPollerResetsHistoryOnGameChange(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snap: testSnapshot("g1",
			testPlayer("a", "Alpha", true, "Vandal"),
			testPlayer("b", "Bravo", true, "Phantom"),
		)},
		{snap: testSnapshot("g2",
			testPlayer("a", "Alpha", true, "Vandal"),
			testPlayer("b", "Bravo", false, "Phantom"),
		)},
	}}
	poller, detector, history := newTestPoller(t, fetcher)

	poller.tick(context.Background())
	poller.tick(context.Background())

	if history.Len() != 1 {
		t.Fatalf("rollover must reset history before appending, got %d", history.Len())
	}
	if history.Snapshots()[0].GameID != "g2" {
		t.Errorf("history must only hold the new game")
	}
	// No diff across a rollover; b's death must not fire.
	if events := detector.LatestEvents(); len(events) != 0 {
		t.Errorf("rollover must not produce events, got %d", len(events))
	}
}

func TestPollerTracksCurrentGame(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snap: testSnapshot("g1", testPlayer("a", "Alpha", true, "Vandal"))},
		{snap: testSnapshot("g2", testPlayer("a", "Alpha", true, "Vandal"))},
	}}
	poller, _, _ := newTestPoller(t, fetcher)

	if got := poller.tracker.Current(); got != "" {
		t.Fatalf("tracker = %q before the first poll, want empty", got)
	}

	poller.tick(context.Background())
	if got := poller.tracker.Current(); got != "g1" {
		t.Fatalf("tracker = %q, want g1", got)
	}

	poller.tick(context.Background())
	if got := poller.tracker.Current(); got != "g2" {
		t.Fatalf("tracker = %q after rollover, want g2", got)
	}
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snap: testSnapshot("g1", testPlayer("a", "Alpha", true, "Vandal"))}}}
	poller, _, _ := newTestPoller(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestPollerSummary(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{snap: testSnapshot("g1",
		testPlayer("a", "Alpha", true, "Vandal"),
		testPlayer("b", "Bravo", false, "Phantom"),
	)}}}
	poller, _, _ := newTestPoller(t, fetcher)

	if got := poller.Summary(); got != "No live data available yet." {
		t.Errorf("pre-poll summary = %q", got)
	}

	poller.tick(context.Background())

	summary := poller.Summary()
	if !strings.Contains(summary, "1/2 players alive") {
		t.Errorf("summary missing alive count: %q", summary)
	}
	if !strings.Contains(summary, "a is at R3C7 with Vandal") {
		t.Errorf("summary missing example player: %q", summary)
	}
}
