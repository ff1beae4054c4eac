package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
	"valorant-scout/internal/constants"
	"valorant-scout/internal/domain"
	"valorant-scout/internal/metrics"

	"github.com/rs/zerolog"
)

// SnapshotFetcher is the state-source boundary. A nil snapshot with nil error
// means no data this tick; both failure modes are handled identically.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// StatePoller drives the state channel: fetch, diff, detect, persist, on a
// fixed interval. It is the sole owner of the previous-snapshot state; no
// other goroutine writes it. One bad tick never stops the loop.
type StatePoller struct {
	fetcher  SnapshotFetcher
	detector *Detector
	history  *HistoryStore
	tracker  *GameTracker
	interval time.Duration
	logger   zerolog.Logger

	mu   sync.RWMutex
	prev *domain.Snapshot
}

func NewStatePoller(fetcher SnapshotFetcher, detector *Detector, history *HistoryStore, tracker *GameTracker, interval time.Duration, logger zerolog.Logger) *StatePoller {
	return &StatePoller{
		fetcher:  fetcher,
		detector: detector,
		history:  history,
		tracker:  tracker,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. The stop signal is checked once per
// iteration; an in-flight fetch is allowed to finish before the loop exits.
func (p *StatePoller) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("state poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("state poller stopped")
			return
		case <-ticker.C:
			if err := p.safeTick(ctx); err != nil {
				p.logger.Error().Err(err).Msg("poll tick failed")
				select {
				case <-ctx.Done():
				case <-time.After(constants.TickBackoff):
				}
			}
		}
	}
}

// safeTick isolates a single tick: a panic in any downstream stage is turned
// into an error and absorbed by the loop.
func (p *StatePoller) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in poll tick: %v", r)
		}
	}()
	p.tick(ctx)
	return nil
}

func (p *StatePoller) tick(ctx context.Context) {
	start := time.Now()
	metrics.PollsTotal.Inc()

	fetchCtx, cancel := context.WithTimeout(ctx, constants.GridAPITimeout)
	snap, err := p.fetcher.FetchSnapshot(fetchCtx)
	cancel()

	if err != nil {
		metrics.PollFailuresTotal.Inc()
		p.logger.Warn().Err(err).Msg("snapshot fetch failed, skipping tick")
		return
	}
	if snap == nil || len(snap.Players) == 0 {
		metrics.PollFailuresTotal.Inc()
		p.logger.Debug().Msg("no snapshot this tick")
		return
	}

	prev := p.Latest()

	// Game rollover: history must never mix two games.
	if prev != nil && prev.GameID != snap.GameID {
		p.logger.Info().
			Str("old_game_id", prev.GameID).
			Str("new_game_id", snap.GameID).
			Msg("game changed, resetting history")
		p.history.Reset()
		prev = nil
	}
	p.tracker.Set(snap.GameID)

	changes := Diff(prev, snap)
	for _, change := range changes {
		metrics.ChangeEventsTotal.WithLabelValues(string(change.Kind)).Inc()
		p.detector.ProcessChange(change, snap)
	}

	p.history.Append(snap)

	p.mu.Lock()
	p.prev = snap
	p.mu.Unlock()

	metrics.PlayersAlive.Set(float64(snap.AliveCount()))
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	p.logger.Debug().
		Str("game_id", snap.GameID).
		Int("players", len(snap.Players)).
		Int("changes", len(changes)).
		Msg("tick processed")
}

// Latest returns the most recently accepted snapshot, or nil before the first
// successful poll.
func (p *StatePoller) Latest() *domain.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prev
}

// Summary renders a short text view of the latest snapshot for the advisory
// layer.
func (p *StatePoller) Summary() string {
	snap := p.Latest()
	if snap == nil {
		return "No live data available yet."
	}

	alive := snap.AliveCount()
	total := len(snap.Players)
	summary := fmt.Sprintf("Snapshot (game %s): %d/%d players alive.", snap.GameID, alive, total)

	for _, player := range snap.Players {
		if !player.Alive {
			continue
		}
		weapon := player.Weapon
		if weapon == "" {
			weapon = "no weapon"
		}
		summary += fmt.Sprintf(" Example: %s is at %s with %s.", player.Name, player.Position.RegionRC, weapon)
		break
	}
	return summary
}
