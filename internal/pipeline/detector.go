package pipeline

import (
	"fmt"
	"sync"
	"time"
	"valorant-scout/internal/constants"
	"valorant-scout/internal/domain"
	"valorant-scout/internal/metrics"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Detector applies pattern rules to change events, appends tactical events to
// its log and maintains a deduplicated conclusion list. The log is drained by
// the consumer via ClearEvents; the detector itself never expires entries.
type Detector struct {
	mu          sync.Mutex
	log         []domain.TacticalEvent
	conclusions []string
	seen        map[string]struct{}

	premium map[string]struct{}
	sink    domain.EventSink
	logger  zerolog.Logger

	// onConclusion fires for each newly accepted conclusion, outside any rule
	// logic. Used to mirror conclusions into the archive.
	onConclusion func(text string, at time.Time)

	now func() time.Time
}

func NewDetector(premiumWeapons []string, sink domain.EventSink, logger zerolog.Logger) *Detector {
	premium := make(map[string]struct{}, len(premiumWeapons))
	for _, w := range premiumWeapons {
		premium[w] = struct{}{}
	}
	return &Detector{
		seen:    make(map[string]struct{}),
		premium: premium,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// SetConclusionHook registers a callback for newly accepted conclusions.
// Must be called before the poller starts.
func (d *Detector) SetConclusionHook(hook func(text string, at time.Time)) {
	d.onConclusion = hook
}

// ProcessChange evaluates one change event against the current snapshot.
// Rules are independent; each may append at most one event or conclusion.
func (d *Detector) ProcessChange(change domain.ChangeEvent, snap *domain.Snapshot) {
	switch change.Kind {
	case domain.ChangePlayerDied:
		d.onPlayerDied(change.Player, snap)
	case domain.ChangeWeaponChange:
		d.onWeaponChange(change.Player, change.NewWeapon)
	}
}

// onPlayerDied logs FIRST_DEATH when the death leaves exactly total-1 players
// alive. The comparison is against players present in the snapshot, so a
// disconnected player shifts the count; that matches the upstream feed's
// semantics and is kept deliberately.
func (d *Detector) onPlayerDied(player domain.PlayerState, snap *domain.Snapshot) {
	alive := snap.AliveCount()
	total := len(snap.Players)
	if alive != total-1 {
		return
	}

	position := fmt.Sprintf("%s (%s)", player.Position.RegionRC, player.Position.Quadrant)
	ev := domain.TacticalEvent{
		ID:          newEventID(),
		EventType:   domain.EventFirstDeath,
		Timestamp:   d.now(),
		Description: fmt.Sprintf("First death of the round: %s (%s)", player.Name, player.TeamName),
		Metadata: map[string]string{
			"player":   player.Name,
			"team":     player.TeamName,
			"position": position,
			"side":     string(player.Side),
		},
	}

	d.appendEvent(ev)
	d.addConclusion(fmt.Sprintf("Entry engagement lost by %s at %s.", player.TeamName, player.Position.RegionRC))
}

// onWeaponChange records a buy-strength conclusion for premium pickups.
// Conclusion only; no tactical event is logged for this rule.
func (d *Detector) onWeaponChange(player domain.PlayerState, newWeapon string) {
	if _, ok := d.premium[newWeapon]; !ok {
		return
	}
	d.addConclusion(fmt.Sprintf("%s upgraded to %s. Strength increased.", player.Name, newWeapon))
}

func (d *Detector) appendEvent(ev domain.TacticalEvent) {
	d.mu.Lock()
	d.log = append(d.log, ev)
	d.mu.Unlock()

	metrics.TacticalEventsTotal.WithLabelValues(ev.EventType).Inc()
	d.logger.Info().
		Str("event_type", ev.EventType).
		Str("description", ev.Description).
		Msg("tactical event")

	if d.sink != nil {
		d.sink.Publish(ev)
	}
}

func (d *Detector) addConclusion(text string) {
	d.mu.Lock()
	if _, dup := d.seen[text]; dup {
		d.mu.Unlock()
		return
	}
	d.seen[text] = struct{}{}
	d.conclusions = append(d.conclusions, text)
	d.mu.Unlock()

	d.logger.Info().Str("conclusion", text).Msg("tactical conclusion")
	if d.onConclusion != nil {
		d.onConclusion(text, d.now())
	}
}

// LatestEvents returns at most the last EventWindow events, most recent last.
// The caller owns the returned slice.
func (d *Detector) LatestEvents() []domain.TacticalEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lastN(d.log, constants.EventWindow)
}

// Conclusions returns at most the last EventWindow conclusions, most recent last.
func (d *Detector) Conclusions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lastN(d.conclusions, constants.EventWindow)
}

// ClearEvents empties the event log. Consumers call this after draining; the
// conclusion list and its dedup set survive, conclusions are cumulative.
func (d *Detector) ClearEvents() {
	d.mu.Lock()
	d.log = nil
	d.mu.Unlock()
}

func lastN[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func newEventID() string {
	id, err := gonanoid.New()
	if err != nil {
		return ""
	}
	return id
}
