package domain

import (
	"time"
)

// Side is which half of the map a team is playing.
type Side string

const (
	SideAttacker Side = "attacker"
	SideDefender Side = "defender"
)

// HealthBucket coarsens current/max health into a small label set so the
// advisory layer never sees raw numbers.
type HealthBucket string

const (
	HealthFull     HealthBucket = "full"
	HealthDamaged  HealthBucket = "damaged"
	HealthCritical HealthBucket = "critical"
	HealthUnknown  HealthBucket = "unknown"
)

// ArmorBucket coarsens the armor value the same way.
type ArmorBucket string

const (
	ArmorNone    ArmorBucket = "none"
	ArmorLight   ArmorBucket = "light"
	ArmorHeavy   ArmorBucket = "heavy"
	ArmorUnknown ArmorBucket = "unknown"
)

// HealthBucketFor derives the bucket from current/max health.
// A missing or zero maximum means the feed gave us nothing usable.
func HealthBucketFor(current, maximum float64, known bool) HealthBucket {
	if !known || maximum == 0 {
		return HealthUnknown
	}
	ratio := current / maximum
	if ratio > 0.80 {
		return HealthFull
	}
	if ratio > 0.30 {
		return HealthDamaged
	}
	return HealthCritical
}

// ArmorBucketFor derives the bucket from the raw armor value.
func ArmorBucketFor(armor float64, known bool) ArmorBucket {
	if !known {
		return ArmorUnknown
	}
	if armor <= 0 {
		return ArmorNone
	}
	if armor <= 25 {
		return ArmorLight
	}
	return ArmorHeavy
}

// Position is a player's map coordinates plus the coarse labels derived
// against the bounds of all players in the same game snapshot.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Known    bool    `json:"known"`
	RegionRC string  `json:"region_rc"` // "R3C7" on an 8x8 grid, "Unknown" without bounds
	Quadrant string  `json:"quadrant"`  // NE/NW/SE/SW relative to the bounds midpoint
}

// UnknownPosition is the zero-information position label.
func UnknownPosition() Position {
	return Position{RegionRC: "Unknown", Quadrant: "Unknown"}
}

// PlayerState is one player's condition within a snapshot. It is owned by its
// parent Snapshot and never mutated after construction.
type PlayerState struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	TeamName string       `json:"team_name"`
	Side     Side         `json:"side"`
	Agent    string       `json:"agent"`
	Alive    bool         `json:"alive"`
	Health   HealthBucket `json:"hp_bucket"`
	Armor    ArmorBucket  `json:"armor_bucket"`
	Weapon   string       `json:"weapon,omitempty"`
	Position Position     `json:"position"`
}

// Snapshot is a point-in-time view of one game instance. Snapshots are
// immutable once constructed; the next poll supersedes, never mutates.
type Snapshot struct {
	SeriesID  string                 `json:"series_id"`
	GameID    string                 `json:"game_id"`
	Timestamp time.Time              `json:"timestamp"`
	Players   map[string]PlayerState `json:"players"`
}

// AliveCount returns the number of players currently flagged alive.
func (s *Snapshot) AliveCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

// ChangeKind enumerates the closed set of per-player deltas the differ emits.
type ChangeKind string

const (
	ChangePlayerDied   ChangeKind = "PLAYER_DIED"
	ChangeWeaponChange ChangeKind = "WEAPON_CHANGE"
)

// ChangeEvent is a typed delta between two consecutive snapshots for one
// player. Consumers switch on Kind instead of probing map keys.
type ChangeEvent struct {
	Kind      ChangeKind
	Player    PlayerState // state from the newer snapshot
	OldWeapon string      // set for WEAPON_CHANGE
	NewWeapon string      // set for WEAPON_CHANGE
}

// TacticalEvent types. The first three come from the visual channel, the rest
// from the state channel.
const (
	EventKill       = "KILL"
	EventDeath      = "DEATH"
	EventRoundEnd   = "ROUND_END"
	EventNoEvent    = "NO_EVENT"
	EventVLMError   = "VLM_ERROR"
	EventFirstDeath = "FIRST_DEATH"
)

// TacticalEvent is a derived, higher-level fact for human consumption.
// Appended to the detector's log; never mutated afterwards.
type TacticalEvent struct {
	ID          string            `json:"id"`
	EventType   string            `json:"event_type"`
	Timestamp   time.Time         `json:"timestamp"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// EventSink is the boundary where both sensor channels' events become visible
// to the advisory layer. Implementations must not block the caller for long;
// the pipeline treats publishing as fire-and-forget.
type EventSink interface {
	Publish(ev TacticalEvent)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(ev TacticalEvent)

func (f SinkFunc) Publish(ev TacticalEvent) { f(ev) }
