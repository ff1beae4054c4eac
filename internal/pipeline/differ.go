// Package pipeline contains the state channel of the live monitor: the poll
// loop, the snapshot differ, the tactical-event detector and the bounded
// history window. The visual channel lives in internal/vision; both terminate
// at the same EventSink.
package pipeline

import (
	"sort"
	"valorant-scout/internal/domain"
)

// Diff compares two consecutive snapshots and emits typed per-player deltas.
// A nil old snapshot yields nothing: the first poll after startup must not
// produce spurious events. Players present in only one snapshot are skipped;
// join/leave is not modeled. Events are emitted in sorted player-key order so
// output is deterministic across runs.
func Diff(old, current *domain.Snapshot) []domain.ChangeEvent {
	if old == nil {
		return nil
	}

	keys := make([]string, 0, len(current.Players))
	for id := range current.Players {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	var changes []domain.ChangeEvent
	for _, id := range keys {
		newP := current.Players[id]
		oldP, ok := old.Players[id]
		if !ok {
			continue
		}

		if oldP.Alive && !newP.Alive {
			changes = append(changes, domain.ChangeEvent{
				Kind:   domain.ChangePlayerDied,
				Player: newP,
			})
		}

		if oldP.Weapon != newP.Weapon && newP.Weapon != "" {
			changes = append(changes, domain.ChangeEvent{
				Kind:      domain.ChangeWeaponChange,
				Player:    newP,
				OldWeapon: oldP.Weapon,
				NewWeapon: newP.Weapon,
			})
		}
	}
	return changes
}
