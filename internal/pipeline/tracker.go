package pipeline

import "sync"

// GameTracker holds the id of the game currently being played. The poller is
// the sole writer; sinks outside the poll loop read it to stamp archived
// records with the game they belong to.
type GameTracker struct {
	mu sync.RWMutex
	id string
}

func NewGameTracker() *GameTracker {
	return &GameTracker{}
}

func (t *GameTracker) Set(id string) {
	t.mu.Lock()
	t.id = id
	t.mu.Unlock()
}

// Current returns the latest game id, empty before the first accepted poll.
func (t *GameTracker) Current() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}
