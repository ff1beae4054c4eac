// Package metrics exposes pipeline counters with bounded label cardinality.
// Labels only ever take values from closed enumerations (event kinds, labels),
// never player or series identifiers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_polls_total",
		Help: "State poll attempts",
	})

	PollFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_poll_failures_total",
		Help: "State polls that returned no usable snapshot",
	})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scout_poll_duration_seconds",
		Help:    "Time spent fetching and processing one snapshot",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	ChangeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_change_events_total",
		Help: "Change events emitted by the snapshot differ",
	}, []string{"kind"}) // bounded: PLAYER_DIED, WEAPON_CHANGE

	TacticalEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_tactical_events_total",
		Help: "Tactical events appended to the log",
	}, []string{"type"})

	PlayersAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scout_players_alive",
		Help: "Alive players in the latest snapshot",
	})

	HistorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scout_history_size",
		Help: "Snapshots currently held in the rolling window",
	})

	HistoryWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_history_write_failures_total",
		Help: "Failed best-effort history file writes",
	})

	FramesCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_frames_captured_total",
		Help: "Composite frames produced by the capture loop",
	})

	FramesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_frames_dropped_total",
		Help: "Frames overwritten in the slot before any consumer took them",
	})

	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scout_classifications_total",
		Help: "Classifier results by label",
	}, []string{"label"}) // bounded: KILL, DEATH, ROUND_END, NO_EVENT, ERROR

	ClassifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scout_classify_duration_seconds",
		Help:    "Round-trip time of one classification call",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	})

	EventsDebouncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_events_debounced_total",
		Help: "Visual events suppressed by the cooldown window",
	})
)
