package vision

import (
	"bytes"
	"context"
	"image/jpeg"
	"strconv"
	"strings"
	"time"
	"valorant-scout/internal/constants"
	"valorant-scout/internal/domain"
	"valorant-scout/internal/metrics"

	"github.com/rs/zerolog"
)

// actionableLabels are surfaced through the debounce window; everything else
// passes straight through as a liveness signal.
var actionableLabels = []string{domain.EventKill, domain.EventDeath, domain.EventRoundEnd}

// FrameClassifier consumes the latest frame on its own cadence, runs one
// classification per tick, and surfaces the result as a debounced event.
// It owns the debounce state exclusively.
type FrameClassifier struct {
	slot       *FrameSlot
	classifier Classifier
	sink       domain.EventSink
	logger     zerolog.Logger

	interval time.Duration
	cooldown time.Duration
	quality  int

	lastSurfaced map[string]time.Time

	now func() time.Time
}

func NewFrameClassifier(slot *FrameSlot, classifier Classifier, sink domain.EventSink, interval, cooldown time.Duration, logger zerolog.Logger) *FrameClassifier {
	return &FrameClassifier{
		slot:         slot,
		classifier:   classifier,
		sink:         sink,
		logger:       logger,
		interval:     interval,
		cooldown:     cooldown,
		quality:      constants.DefaultJPEGQuality,
		lastSurfaced: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Run classifies until ctx is cancelled. An empty slot is "no event this
// tick", not an error; a classification failure is surfaced as a VLM_ERROR
// pseudo-event so operators can observe liveness.
func (c *FrameClassifier) Run(ctx context.Context) {
	c.logger.Info().
		Dur("interval", c.interval).
		Dur("cooldown", c.cooldown).
		Msg("frame classifier started")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("frame classifier stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *FrameClassifier) tick(ctx context.Context) {
	frame := c.slot.Take(ctx, constants.FrameTakeTimeout)
	if frame == nil {
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: c.quality}); err != nil {
		c.logger.Warn().Err(err).Msg("frame encode failed")
		return
	}

	classifyCtx, cancel := context.WithTimeout(ctx, constants.ClassifyTimeout)
	start := time.Now()
	raw, err := c.classifier.Classify(classifyCtx, buf.Bytes())
	cancel()
	metrics.ClassifyDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ClassificationsTotal.WithLabelValues("ERROR").Inc()
		c.logger.Warn().Err(err).Msg("classification failed")
		c.surface(domain.TacticalEvent{
			EventType:   domain.EventVLMError,
			Timestamp:   c.now(),
			Description: err.Error(),
		})
		return
	}

	label := ParseLabel(raw)
	metrics.ClassificationsTotal.WithLabelValues(label).Inc()

	ev := domain.TacticalEvent{
		EventType: label,
		Timestamp: c.now(),
	}

	if isActionable(label) {
		if !c.debounce(label) {
			metrics.EventsDebouncedTotal.Inc()
			return
		}
		ev.Description = "Visual channel detected " + label
		ev.Metadata = map[string]string{"frame_seq": strconv.FormatUint(frame.Seq, 10)}
	}

	c.surface(ev)
}

// debounce reports whether the label may be surfaced now and records the
// surfacing time when it may.
func (c *FrameClassifier) debounce(label string) bool {
	now := c.now()
	if last, ok := c.lastSurfaced[label]; ok && now.Sub(last) < c.cooldown {
		return false
	}
	c.lastSurfaced[label] = now
	return true
}

func (c *FrameClassifier) surface(ev domain.TacticalEvent) {
	if isActionable(ev.EventType) || ev.EventType == domain.EventVLMError {
		c.logger.Info().Str("event_type", ev.EventType).Msg("visual event")
	}
	if c.sink != nil {
		c.sink.Publish(ev)
	}
}

// ParseLabel maps raw model output onto the closed label set by containment
// match, defaulting to NO_EVENT.
func ParseLabel(raw string) string {
	text := strings.ToUpper(strings.TrimSpace(raw))
	for _, label := range []string{domain.EventKill, domain.EventDeath, domain.EventRoundEnd, domain.EventNoEvent} {
		if strings.Contains(text, label) {
			return label
		}
	}
	return domain.EventNoEvent
}

func isActionable(label string) bool {
	for _, l := range actionableLabels {
		if label == l {
			return true
		}
	}
	return false
}
