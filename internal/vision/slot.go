// Package vision contains the visual channel of the live monitor: screen
// capture and compositing, the single-slot frame hand-off, and the debounced
// classification loop.
package vision

import (
	"context"
	"image"
	"sync/atomic"
	"time"
	"valorant-scout/internal/metrics"
)

// Frame is one composite capture ready for classification.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

// FrameSlot is a latest-wins hand-off between the capture loop and the
// classifier: a capacity-1 channel with drain-then-insert on the producer
// side. The producer never blocks; the consumer only ever sees the most
// recent frame, and a destructive read empties the slot.
type FrameSlot struct {
	ch      chan *Frame
	dropped atomic.Uint64
}

func NewFrameSlot() *FrameSlot {
	return &FrameSlot{ch: make(chan *Frame, 1)}
}

// Put inserts a frame, discarding any unconsumed one first.
func (s *FrameSlot) Put(f *Frame) {
	for {
		select {
		case s.ch <- f:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
			metrics.FramesDroppedTotal.Inc()
		default:
		}
	}
}

// Take removes and returns the buffered frame, waiting up to wait for one to
// arrive. Returns nil when the slot stays empty or ctx is cancelled.
func (s *FrameSlot) Take(ctx context.Context, wait time.Duration) *Frame {
	select {
	case f := <-s.ch:
		return f
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case f := <-s.ch:
		return f
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// TryTake removes and returns the buffered frame without waiting.
func (s *FrameSlot) TryTake() *Frame {
	select {
	case f := <-s.ch:
		return f
	default:
		return nil
	}
}

// Dropped reports how many frames were overwritten before being consumed.
func (s *FrameSlot) Dropped() uint64 {
	return s.dropped.Load()
}
