package vision

import (
	"context"
	"image"
	"testing"
	"time"
)

func testFrame(seq uint64) *Frame {
	return &Frame{
		Image:      image.NewRGBA(image.Rect(0, 0, 2, 2)),
		Seq:        seq,
		CapturedAt: time.Now(),
	}
}

func TestSlotLatestWins(t *testing.T) {
	slot := NewFrameSlot()

	slot.Put(testFrame(1))
	slot.Put(testFrame(2))

	got := slot.TryTake()
	if got == nil || got.Seq != 2 {
		t.Fatalf("expected latest frame 2, got %+v", got)
	}
	if slot.Dropped() != 1 {
		t.Errorf("expected 1 dropped frame, got %d", slot.Dropped())
	}
}

func TestSlotTakeIsDestructive(t *testing.T) {
	slot := NewFrameSlot()
	slot.Put(testFrame(1))

	if got := slot.TryTake(); got == nil {
		t.Fatal("expected a frame on first take")
	}
	if got := slot.TryTake(); got != nil {
		t.Fatalf("second take must find the slot empty, got seq %d", got.Seq)
	}
}

func TestSlotTakeWaitsForFrame(t *testing.T) {
	slot := NewFrameSlot()

	go func() {
		time.Sleep(5 * time.Millisecond)
		slot.Put(testFrame(7))
	}()

	got := slot.Take(context.Background(), time.Second)
	if got == nil || got.Seq != 7 {
		t.Fatalf("expected the delayed frame, got %+v", got)
	}
}

func TestSlotTakeTimesOut(t *testing.T) {
	slot := NewFrameSlot()

	start := time.Now()
	if got := slot.Take(context.Background(), 10*time.Millisecond); got != nil {
		t.Fatalf("expected nil on timeout, got seq %d", got.Seq)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout took far too long")
	}
}

func TestSlotTakeStopsOnCancel(t *testing.T) {
	slot := NewFrameSlot()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := slot.Take(ctx, time.Minute); got != nil {
		t.Fatalf("expected nil after cancel, got seq %d", got.Seq)
	}
}

func TestSlotPutNeverBlocks(t *testing.T) {
	slot := NewFrameSlot()

	done := make(chan struct{})
	go func() {
		for i := uint64(1); i <= 100; i++ {
			slot.Put(testFrame(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put blocked with no consumer")
	}

	got := slot.TryTake()
	if got == nil || got.Seq != 100 {
		t.Fatalf("expected last frame 100, got %+v", got)
	}
}
