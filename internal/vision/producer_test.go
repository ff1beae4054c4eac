package vision

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"
	"valorant-scout/internal/config"

	"github.com/rs/zerolog"
)

// regionCapturer returns a blank image sized to the requested region.
type regionCapturer struct {
	err error
}

func (c *regionCapturer) Capture(r config.Region) (*image.RGBA, error) {
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(image.Rect(0, 0, r.Width, r.Height)), nil
}

func producerConfig() *config.Config {
	return &config.Config{
		KillfeedRegion:  config.Region{Left: 1240, Top: 40, Width: 640, Height: 260},
		RoundEndRegion:  config.Region{Left: 350, Top: 260, Width: 1220, Height: 340},
		DownscaleFactor: 0.5,
	}
}

func TestCompositeGeometry(t *testing.T) {
	slot := NewFrameSlot()
	p := NewFrameProducer(producerConfig(), &regionCapturer{}, slot, zerolog.Nop())

	frame, err := p.captureComposite()
	if err != nil {
		t.Fatalf("captureComposite: %v", err)
	}

	// Killfeed widened 640->1220 gives height 495; stacked 340+495, halved.
	bounds := frame.Image.Bounds()
	if bounds.Dx() != 610 {
		t.Errorf("final width = %d, want 610", bounds.Dx())
	}
	if bounds.Dy() != 417 {
		t.Errorf("final height = %d, want 417", bounds.Dy())
	}
}

func TestCompositeSequenceIncrements(t *testing.T) {
	slot := NewFrameSlot()
	p := NewFrameProducer(producerConfig(), &regionCapturer{}, slot, zerolog.Nop())

	f1, err := p.captureComposite()
	if err != nil {
		t.Fatal(err)
	}
	f2, err := p.captureComposite()
	if err != nil {
		t.Fatal(err)
	}
	if f1.Seq != 1 || f2.Seq != 2 {
		t.Errorf("sequence = %d, %d, want 1, 2", f1.Seq, f2.Seq)
	}
}

func TestCompositeCaptureError(t *testing.T) {
	slot := NewFrameSlot()
	p := NewFrameProducer(producerConfig(), &regionCapturer{err: errors.New("display gone")}, slot, zerolog.Nop())

	if _, err := p.captureComposite(); err == nil {
		t.Fatal("expected capture error to propagate")
	}
}

func TestProducerRunPublishesAndStops(t *testing.T) {
	slot := NewFrameSlot()
	p := NewFrameProducer(producerConfig(), &regionCapturer{}, slot, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for slot.TryTake() == nil {
		select {
		case <-deadline:
			t.Fatal("producer never published a frame")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
