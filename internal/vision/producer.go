package vision

import (
	"context"
	"image"
	"time"
	"valorant-scout/internal/config"
	"valorant-scout/internal/constants"
	"valorant-scout/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

// FrameProducer continuously captures the killfeed and round-end regions,
// stitches them into one composite, downscales it, and publishes the result
// into the frame slot. It is throttled by a small fixed delay, not by the
// classifier's cadence: a slow classification call never stalls capture.
type FrameProducer struct {
	capturer Capturer
	slot     *FrameSlot
	logger   zerolog.Logger

	killfeed config.Region
	roundEnd config.Region

	// Pre-computed stitch and downscale geometry.
	targetWidth int // composite width = round-end region width
	kfTargetH   int // killfeed height after matching widths
	finalW      int
	finalH      int

	seq uint64
}

func NewFrameProducer(cfg *config.Config, capturer Capturer, slot *FrameSlot, logger zerolog.Logger) *FrameProducer {
	targetWidth := cfg.RoundEndRegion.Width
	kfScale := float64(targetWidth) / float64(cfg.KillfeedRegion.Width)
	kfTargetH := int(float64(cfg.KillfeedRegion.Height) * kfScale)

	return &FrameProducer{
		capturer:    capturer,
		slot:        slot,
		logger:      logger,
		killfeed:    cfg.KillfeedRegion,
		roundEnd:    cfg.RoundEndRegion,
		targetWidth: targetWidth,
		kfTargetH:   kfTargetH,
		finalW:      int(float64(targetWidth) * cfg.DownscaleFactor),
		finalH:      int(float64(cfg.RoundEndRegion.Height+kfTargetH) * cfg.DownscaleFactor),
	}
}

// Run captures until ctx is cancelled. A failed cycle is logged and followed
// by a short pause; the loop itself never terminates on a single error.
func (p *FrameProducer) Run(ctx context.Context) {
	p.logger.Info().
		Int("final_width", p.finalW).
		Int("final_height", p.finalH).
		Msg("frame producer started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("frame producer stopped")
			return
		default:
		}

		frame, err := p.captureComposite()
		if err != nil {
			p.logger.Warn().Err(err).Msg("capture cycle failed")
			select {
			case <-ctx.Done():
			case <-time.After(constants.CaptureBackoff):
			}
			continue
		}

		p.slot.Put(frame)
		metrics.FramesCapturedTotal.Inc()

		select {
		case <-ctx.Done():
		case <-time.After(constants.CaptureThrottle):
		}
	}
}

// captureComposite grabs both regions, resizes the killfeed to the round-end
// width with nearest-neighbor (speed over quality; the downscale pass smooths
// it), stacks round-end above killfeed, and downscales the composite with
// bilinear filtering, the closest x/image has to area averaging at this factor.
func (p *FrameProducer) captureComposite() (*Frame, error) {
	kfRaw, err := p.capturer.Capture(p.killfeed)
	if err != nil {
		return nil, err
	}
	reRaw, err := p.capturer.Capture(p.roundEnd)
	if err != nil {
		return nil, err
	}

	kfResized := image.NewRGBA(image.Rect(0, 0, p.targetWidth, p.kfTargetH))
	draw.NearestNeighbor.Scale(kfResized, kfResized.Bounds(), kfRaw, kfRaw.Bounds(), draw.Src, nil)

	reH := reRaw.Bounds().Dy()
	combined := image.NewRGBA(image.Rect(0, 0, p.targetWidth, reH+p.kfTargetH))
	draw.Draw(combined, image.Rect(0, 0, p.targetWidth, reH), reRaw, reRaw.Bounds().Min, draw.Src)
	draw.Draw(combined, image.Rect(0, reH, p.targetWidth, reH+p.kfTargetH), kfResized, image.Point{}, draw.Src)

	final := image.NewRGBA(image.Rect(0, 0, p.finalW, p.finalH))
	draw.BiLinear.Scale(final, final.Bounds(), combined, combined.Bounds(), draw.Src, nil)

	p.seq++
	return &Frame{Image: final, Seq: p.seq, CapturedAt: time.Now()}, nil
}
