package vision

import (
	"fmt"
	"image"
	"valorant-scout/internal/config"

	"github.com/kbinani/screenshot"
)

// Capturer is the screen-capture boundary. Implementations return the raw
// pixels of one fixed region per call.
type Capturer interface {
	Capture(r config.Region) (*image.RGBA, error)
}

// ScreenCapturer grabs regions from the primary display.
type ScreenCapturer struct{}

func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{}
}

func (c *ScreenCapturer) Capture(r config.Region) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height))
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	return img, nil
}
