package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenGrabber captures a single display.
type ScreenGrabber struct {
	display int
}

// NewScreenGrabber creates a grabber for the given display index (0 = primary).
func NewScreenGrabber(displayIndex int) (*ScreenGrabber, error) {
	if displayIndex < 0 {
		return nil, fmt.Errorf("display index must be >= 0, got %d", displayIndex)
	}
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	if displayIndex >= n {
		return nil, fmt.Errorf("display index %d out of range (have %d displays)", displayIndex, n)
	}
	return &ScreenGrabber{display: displayIndex}, nil
}

// Display returns the display index being captured.
func (g *ScreenGrabber) Display() int {
	return g.display
}

func (g *ScreenGrabber) Grab(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bounds := screenshot.GetDisplayBounds(g.display)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", g.display, err)
	}
	return img, nil
}
