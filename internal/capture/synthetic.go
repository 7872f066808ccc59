package capture

import (
	"context"
	"image"
	"image/color"

	"github.com/junsooki/deskhook/internal/snapshot"
)

// Synthetic produces a fixed test pattern with canned text regions. It stands
// in for the desktop on headless machines.
type Synthetic struct {
	Width  int
	Height int
}

// NewSynthetic returns a 640x400 synthetic producer.
func NewSynthetic() *Synthetic {
	return &Synthetic{Width: 640, Height: 400}
}

func (s *Synthetic) Capture(ctx context.Context) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	w, h := s.Width, s.Height
	if w <= 0 {
		w = 640
	}
	if h <= 0 {
		h = 400
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: uint8(x % 255), B: uint8(y % 255), A: 255})
		}
	}

	regions := []snapshot.Region{
		{Text: "deskhook", Rect: snapshot.Rect{w / 16, h / 16, w / 4, h / 20}},
		{Text: "synthetic capture", Rect: snapshot.Rect{w / 16, h / 4, w / 2, h / 20}},
	}
	return Output{Image: img, Regions: regions}, nil
}
