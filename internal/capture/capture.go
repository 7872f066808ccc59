package capture

import (
	"context"
	"image"

	"github.com/junsooki/deskhook/internal/snapshot"
)

// Output is the raw content of one capture: the desktop image and the text
// regions recognized in it, in recognition order.
type Output struct {
	Image   *image.RGBA
	Regions []snapshot.Region
}

// Producer yields one capture per call. Calls block until the capture is done.
type Producer interface {
	Capture(ctx context.Context) (Output, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context) (Output, error)

func (f ProducerFunc) Capture(ctx context.Context) (Output, error) {
	return f(ctx)
}

// Grabber captures a raw desktop image.
type Grabber interface {
	Grab(ctx context.Context) (*image.RGBA, error)
}
