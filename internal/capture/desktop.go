package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/junsooki/deskhook/internal/ocr"
)

// Desktop grabs the screen and runs text recognition over it.
type Desktop struct {
	grabber    Grabber
	recognizer ocr.Recognizer
}

// NewDesktop combines a grabber and a recognizer into a Producer.
func NewDesktop(grabber Grabber, recognizer ocr.Recognizer) (*Desktop, error) {
	if grabber == nil {
		return nil, errors.New("grabber is required")
	}
	if recognizer == nil {
		return nil, errors.New("recognizer is required")
	}
	return &Desktop{grabber: grabber, recognizer: recognizer}, nil
}

func (d *Desktop) Capture(ctx context.Context) (Output, error) {
	img, err := d.grabber.Grab(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("capture: grab: %w", err)
	}
	regions, err := d.recognizer.Recognize(ctx, img)
	if err != nil {
		return Output{}, fmt.Errorf("capture: recognize: %w", err)
	}
	return Output{Image: img, Regions: regions}, nil
}
