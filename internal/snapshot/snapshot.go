package snapshot

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrMalformed is returned when producer output cannot form a snapshot.
var ErrMalformed = errors.New("malformed capture output")

// Rect is a text bounding box as (x, y, width, height) in image pixels.
type Rect [4]int

// Region is one recognized text fragment and where it was found.
type Region struct {
	Text string `json:"text" cbor:"text"`
	Rect Rect   `json:"rect" cbor:"rect"`
}

// Shape describes a raster as (height, width, channels).
type Shape struct {
	Height   int `json:"height" cbor:"height"`
	Width    int `json:"width" cbor:"width"`
	Channels int `json:"channels" cbor:"channels"`
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Height, s.Width, s.Channels)
}

// Snapshot is one timestamped desktop capture.
type Snapshot struct {
	Timestamp time.Time
	Image     *image.RGBA
	Regions   []Region
}

// Build assembles a Snapshot from one capture and the time it became ready.
func Build(img *image.RGBA, regions []Region, ts time.Time) (Snapshot, error) {
	if img == nil {
		return Snapshot{}, fmt.Errorf("%w: nil image", ErrMalformed)
	}
	if img.Rect.Empty() {
		return Snapshot{}, fmt.Errorf("%w: empty image bounds %v", ErrMalformed, img.Rect)
	}

	owned := make([]Region, len(regions))
	copy(owned, regions)

	return Snapshot{
		Timestamp: ts,
		Image:     img,
		Regions:   owned,
	}, nil
}

// Shape reports the image shape. RGBA always carries four channels.
func (s Snapshot) Shape() Shape {
	if s.Image == nil {
		return Shape{}
	}
	b := s.Image.Bounds()
	return Shape{Height: b.Dy(), Width: b.Dx(), Channels: 4}
}
