package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultQuality is used when no quality is configured.
const DefaultQuality = 70

// JPEGEncoder encodes snapshot images as JPEG.
type JPEGEncoder struct {
	quality int
}

// NewJPEGEncoder creates a JPEG encoder with the given quality, clamped to 1-100.
func NewJPEGEncoder(quality int) *JPEGEncoder {
	return &JPEGEncoder{quality: clampQuality(quality)}
}

// Quality returns the effective JPEG quality.
func (e *JPEGEncoder) Quality() int {
	return e.quality
}

func (e *JPEGEncoder) ContentType() string {
	return "image/jpeg"
}

func (e *JPEGEncoder) Encode(img *image.RGBA) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode: nil image")
	}
	var buf bytes.Buffer
	buf.Grow(256 * 1024) // pre-allocate 256KB
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
