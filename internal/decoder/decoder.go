package decoder

import "image"

// Decoder turns wire image bytes back into an RGBA raster.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}
