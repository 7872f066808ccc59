package encoder

import "image"

// Encoder encodes a snapshot image into bytes for the wire.
type Encoder interface {
	Encode(img *image.RGBA) ([]byte, error)
	ContentType() string
}
