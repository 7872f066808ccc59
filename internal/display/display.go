// Package display renders received desktop snapshots in a window.
package display

import (
	"math"

	"github.com/junsooki/deskhook/internal/snapshot"
)

// Display renders snapshots until the window is closed.
type Display interface {
	SetSnapshot(snap snapshot.Snapshot)
	SetStatus(status string)
	Run() error
}

// Box is a rectangle in window coordinates.
type Box struct {
	X, Y, W, H float64
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	if frameW <= 0 || frameH <= 0 {
		return 1, 0, 0
	}
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}

// regionBoxes maps snapshot regions into window coordinates.
func regionBoxes(regions []snapshot.Region, scale, offsetX, offsetY float64) []Box {
	boxes := make([]Box, 0, len(regions))
	for _, r := range regions {
		boxes = append(boxes, Box{
			X: offsetX + float64(r.Rect[0])*scale,
			Y: offsetY + float64(r.Rect[1])*scale,
			W: float64(r.Rect[2]) * scale,
			H: float64(r.Rect[3]) * scale,
		})
	}
	return boxes
}
