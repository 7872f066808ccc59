package display

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/junsooki/deskhook/internal/snapshot"
)

var regionColor = color.RGBA{R: 0xff, G: 0xc8, B: 0x00, A: 0xff}

// EbitenDisplay renders the latest snapshot using Ebitengine, outlining each
// text region and printing its text.
type EbitenDisplay struct {
	title string

	mu     sync.Mutex
	snap   snapshot.Snapshot
	dirty  bool
	status string

	ebitenImage *ebiten.Image
}

// NewEbitenDisplay creates an Ebitengine-based display.
func NewEbitenDisplay(title string) *EbitenDisplay {
	return &EbitenDisplay{title: title, status: "waiting"}
}

// SetSnapshot replaces the displayed snapshot (called from network goroutine).
func (d *EbitenDisplay) SetSnapshot(snap snapshot.Snapshot) {
	d.mu.Lock()
	d.snap = snap
	d.dirty = true
	d.mu.Unlock()
}

// SetStatus updates the status line.
func (d *EbitenDisplay) SetStatus(status string) {
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
func (d *EbitenDisplay) Run() error {
	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle(d.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(d)
}

func (d *EbitenDisplay) Update() error {
	return nil
}

func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	d.mu.Lock()
	snap := d.snap
	dirty := d.dirty
	d.dirty = false
	status := d.status
	d.mu.Unlock()

	if snap.Image == nil {
		ebitenutil.DebugPrintAt(screen, "status: "+status, 8, 8)
		return
	}

	d.upload(snap.Image, dirty)

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	fw, fh := float64(snap.Image.Bounds().Dx()), float64(snap.Image.Bounds().Dy())
	scale, offsetX, offsetY := aspectFitTransform(float64(sw), float64(sh), fw, fh)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(offsetX, offsetY)
	screen.DrawImage(d.ebitenImage, op)

	for i, box := range regionBoxes(snap.Regions, scale, offsetX, offsetY) {
		vector.StrokeRect(screen, float32(box.X), float32(box.Y), float32(box.W), float32(box.H), 1, regionColor, false)
		ebitenutil.DebugPrintAt(screen, snap.Regions[i].Text, int(box.X), int(box.Y+box.H)+1)
	}

	header := fmt.Sprintf("%s  shape %s  regions %d  status %s",
		snap.Timestamp.Format(time.RFC3339), snap.Shape(), len(snap.Regions), status)
	ebitenutil.DebugPrintAt(screen, header, 8, 8)
}

func (d *EbitenDisplay) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

func (d *EbitenDisplay) upload(img *image.RGBA, dirty bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if d.ebitenImage == nil || d.ebitenImage.Bounds().Dx() != w || d.ebitenImage.Bounds().Dy() != h {
		d.ebitenImage = ebiten.NewImage(w, h)
		dirty = true
	}
	if dirty {
		d.ebitenImage.WritePixels(img.Pix)
	}
}
