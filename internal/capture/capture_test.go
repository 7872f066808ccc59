package capture

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/junsooki/deskhook/internal/snapshot"
)

type fakeGrabber struct {
	img *image.RGBA
	err error
}

func (g fakeGrabber) Grab(context.Context) (*image.RGBA, error) {
	return g.img, g.err
}

type fakeRecognizer struct {
	regions []snapshot.Region
	err     error
	seen    *image.RGBA
}

func (r *fakeRecognizer) Recognize(_ context.Context, img *image.RGBA) ([]snapshot.Region, error) {
	r.seen = img
	return r.regions, r.err
}

func TestDesktopCapture(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	rec := &fakeRecognizer{regions: []snapshot.Region{{Text: "A", Rect: snapshot.Rect{0, 0, 5, 5}}}}
	desk, err := NewDesktop(fakeGrabber{img: img}, rec)
	if err != nil {
		t.Fatalf("new desktop: %v", err)
	}

	out, err := desk.Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if out.Image != img || rec.seen != img {
		t.Fatalf("expected grabbed image to flow through recognizer")
	}
	if len(out.Regions) != 1 || out.Regions[0].Text != "A" {
		t.Fatalf("unexpected regions %+v", out.Regions)
	}
}

func TestDesktopCapturePropagatesFailures(t *testing.T) {
	grabErr := errors.New("no display")
	desk, err := NewDesktop(fakeGrabber{err: grabErr}, &fakeRecognizer{})
	if err != nil {
		t.Fatalf("new desktop: %v", err)
	}
	if _, err := desk.Capture(context.Background()); !errors.Is(err, grabErr) {
		t.Fatalf("expected grab error, got %v", err)
	}

	recErr := errors.New("ocr crashed")
	desk, err = NewDesktop(fakeGrabber{img: image.NewRGBA(image.Rect(0, 0, 1, 1))}, &fakeRecognizer{err: recErr})
	if err != nil {
		t.Fatalf("new desktop: %v", err)
	}
	if _, err := desk.Capture(context.Background()); !errors.Is(err, recErr) {
		t.Fatalf("expected recognizer error, got %v", err)
	}
}

func TestNewDesktopRequiresParts(t *testing.T) {
	if _, err := NewDesktop(nil, &fakeRecognizer{}); err == nil {
		t.Fatalf("expected error without grabber")
	}
	if _, err := NewDesktop(fakeGrabber{}, nil); err == nil {
		t.Fatalf("expected error without recognizer")
	}
}

func TestSyntheticCapture(t *testing.T) {
	out, err := NewSynthetic().Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	b := out.Image.Bounds()
	if b.Dx() != 640 || b.Dy() != 400 {
		t.Fatalf("unexpected bounds %v", b)
	}
	if len(out.Regions) == 0 {
		t.Fatalf("expected canned regions")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSynthetic().Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestProducerFunc(t *testing.T) {
	var p Producer = ProducerFunc(func(context.Context) (Output, error) {
		return Output{Regions: []snapshot.Region{{Text: "x"}}}, nil
	})
	out, err := p.Capture(context.Background())
	if err != nil || len(out.Regions) != 1 {
		t.Fatalf("unexpected output %+v, %v", out, err)
	}
}
