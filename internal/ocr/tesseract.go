package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"

	"github.com/junsooki/deskhook/internal/snapshot"
)

// ErrUnavailable indicates the OCR engine binary could not be found.
var ErrUnavailable = errors.New("ocr engine unavailable")

// Recognizer extracts text regions from a captured image.
type Recognizer interface {
	Recognize(ctx context.Context, img *image.RGBA) ([]snapshot.Region, error)
}

// Runner executes name with args, feeding stdin, and returns stdout.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// Options configure the tesseract recognizer.
type Options struct {
	Binary        string
	Languages     []string
	MinConfidence float64
	LookPath      func(string) (string, error)
	Runner        Runner
}

// Tesseract recognizes text by shelling out to the tesseract CLI in TSV mode.
type Tesseract struct {
	binary        string
	languages     []string
	minConfidence float64
	lookPath      func(string) (string, error)
	run           Runner
}

// NewTesseract validates options and returns a recognizer.
func NewTesseract(opts Options) (*Tesseract, error) {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "tesseract"
	}

	languages := make([]string, 0, len(opts.Languages))
	for _, lang := range opts.Languages {
		trimmed := strings.TrimSpace(lang)
		if trimmed == "" {
			continue
		}
		languages = append(languages, trimmed)
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	if opts.MinConfidence < 0 || opts.MinConfidence > 100 {
		return nil, fmt.Errorf("min confidence must be 0-100, got %v", opts.MinConfidence)
	}

	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	run := opts.Runner
	if run == nil {
		run = execRunner
	}

	return &Tesseract{
		binary:        binary,
		languages:     languages,
		minConfidence: opts.MinConfidence,
		lookPath:      lookPath,
		run:           run,
	}, nil
}

// Available reports whether the tesseract binary can be resolved.
func (t *Tesseract) Available() bool {
	_, err := t.lookPath(t.binary)
	return err == nil
}

// Recognize runs OCR over img and returns line-level regions in reading order.
func (t *Tesseract) Recognize(ctx context.Context, img *image.RGBA) ([]snapshot.Region, error) {
	if img == nil {
		return nil, errors.New("ocr: nil image")
	}
	path, err := t.lookPath(t.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %q not found: %v", ErrUnavailable, t.binary, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("ocr: encode png: %w", err)
	}

	args := []string{"stdin", "stdout", "-l", strings.Join(t.languages, "+"), "tsv"}
	out, err := t.run(ctx, path, args, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("ocr: run %s: %w", t.binary, err)
	}

	regions, err := ParseTSV(bytes.NewReader(out), t.minConfidence)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	return regions, nil
}

func execRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
