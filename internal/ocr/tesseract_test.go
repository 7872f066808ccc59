package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/junsooki/deskhook/internal/snapshot"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t400\t-1\t\n" +
	"2\t1\t1\t0\t0\t0\t10\t10\t300\t60\t-1\t\n" +
	"3\t1\t1\t1\t0\t0\t10\t10\t300\t60\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t80\t20\t96.5\tHello\n" +
	"5\t1\t1\t1\t1\t2\t100\t10\t110\t20\t91.0\tworld\n" +
	"4\t1\t1\t1\t2\t0\t10\t40\t120\t20\t-1\t\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t120\t20\t12.0\tnoise\n" +
	"4\t1\t1\t1\t3\t0\t10\t70\t90\t18\t-1\t\n" +
	"5\t1\t1\t1\t3\t1\t10\t70\t40\t18\t88.0\tSave\n" +
	"5\t1\t1\t1\t3\t2\t55\t70\t45\t18\t87.0\t \n" +
	"5\t1\t1\t1\t3\t3\t60\t70\t40\t18\t85.0\tAs\n"

func TestParseTSVGroupsWordsIntoLines(t *testing.T) {
	regions, err := ParseTSV(strings.NewReader(sampleTSV), 50)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []snapshot.Region{
		{Text: "Hello world", Rect: snapshot.Rect{10, 10, 200, 20}},
		{Text: "Save As", Rect: snapshot.Rect{10, 70, 90, 18}},
	}
	if len(regions) != len(want) {
		t.Fatalf("expected %d regions, got %+v", len(want), regions)
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Fatalf("region %d: got %+v want %+v", i, regions[i], want[i])
		}
	}
}

func TestParseTSVRejectsShortRows(t *testing.T) {
	if _, err := ParseTSV(strings.NewReader("4\t1\t1\n"), 0); err == nil {
		t.Fatalf("expected error for truncated row")
	}
}

func TestTesseractRecognizeRunsBinary(t *testing.T) {
	var gotArgs []string
	var gotStdin []byte
	rec, err := NewTesseract(Options{
		Languages:     []string{"eng", " deu "},
		MinConfidence: 50,
		LookPath:      func(string) (string, error) { return "/usr/local/bin/tesseract", nil },
		Runner: func(_ context.Context, name string, args []string, stdin []byte) ([]byte, error) {
			if name != "/usr/local/bin/tesseract" {
				t.Fatalf("unexpected binary %q", name)
			}
			gotArgs = args
			gotStdin = stdin
			return []byte(sampleTSV), nil
		},
	})
	if err != nil {
		t.Fatalf("new tesseract: %v", err)
	}
	if !rec.Available() {
		t.Fatalf("expected recognizer to be available")
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	regions, err := rec.Recognize(context.Background(), img)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if strings.Join(gotArgs, " ") != "stdin stdout -l eng+deu tsv" {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if _, err := png.Decode(bytes.NewReader(gotStdin)); err != nil {
		t.Fatalf("expected png on stdin: %v", err)
	}
}

func TestTesseractMissingBinary(t *testing.T) {
	rec, err := NewTesseract(Options{
		LookPath: func(string) (string, error) { return "", os.ErrNotExist },
		Runner: func(context.Context, string, []string, []byte) ([]byte, error) {
			t.Fatalf("runner must not be called without a binary")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("new tesseract: %v", err)
	}
	if rec.Available() {
		t.Fatalf("expected recognizer to be unavailable")
	}
	_, err = rec.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTesseractRunnerFailure(t *testing.T) {
	boom := errors.New("exit status 1")
	rec, err := NewTesseract(Options{
		LookPath: func(string) (string, error) { return "tesseract", nil },
		Runner: func(context.Context, string, []string, []byte) ([]byte, error) {
			return nil, boom
		},
	})
	if err != nil {
		t.Fatalf("new tesseract: %v", err)
	}
	_, err = rec.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestNewTesseractValidation(t *testing.T) {
	if _, err := NewTesseract(Options{MinConfidence: 101}); err == nil {
		t.Fatalf("expected error for confidence above 100")
	}
}
