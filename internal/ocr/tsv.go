package ocr

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/junsooki/deskhook/internal/snapshot"
)

// TSV row levels emitted by tesseract.
const (
	levelLine = 4
	levelWord = 5
)

const tsvColumns = 12

type tsvLine struct {
	rect  snapshot.Rect
	words []string
}

// ParseTSV converts tesseract TSV output into one region per text line.
// Words below minConfidence are skipped and lines left empty are dropped.
func ParseTSV(r io.Reader, minConfidence float64) ([]snapshot.Region, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	regions := make([]snapshot.Region, 0)
	var current *tsvLine
	flush := func() {
		if current != nil && len(current.words) > 0 {
			regions = append(regions, snapshot.Region{
				Text: strings.Join(current.words, " "),
				Rect: current.rect,
			})
		}
		current = nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r")
		if raw == "" || strings.HasPrefix(raw, "level") {
			continue
		}
		fields := strings.Split(raw, "\t")
		if len(fields) < tsvColumns-1 {
			return nil, fmt.Errorf("tsv line %d: expected %d columns, got %d", lineNo, tsvColumns, len(fields))
		}
		for len(fields) < tsvColumns {
			fields = append(fields, "")
		}

		level, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("tsv line %d: level: %w", lineNo, err)
		}

		switch {
		case level == levelLine:
			flush()
			rect, err := parseRect(fields[6:10])
			if err != nil {
				return nil, fmt.Errorf("tsv line %d: %w", lineNo, err)
			}
			current = &tsvLine{rect: rect}
		case level == levelWord:
			text := strings.TrimSpace(strings.Join(fields[11:], "\t"))
			if text == "" || current == nil {
				continue
			}
			conf, err := strconv.ParseFloat(fields[10], 64)
			if err != nil {
				return nil, fmt.Errorf("tsv line %d: conf: %w", lineNo, err)
			}
			if conf < minConfidence {
				continue
			}
			current.words = append(current.words, text)
		default:
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	flush()
	return regions, nil
}

func parseRect(fields []string) (snapshot.Rect, error) {
	var rect snapshot.Rect
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return snapshot.Rect{}, fmt.Errorf("rect: %w", err)
		}
		rect[i] = v
	}
	return rect, nil
}
