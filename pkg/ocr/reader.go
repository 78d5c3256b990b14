package ocr

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// Recognizer extracts a single line of text from a preprocessed PNG.
// An empty string is a valid "nothing recognized" result.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Preparer crops and binarizes a frame region into a PNG ready for
// recognition.
type Preparer func(frame vision.Frame, region image.Rectangle) ([]byte, error)

// Region is a rectangle placed relative to an anchor point.
type Region struct {
	Offset image.Point // Top-left corner relative to the anchor
	Size   image.Point
}

// At returns the absolute rectangle for the anchor. Negative coordinates
// are clamped to zero.
func (r Region) At(anchor image.Point) image.Rectangle {
	x := max(anchor.X+r.Offset.X, 0)
	y := max(anchor.Y+r.Offset.Y, 0)
	return image.Rect(x, y, x+r.Size.X, y+r.Size.Y)
}

// Reader reads text and timers out of frame regions.
type Reader struct {
	recognizer Recognizer
	prepare    Preparer
	debugDir   string
	log        *slog.Logger
}

// NewReader creates a reader. When debugDir is not empty the last
// preprocessed crop is written there as ocr_debug.png.
func NewReader(rec Recognizer, prepare Preparer, debugDir string) *Reader {
	return &Reader{
		recognizer: rec,
		prepare:    prepare,
		debugDir:   debugDir,
		log:        log.With("component", "ocr"),
	}
}

// ReadText returns the trimmed text inside rect, or "" on any failure.
func (r *Reader) ReadText(ctx context.Context, frame vision.Frame, rect image.Rectangle) string {
	if frame.Empty() {
		return ""
	}

	png, err := r.prepare(frame, rect)
	if err != nil {
		r.log.Warn("ocr preprocessing failed", "region", rect, "error", err)
		return ""
	}
	if r.debugDir != "" {
		if err := os.WriteFile(filepath.Join(r.debugDir, "ocr_debug.png"), png, 0o644); err != nil {
			r.log.Debug("could not write ocr debug image", "error", err)
		}
	}

	text, err := r.recognizer.Recognize(ctx, png)
	if err != nil {
		r.log.Warn("ocr recognition failed", "region", rect, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// ReadDuration reads a timer placed by region relative to anchor. A zero
// result means nothing usable was recognized.
func (r *Reader) ReadDuration(ctx context.Context, frame vision.Frame, anchor image.Point, region Region) time.Duration {
	raw := r.ReadText(ctx, frame, region.At(anchor))
	d := Duration(raw)
	r.log.Debug("timer read", "raw", raw, "duration", d)
	return d
}
