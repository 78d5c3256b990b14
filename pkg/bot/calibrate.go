package bot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/behaviors"
	"github.com/teslashibe/go-rokbot/pkg/device"
	"github.com/teslashibe/go-rokbot/pkg/ocr"
	"github.com/teslashibe/go-rokbot/pkg/vision"
	"github.com/teslashibe/go-rokbot/pkg/vision/cv"
)

// TimerCalibrationFile is the annotated frame written by CalibrateTimer.
const TimerCalibrationFile = "ocr_calibration.png"

// ErrAnchorNotVisible is returned when the timer anchor is not on screen.
var ErrAnchorNotVisible = errors.New("bot: timer anchor not visible")

// TimerCalibration is the result of reading the cave travel timer once.
type TimerCalibration struct {
	Anchor    vision.Match
	Region    image.Rectangle
	Text      string
	Duration  time.Duration
	Annotated string // Path of the annotated frame, empty when not written
}

// Annotator writes frame with the anchor and OCR region marked.
type Annotator func(path string, frame vision.Frame, anchor image.Point, region image.Rectangle) error

// timerCalibrator holds what CalibrateTimer needs so it can run against mocks.
type timerCalibrator struct {
	capture  device.Capturer
	finder   interface{ FindOne(vision.Frame, vision.Target) (vision.Match, bool) }
	anchor   vision.Target
	reader   *ocr.Reader
	annotate Annotator
	dir      string
}

func (p timerCalibrator) run(ctx context.Context) (TimerCalibration, error) {
	frame, err := p.capture.Capture(ctx)
	if err != nil {
		return TimerCalibration{}, err
	}
	m, ok := p.finder.FindOne(frame, p.anchor)
	if !ok {
		return TimerCalibration{}, fmt.Errorf("%w: %s", ErrAnchorNotVisible, p.anchor.ID)
	}

	cal := TimerCalibration{
		Anchor: m,
		Region: behaviors.CaveTimerRegion.At(m.Point),
	}
	cal.Text = p.reader.ReadText(ctx, frame, cal.Region)
	cal.Duration = ocr.Duration(cal.Text)

	if p.dir != "" && p.annotate != nil {
		if err := os.MkdirAll(p.dir, 0o755); err != nil {
			return cal, err
		}
		path := filepath.Join(p.dir, TimerCalibrationFile)
		if err := p.annotate(path, frame, m.Point, cal.Region); err != nil {
			return cal, err
		}
		cal.Annotated = path
	}
	return cal, nil
}

// CalibrateTimer captures one frame, finds the Send button, places the
// cave timer region next to it and reads it. When ocr.debug_dir is set the
// frame is saved there with the anchor and region drawn in.
func (a *App) CalibrateTimer(ctx context.Context) (TimerCalibration, error) {
	if a.device == nil {
		return TimerCalibration{}, errors.New("bot: CalibrateTimer before Init")
	}
	return timerCalibrator{
		capture:  a.device,
		finder:   a.engine,
		anchor:   a.targets.Target(vision.TargetSend),
		reader:   a.ocrReader(),
		annotate: cv.SaveAnnotated,
		dir:      a.config.OCR.DebugDir,
	}.run(ctx)
}
