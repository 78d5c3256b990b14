// Package sequencer executes find, tap, wait and verify steps against a
// device. Every behavior drives the screen through a Sequencer.
package sequencer

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/device"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// Finder locates targets in a frame. *vision.Engine implements it.
type Finder interface {
	FindOne(frame vision.Frame, t vision.Target) (vision.Match, bool)
	FindAll(frame vision.Frame, t vision.Target) []vision.Match
	FindAny(frame vision.Frame, targets ...vision.Target) (vision.Match, bool)
	Count(frame vision.Frame, targets ...vision.Target) int
}

// Config holds sequencer pacing.
type Config struct {
	Settle       time.Duration // Wait after every tap for UI animations
	PollInterval time.Duration // Spacing between captures in WaitFor
	WaitTimeout  time.Duration // Default ceiling for WaitFor
	NeutralPoint image.Point   // Tapped to dismiss reward popups
	Scale        float64       // Multiplies explicit settle and wait durations (0 = 1)
}

// DefaultConfig returns pacing tuned for a 1280x720 emulator.
func DefaultConfig() Config {
	return Config{
		Settle:       1500 * time.Millisecond,
		PollInterval: 300 * time.Millisecond,
		WaitTimeout:  3 * time.Second,
		NeutralPoint: image.Pt(640, 100),
		Scale:        1,
	}
}

// Sequencer is the single actor touching the device. It is not safe for
// concurrent use; the scheduler goroutine owns it.
type Sequencer struct {
	dev    device.Device
	finder Finder
	config Config
	log    *slog.Logger
}

// New creates a sequencer.
func New(dev device.Device, finder Finder, cfg Config) *Sequencer {
	return &Sequencer{
		dev:    dev,
		finder: finder,
		config: cfg,
		log:    log.With("component", "sequencer"),
	}
}

// WithSource returns a sequencer whose log lines carry the given source
// (usually a behavior name).
func (s *Sequencer) WithSource(name string) *Sequencer {
	cp := *s
	cp.log = s.log.With("source", name)
	return &cp
}

// Finder returns the detection engine in use.
func (s *Sequencer) Finder() Finder {
	return s.finder
}

// Config returns the pacing configuration.
func (s *Sequencer) Config() Config {
	return s.config
}

// Capture grabs a frame. Transport errors and empty frames are a miss.
func (s *Sequencer) Capture(ctx context.Context) (vision.Frame, bool) {
	frame, err := s.dev.Capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("capture failed", "error", err)
		}
		return vision.Frame{}, false
	}
	if frame.Empty() {
		s.log.Warn("capture returned an empty frame")
		return vision.Frame{}, false
	}
	return frame, true
}

// Find captures a frame and returns the first visible target.
func (s *Sequencer) Find(ctx context.Context, targets ...vision.Target) (vision.Match, bool) {
	frame, ok := s.Capture(ctx)
	if !ok {
		return vision.Match{}, false
	}
	return s.finder.FindAny(frame, targets...)
}

// Step finds t, taps its center and waits for the UI to settle. It returns
// false without acting when t is not visible.
func (s *Sequencer) Step(ctx context.Context, t vision.Target, label string) bool {
	return s.StepAny(ctx, label, t)
}

// StepAny is Step over several alternatives, tried in order.
func (s *Sequencer) StepAny(ctx context.Context, label string, targets ...vision.Target) bool {
	m, ok := s.Find(ctx, targets...)
	if !ok {
		s.log.Info(label + " not found")
		return false
	}
	return s.TapMatch(ctx, m, label)
}

// TapMatch taps a previously located match.
func (s *Sequencer) TapMatch(ctx context.Context, m vision.Match, label string) bool {
	return s.tap(ctx, m.Point, label, s.config.Settle)
}

// TapMatchFor taps m and waits settle instead of the configured interval.
func (s *Sequencer) TapMatchFor(ctx context.Context, m vision.Match, label string, settle time.Duration) bool {
	return s.tap(ctx, m.Point, label, s.scaled(settle))
}

// TapAt taps a fixed coordinate and settles.
func (s *Sequencer) TapAt(ctx context.Context, pt image.Point, label string) bool {
	return s.tap(ctx, pt, label, s.config.Settle)
}

func (s *Sequencer) tap(ctx context.Context, pt image.Point, label string, settle time.Duration) bool {
	if err := s.dev.Tap(ctx, pt.X, pt.Y); err != nil {
		if ctx.Err() == nil {
			s.log.Warn("tap failed", "label", label, "error", err)
		}
		return false
	}
	s.log.Debug("tapped", "label", label, "x", pt.X, "y", pt.Y)
	return s.Sleep(ctx, settle)
}

// Back presses the back key and settles.
func (s *Sequencer) Back(ctx context.Context) bool {
	if err := s.dev.Back(ctx); err != nil {
		if ctx.Err() == nil {
			s.log.Warn("back key failed", "error", err)
		}
		return false
	}
	return s.Sleep(ctx, s.config.Settle)
}

// Dismiss taps the neutral point to close a reward popup.
func (s *Sequencer) Dismiss(ctx context.Context) bool {
	return s.TapAt(ctx, s.config.NeutralPoint, "dismiss popup")
}

// scaled applies the configured Scale to a caller supplied duration.
func (s *Sequencer) scaled(d time.Duration) time.Duration {
	if s.config.Scale <= 0 || s.config.Scale == 1 {
		return d
	}
	return time.Duration(float64(d) * s.config.Scale)
}

// Sleep waits for d or until ctx is done. It returns false when cancelled.
func (s *Sequencer) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// WaitFor polls until one of targets is visible or timeout elapses. A zero
// timeout uses the configured default. With no targets it degrades to a
// plain wait and reports no match.
func (s *Sequencer) WaitFor(ctx context.Context, timeout time.Duration, targets ...vision.Target) (vision.Match, bool) {
	if timeout <= 0 {
		timeout = s.config.WaitTimeout
	}
	if len(targets) == 0 {
		s.Sleep(ctx, timeout)
		return vision.Match{}, false
	}

	deadline := time.Now().Add(timeout)
	for {
		if m, ok := s.Find(ctx, targets...); ok {
			return m, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return vision.Match{}, false
		}
		if !s.Sleep(ctx, min(s.config.PollInterval, remaining)) {
			return vision.Match{}, false
		}
	}
}
