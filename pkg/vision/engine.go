package vision

import (
	"errors"
	"image"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/teslashibe/go-rokbot/internal/log"
)

// Surface is the correlation response of one template over one frame.
// Peak locations are template top-left corners in frame coordinates.
type Surface interface {
	// Peak returns the best remaining score and its location.
	Peak() (score float64, loc image.Point)

	// Erase suppresses every response inside r so later peaks are distinct.
	Erase(r image.Rectangle)

	// TemplateSize returns the template width and height.
	TemplateSize() image.Point

	// Close releases native resources.
	Close() error
}

// Matcher computes normalized cross-correlation surfaces.
type Matcher interface {
	Match(frame Frame, id TargetID) (Surface, error)
}

// Config holds the tunable detection parameters.
type Config struct {
	DuplicateRadius float64       // Matches closer than this (px) to an accepted one are ghosts
	MaxMatches      int           // Upper bound on FindAll results
	MatchTimeout    time.Duration // Latency budget per matcher call (0 = unbounded)
}

// DefaultConfig returns the values tuned on a 1280x720 emulator.
func DefaultConfig() Config {
	return Config{
		DuplicateRadius: 20,
		MaxMatches:      64,
		MatchTimeout:    3 * time.Second,
	}
}

// Engine runs template searches against frames.
type Engine struct {
	matcher Matcher
	config  Config
	log     *slog.Logger
}

// NewEngine creates a detection engine over the given matcher.
func NewEngine(m Matcher, cfg Config) *Engine {
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = DefaultConfig().MaxMatches
	}
	return &Engine{
		matcher: m,
		config:  cfg,
		log:     log.With("component", "vision"),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// FindOne returns the best match for t if its score reaches t.Threshold.
func (e *Engine) FindOne(frame Frame, t Target) (Match, bool) {
	s, ok := e.surface(frame, t.ID)
	if !ok {
		return Match{}, false
	}
	defer s.Close()

	score, loc := s.Peak()
	if score < t.Threshold {
		return Match{}, false
	}
	m := Match{Target: t.ID, Point: center(loc, s.TemplateSize()), Confidence: score}
	e.log.Debug("target found", "target", t.ID, "x", m.Point.X, "y", m.Point.Y, "confidence", score)
	return m, true
}

// FindAll returns every distinct match for t, sorted top to bottom.
func (e *Engine) FindAll(frame Frame, t Target) []Match {
	s, ok := e.surface(frame, t.ID)
	if !ok {
		return nil
	}
	defer s.Close()

	size := s.TemplateSize()
	var matches []Match
	// Each pass erases at least the peak itself, so the bound only matters
	// for surfaces full of near-identical peaks.
	for pass := 0; pass < e.config.MaxMatches*4 && len(matches) < e.config.MaxMatches; pass++ {
		score, loc := s.Peak()
		if score < t.Threshold {
			break
		}
		c := center(loc, size)
		if !e.nearAny(c, matches) {
			matches = append(matches, Match{Target: t.ID, Point: c, Confidence: score})
		}
		s.Erase(footprint(loc, size))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Point.Y < matches[j].Point.Y
	})
	return matches
}

// FindAny returns the first target in caller order that is visible.
func (e *Engine) FindAny(frame Frame, targets ...Target) (Match, bool) {
	for _, t := range targets {
		if m, ok := e.FindOne(frame, t); ok {
			return m, true
		}
	}
	return Match{}, false
}

// Count sums the distinct matches of every target.
func (e *Engine) Count(frame Frame, targets ...Target) int {
	n := 0
	for _, t := range targets {
		n += len(e.FindAll(frame, t))
	}
	return n
}

// surface runs the matcher and logs failures by severity. A false return is
// a detection miss.
func (e *Engine) surface(frame Frame, id TargetID) (Surface, bool) {
	if frame.Empty() {
		e.log.Warn("screen image is empty, skipping frame", "target", id)
		return nil, false
	}

	s, err := e.match(frame, id)
	switch {
	case err == nil:
		return s, true
	case errors.Is(err, ErrTemplateNotFound):
		e.log.Error("could not load template", "target", id, "error", err)
	case errors.Is(err, ErrMatchTimeout):
		e.log.Warn("template match stalled", "target", id, "timeout", e.config.MatchTimeout)
	default:
		e.log.Error("template match failed", "target", id, "error", err)
	}
	return nil, false
}

type matchResult struct {
	surface Surface
	err     error
}

// match bounds the matcher call by MatchTimeout. A late surface is closed
// by the abandoned goroutine.
func (e *Engine) match(frame Frame, id TargetID) (Surface, error) {
	if e.config.MatchTimeout <= 0 {
		return e.matcher.Match(frame, id)
	}

	done := make(chan matchResult, 1)
	go func() {
		s, err := e.matcher.Match(frame, id)
		done <- matchResult{surface: s, err: err}
	}()

	timer := time.NewTimer(e.config.MatchTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.surface, r.err
	case <-timer.C:
		go func() {
			if r := <-done; r.surface != nil {
				r.surface.Close()
			}
		}()
		return nil, ErrMatchTimeout
	}
}

func (e *Engine) nearAny(p image.Point, matches []Match) bool {
	for _, m := range matches {
		if distance(p, m.Point) < e.config.DuplicateRadius {
			return true
		}
	}
	return false
}

func center(topLeft, size image.Point) image.Point {
	return image.Pt(topLeft.X+size.X/2, topLeft.Y+size.Y/2)
}

// footprint is a template-sized box centered on a response peak.
func footprint(loc, size image.Point) image.Rectangle {
	w, h := max(size.X, 1), max(size.Y, 1)
	return image.Rect(loc.X-w/2, loc.Y-h/2, loc.X+w/2+1, loc.Y+h/2+1)
}

func distance(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
