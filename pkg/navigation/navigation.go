// Package navigation classifies the current game view and moves between
// the City and Map views.
package navigation

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// State is the classified view. Unknown is never stored; it is recomputed
// on every query.
type State int

const (
	Unknown State = iota
	City
	Map
)

func (s State) String() string {
	switch s {
	case City:
		return "City"
	case Map:
		return "Map"
	default:
		return "Unknown"
	}
}

// Finder locates a single target.
type Finder interface {
	FindOne(frame vision.Frame, t vision.Target) (vision.Match, bool)
}

// Actor is the subset of the action sequencer navigation drives.
type Actor interface {
	Capture(ctx context.Context) (vision.Frame, bool)
	TapAt(ctx context.Context, pt image.Point, label string) bool
	Back(ctx context.Context) bool
	Sleep(ctx context.Context, d time.Duration) bool
}

// Config holds the anchors and transition timing.
type Config struct {
	CityAnchor    vision.Target // Visible only in City (the "go to map" button)
	MapAnchor     vision.Target // Visible only in Map (the "go to city" button)
	SettleTimeout time.Duration // Ceiling for a view transition
	PollInterval  time.Duration // Spacing of re-classification during a transition
}

// DefaultConfig returns the anchors with their catalog thresholds.
func DefaultConfig() Config {
	return Config{
		CityAnchor:    vision.Target{ID: vision.TargetMapButton, Threshold: vision.DefaultThreshold},
		MapAnchor:     vision.Target{ID: vision.TargetCityButton, Threshold: vision.DefaultThreshold},
		SettleTimeout: 3 * time.Second,
		PollInterval:  300 * time.Millisecond,
	}
}

// Navigator is the City/Map state machine.
type Navigator struct {
	finder Finder
	actor  Actor
	config Config
	log    *slog.Logger
}

// New creates a navigator.
func New(finder Finder, actor Actor, cfg Config) *Navigator {
	return &Navigator{
		finder: finder,
		actor:  actor,
		config: cfg,
		log:    log.With("component", "navigation"),
	}
}

// Classify reports the view shown in frame. Exactly one anchor must be
// visible; neither or both is Unknown.
func (n *Navigator) Classify(frame vision.Frame) State {
	_, inCity := n.finder.FindOne(frame, n.config.CityAnchor)
	_, inMap := n.finder.FindOne(frame, n.config.MapAnchor)
	switch {
	case inCity && !inMap:
		return City
	case inMap && !inCity:
		return Map
	default:
		return Unknown
	}
}

// Current captures a frame and classifies it.
func (n *Navigator) Current(ctx context.Context) State {
	frame, ok := n.actor.Capture(ctx)
	if !ok {
		return Unknown
	}
	return n.Classify(frame)
}

// Ensure brings the game to target. It taps nothing when the view is
// already correct. One back-key retry is made before reporting failure.
func (n *Navigator) Ensure(ctx context.Context, target State) bool {
	if target != City && target != Map {
		return false
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			n.log.Warn("navigation failed, pressing back and retrying", "target", target)
			if !n.actor.Back(ctx) {
				return false
			}
		}

		frame, ok := n.actor.Capture(ctx)
		if !ok {
			if ctx.Err() != nil {
				return false
			}
			continue
		}
		if n.Classify(frame) == target {
			return true
		}

		// The button leading to target is the anchor of the other view.
		anchor := n.config.CityAnchor
		if target == City {
			anchor = n.config.MapAnchor
		}
		m, found := n.finder.FindOne(frame, anchor)
		if !found {
			continue
		}

		n.log.Info("switching view", "target", target)
		if !n.actor.TapAt(ctx, m.Point, "go to "+target.String()) {
			if ctx.Err() != nil {
				return false
			}
			continue
		}
		if n.await(ctx, target) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}

	n.log.Warn("could not reach view", "target", target)
	return false
}

// await polls classification until target shows or SettleTimeout passes.
func (n *Navigator) await(ctx context.Context, target State) bool {
	deadline := time.Now().Add(n.config.SettleTimeout)
	for {
		if n.Current(ctx) == target {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		if !n.actor.Sleep(ctx, min(n.config.PollInterval, remaining)) {
			return false
		}
	}
}
