// Package behaviors implements the scheduled game routines: alliance help,
// fog and cave exploration, food gathering and the daily VIP rewards.
package behaviors

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/navigation"
	"github.com/teslashibe/go-rokbot/pkg/ocr"
	"github.com/teslashibe/go-rokbot/pkg/scheduler"
	"github.com/teslashibe/go-rokbot/pkg/sequencer"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// ErrNavigation is returned when a behavior cannot reach the view it starts from.
var ErrNavigation = errors.New("behaviors: could not reach view")

// Navigator moves the game to a view.
type Navigator interface {
	Ensure(ctx context.Context, target navigation.State) bool
}

// DurationReader reads a timer near an anchor.
type DurationReader interface {
	ReadDuration(ctx context.Context, frame vision.Frame, anchor image.Point, region ocr.Region) time.Duration
}

// Deps are the collaborators shared by every behavior.
type Deps struct {
	Seq     *sequencer.Sequencer
	Nav     Navigator
	Targets *vision.Registry
	OCR     DurationReader
	Now     func() time.Time // nil means time.Now
}

// Ensure implementations satisfy the scheduler contract
var (
	_ scheduler.Behavior = (*AllianceHelp)(nil)
	_ scheduler.Behavior = (*FogExploration)(nil)
	_ scheduler.Behavior = (*CavesExploration)(nil)
	_ scheduler.Behavior = (*FoodGathering)(nil)
	_ scheduler.Behavior = (*DailyVIP)(nil)

	_ scheduler.SlotReporter = (*CavesExploration)(nil)
)

// base carries what every behavior needs.
type base struct {
	name     string
	priority int
	seq      *sequencer.Sequencer
	nav      Navigator
	targets  *vision.Registry
	now      func() time.Time
	log      *slog.Logger
}

func newBase(d Deps, name, source string, priority int) base {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return base{
		name:     name,
		priority: priority,
		seq:      d.Seq.WithSource(source),
		nav:      d.Nav,
		targets:  d.Targets,
		now:      now,
		log:      log.With("source", source),
	}
}

func (b *base) Name() string  { return b.name }
func (b *base) Priority() int { return b.priority }

// SetPriority overrides the built-in priority. Values below one are
// ignored. Call it before the scheduler starts.
func (b *base) SetPriority(p int) {
	if p > 0 {
		b.priority = p
	}
}

func (b *base) target(id vision.TargetID) vision.Target {
	return b.targets.Target(id)
}

// ensure moves to view or returns a wrapped ErrNavigation.
func (b *base) ensure(ctx context.Context, view navigation.State) error {
	if b.nav.Ensure(ctx, view) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNavigation, view)
}

// count captures a frame and sums the distinct matches of ids. ok is false
// when no frame was available.
func (b *base) count(ctx context.Context, ids ...vision.TargetID) (n int, ok bool) {
	frame, ok := b.seq.Capture(ctx)
	if !ok {
		return 0, false
	}
	return b.seq.Finder().Count(frame, b.targets.Targets(ids...)...), true
}

// scoutCampActions open the scout camp spyglass menu from the City view.
func (b *base) scoutCampActions() []sequencer.Action {
	return []sequencer.Action{
		{
			Label:    "Scout Camp",
			Targets:  b.targets.Targets(vision.TargetScoutCamp1, vision.TargetScoutCamp2),
			WaitUpTo: 2 * time.Second,
			Settle:   1200 * time.Millisecond,
		},
		{
			Label:   "Spyglass",
			Targets: []vision.Target{b.target(vision.TargetSpyglass)},
			OnMiss:  sequencer.AbortWithBack,
		},
	}
}
