package behaviors

import (
	"context"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/navigation"
	"github.com/teslashibe/go-rokbot/pkg/sequencer"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

const (
	labelExploreMenu   = "Explore (Menu)"
	labelExploreTarget = "Explore (Target)"
	labelSendScout     = "Send Scout"
)

// FogExploration keeps every scout busy exploring fog. Active scouts show
// as purple march icons, idle camping scouts as blue ones.
type FogExploration struct {
	base
	scouts     int
	checkEvery time.Duration
	afterRun   time.Duration
	nextCheck  time.Time
}

// NewFogExploration creates the behavior for the given number of scouts.
func NewFogExploration(d Deps, scouts int) *FogExploration {
	return &FogExploration{
		base:       newBase(d, "Fog Auto-Explorer", "Fog", 20),
		scouts:     max(scouts, 1),
		checkEvery: 5 * time.Second,
		afterRun:   10 * time.Second,
	}
}

func (f *FogExploration) ShouldRun(ctx context.Context) bool {
	now := f.now()
	if now.Before(f.nextCheck) {
		return false
	}
	f.nextCheck = now.Add(f.checkEvery)

	frame, ok := f.seq.Capture(ctx)
	if !ok {
		return false
	}
	finder := f.seq.Finder()
	active := len(finder.FindAll(frame, f.target(vision.TargetMarchPurple)))
	camping := len(finder.FindAll(frame, f.target(vision.TargetMarchBlue)))

	if active < f.scouts || camping > 0 {
		f.log.Info("Need to send scouts", "active", active, "camping", camping)
		return true
	}
	return false
}

func (f *FogExploration) Run(ctx context.Context) error {
	active, ok := f.count(ctx, vision.TargetMarchPurple)
	if !ok {
		return nil
	}
	toSend := f.scouts - active
	if toSend <= 0 {
		return nil
	}

	f.log.Info("Starting cycle", "to_send", toSend)
	defer func() { f.nextCheck = f.now().Add(f.afterRun) }()

	script := append(f.scoutCampActions(),
		sequencer.Action{
			Label:   labelExploreMenu,
			Targets: []vision.Target{f.target(vision.TargetExploreMenu)},
			OnMiss:  sequencer.AbortWithBack,
		},
		sequencer.Action{Label: labelExploreTarget, Targets: []vision.Target{f.target(vision.TargetExploreTarget)}},
		sequencer.Action{Label: labelSendScout, Targets: []vision.Target{f.target(vision.TargetSend)}},
	)

	for sent := 0; sent < toSend; {
		if err := f.ensure(ctx, navigation.City); err != nil {
			return err
		}

		res := f.seq.Run(ctx, script)
		if res.Cancelled {
			return nil
		}
		if !res.OK() {
			if res.FailedAt == labelExploreMenu {
				f.log.Warn("Game says scouts busy. Stopping.")
			}
			break
		}
		sent++
		f.log.Info("Scout sent", "sent", sent, "of", toSend)
	}

	f.nav.Ensure(ctx, navigation.City)
	return nil
}
