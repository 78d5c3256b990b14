package behaviors

import (
	"context"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/navigation"
	"github.com/teslashibe/go-rokbot/pkg/sequencer"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

const (
	labelGather = "Gather Button"
	labelMarch  = "March"
)

// FoodGathering fills idle march queues with food gatherers.
type FoodGathering struct {
	base
	queues     int
	checkEvery time.Duration
	afterRun   time.Duration
	nextCheck  time.Time
}

// NewFoodGathering creates the behavior for the given number of march queues.
func NewFoodGathering(d Deps, queues int) *FoodGathering {
	return &FoodGathering{
		base:       newBase(d, "Food Auto-Gather", "Gather", 30),
		queues:     max(queues, 1),
		checkEvery: 10 * time.Second,
		afterRun:   60 * time.Second,
	}
}

func (f *FoodGathering) ShouldRun(ctx context.Context) bool {
	now := f.now()
	if now.Before(f.nextCheck) {
		return false
	}
	f.nextCheck = now.Add(f.checkEvery)

	busy, ok := f.busy(ctx)
	if !ok || busy >= f.queues {
		return false
	}
	f.log.Info("Sending harvesters", "busy", busy, "queues", f.queues)
	return true
}

func (f *FoodGathering) busy(ctx context.Context) (int, bool) {
	return f.count(ctx, vision.TargetStatusGather, vision.TargetStatusMarch)
}

func (f *FoodGathering) Run(ctx context.Context) error {
	defer func() { f.nextCheck = f.now().Add(f.afterRun) }()

	script := []sequencer.Action{
		{
			Label:    "Search Menu",
			Targets:  []vision.Target{f.target(vision.TargetSearchMap)},
			WaitUpTo: 1500 * time.Millisecond,
			Optional: true, // the menu may already be open
		},
		{Label: "Food Icon", Targets: []vision.Target{f.target(vision.TargetFood)}, OnMiss: sequencer.AbortWithBack},
		{
			Label:   "Search Button",
			Targets: []vision.Target{f.target(vision.TargetSearchCenter)},
			Settle:  2500 * time.Millisecond, // camera flies to the node
			OnMiss:  sequencer.AbortWithBack,
		},
		{Label: labelGather, Targets: []vision.Target{f.target(vision.TargetGather)}, WaitUpTo: 1500 * time.Millisecond},
		{Label: "New Troops", Targets: []vision.Target{f.target(vision.TargetNewTroops)}, Optional: true},
		{
			Label:   labelMarch,
			Targets: []vision.Target{f.target(vision.TargetMarch)},
			Settle:  2 * time.Second,
			OnMiss:  sequencer.AbortWithBack, // deselect the node
		},
	}

	for attempt := 0; attempt < f.queues*2; attempt++ {
		busy, ok := f.busy(ctx)
		if !ok {
			return nil
		}
		if busy >= f.queues {
			f.log.Info("All queues busy. Task complete.")
			return nil
		}

		if err := f.ensure(ctx, navigation.Map); err != nil {
			return err
		}

		res := f.seq.Run(ctx, script)
		switch {
		case res.Cancelled:
			return nil
		case res.OK():
			f.log.Info("March sent!")
		case res.FailedAt == labelGather:
			f.log.Info("Node gather button missing, searching again")
		case res.FailedAt == labelMarch:
			f.log.Info("March button blocked or missing")
		default:
			return nil
		}
	}
	return nil
}
