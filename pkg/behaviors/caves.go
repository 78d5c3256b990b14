package behaviors

import (
	"context"
	"image"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/navigation"
	"github.com/teslashibe/go-rokbot/pkg/ocr"
	"github.com/teslashibe/go-rokbot/pkg/sequencer"
	"github.com/teslashibe/go-rokbot/pkg/slots"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// Cave exploration timing.
const (
	CaveFallbackDuration = 5 * time.Minute  // Used when the timer cannot be read
	CaveReturnMargin     = 15 * time.Second // Added to every read timer
	CaveBusyPenalty      = 5 * time.Minute  // Applied when no cave is offered
	CaveRetryDelay       = 10 * time.Second // Next run when a slot is already free
)

// CaveTimerRegion locates the travel timer relative to the Send button.
var CaveTimerRegion = ocr.Region{Offset: image.Pt(-40, -57), Size: image.Pt(80, 24)}

// CavesExploration sends free scouts to investigate caves and remembers,
// per scout, when it will be back.
type CavesExploration struct {
	base
	ocr     DurationReader
	tracker *slots.Tracker
	nextRun time.Time
}

// NewCavesExploration creates the behavior for the given number of scouts.
func NewCavesExploration(d Deps, scouts int) *CavesExploration {
	return &CavesExploration{
		base:    newBase(d, "Cave Auto-Explorer", "Caves", 25),
		ocr:     d.OCR,
		tracker: slots.New(scouts),
	}
}

// Slots exposes the scout tracker for display.
func (c *CavesExploration) Slots() []slots.Slot {
	return c.tracker.Snapshot()
}

func (c *CavesExploration) ShouldRun(ctx context.Context) bool {
	now := c.now()
	return !now.Before(c.nextRun) && c.tracker.CountFree(now) > 0
}

func (c *CavesExploration) Run(ctx context.Context) error {
	available := c.tracker.CountFree(c.now())
	if available == 0 {
		return nil
	}
	defer c.scheduleNext()

	script := append(c.scoutCampActions(), sequencer.Action{
		Label:   "Caves Tab",
		Targets: []vision.Target{c.target(vision.TargetCavesTab)},
		OnMiss:  sequencer.AbortWithBack,
	})

	for sent := 0; sent < available; {
		if err := c.ensure(ctx, navigation.City); err != nil {
			return err
		}
		if res := c.seq.Run(ctx, script); !res.OK() {
			break
		}

		frame, ok := c.seq.Capture(ctx)
		if !ok {
			break
		}
		buttons := c.seq.Finder().FindAll(frame, c.target(vision.TargetGoCave))
		if len(buttons) == 0 {
			c.log.Warn("No cave buttons found")
			c.seq.Back(ctx)
			c.tracker.MarkAllBusyFallback(c.now(), CaveBusyPenalty)
			break
		}

		// Bottom-up: the first scout takes the lowest cave.
		idx := max(len(buttons)-1-sent, 0)
		btn := buttons[idx]
		c.log.Info("Clicking cave button", "button", idx+1, "y", btn.Point.Y)
		if !c.seq.TapMatchFor(ctx, btn, "cave button", 2500*time.Millisecond) {
			break
		}

		if !c.seq.Step(ctx, c.target(vision.TargetInvestigate), "Investigate") {
			break
		}
		if !c.send(ctx) {
			break
		}
		sent++
	}

	c.nav.Ensure(ctx, navigation.City)
	return nil
}

// send reads the travel timer next to the Send button, taps Send and books
// a scout slot.
func (c *CavesExploration) send(ctx context.Context) bool {
	frame, ok := c.seq.Capture(ctx)
	if !ok {
		return false
	}
	btn, ok := c.seq.Finder().FindOne(frame, c.target(vision.TargetSend))
	if !ok {
		c.log.Info("'Send' button missing")
		return false
	}

	duration := ocr.OrDefault(c.ocr.ReadDuration(ctx, frame, btn.Point, CaveTimerRegion), CaveFallbackDuration)
	if !c.seq.TapMatch(ctx, btn, "Send") {
		return false
	}

	now := c.now()
	idx, fallback := c.tracker.AssignFirstFree(now, now.Add(duration+CaveReturnMargin))
	c.log.Info("Scout sent", "duration", duration, "slot", idx, "fallback", fallback)
	return true
}

func (c *CavesExploration) scheduleNext() {
	now := c.now()
	next := c.tracker.NextFreeAt()
	if next.Before(now) {
		next = now.Add(CaveRetryDelay)
	}
	c.nextRun = next
}
