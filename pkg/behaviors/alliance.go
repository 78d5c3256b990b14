package behaviors

import (
	"context"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// AllianceHelp taps the alliance help icon whenever it shows up.
type AllianceHelp struct {
	base
	backoff   time.Duration
	nextCheck time.Time
}

// NewAllianceHelp creates the behavior. After a miss it waits 4s before
// looking again.
func NewAllianceHelp(d Deps) *AllianceHelp {
	return &AllianceHelp{
		base:    newBase(d, "Alliance Auto-Help", "Alliance", 1),
		backoff: 4 * time.Second,
	}
}

func (a *AllianceHelp) ShouldRun(ctx context.Context) bool {
	return !a.now().Before(a.nextCheck)
}

func (a *AllianceHelp) Run(ctx context.Context) error {
	m, ok := a.seq.Find(ctx, a.target(vision.TargetHelpIcon))
	if !ok {
		a.nextCheck = a.now().Add(a.backoff)
		return nil
	}

	a.log.Info("Help requested! Clicking...")
	a.seq.TapMatchFor(ctx, m, "help icon", time.Second)
	return nil
}
