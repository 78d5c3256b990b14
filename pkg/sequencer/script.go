package sequencer

import (
	"context"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// MissPolicy decides what happens when a required action finds nothing.
type MissPolicy int

const (
	// Abort stops the script.
	Abort MissPolicy = iota
	// AbortWithBack presses back once before stopping, to leave any
	// half-opened menu.
	AbortWithBack
)

// Action is one declarative step: locate any of Targets, tap it, settle.
type Action struct {
	Label        string
	Targets      []vision.Target // Alternatives, tried in order
	WaitUpTo     time.Duration   // Poll for the targets this long before giving up (0 = single look)
	Settle       time.Duration   // Override of the configured settle wait (0 = default)
	Optional     bool            // A miss skips the action instead of failing the script
	OnMiss       MissPolicy
	DismissAfter bool // Tap the neutral point after the action
}

// Result reports how far a script got.
type Result struct {
	Completed int    // Actions that ran or were skipped as optional
	FailedAt  string // Label of the action that failed, if any
	Cancelled bool   // Context ended mid-script
}

// OK reports whether every action completed.
func (r Result) OK() bool {
	return r.FailedAt == "" && !r.Cancelled
}

// Run executes actions in order and stops at the first required miss.
func (s *Sequencer) Run(ctx context.Context, actions []Action) Result {
	var res Result
	for _, a := range actions {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res
		}

		m, found := s.locate(ctx, a)
		if !found {
			if ctx.Err() != nil {
				res.Cancelled = true
				return res
			}
			if a.Optional {
				s.log.Debug(a.Label+" not present, skipping", "label", a.Label)
				res.Completed++
				continue
			}
			s.log.Info(a.Label+" not found, aborting", "label", a.Label)
			res.FailedAt = a.Label
			if a.OnMiss == AbortWithBack {
				s.Back(ctx)
			}
			return res
		}

		settle := s.scaled(a.Settle)
		if settle <= 0 {
			settle = s.config.Settle
		}
		if !s.tap(ctx, m.Point, a.Label, settle) {
			if ctx.Err() != nil {
				res.Cancelled = true
			} else {
				res.FailedAt = a.Label
			}
			return res
		}
		if a.DismissAfter && !s.Dismiss(ctx) && ctx.Err() != nil {
			res.Cancelled = true
			return res
		}
		res.Completed++
	}
	return res
}

func (s *Sequencer) locate(ctx context.Context, a Action) (vision.Match, bool) {
	if a.WaitUpTo > 0 {
		return s.WaitFor(ctx, max(s.scaled(a.WaitUpTo), time.Millisecond), a.Targets...)
	}
	return s.Find(ctx, a.Targets...)
}
