// Package scheduler runs at most one ready behavior per control cycle,
// lowest priority number first.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/slots"
)

// Behavior is a self-contained unit of scheduled work.
type Behavior interface {
	// Name is stable for the process lifetime.
	Name() string

	// Priority orders readiness checks; lower runs first.
	Priority() int

	// ShouldRun reports whether the behavior wants to act now. It may look
	// at the screen.
	ShouldRun(ctx context.Context) bool

	// Run performs one action to completion.
	Run(ctx context.Context) error
}

// SlotReporter is implemented by behaviors that track resource slots. The
// snapshot is included in status updates.
type SlotReporter interface {
	Slots() []slots.Slot
}

// Phase identifies which behavior method failed.
type Phase string

const (
	PhaseShouldRun Phase = "should_run"
	PhaseRun       Phase = "run"
)

// BehaviorError wraps a failure raised by a behavior. Panics are recovered
// into a BehaviorError with Panic set.
type BehaviorError struct {
	Behavior string
	Phase    Phase
	Err      error
	Panic    any
}

func (e *BehaviorError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("behavior %s panicked in %s: %v", e.Behavior, e.Phase, e.Panic)
	}
	return fmt.Sprintf("behavior %s failed in %s: %v", e.Behavior, e.Phase, e.Err)
}

func (e *BehaviorError) Unwrap() error {
	return e.Err
}

// BehaviorStatus is a read-only view of one registered behavior.
type BehaviorStatus struct {
	Index     int // 0-based registration position
	Name      string
	Priority  int
	Enabled   bool
	Runs      int
	Failures  int
	LastRun   time.Time
	LastError string
	Slots     []slots.Slot // Nil unless the behavior is a SlotReporter
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running   bool
	Active    string // Behavior currently running, if any
	Behaviors []BehaviorStatus
}

// clone returns a deep copy safe to hand to other goroutines.
func (s Status) clone() Status {
	out := s
	out.Behaviors = append([]BehaviorStatus(nil), s.Behaviors...)
	return out
}
