package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-rokbot/internal/log"
)

// Config holds loop pacing.
type Config struct {
	IdleWait   time.Duration // Wait when nothing was ready
	PausedPoll time.Duration // Recheck interval while paused
	Cooldown   time.Duration // Wait after a behavior failure
	AutoStart  bool          // Start running instead of paused
	QueueSize  int           // Command queue capacity
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		IdleWait:   time.Second,
		PausedPoll: 500 * time.Millisecond,
		Cooldown:   2 * time.Second,
		QueueSize:  32,
	}
}

type commandKind int

const (
	cmdSetRunning commandKind = iota
	cmdToggleRunning
	cmdToggle
	cmdSetEnabled
)

type command struct {
	kind  commandKind
	index int
	value bool
}

type entry struct {
	behavior Behavior
	enabled  bool
	runs     int
	failures int
	lastRun  time.Time
	lastErr  string
}

// Scheduler owns the running flag and the per-behavior enabled flags. Only
// the loop goroutine writes them; other goroutines send commands and read
// snapshots.
type Scheduler struct {
	config  Config
	log     *slog.Logger
	cmds    chan command
	started atomic.Bool
	now     func() time.Time

	// Loop-owned.
	entries []*entry
	running bool
	active  string
	cooling bool

	mu     sync.RWMutex
	status Status

	watchMu  sync.Mutex
	watchers map[chan Status]struct{}
}

// New creates a paused scheduler unless cfg.AutoStart is set.
func New(cfg Config) *Scheduler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	s := &Scheduler{
		config:   cfg,
		log:      log.With("component", "scheduler"),
		cmds:     make(chan command, cfg.QueueSize),
		now:      time.Now,
		running:  cfg.AutoStart,
		watchers: make(map[chan Status]struct{}),
	}
	s.publish()
	return s
}

// Register appends a behavior. Registration order is the external index
// used by Toggle and SetEnabled.
func (s *Scheduler) Register(b Behavior, enabled bool) error {
	if s.started.Load() {
		return ErrAlreadyStarted
	}
	s.entries = append(s.entries, &entry{behavior: b, enabled: enabled})
	s.publish()
	return nil
}

// Len returns the number of registered behaviors.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.status.Behaviors)
}

// SetRunning starts or pauses the loop.
func (s *Scheduler) SetRunning(running bool) error {
	return s.send(command{kind: cmdSetRunning, value: running})
}

// ToggleRunning flips the running flag.
func (s *Scheduler) ToggleRunning() error {
	return s.send(command{kind: cmdToggleRunning})
}

// Toggle flips the enabled flag of the behavior at index (0-based).
func (s *Scheduler) Toggle(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	return s.send(command{kind: cmdToggle, index: index})
}

// SetEnabled sets the enabled flag of the behavior at index (0-based).
func (s *Scheduler) SetEnabled(index int, enabled bool) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	return s.send(command{kind: cmdSetEnabled, index: index, value: enabled})
}

func (s *Scheduler) checkIndex(index int) error {
	if n := s.Len(); index < 0 || index >= n {
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidIndex, index, n)
	}
	return nil
}

func (s *Scheduler) send(c command) error {
	select {
	case s.cmds <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

// Status returns a snapshot safe to use from any goroutine.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.clone()
}

// Watch returns a channel receiving the latest status after every change.
// Slow readers only see the newest snapshot. Call the returned func to
// stop watching.
func (s *Scheduler) Watch() (<-chan Status, func()) {
	ch := make(chan Status, 1)
	ch <- s.Status()
	s.watchMu.Lock()
	s.watchers[ch] = struct{}{}
	s.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.watchMu.Lock()
			delete(s.watchers, ch)
			s.watchMu.Unlock()
		})
	}
}

// Run drives the control loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.started.Store(true)
	s.log.Info("scheduler started", "behaviors", len(s.entries), "running", s.running)

	for {
		wait := s.Cycle(ctx)
		if ctx.Err() != nil {
			s.log.Info("scheduler stopped")
			return nil
		}
		if wait > 0 {
			s.wait(ctx, wait)
		}
	}
}

// Cycle applies pending commands, runs at most one behavior and returns how
// long the loop should wait before the next cycle.
func (s *Scheduler) Cycle(ctx context.Context) time.Duration {
	s.cooling = false
	s.drain()
	if !s.running {
		return s.config.PausedPoll
	}

	for _, i := range s.order() {
		if ctx.Err() != nil {
			return 0
		}
		e := s.entries[i]

		ready, err := s.shouldRun(ctx, e)
		if err != nil {
			s.recordFailure(e, err)
			return s.config.Cooldown
		}
		if !ready {
			continue
		}

		if err := s.run(ctx, e); err != nil {
			s.recordFailure(e, err)
			return s.config.Cooldown
		}
		return 0
	}
	return s.config.IdleWait
}

// order returns enabled entry indices by ascending priority; registration
// order breaks ties.
func (s *Scheduler) order() []int {
	idx := make([]int, 0, len(s.entries))
	for i, e := range s.entries {
		if e.enabled {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.entries[idx[a]].behavior.Priority() < s.entries[idx[b]].behavior.Priority()
	})
	return idx
}

func (s *Scheduler) shouldRun(ctx context.Context, e *entry) (ready bool, err error) {
	name := e.behavior.Name()
	defer func() {
		if r := recover(); r != nil {
			err = &BehaviorError{Behavior: name, Phase: PhaseShouldRun, Panic: r}
		}
	}()
	return e.behavior.ShouldRun(ctx), nil
}

func (s *Scheduler) run(ctx context.Context, e *entry) (err error) {
	name := e.behavior.Name()
	runID := uuid.NewString()
	start := s.now()

	s.active = name
	s.publish()
	s.log.Info("running behavior", "behavior", name, "run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			err = &BehaviorError{Behavior: name, Phase: PhaseRun, Panic: r}
		}
		e.runs++
		e.lastRun = start
		s.active = ""
		s.log.Info("behavior finished", "behavior", name, "run_id", runID,
			"took", s.now().Sub(start).Round(time.Millisecond), "ok", err == nil)
		s.publish()
	}()

	if runErr := e.behavior.Run(ctx); runErr != nil {
		return &BehaviorError{Behavior: name, Phase: PhaseRun, Err: runErr}
	}
	return nil
}

func (s *Scheduler) recordFailure(e *entry, err error) {
	e.failures++
	e.lastErr = err.Error()
	s.cooling = true
	s.log.Error("behavior error, cooling down", "behavior", e.behavior.Name(), "error", err, "cooldown", s.config.Cooldown)
	s.publish()
}

// wait sleeps for d, returning early on cancellation or on a new command.
// A failure cooldown applies commands as they arrive but always runs to
// completion.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			return
		case c := <-s.cmds:
			s.apply(c)
			s.publish()
			if !s.cooling {
				return
			}
		}
	}
}

func (s *Scheduler) drain() {
	changed := false
	for {
		select {
		case c := <-s.cmds:
			s.apply(c)
			changed = true
		default:
			if changed {
				s.publish()
			}
			return
		}
	}
}

func (s *Scheduler) apply(c command) {
	switch c.kind {
	case cmdSetRunning:
		s.setRunning(c.value)
	case cmdToggleRunning:
		s.setRunning(!s.running)
	case cmdToggle:
		if c.index < len(s.entries) {
			s.setEnabled(c.index, !s.entries[c.index].enabled)
		}
	case cmdSetEnabled:
		if c.index < len(s.entries) {
			s.setEnabled(c.index, c.value)
		}
	}
}

func (s *Scheduler) setRunning(running bool) {
	if s.running == running {
		return
	}
	s.running = running
	if running {
		s.log.Info("bot started")
	} else {
		s.log.Info("bot paused")
	}
}

func (s *Scheduler) setEnabled(i int, enabled bool) {
	e := s.entries[i]
	if e.enabled == enabled {
		return
	}
	e.enabled = enabled
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	s.log.Info("behavior "+state, "behavior", e.behavior.Name())
}

// publish rebuilds the snapshot and notifies watchers. Called only from
// the goroutine that owns the loop state.
func (s *Scheduler) publish() {
	st := Status{
		Running:   s.running,
		Active:    s.active,
		Behaviors: make([]BehaviorStatus, len(s.entries)),
	}
	for i, e := range s.entries {
		st.Behaviors[i] = BehaviorStatus{
			Index:     i,
			Name:      e.behavior.Name(),
			Priority:  e.behavior.Priority(),
			Enabled:   e.enabled,
			Runs:      e.runs,
			Failures:  e.failures,
			LastRun:   e.lastRun,
			LastError: e.lastErr,
		}
		if r, ok := e.behavior.(SlotReporter); ok {
			st.Behaviors[i].Slots = r.Slots()
		}
	}

	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st.clone():
		default:
		}
	}
}
