// Package slots tracks a fixed number of recoverable capacity units
// (scouts, march queues) and when each becomes free again.
package slots

import (
	"sync"
	"time"
)

// Slot is one capacity unit. It is free iff FreeAt <= now.
type Slot struct {
	Index  int
	FreeAt time.Time
}

// Free reports whether the slot is available at now.
func (s Slot) Free(now time.Time) bool {
	return !s.FreeAt.After(now)
}

// Tracker holds a fixed-size array of slots. The owning behavior is the
// only writer; readers may call from other goroutines.
type Tracker struct {
	mu    sync.Mutex
	slots []time.Time
}

// New creates a tracker with capacity slots, all free. Capacity below one
// is raised to one.
func New(capacity int) *Tracker {
	if capacity < 1 {
		capacity = 1
	}
	return &Tracker{slots: make([]time.Time, capacity)}
}

// Capacity returns the fixed slot count.
func (t *Tracker) Capacity() int {
	return len(t.slots)
}

// CountFree returns how many slots are free at now.
func (t *Tracker) CountFree(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, at := range t.slots {
		if !at.After(now) {
			n++
		}
	}
	return n
}

// AssignFirstFree stores returnAt in the first free slot in index order.
// When none is free it overwrites the slot with the earliest FreeAt and
// reports fallback.
func (t *Tracker) AssignFirstFree(now, returnAt time.Time) (index int, fallback bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, at := range t.slots {
		if !at.After(now) {
			t.slots[i] = returnAt
			return i, false
		}
	}

	earliest := 0
	for i, at := range t.slots {
		if at.Before(t.slots[earliest]) {
			earliest = i
		}
	}
	t.slots[earliest] = returnAt
	return earliest, true
}

// MarkAllBusyFallback pushes every free slot to now+penalty. Busy slots
// keep their timers.
func (t *Tracker) MarkAllBusyFallback(now time.Time, penalty time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	marked := 0
	for i, at := range t.slots {
		if !at.After(now) {
			t.slots[i] = now.Add(penalty)
			marked++
		}
	}
	return marked
}

// NextFreeAt returns the earliest FreeAt across all slots.
func (t *Tracker) NextFreeAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.slots[0]
	for _, at := range t.slots[1:] {
		if at.Before(next) {
			next = at
		}
	}
	return next
}

// Snapshot returns a copy of every slot.
func (t *Tracker) Snapshot() []Slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Slot, len(t.slots))
	for i, at := range t.slots {
		out[i] = Slot{Index: i, FreeAt: at}
	}
	return out
}
