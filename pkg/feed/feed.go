// Package feed keeps a bounded buffer of recent human-readable status lines
// and notifies subscribers as lines arrive.
package feed

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity is the number of lines kept for displays.
const DefaultCapacity = 200

// Entry is one status line.
type Entry struct {
	Time    time.Time  `json:"time"`
	Level   slog.Level `json:"level"`
	Source  string     `json:"source"`
	Message string     `json:"message"`
}

// String formats the entry the way the console shows it.
func (e Entry) String() string {
	if e.Source == "" {
		return fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
	}
	return fmt.Sprintf("[%s] [%s] %s", e.Time.Format("15:04:05"), e.Source, e.Message)
}

// Feed is a mutex-guarded append-and-trim buffer. Subscriber channels are
// written without blocking; a full subscriber misses entries.
type Feed struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	subs     map[chan Entry]struct{}
	dropped  uint64
}

// New creates a feed keeping the last capacity entries.
func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
		subs:     make(map[chan Entry]struct{}),
	}
}

// Append adds an entry, trims the buffer and notifies subscribers.
func (f *Feed) Append(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.entries) == f.capacity {
		copy(f.entries, f.entries[1:])
		f.entries = f.entries[:len(f.entries)-1]
	}
	f.entries = append(f.entries, e)

	for ch := range f.subs {
		select {
		case ch <- e:
		default:
			f.dropped++
		}
	}
}

// Recent returns up to n of the newest entries, oldest first. n <= 0
// returns everything.
func (f *Feed) Recent(n int) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := 0
	if n > 0 && n < len(f.entries) {
		start = len(f.entries) - n
	}
	return append([]Entry(nil), f.entries[start:]...)
}

// Len returns the number of buffered entries.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Dropped returns how many notifications were lost to slow subscribers.
func (f *Feed) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Subscribe returns a channel receiving every new entry. The returned func
// unsubscribes and closes the channel.
func (f *Feed) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Entry, buffer)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}
