package device

import (
	"context"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// MockScreen is a scripted device for testing. It doubles as a finder:
// targets are "visible" at the points registered with Show, and taps can
// trigger screen transitions registered with OnTap.
type MockScreen struct {
	mu      sync.Mutex
	visible map[vision.TargetID][]image.Point
	onTap   map[image.Point]func(*MockScreen)
	onBack  func(*MockScreen)

	taps     []image.Point
	backs    int
	captures int

	// CaptureErr, when set, is returned by every Capture.
	CaptureErr error
}

var _ Device = (*MockScreen)(nil)

// NewMockScreen creates an empty screen.
func NewMockScreen() *MockScreen {
	return &MockScreen{
		visible: make(map[vision.TargetID][]image.Point),
		onTap:   make(map[image.Point]func(*MockScreen)),
	}
}

// Show makes id visible at pts, replacing earlier points.
func (m *MockScreen) Show(id vision.TargetID, pts ...image.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible[id] = append([]image.Point(nil), pts...)
}

// Hide removes ids from the screen.
func (m *MockScreen) Hide(ids ...vision.TargetID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.visible, id)
	}
}

// Visible reports whether id is currently shown.
func (m *MockScreen) Visible(id vision.TargetID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visible[id]) > 0
}

// OnTap registers fn to run when pt is tapped.
func (m *MockScreen) OnTap(pt image.Point, fn func(*MockScreen)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTap[pt] = fn
}

// OnBack registers fn to run when the back key is pressed.
func (m *MockScreen) OnBack(fn func(*MockScreen)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onBack = fn
}

// Taps returns every tapped point in order.
func (m *MockScreen) Taps() []image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]image.Point(nil), m.taps...)
}

// Backs returns how often back was pressed.
func (m *MockScreen) Backs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backs
}

// Captures returns how many frames were taken.
func (m *MockScreen) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

// Capture returns a placeholder frame.
func (m *MockScreen) Capture(ctx context.Context) (vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures++
	if m.CaptureErr != nil {
		return vision.Frame{}, m.CaptureErr
	}
	return vision.Frame{Width: 1, Height: 1, Channels: 3, Pix: make([]byte, 3), Captured: time.Now()}, nil
}

// Tap records the tap and fires any registered transition.
func (m *MockScreen) Tap(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pt := image.Pt(x, y)
	m.mu.Lock()
	m.taps = append(m.taps, pt)
	fn := m.onTap[pt]
	m.mu.Unlock()

	if fn != nil {
		fn(m)
	}
	return nil
}

// Back records the key press and fires the back transition.
func (m *MockScreen) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.backs++
	fn := m.onBack
	m.mu.Unlock()

	if fn != nil {
		fn(m)
	}
	return nil
}

// FindOne returns the topmost visible point of t.
func (m *MockScreen) FindOne(_ vision.Frame, t vision.Target) (vision.Match, bool) {
	all := m.FindAll(vision.Frame{}, t)
	if len(all) == 0 {
		return vision.Match{}, false
	}
	return all[0], true
}

// FindAll returns every visible point of t, top to bottom.
func (m *MockScreen) FindAll(_ vision.Frame, t vision.Target) []vision.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	pts := m.visible[t.ID]
	if len(pts) == 0 {
		return nil
	}
	out := make([]vision.Match, len(pts))
	for i, pt := range pts {
		out[i] = vision.Match{Target: t.ID, Point: pt, Confidence: 1}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Point.Y < out[j].Point.Y })
	return out
}

// FindAny returns the first visible target in order.
func (m *MockScreen) FindAny(frame vision.Frame, targets ...vision.Target) (vision.Match, bool) {
	for _, t := range targets {
		if match, ok := m.FindOne(frame, t); ok {
			return match, true
		}
	}
	return vision.Match{}, false
}

// Count sums visible points over targets.
func (m *MockScreen) Count(frame vision.Frame, targets ...vision.Target) int {
	n := 0
	for _, t := range targets {
		n += len(m.FindAll(frame, t))
	}
	return n
}
