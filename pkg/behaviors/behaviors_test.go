package behaviors

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rokbot/pkg/device"
	"github.com/teslashibe/go-rokbot/pkg/navigation"
	"github.com/teslashibe/go-rokbot/pkg/ocr"
	"github.com/teslashibe/go-rokbot/pkg/sequencer"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubNavigator records requested views and answers with ok.
type stubNavigator struct {
	ok    bool
	calls []navigation.State
}

func (n *stubNavigator) Ensure(ctx context.Context, target navigation.State) bool {
	n.calls = append(n.calls, target)
	return n.ok
}

// fakeTimer returns a fixed duration and records the anchors it was asked about.
type fakeTimer struct {
	d       time.Duration
	anchors []image.Point
}

func (f *fakeTimer) ReadDuration(_ context.Context, _ vision.Frame, anchor image.Point, _ ocr.Region) time.Duration {
	f.anchors = append(f.anchors, anchor)
	return f.d
}

type fixture struct {
	screen *device.MockScreen
	nav    *stubNavigator
	clock  *fakeClock
	timer  *fakeTimer
	deps   Deps
}

func newFixture() *fixture {
	screen := device.NewMockScreen()
	cfg := sequencer.DefaultConfig()
	cfg.Settle = time.Millisecond
	cfg.PollInterval = time.Millisecond
	cfg.WaitTimeout = 5 * time.Millisecond
	cfg.Scale = 0.001

	f := &fixture{
		screen: screen,
		nav:    &stubNavigator{ok: true},
		clock:  newFakeClock(),
		timer:  &fakeTimer{},
	}
	targets, _ := vision.NewRegistry(nil)
	f.deps = Deps{
		Seq:     sequencer.New(screen, screen, cfg),
		Nav:     f.nav,
		Targets: targets,
		OCR:     f.timer,
		Now:     f.clock.Now,
	}
	return f
}

var (
	campPt     = image.Pt(500, 300)
	spyglassPt = image.Pt(520, 420)
	menuPt     = image.Pt(900, 600)
	targetPt   = image.Pt(640, 360)
	sendPt     = image.Pt(1000, 620)
	cavesTabPt = image.Pt(200, 150)
	invPt      = image.Pt(700, 500)
)

// showScoutMenu puts every step of the scout camp flow on screen.
func (f *fixture) showScoutMenu() {
	f.screen.Show(vision.TargetScoutCamp1, campPt)
	f.screen.Show(vision.TargetSpyglass, spyglassPt)
	f.screen.Show(vision.TargetExploreMenu, menuPt)
	f.screen.Show(vision.TargetExploreTarget, targetPt)
	f.screen.Show(vision.TargetSend, sendPt)
	f.screen.Show(vision.TargetCavesTab, cavesTabPt)
	f.screen.Show(vision.TargetInvestigate, invPt)
}

func countTaps(taps []image.Point, pt image.Point) int {
	n := 0
	for _, t := range taps {
		if t == pt {
			n++
		}
	}
	return n
}

func TestPriorities(t *testing.T) {
	f := newFixture()
	assert.Equal(t, 1, NewAllianceHelp(f.deps).Priority())
	assert.Equal(t, 20, NewFogExploration(f.deps, 1).Priority())
	assert.Equal(t, 25, NewCavesExploration(f.deps, 3).Priority())
	assert.Equal(t, 30, NewFoodGathering(f.deps, 1).Priority())
	assert.Equal(t, 50, NewDailyVIP(f.deps, t.TempDir()).Priority())
}

func TestSetPriority(t *testing.T) {
	f := newFixture()
	b := NewFoodGathering(f.deps, 1)
	b.SetPriority(0)
	assert.Equal(t, 30, b.Priority())
	b.SetPriority(-3)
	assert.Equal(t, 30, b.Priority())
	b.SetPriority(7)
	assert.Equal(t, 7, b.Priority())
}

func TestAllianceHelp_TapsIcon(t *testing.T) {
	f := newFixture()
	b := NewAllianceHelp(f.deps)
	f.screen.Show(vision.TargetHelpIcon, image.Pt(1100, 560))

	require.True(t, b.ShouldRun(context.Background()))
	require.NoError(t, b.Run(context.Background()))
	assert.Equal(t, []image.Point{{1100, 560}}, f.screen.Taps())
	assert.True(t, b.ShouldRun(context.Background()), "a hit does not back off")
}

func TestAllianceHelp_BacksOffAfterMiss(t *testing.T) {
	f := newFixture()
	b := NewAllianceHelp(f.deps)

	require.NoError(t, b.Run(context.Background()))
	assert.Empty(t, f.screen.Taps())
	assert.False(t, b.ShouldRun(context.Background()))

	f.clock.Advance(3 * time.Second)
	assert.False(t, b.ShouldRun(context.Background()))
	f.clock.Advance(time.Second)
	assert.True(t, b.ShouldRun(context.Background()))
}

func TestFog_ShouldRun(t *testing.T) {
	tests := []struct {
		name   string
		purple int
		blue   int
		scouts int
		want   bool
	}{
		{"all scouts busy", 2, 0, 2, false},
		{"idle scout", 1, 0, 2, true},
		{"camping scout", 2, 1, 2, true},
		{"nothing on screen", 0, 0, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			var purple, blue []image.Point
			for i := 0; i < tt.purple; i++ {
				purple = append(purple, image.Pt(1200, 200+i*60))
			}
			for i := 0; i < tt.blue; i++ {
				blue = append(blue, image.Pt(1200, 400+i*60))
			}
			f.screen.Show(vision.TargetMarchPurple, purple...)
			f.screen.Show(vision.TargetMarchBlue, blue...)

			b := NewFogExploration(f.deps, tt.scouts)
			assert.Equal(t, tt.want, b.ShouldRun(context.Background()))
		})
	}
}

func TestFog_ShouldRunThrottled(t *testing.T) {
	f := newFixture()
	b := NewFogExploration(f.deps, 1)

	require.True(t, b.ShouldRun(context.Background()))
	captures := f.screen.Captures()
	assert.False(t, b.ShouldRun(context.Background()))
	assert.Equal(t, captures, f.screen.Captures(), "throttled check must not capture")

	f.clock.Advance(5 * time.Second)
	assert.True(t, b.ShouldRun(context.Background()))
}

func TestFog_RunSendsMissingScouts(t *testing.T) {
	f := newFixture()
	f.showScoutMenu()
	f.screen.Show(vision.TargetMarchPurple, image.Pt(1200, 200))

	b := NewFogExploration(f.deps, 3)
	require.NoError(t, b.Run(context.Background()))

	taps := f.screen.Taps()
	assert.Equal(t, 2, countTaps(taps, sendPt))
	assert.Equal(t, 2, countTaps(taps, campPt))
	assert.Equal(t, navigation.City, f.nav.calls[len(f.nav.calls)-1])

	assert.False(t, b.ShouldRun(context.Background()), "cool down after a run")
	f.clock.Advance(10 * time.Second)
	assert.True(t, b.ShouldRun(context.Background()))
}

func TestFog_StopsWhenScoutsBusy(t *testing.T) {
	f := newFixture()
	f.showScoutMenu()
	f.screen.Hide(vision.TargetExploreMenu)

	b := NewFogExploration(f.deps, 2)
	require.NoError(t, b.Run(context.Background()))

	assert.Zero(t, countTaps(f.screen.Taps(), sendPt))
	assert.Equal(t, 1, f.screen.Backs(), "menu miss backs out once")
}

func TestFog_NavigationFailure(t *testing.T) {
	f := newFixture()
	f.nav.ok = false

	b := NewFogExploration(f.deps, 1)
	err := b.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNavigation)
	assert.Empty(t, f.screen.Taps())
}

func TestFog_CancelledNavigationIsNotAnError(t *testing.T) {
	f := newFixture()
	f.nav.ok = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewFogExploration(f.deps, 1)
	assert.NoError(t, b.Run(ctx))
}

func TestCaves_SendsBottomUpAndTracksSlots(t *testing.T) {
	f := newFixture()
	f.showScoutMenu()
	top, middle, bottom := image.Pt(1000, 200), image.Pt(1000, 320), image.Pt(1000, 440)
	f.screen.Show(vision.TargetGoCave, middle, bottom, top)
	f.timer.d = 2 * time.Minute

	b := NewCavesExploration(f.deps, 2)
	require.True(t, b.ShouldRun(context.Background()))
	require.NoError(t, b.Run(context.Background()))

	taps := f.screen.Taps()
	assert.Equal(t, 1, countTaps(taps, bottom), "first scout takes the lowest cave")
	assert.Equal(t, 1, countTaps(taps, middle))
	assert.Zero(t, countTaps(taps, top))
	assert.Equal(t, 2, countTaps(taps, sendPt))
	assert.Equal(t, []image.Point{sendPt, sendPt}, f.timer.anchors)

	want := f.clock.Now().Add(2*time.Minute + CaveReturnMargin)
	for _, s := range b.Slots() {
		assert.Equal(t, want, s.FreeAt)
	}
	assert.False(t, b.ShouldRun(context.Background()))

	f.clock.Advance(2*time.Minute + CaveReturnMargin)
	assert.True(t, b.ShouldRun(context.Background()))
}

func TestCaves_UnreadableTimerUsesFallback(t *testing.T) {
	f := newFixture()
	f.showScoutMenu()
	f.screen.Show(vision.TargetGoCave, image.Pt(1000, 300))

	b := NewCavesExploration(f.deps, 1)
	require.NoError(t, b.Run(context.Background()))

	slots := b.Slots()
	require.Len(t, slots, 1)
	assert.Equal(t, f.clock.Now().Add(CaveFallbackDuration+CaveReturnMargin), slots[0].FreeAt)
}

func TestCaves_NoCavesMarksAllBusy(t *testing.T) {
	f := newFixture()
	f.showScoutMenu()

	b := NewCavesExploration(f.deps, 3)
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, 1, f.screen.Backs())
	for _, s := range b.Slots() {
		assert.Equal(t, f.clock.Now().Add(CaveBusyPenalty), s.FreeAt)
	}
	assert.False(t, b.ShouldRun(context.Background()))
	f.clock.Advance(CaveBusyPenalty)
	assert.True(t, b.ShouldRun(context.Background()))
}

func TestCaves_RetriesSoonWhenNothingWasSent(t *testing.T) {
	f := newFixture()
	f.showScoutMenu()
	f.screen.Hide(vision.TargetCavesTab)

	b := NewCavesExploration(f.deps, 2)
	require.NoError(t, b.Run(context.Background()))

	assert.False(t, b.ShouldRun(context.Background()))
	f.clock.Advance(CaveRetryDelay)
	assert.True(t, b.ShouldRun(context.Background()))
}

func TestFood_ShouldRunCountsQueues(t *testing.T) {
	f := newFixture()
	f.screen.Show(vision.TargetStatusGather, image.Pt(1200, 200))

	b := NewFoodGathering(f.deps, 2)
	assert.True(t, b.ShouldRun(context.Background()))

	f.clock.Advance(10 * time.Second)
	f.screen.Show(vision.TargetStatusMarch, image.Pt(1200, 260))
	assert.False(t, b.ShouldRun(context.Background()))
}

func TestFood_RunSendsMarch(t *testing.T) {
	f := newFixture()
	marchPt := image.Pt(1050, 650)
	f.screen.Show(vision.TargetSearchMap, image.Pt(60, 500))
	f.screen.Show(vision.TargetFood, image.Pt(300, 600))
	f.screen.Show(vision.TargetSearchCenter, image.Pt(300, 500))
	f.screen.Show(vision.TargetGather, image.Pt(800, 400))
	f.screen.Show(vision.TargetMarch, marchPt)
	f.screen.OnTap(marchPt, func(m *device.MockScreen) {
		m.Show(vision.TargetStatusGather, image.Pt(1200, 200))
	})

	b := NewFoodGathering(f.deps, 1)
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, 1, countTaps(f.screen.Taps(), marchPt))
	assert.Contains(t, f.nav.calls, navigation.Map)
	assert.False(t, b.ShouldRun(context.Background()))
	f.clock.Advance(60 * time.Second)
	assert.False(t, b.ShouldRun(context.Background()), "queue is now busy")
}

func TestFood_RunIsBounded(t *testing.T) {
	f := newFixture()
	f.screen.Show(vision.TargetFood, image.Pt(300, 600))
	f.screen.Show(vision.TargetSearchCenter, image.Pt(300, 500))

	b := NewFoodGathering(f.deps, 2)
	require.NoError(t, b.Run(context.Background()))

	// Gather never appears: every attempt searches again, up to queues*2.
	assert.Equal(t, 4, countTaps(f.screen.Taps(), image.Pt(300, 500)))
}

func TestFood_MissingFoodIconStops(t *testing.T) {
	f := newFixture()

	b := NewFoodGathering(f.deps, 1)
	require.NoError(t, b.Run(context.Background()))
	assert.Equal(t, 1, f.screen.Backs())
	assert.Empty(t, f.screen.Taps())
}

func TestDailyVIP_RunsOncePerDay(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	vipPt, chestPt, claimPt := image.Pt(150, 60), image.Pt(640, 400), image.Pt(900, 500)
	f.screen.Show(vision.TargetVIPIcon, vipPt)
	f.screen.Show(vision.TargetVIPChest, chestPt)
	f.screen.Show(vision.TargetClaim, claimPt)

	b := NewDailyVIP(f.deps, dir)
	require.True(t, b.ShouldRun(context.Background()))
	require.NoError(t, b.Run(context.Background()))

	neutral := sequencer.DefaultConfig().NeutralPoint
	assert.Equal(t, []image.Point{vipPt, chestPt, neutral, claimPt, neutral, vipPt}, f.screen.Taps())
	assert.False(t, b.ShouldRun(context.Background()))

	// The state survives a restart.
	restored := NewDailyVIP(f.deps, dir)
	assert.Equal(t, f.clock.Now(), restored.LastRun().UTC())
	assert.False(t, restored.ShouldRun(context.Background()))

	f.clock.Advance(14 * time.Hour) // next calendar day
	assert.True(t, restored.ShouldRun(context.Background()))
}

func TestDailyVIP_MissingIconDoesNotSave(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()

	b := NewDailyVIP(f.deps, dir)
	require.NoError(t, b.Run(context.Background()))

	assert.True(t, b.ShouldRun(context.Background()))
	_, err := os.Stat(filepath.Join(dir, VIPStateFile))
	assert.True(t, os.IsNotExist(err))
}

func TestDailyVIP_OptionalRewardsMayBeAbsent(t *testing.T) {
	f := newFixture()
	f.screen.Show(vision.TargetVIPIcon, image.Pt(150, 60))

	b := NewDailyVIP(f.deps, t.TempDir())
	require.NoError(t, b.Run(context.Background()))
	assert.False(t, b.ShouldRun(context.Background()))
}

func TestDailyVIP_CorruptStateRunsToday(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, VIPStateFile), []byte("last_run: [not a time"), 0o644))

	b := NewDailyVIP(f.deps, dir)
	assert.True(t, b.LastRun().IsZero())
	assert.True(t, b.ShouldRun(context.Background()))
}
