package bot

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rokbot/internal/config"
	"github.com/teslashibe/go-rokbot/pkg/device"
	"github.com/teslashibe/go-rokbot/pkg/ocr"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

type zeroTimer struct{}

func (zeroTimer) ReadDuration(context.Context, vision.Frame, image.Point, ocr.Region) time.Duration {
	return 0
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.StateDir = t.TempDir()
	return cfg
}

func TestAssemble_RegistersBehaviorsInOrder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Behaviors.Food.Enabled = false
	targets, err := vision.NewRegistry(nil)
	require.NoError(t, err)
	screen := device.NewMockScreen()

	sched, err := Assemble(cfg, targets, screen, screen, zeroTimer{})
	require.NoError(t, err)

	st := sched.Status()
	assert.False(t, st.Running, "starts paused unless auto_start")
	require.Len(t, st.Behaviors, 5)

	names := make([]string, len(st.Behaviors))
	for i, b := range st.Behaviors {
		names[i] = b.Name
	}
	assert.Equal(t, []string{
		"Alliance Auto-Help",
		"Fog Auto-Explorer",
		"Cave Auto-Explorer",
		"Food Auto-Gather",
		"Daily VIP Sequence",
	}, names)
	assert.False(t, st.Behaviors[3].Enabled)
	assert.True(t, st.Behaviors[4].Enabled)
}

func TestAssemble_PriorityOverrideAndSlots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Behaviors.DailyVIP.Priority = 5
	cfg.Behaviors.Caves.Capacity = 2
	targets, err := vision.NewRegistry(nil)
	require.NoError(t, err)
	screen := device.NewMockScreen()

	sched, err := Assemble(cfg, targets, screen, screen, zeroTimer{})
	require.NoError(t, err)

	st := sched.Status()
	assert.Equal(t, 1, st.Behaviors[0].Priority, "zero keeps the built-in priority")
	assert.Equal(t, 5, st.Behaviors[4].Priority)
	assert.Len(t, st.Behaviors[2].Slots, 2, "cave scouts are reported")
	assert.Nil(t, st.Behaviors[0].Slots)
}

func TestAssemble_AutoStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.AutoStart = true
	targets, err := vision.NewRegistry(nil)
	require.NoError(t, err)
	screen := device.NewMockScreen()

	sched, err := Assemble(cfg, targets, screen, screen, zeroTimer{})
	require.NoError(t, err)
	assert.True(t, sched.Status().Running)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vision.Thresholds = map[string]float64{"spyglass": 1.5}

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNew_RejectsUnknownThresholdTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vision.Thresholds = map[string]float64{"no_such_button": 0.5}

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestRunAndProbeRequireInit(t *testing.T) {
	app, err := New(testConfig(t), nil)
	require.NoError(t, err)

	assert.Error(t, app.Run(context.Background(), RunOptions{}))
	_, err = app.Probe(context.Background(), vision.TargetSpyglass)
	assert.Error(t, err)
	app.Shutdown()
	app.Shutdown()
}

func TestConfigMapping(t *testing.T) {
	cfg := config.NewDefaultConfig()

	dc := deviceConfig(cfg.Device)
	assert.Equal(t, cfg.Device.Serial, dc.Serial)
	assert.Equal(t, 5*time.Second, dc.CaptureTimeout)

	sc := sequencerConfig(cfg.Sequencer)
	assert.Equal(t, image.Pt(640, 100), sc.NeutralPoint)
	assert.Equal(t, 1.0, sc.Scale)

	vc := visionConfig(cfg.Vision)
	assert.Equal(t, 20.0, vc.DuplicateRadius)

	sch := schedulerConfig(cfg.Scheduler)
	assert.Equal(t, 2*time.Second, sch.Cooldown)
	assert.Positive(t, sch.QueueSize)
}
