package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, DefaultSerial, cfg.Device.Serial)
	assert.Equal(t, 5*time.Second, cfg.Device.CaptureTimeout)
	assert.Equal(t, 20.0, cfg.Vision.DuplicateRadius)
	assert.Equal(t, 1500*time.Millisecond, cfg.Sequencer.Settle)
	assert.Equal(t, time.Second, cfg.Scheduler.IdleWait)
	assert.False(t, cfg.Scheduler.AutoStart)
	assert.Equal(t, 3, cfg.Behaviors.Caves.Capacity)
	assert.Equal(t, 2, cfg.Behaviors.Fog.Capacity)
	assert.True(t, cfg.Behaviors.DailyVIP.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rokbot.yaml")
	yaml := `
device:
  serial: emulator-5554
vision:
  duplicate_radius: 12
  thresholds:
    btn_send: 0.75
behaviors:
  caves:
    capacity: 4
scheduler:
  cooldown: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("ROKBOT_SCHEDULER_AUTO_START", "true")
	t.Setenv("ADB_SERIAL", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "emulator-5554", cfg.Device.Serial)
	assert.Equal(t, 12.0, cfg.Vision.DuplicateRadius)
	assert.Equal(t, 0.75, cfg.Vision.Thresholds["btn_send"])
	assert.Equal(t, 4, cfg.Behaviors.Caves.Capacity)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.Cooldown)
	assert.True(t, cfg.Scheduler.AutoStart)
}

func TestLoad_LegacySerialEnv(t *testing.T) {
	t.Setenv("ADB_SERIAL", "10.0.0.5:5555")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:5555", cfg.Device.Serial)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"max matches", func(c *Config) { c.Vision.MaxMatches = 0 }, "vision.max_matches"},
		{"threshold range", func(c *Config) { c.Vision.Thresholds = map[string]float64{"btn_send": 2} }, "vision.thresholds.btn_send"},
		{"capacity", func(c *Config) { c.Behaviors.Caves.Capacity = 0 }, "behaviors.caves.capacity"},
		{"serial", func(c *Config) { c.Device.Serial = "" }, "device.serial"},
		{"web addr", func(c *Config) { c.Web.Addr = "" }, "web.addr"},
		{"nav poll", func(c *Config) { c.Navigation.PollInterval = 0 }, "navigation.poll_interval"},
		{"nav settle", func(c *Config) { c.Navigation.SettleTimeout = -time.Second }, "navigation.settle_timeout"},
		{"slot priority", func(c *Config) { c.Behaviors.Food.Priority = -1 }, "behaviors.food.priority"},
		{"toggle priority", func(c *Config) { c.Behaviors.DailyVIP.Priority = -5 }, "behaviors.daily_vip.priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDeviceHelpers(t *testing.T) {
	t.Setenv("ADB_SERIAL", "")
	t.Setenv("ADB_PATH", "/opt/adb")

	assert.Equal(t, "fallback", DeviceSerial("fallback"))
	assert.Equal(t, "/opt/adb", ADBPath(DefaultADBPath))
	assert.Equal(t, "127.0.0.1:5555", EmulatorAddress("127.0.0.1", 5555))
}
