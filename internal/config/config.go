// Package config provides configuration for go-rokbot commands.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full agent configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Device     DeviceConfig     `mapstructure:"device" yaml:"device"`
	Vision     VisionConfig     `mapstructure:"vision" yaml:"vision"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr"`
	Sequencer  SequencerConfig  `mapstructure:"sequencer" yaml:"sequencer"`
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler"`
	Behaviors  BehaviorsConfig  `mapstructure:"behaviors" yaml:"behaviors"`
	Web        WebConfig        `mapstructure:"web" yaml:"web"`
	StateDir   string           `mapstructure:"state_dir" yaml:"state_dir"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	FeedSize   int    `mapstructure:"feed_size" yaml:"feed_size"`
}

type DeviceConfig struct {
	ADBPath        string        `mapstructure:"adb_path" yaml:"adb_path"`
	Serial         string        `mapstructure:"serial" yaml:"serial"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	InputTimeout   time.Duration `mapstructure:"input_timeout" yaml:"input_timeout"`
	TapInterval    time.Duration `mapstructure:"tap_interval" yaml:"tap_interval"`
}

type VisionConfig struct {
	AssetsDir       string             `mapstructure:"assets_dir" yaml:"assets_dir"`
	DuplicateRadius float64            `mapstructure:"duplicate_radius" yaml:"duplicate_radius"`
	MaxMatches      int                `mapstructure:"max_matches" yaml:"max_matches"`
	MatchTimeout    time.Duration      `mapstructure:"match_timeout" yaml:"match_timeout"`
	Thresholds      map[string]float64 `mapstructure:"thresholds" yaml:"thresholds"`
}

type OCRConfig struct {
	Language       string `mapstructure:"language" yaml:"language"`
	TessdataPrefix string `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix"`
	DebugDir       string `mapstructure:"debug_dir" yaml:"debug_dir"`
}

type SequencerConfig struct {
	Settle       time.Duration `mapstructure:"settle" yaml:"settle"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	NeutralX     int           `mapstructure:"neutral_x" yaml:"neutral_x"`
	NeutralY     int           `mapstructure:"neutral_y" yaml:"neutral_y"`
	Scale        float64       `mapstructure:"scale" yaml:"scale"`
}

type NavigationConfig struct {
	SettleTimeout time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type SchedulerConfig struct {
	IdleWait   time.Duration `mapstructure:"idle_wait" yaml:"idle_wait"`
	PausedPoll time.Duration `mapstructure:"paused_poll" yaml:"paused_poll"`
	Cooldown   time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	AutoStart  bool          `mapstructure:"auto_start" yaml:"auto_start"`
}

type BehaviorsConfig struct {
	AllianceHelp ToggleConfig `mapstructure:"alliance_help" yaml:"alliance_help"`
	Fog          SlotConfig   `mapstructure:"fog" yaml:"fog"`
	Caves        SlotConfig   `mapstructure:"caves" yaml:"caves"`
	Food         SlotConfig   `mapstructure:"food" yaml:"food"`
	DailyVIP     ToggleConfig `mapstructure:"daily_vip" yaml:"daily_vip"`
}

// ToggleConfig enables a behavior with no tunables. Priority 0 keeps the
// built-in priority.
type ToggleConfig struct {
	Enabled  bool `mapstructure:"enabled" yaml:"enabled"`
	Priority int  `mapstructure:"priority" yaml:"priority"`
}

// SlotConfig enables a behavior that owns a fixed number of resource slots.
type SlotConfig struct {
	Enabled  bool `mapstructure:"enabled" yaml:"enabled"`
	Priority int  `mapstructure:"priority" yaml:"priority"`
	Capacity int  `mapstructure:"capacity" yaml:"capacity"`
}

type WebConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "")
	v.SetDefault("logger.file", "rokbot.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.feed_size", 200)

	// -- Device --
	v.SetDefault("device.adb_path", DefaultADBPath)
	v.SetDefault("device.serial", DefaultSerial)
	v.SetDefault("device.capture_timeout", "5s")
	v.SetDefault("device.input_timeout", "3s")
	v.SetDefault("device.tap_interval", "150ms")

	// -- Vision --
	v.SetDefault("vision.assets_dir", DefaultAssetsDir)
	v.SetDefault("vision.duplicate_radius", 20.0)
	v.SetDefault("vision.max_matches", 64)
	v.SetDefault("vision.match_timeout", "3s")
	v.SetDefault("vision.thresholds", map[string]float64{})

	// -- OCR --
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.tessdata_prefix", "")
	v.SetDefault("ocr.debug_dir", "")

	// -- Sequencer --
	v.SetDefault("sequencer.settle", "1500ms")
	v.SetDefault("sequencer.poll_interval", "300ms")
	v.SetDefault("sequencer.wait_timeout", "3s")
	v.SetDefault("sequencer.neutral_x", 640)
	v.SetDefault("sequencer.neutral_y", 100)
	v.SetDefault("sequencer.scale", 1.0)

	// -- Navigation --
	v.SetDefault("navigation.settle_timeout", "3s")
	v.SetDefault("navigation.poll_interval", "300ms")

	// -- Scheduler --
	v.SetDefault("scheduler.idle_wait", "1s")
	v.SetDefault("scheduler.paused_poll", "500ms")
	v.SetDefault("scheduler.cooldown", "2s")
	v.SetDefault("scheduler.auto_start", false)

	// -- Behaviors --
	v.SetDefault("behaviors.alliance_help.enabled", true)
	v.SetDefault("behaviors.alliance_help.priority", 0)
	v.SetDefault("behaviors.fog.enabled", true)
	v.SetDefault("behaviors.fog.priority", 0)
	v.SetDefault("behaviors.fog.capacity", 2)
	v.SetDefault("behaviors.caves.enabled", true)
	v.SetDefault("behaviors.caves.priority", 0)
	v.SetDefault("behaviors.caves.capacity", 3)
	v.SetDefault("behaviors.food.enabled", true)
	v.SetDefault("behaviors.food.priority", 0)
	v.SetDefault("behaviors.food.capacity", 1)
	v.SetDefault("behaviors.daily_vip.enabled", true)
	v.SetDefault("behaviors.daily_vip.priority", 0)

	// -- Web --
	v.SetDefault("web.enabled", true)
	v.SetDefault("web.addr", "127.0.0.1:8090")

	v.SetDefault("state_dir", ".")
}

// NewDefaultConfig returns the configuration with only defaults applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads configuration from path (or ./rokbot.yaml when path is empty
// and the file exists), then ROKBOT_* environment variables, then the
// legacy ADB_SERIAL and ADB_PATH variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("ROKBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("rokbot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Device.Serial = DeviceSerial(cfg.Device.Serial)
	cfg.Device.ADBPath = ADBPath(cfg.Device.ADBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Device.Serial == "" {
		errs = append(errs, errors.New("device.serial is required"))
	}
	if c.Device.CaptureTimeout <= 0 || c.Device.InputTimeout <= 0 {
		errs = append(errs, errors.New("device timeouts must be positive"))
	}
	if c.Vision.AssetsDir == "" {
		errs = append(errs, errors.New("vision.assets_dir is required"))
	}
	if c.Vision.DuplicateRadius < 0 {
		errs = append(errs, errors.New("vision.duplicate_radius must not be negative"))
	}
	if c.Vision.MaxMatches <= 0 {
		errs = append(errs, errors.New("vision.max_matches must be a positive integer"))
	}
	for name, th := range c.Vision.Thresholds {
		if th < 0 || th > 1 {
			errs = append(errs, fmt.Errorf("vision.thresholds.%s must be in [0,1]", name))
		}
	}
	if c.Sequencer.Settle < 0 || c.Sequencer.PollInterval <= 0 {
		errs = append(errs, errors.New("sequencer.poll_interval must be positive and settle not negative"))
	}
	if c.Navigation.SettleTimeout <= 0 {
		errs = append(errs, errors.New("navigation.settle_timeout must be positive"))
	}
	if c.Navigation.PollInterval <= 0 {
		errs = append(errs, errors.New("navigation.poll_interval must be positive"))
	}
	if c.Scheduler.IdleWait <= 0 || c.Scheduler.PausedPoll <= 0 {
		errs = append(errs, errors.New("scheduler waits must be positive"))
	}
	for name, sc := range map[string]SlotConfig{
		"fog":   c.Behaviors.Fog,
		"caves": c.Behaviors.Caves,
		"food":  c.Behaviors.Food,
	} {
		if sc.Capacity < 1 {
			errs = append(errs, fmt.Errorf("behaviors.%s.capacity must be at least 1", name))
		}
		if sc.Priority < 0 {
			errs = append(errs, fmt.Errorf("behaviors.%s.priority must not be negative", name))
		}
	}
	for name, tc := range map[string]ToggleConfig{
		"alliance_help": c.Behaviors.AllianceHelp,
		"daily_vip":     c.Behaviors.DailyVIP,
	} {
		if tc.Priority < 0 {
			errs = append(errs, fmt.Errorf("behaviors.%s.priority must not be negative", name))
		}
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		errs = append(errs, errors.New("web.addr is required when the dashboard is enabled"))
	}

	return errors.Join(errs...)
}
