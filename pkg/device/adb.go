package device

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Decoder turns an encoded screenshot into a frame.
type Decoder func(data []byte, captured time.Time) (vision.Frame, error)

// Config holds ADB transport settings.
type Config struct {
	Path           string        // adb binary
	Serial         string        // device serial or host:port
	CaptureTimeout time.Duration // per screencap
	InputTimeout   time.Duration // per tap / key event
	TapInterval    time.Duration // minimum spacing between injected inputs
}

// DefaultConfig returns settings for a local emulator on the default port.
func DefaultConfig() Config {
	return Config{
		Path:           "adb",
		Serial:         "127.0.0.1:5555",
		CaptureTimeout: 5 * time.Second,
		InputTimeout:   3 * time.Second,
		TapInterval:    150 * time.Millisecond,
	}
}

// ADB drives a device through the adb command line tool.
type ADB struct {
	config  Config
	run     Runner
	decode  Decoder
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time
}

// NewADB creates a transport. A nil runner uses os/exec.
func NewADB(cfg Config, decode Decoder, run Runner) *ADB {
	if run == nil {
		run = execRunner
	}
	limit := rate.Inf
	if cfg.TapInterval > 0 {
		limit = rate.Every(cfg.TapInterval)
	}
	return &ADB{
		config:  cfg,
		run:     run,
		decode:  decode,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With("component", "adb", "serial", cfg.Serial),
		now:     time.Now,
	}
}

// Connect attaches to the configured serial and verifies the device state.
func (a *ADB) Connect(ctx context.Context) error {
	if strings.Contains(a.config.Serial, ":") {
		cctx, cancel := context.WithTimeout(ctx, a.config.CaptureTimeout)
		out, err := a.run(cctx, a.config.Path, "connect", a.config.Serial)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: adb connect %s: %v", ErrNotConnected, a.config.Serial, err)
		}
		if msg := strings.TrimSpace(string(out)); strings.Contains(msg, "cannot") || strings.Contains(msg, "failed") {
			return fmt.Errorf("%w: %s", ErrNotConnected, msg)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, a.config.InputTimeout)
	defer cancel()
	out, err := a.run(cctx, a.config.Path, "-s", a.config.Serial, "get-state")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	if state := strings.TrimSpace(string(out)); state != "device" {
		return fmt.Errorf("%w: state %q", ErrNotConnected, state)
	}

	a.log.Info("connected to device")
	return nil
}

// Capture takes a screenshot with screencap and decodes it.
func (a *ADB) Capture(ctx context.Context) (vision.Frame, error) {
	cctx, cancel := context.WithTimeout(ctx, a.config.CaptureTimeout)
	defer cancel()

	start := a.now()
	data, err := a.run(cctx, a.config.Path, "-s", a.config.Serial, "exec-out", "screencap", "-p")
	if err != nil {
		return vision.Frame{}, fmt.Errorf("screencap: %w", err)
	}
	if len(data) == 0 {
		return vision.Frame{}, ErrEmptyCapture
	}

	frame, err := a.decode(data, start)
	if err != nil {
		return vision.Frame{}, fmt.Errorf("decode screencap: %w", err)
	}
	a.log.Debug("frame captured", "width", frame.Width, "height", frame.Height, "took", a.now().Sub(start))
	return frame, nil
}

// Tap injects a touch at x, y.
func (a *ADB) Tap(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	if err := a.shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
		return fmt.Errorf("tap (%d,%d): %w", x, y, err)
	}
	a.log.Debug("tapped", "x", x, "y", y)
	return nil
}

// Back presses the Android back key (keyevent 4).
func (a *ADB) Back(ctx context.Context) error {
	if err := a.shell(ctx, "input", "keyevent", "4"); err != nil {
		return fmt.Errorf("back key: %w", err)
	}
	a.log.Debug("pressed back")
	return nil
}

// shell runs an input command, paced by the tap limiter.
func (a *ADB) shell(ctx context.Context, args ...string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, a.config.InputTimeout)
	defer cancel()

	full := append([]string{"-s", a.config.Serial, "shell"}, args...)
	_, err := a.run(cctx, a.config.Path, full...)
	return err
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}
