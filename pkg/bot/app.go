// Package bot wires the agent together: device transport, detection,
// OCR, navigation, behaviors and the scheduler, plus the optional console
// and web dashboard.
package bot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-rokbot/internal/config"
	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/internal/tui"
	"github.com/teslashibe/go-rokbot/pkg/behaviors"
	"github.com/teslashibe/go-rokbot/pkg/device"
	"github.com/teslashibe/go-rokbot/pkg/feed"
	"github.com/teslashibe/go-rokbot/pkg/navigation"
	"github.com/teslashibe/go-rokbot/pkg/ocr"
	"github.com/teslashibe/go-rokbot/pkg/ocr/tesseract"
	"github.com/teslashibe/go-rokbot/pkg/scheduler"
	"github.com/teslashibe/go-rokbot/pkg/sequencer"
	"github.com/teslashibe/go-rokbot/pkg/vision"
	"github.com/teslashibe/go-rokbot/pkg/vision/cv"
	"github.com/teslashibe/go-rokbot/pkg/web"
)

// RunOptions selects the front ends started next to the scheduler.
type RunOptions struct {
	Console bool   // Interactive console; quitting it stops the agent
	WebAddr string // Dashboard address; empty disables the dashboard
}

// App is the agent. It owns every component and their lifecycle.
type App struct {
	config *config.Config
	feed   *feed.Feed
	log    *slog.Logger

	targets *vision.Registry

	device     *device.ADB
	matcher    *cv.Matcher
	recognizer *tesseract.Recognizer
	engine     *vision.Engine
	scheduler  *scheduler.Scheduler

	closeOnce sync.Once
}

// New validates cfg and prepares the target registry. Nothing touches the
// device until Init.
func New(cfg *config.Config, f *feed.Feed) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	targets, err := vision.NewRegistry(cfg.Vision.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("vision thresholds: %w", err)
	}
	if f == nil {
		f = feed.New(cfg.Logger.FeedSize)
	}
	return &App{
		config:  cfg,
		feed:    f,
		log:     log.With("component", "bot"),
		targets: targets,
	}, nil
}

// Init connects to the device and loads templates. A device that cannot be
// reached is fatal. A missing Tesseract install only disables timer reads.
func (a *App) Init(ctx context.Context) error {
	a.device = device.NewADB(deviceConfig(a.config.Device), cv.DecodeFrame, nil)
	if err := a.device.Connect(ctx); err != nil {
		return err
	}
	a.log.Info("device connected", "serial", a.config.Device.Serial)

	a.matcher = cv.NewMatcher(a.config.Vision.AssetsDir, vision.AllTargets())
	a.engine = vision.NewEngine(a.matcher, visionConfig(a.config.Vision))

	rec, err := tesseract.New(tesseract.Config{
		Language:       a.config.OCR.Language,
		TessdataPrefix: a.config.OCR.TessdataPrefix,
	})
	if err != nil {
		a.log.Error("OCR unavailable, timers will use fallbacks", "error", err)
	} else {
		a.recognizer = rec
	}
	return nil
}

// Scheduler returns the scheduler built by Run, or nil before that.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Run builds the behaviors and drives them until ctx is cancelled or the
// console quits.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if a.device == nil {
		return errors.New("bot: Run before Init")
	}

	sched, err := Assemble(a.config, a.targets, a.device, a.engine, a.ocrReader())
	if err != nil {
		return err
	}
	a.scheduler = sched

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sched.Run(ctx) })
	if opts.WebAddr != "" {
		srv := web.NewServer(sched, a.feed)
		g.Go(func() error { return srv.ListenAndServe(ctx, opts.WebAddr) })
	}
	if opts.Console {
		g.Go(func() error {
			defer cancel()
			return tui.Run(ctx, sched, a.feed)
		})
	}

	a.log.Info("agent started", "behaviors", sched.Len(), "running", sched.Status().Running)
	return g.Wait()
}

// Probe captures one frame and reports every match of id.
func (a *App) Probe(ctx context.Context, id vision.TargetID) ([]vision.Match, error) {
	if a.device == nil {
		return nil, errors.New("bot: Probe before Init")
	}
	if !id.Known() {
		return nil, fmt.Errorf("%w: %s", vision.ErrUnknownTarget, id)
	}
	frame, err := a.device.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return a.engine.FindAll(frame, a.targets.Target(id)), nil
}

func (a *App) ocrReader() *ocr.Reader {
	var recognizer ocr.Recognizer = unavailableOCR{}
	if a.recognizer != nil {
		recognizer = a.recognizer
	}
	return ocr.NewReader(recognizer, cv.PrepareForOCR, a.config.OCR.DebugDir)
}

// Shutdown releases native resources. It is safe to call more than once.
func (a *App) Shutdown() {
	a.closeOnce.Do(func() {
		if a.matcher != nil {
			if err := a.matcher.Close(); err != nil {
				a.log.Warn("matcher not released", "error", err)
			}
		}
		if a.recognizer != nil {
			a.recognizer.Close()
		}
		a.log.Info("agent stopped")
	})
}

// Assemble builds the sequencer, navigator and behaviors over dev and
// finder, and registers the behaviors with a new scheduler.
func Assemble(cfg *config.Config, targets *vision.Registry, dev device.Device, finder sequencer.Finder, reader behaviors.DurationReader) (*scheduler.Scheduler, error) {
	seq := sequencer.New(dev, finder, sequencerConfig(cfg.Sequencer))
	nav := navigation.New(finder, seq, navigation.Config{
		CityAnchor:    targets.Target(vision.TargetMapButton),
		MapAnchor:     targets.Target(vision.TargetCityButton),
		SettleTimeout: cfg.Navigation.SettleTimeout,
		PollInterval:  cfg.Navigation.PollInterval,
	})

	deps := behaviors.Deps{Seq: seq, Nav: nav, Targets: targets, OCR: reader}
	bc := cfg.Behaviors

	sched := scheduler.New(schedulerConfig(cfg.Scheduler))
	for _, r := range []struct {
		b        prioritized
		enabled  bool
		priority int
	}{
		{behaviors.NewAllianceHelp(deps), bc.AllianceHelp.Enabled, bc.AllianceHelp.Priority},
		{behaviors.NewFogExploration(deps, bc.Fog.Capacity), bc.Fog.Enabled, bc.Fog.Priority},
		{behaviors.NewCavesExploration(deps, bc.Caves.Capacity), bc.Caves.Enabled, bc.Caves.Priority},
		{behaviors.NewFoodGathering(deps, bc.Food.Capacity), bc.Food.Enabled, bc.Food.Priority},
		{behaviors.NewDailyVIP(deps, cfg.StateDir), bc.DailyVIP.Enabled, bc.DailyVIP.Priority},
	} {
		r.b.SetPriority(r.priority)
		if err := sched.Register(r.b, r.enabled); err != nil {
			return nil, fmt.Errorf("register %s: %w", r.b.Name(), err)
		}
	}
	return sched, nil
}

// prioritized is a behavior whose priority can be set from config.
type prioritized interface {
	scheduler.Behavior
	SetPriority(p int)
}

func deviceConfig(c config.DeviceConfig) device.Config {
	return device.Config{
		Path:           c.ADBPath,
		Serial:         c.Serial,
		CaptureTimeout: c.CaptureTimeout,
		InputTimeout:   c.InputTimeout,
		TapInterval:    c.TapInterval,
	}
}

func visionConfig(c config.VisionConfig) vision.Config {
	return vision.Config{
		DuplicateRadius: c.DuplicateRadius,
		MaxMatches:      c.MaxMatches,
		MatchTimeout:    c.MatchTimeout,
	}
}

func sequencerConfig(c config.SequencerConfig) sequencer.Config {
	return sequencer.Config{
		Settle:       c.Settle,
		PollInterval: c.PollInterval,
		WaitTimeout:  c.WaitTimeout,
		NeutralPoint: image.Pt(c.NeutralX, c.NeutralY),
		Scale:        c.Scale,
	}
}

func schedulerConfig(c config.SchedulerConfig) scheduler.Config {
	sc := scheduler.DefaultConfig()
	sc.IdleWait = c.IdleWait
	sc.PausedPoll = c.PausedPoll
	sc.Cooldown = c.Cooldown
	sc.AutoStart = c.AutoStart
	return sc
}

// unavailableOCR stands in when Tesseract could not be loaded; every read
// falls back to the caller's default.
type unavailableOCR struct{}

func (unavailableOCR) Recognize(context.Context, []byte) (string, error) {
	return "", errors.New("ocr: recognizer unavailable")
}
