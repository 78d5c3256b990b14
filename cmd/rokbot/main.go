// rokbot drives an Android emulator running Rise of Kingdoms: it captures the
// screen over ADB, finds UI elements by template matching and runs the
// enabled routines in priority order.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rokbot/internal/config"
	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/feed"
)

var (
	cfgFile  string
	serial   string
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rokbot",
		Short:         "Screen-driven automation agent for Rise of Kingdoms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./rokbot.yaml)")
	root.PersistentFlags().StringVar(&serial, "serial", "", "ADB serial or host:port (overrides config and ADB_SERIAL)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(newRunCmd(), newProbeCmd())
	return root
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if serial != "" {
		cfg.Device.Serial = serial
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	return cfg, nil
}

// setupLogging installs the global logger. With quiet set the console sink
// is dropped so the interactive console owns the terminal.
func setupLogging(cfg *config.Config, quiet bool) (*feed.Feed, io.Closer) {
	f := feed.New(cfg.Logger.FeedSize)

	opts := log.Options{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Feed:   f,
	}
	if quiet {
		opts.Console = io.Discard
	}
	if cfg.Logger.File != "" {
		opts.File = &log.FileOptions{
			Path:       cfg.Logger.File,
			MaxSizeMB:  cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAgeDays: cfg.Logger.MaxAgeDays,
			Compress:   cfg.Logger.Compress,
		}
	}
	return f, log.Setup(opts)
}

// commandContext returns the command context or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
