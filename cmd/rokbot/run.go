package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rokbot/internal/log"
	"github.com/teslashibe/go-rokbot/pkg/bot"
)

func newRunCmd() *cobra.Command {
	var (
		noTUI   bool
		webAddr string
		noWeb   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the device and run the enabled behaviors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if noTUI {
				// Nobody is there to press space.
				cfg.Scheduler.AutoStart = true
			}

			f, closer := setupLogging(cfg, !noTUI)
			defer closer.Close()

			addr := ""
			if cfg.Web.Enabled && !noWeb {
				addr = cfg.Web.Addr
				if webAddr != "" {
					addr = webAddr
				}
			}

			app, err := bot.New(cfg, f)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			ctx, cancel := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Init(ctx); err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			log.Info("rokbot started", "serial", cfg.Device.Serial, "console", !noTUI, "web", addr)

			return app.Run(ctx, bot.RunOptions{Console: !noTUI, WebAddr: addr})
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "run headless; the scheduler starts immediately")
	cmd.Flags().StringVar(&webAddr, "web", "", "dashboard address (overrides web.addr)")
	cmd.Flags().BoolVar(&noWeb, "no-web", false, "disable the web dashboard")
	return cmd
}
