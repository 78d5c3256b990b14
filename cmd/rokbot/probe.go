package main

import (
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rokbot/pkg/bot"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

func newProbeCmd() *cobra.Command {
	var timer bool

	cmd := &cobra.Command{
		Use:   "probe <target> | probe --timer",
		Short: "Capture one frame and print every match of a target",
		Long: "Capture one frame and print every match of a target.\n\n" +
			"With --timer, find the Send button, place the cave timer region next to it,\n" +
			"read it and print the region. Set ocr.debug_dir to also save an annotated frame.\n\n" +
			"Targets: " + strings.Join(targetNames(), ", "),
		Args: func(cmd *cobra.Command, args []string) error {
			if timer {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return targetNames(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var id vision.TargetID
			if !timer {
				id = vision.TargetID(args[0])
				if !id.Known() {
					return fmt.Errorf("unknown target %q (known: %s)", args[0], strings.Join(targetNames(), ", "))
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, closer := setupLogging(cfg, false)
			defer closer.Close()

			app, err := bot.New(cfg, nil)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			ctx, cancel := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if err := app.Init(ctx); err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}

			if timer {
				cal, err := app.CalibrateTimer(ctx)
				printCalibration(cmd.OutOrStdout(), cal)
				return err
			}

			matches, err := app.Probe(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d match(es)\n", id, len(matches))
			for i, m := range matches {
				fmt.Fprintf(out, "  %d. (%d, %d) confidence %.3f\n", i+1, m.Point.X, m.Point.Y, m.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&timer, "timer", false, "calibrate the cave timer OCR region instead of matching a target")
	return cmd
}

func printCalibration(w io.Writer, cal bot.TimerCalibration) {
	if cal.Anchor.Target == "" {
		return
	}
	r := cal.Region
	fmt.Fprintf(w, "anchor %s at (%d, %d) confidence %.3f\n",
		cal.Anchor.Target, cal.Anchor.Point.X, cal.Anchor.Point.Y, cal.Anchor.Confidence)
	fmt.Fprintf(w, "ocr region (%d, %d)-(%d, %d) %dx%d\n", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, r.Dx(), r.Dy())
	fmt.Fprintf(w, "text %q -> %s\n", cal.Text, cal.Duration)
	if cal.Annotated != "" {
		fmt.Fprintf(w, "annotated frame %s\n", cal.Annotated)
	}
}

func targetNames() []string {
	ids := vision.AllTargets()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	sort.Strings(names)
	return names
}
