package main

import (
	"bytes"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rokbot/pkg/bot"
	"github.com/teslashibe/go-rokbot/pkg/vision"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["probe"])

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	for _, flag := range []string{"no-tui", "web", "no-web"} {
		assert.NotNil(t, run.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("serial"))
}

func TestProbe_UnknownTarget(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"probe", "not_a_button"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown target "not_a_button"`)
}

func TestProbe_RequiresOneArgument(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"probe"})

	assert.Error(t, root.Execute())
}

func TestProbe_TimerTakesNoTarget(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"probe", "--timer", "btn_send"})

	assert.Error(t, root.Execute())
}

func TestPrintCalibration(t *testing.T) {
	var out bytes.Buffer
	printCalibration(&out, bot.TimerCalibration{
		Anchor:    vision.Match{Target: vision.TargetSend, Point: image.Pt(600, 400), Confidence: 0.912},
		Region:    image.Rect(560, 343, 640, 367),
		Text:      "00:04:59",
		Duration:  4*time.Minute + 59*time.Second,
		Annotated: "/tmp/ocr_calibration.png",
	})

	got := out.String()
	assert.Contains(t, got, "(600, 400) confidence 0.912")
	assert.Contains(t, got, "ocr region (560, 343)-(640, 367) 80x24")
	assert.Contains(t, got, `text "00:04:59" -> 4m59s`)
	assert.Contains(t, got, "annotated frame /tmp/ocr_calibration.png")

	out.Reset()
	printCalibration(&out, bot.TimerCalibration{})
	assert.Empty(t, out.String())
}

func TestTargetNamesSorted(t *testing.T) {
	names := targetNames()
	require.NotEmpty(t, names)
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "spyglass")
}
