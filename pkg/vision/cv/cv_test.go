package cv

import (
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/vision"
	"gocv.io/x/gocv"
)

const (
	frameW = 320
	frameH = 240
	patchW = 16
	patchH = 12
)

// patch returns a deterministic textured BGR patch.
func patch() []byte {
	pix := make([]byte, patchW*patchH*3)
	seed := uint32(7)
	for i := range pix {
		seed = seed*1664525 + 1013904223
		pix[i] = byte(seed >> 24)
	}
	return pix
}

// syntheticFrame is a flat gray frame with the patch pasted at each point.
func syntheticFrame(at ...image.Point) vision.Frame {
	pix := make([]byte, frameW*frameH*3)
	for i := range pix {
		pix[i] = 40
	}
	p := patch()
	for _, pt := range at {
		for y := 0; y < patchH; y++ {
			dst := ((pt.Y+y)*frameW + pt.X) * 3
			copy(pix[dst:dst+patchW*3], p[y*patchW*3:(y+1)*patchW*3])
		}
	}
	return vision.Frame{Width: frameW, Height: frameH, Channels: 3, Pix: pix, Captured: time.Now()}
}

func writeTemplate(t *testing.T, dir string, id vision.TargetID) {
	t.Helper()
	mat, err := gocv.NewMatFromBytes(patchH, patchW, gocv.MatTypeCV8UC3, patch())
	if err != nil {
		t.Fatalf("NewMatFromBytes: %v", err)
	}
	defer mat.Close()
	if ok := gocv.IMWrite(filepath.Join(dir, id.File()), mat); !ok {
		t.Fatalf("IMWrite failed for %s", id)
	}
}

func TestMatcher_FindAllThroughEngine(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, vision.TargetGoCave)

	m := NewMatcher(dir, []vision.TargetID{vision.TargetGoCave, vision.TargetSend})
	defer m.Close()

	if !m.Loaded(vision.TargetGoCave) {
		t.Fatal("template was not loaded")
	}
	if m.Loaded(vision.TargetSend) {
		t.Error("missing asset reported as loaded")
	}

	e := vision.NewEngine(m, vision.DefaultConfig())
	frame := syntheticFrame(image.Pt(200, 150), image.Pt(40, 30))
	original := append([]byte(nil), frame.Pix...)

	got := e.FindAll(frame, vision.Target{ID: vision.TargetGoCave, Threshold: 0.9})
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(got), got)
	}
	want := []image.Point{{40 + patchW/2, 30 + patchH/2}, {200 + patchW/2, 150 + patchH/2}}
	for i := range want {
		if got[i].Point != want[i] {
			t.Errorf("match %d at %v, want %v", i, got[i].Point, want[i])
		}
	}

	for i := range original {
		if frame.Pix[i] != original[i] {
			t.Fatal("matching modified the frame")
		}
	}
}

func TestMatcher_Errors(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, vision.TargetSend)
	m := NewMatcher(dir, []vision.TargetID{vision.TargetSend})
	defer m.Close()

	if _, err := m.Match(syntheticFrame(), vision.TargetGoCave); !errors.Is(err, vision.ErrTemplateNotFound) {
		t.Errorf("unloaded target: err = %v, want ErrTemplateNotFound", err)
	}

	tiny := vision.Frame{Width: 4, Height: 4, Channels: 3, Pix: make([]byte, 4*4*3)}
	if _, err := m.Match(tiny, vision.TargetSend); !errors.Is(err, vision.ErrTemplateTooLarge) {
		t.Errorf("tiny frame: err = %v, want ErrTemplateTooLarge", err)
	}

	if _, err := m.Match(vision.Frame{}, vision.TargetSend); !errors.Is(err, vision.ErrEmptyFrame) {
		t.Errorf("empty frame: err = %v, want ErrEmptyFrame", err)
	}
}

func TestMatcher_StalledMatchDoesNotBlock(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, vision.TargetSend)
	m := NewMatcher(dir, []vision.TargetID{vision.TargetSend})
	m.closeWait = 20 * time.Millisecond

	// Stand in for a native call that never returns.
	if _, ok := m.acquire(vision.TargetSend); !ok {
		t.Fatal("template not loaded")
	}

	done := make(chan error, 1)
	go func() {
		s, err := m.Match(syntheticFrame(image.Pt(100, 100)), vision.TargetSend)
		if s != nil {
			s.Close()
		}
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Match: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Match queued behind a stalled match")
	}

	start := time.Now()
	if err := m.Close(); !errors.Is(err, ErrMatchesRunning) {
		t.Errorf("Close = %v, want ErrMatchesRunning", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Close took %v, want about %v", elapsed, m.closeWait)
	}
	if _, err := m.Match(syntheticFrame(), vision.TargetSend); !errors.Is(err, vision.ErrTemplateNotFound) {
		t.Errorf("Match after Close: err = %v, want ErrTemplateNotFound", err)
	}

	m.inflight.Done()
	if err := m.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestMatcher_FlattensAlphaFrames(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, vision.TargetSend)
	m := NewMatcher(dir, []vision.TargetID{vision.TargetSend})
	defer m.Close()

	bgr := syntheticFrame(image.Pt(100, 100))
	bgra := vision.Frame{Width: bgr.Width, Height: bgr.Height, Channels: 4, Pix: make([]byte, bgr.Width*bgr.Height*4)}
	for i, j := 0, 0; i < len(bgr.Pix); i, j = i+3, j+4 {
		copy(bgra.Pix[j:j+3], bgr.Pix[i:i+3])
		bgra.Pix[j+3] = 255
	}

	e := vision.NewEngine(m, vision.DefaultConfig())
	got, ok := e.FindOne(bgra, vision.Target{ID: vision.TargetSend, Threshold: 0.9})
	if !ok {
		t.Fatal("expected a match on a BGRA frame")
	}
	if got.Point != image.Pt(100+patchW/2, 100+patchH/2) {
		t.Errorf("Point = %v", got.Point)
	}
}

func TestDecodeFrame(t *testing.T) {
	src := syntheticFrame(image.Pt(10, 10))
	mat, err := FrameToMat(src)
	if err != nil {
		t.Fatalf("FrameToMat: %v", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	if err != nil {
		t.Fatalf("IMEncode: %v", err)
	}
	defer buf.Close()

	at := time.Unix(1700000000, 0)
	frame, err := DecodeFrame(buf.GetBytes(), at)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Width != frameW || frame.Height != frameH || frame.Channels != 3 {
		t.Errorf("decoded %dx%dx%d", frame.Width, frame.Height, frame.Channels)
	}
	if !frame.Captured.Equal(at) {
		t.Errorf("Captured = %v, want %v", frame.Captured, at)
	}

	if _, err := DecodeFrame(nil, at); !errors.Is(err, vision.ErrEmptyFrame) {
		t.Errorf("empty input: err = %v, want ErrEmptyFrame", err)
	}
}

func TestPrepareForOCR(t *testing.T) {
	frame := syntheticFrame()

	tests := []struct {
		name         string
		region       image.Rectangle
		wantW, wantH int
	}{
		{"short crop is upscaled", image.Rect(100, 100, 180, 124), 80*3 + 20, 24*3 + 20},
		{"tall crop keeps size", image.Rect(0, 0, 60, 60), 60 + 20, 60 + 20},
		{"clamped to frame", image.Rect(300, 220, 400, 300), 20*3 + 20, 20*3 + 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			png, err := PrepareForOCR(frame, tt.region)
			if err != nil {
				t.Fatalf("PrepareForOCR: %v", err)
			}
			img, err := gocv.IMDecode(png, gocv.IMReadUnchanged)
			if err != nil {
				t.Fatalf("IMDecode: %v", err)
			}
			defer img.Close()

			if img.Cols() != tt.wantW || img.Rows() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", img.Cols(), img.Rows(), tt.wantW, tt.wantH)
			}
			if img.Channels() != 1 {
				t.Errorf("channels = %d, want 1", img.Channels())
			}
			// Flat background (40) is below the cutoff, so it inverts to white.
			if v := img.GetUCharAt(tt.wantH/2, tt.wantW/2); v != 255 {
				t.Errorf("center pixel = %d, want 255", v)
			}
		})
	}

	if _, err := PrepareForOCR(frame, image.Rect(500, 500, 600, 600)); err == nil {
		t.Error("region outside frame should fail")
	}
}

func TestSaveAnnotated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotated.png")
	anchor := image.Pt(100, 100)
	region := image.Rect(60, 43, 140, 67)

	if err := SaveAnnotated(path, syntheticFrame(), anchor, region); err != nil {
		t.Fatalf("SaveAnnotated: %v", err)
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Cols() != frameW || img.Rows() != frameH {
		t.Fatalf("size = %dx%d, want %dx%d", img.Cols(), img.Rows(), frameW, frameH)
	}
	// BGR: the anchor dot is red, the region outline green.
	if b, g, r := img.GetUCharAt(anchor.Y, anchor.X*3), img.GetUCharAt(anchor.Y, anchor.X*3+1), img.GetUCharAt(anchor.Y, anchor.X*3+2); r != 255 || g != 0 || b != 0 {
		t.Errorf("anchor pixel = (%d,%d,%d), want red", b, g, r)
	}
	if g := img.GetUCharAt(region.Min.Y, region.Min.X*3+1); g != 255 {
		t.Errorf("region corner green = %d, want 255", g)
	}

	if err := SaveAnnotated(path, vision.Frame{}, anchor, region); err == nil {
		t.Error("empty frame should fail")
	}
}
