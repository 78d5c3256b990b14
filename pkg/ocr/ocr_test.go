package ocr

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rokbot/pkg/vision"
)

func TestCorrect(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1O:3D:25", "10:30:25"},
		{" 0o:15 : 0D\n", "00:15:00"},
		{"12:34:56", "12:34:56"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Correct(tt.raw), "Correct(%q)", tt.raw)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"10:30:25", 10*time.Hour + 30*time.Minute + 25*time.Second},
		{"00:04:59", 4*time.Minute + 59*time.Second},
		{"1:05", time.Hour + 5*time.Minute},
		{"00:60:00", 0},
		{"00:00:60", 0},
		{"12:3a:00", 0},
		{"::", 0},
		{"123", 0},
		{"1:2:3:4", 0},
		{"-1:00:00", 0},
		{"99:59:59", 99*time.Hour + 59*time.Minute + 59*time.Second},
		{"100:00:00", 0},
		{"3000000:00:00", 0},
		{"6000000:00:00", 0},
		{"99999999999:00:00", 0},
		{"99999999999999999999:00", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.in), "Parse(%q)", tt.in)
	}
}

func TestDurationAndFallback(t *testing.T) {
	assert.Equal(t, 10*time.Hour+30*time.Minute+25*time.Second, Duration("1O:3D:25"))
	assert.Equal(t, 5*time.Minute, OrDefault(Duration("garbage"), 5*time.Minute))
	assert.Equal(t, time.Minute, OrDefault(time.Minute, 5*time.Minute))
}

func TestRegion_At(t *testing.T) {
	r := Region{Offset: image.Pt(-40, -57), Size: image.Pt(80, 24)}
	assert.Equal(t, image.Rect(560, 343, 640, 367), r.At(image.Pt(600, 400)))
	assert.Equal(t, image.Rect(0, 0, 80, 24), r.At(image.Pt(10, 10)))
}

type mockRecognizer struct {
	text string
	err  error
	got  []byte
}

func (m *mockRecognizer) Recognize(_ context.Context, png []byte) (string, error) {
	m.got = png
	return m.text, m.err
}

func okPreparer(frame vision.Frame, region image.Rectangle) ([]byte, error) {
	return []byte("png"), nil
}

func testFrame() vision.Frame {
	return vision.Frame{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 12)}
}

func TestReader_ReadDuration(t *testing.T) {
	rec := &mockRecognizer{text: " 0D:12:3O \n"}
	r := NewReader(rec, okPreparer, "")

	d := r.ReadDuration(context.Background(), testFrame(), image.Pt(100, 100), Region{Size: image.Pt(10, 10)})
	assert.Equal(t, 12*time.Minute+30*time.Second, d)
	assert.Equal(t, []byte("png"), rec.got)
}

func TestReader_FailuresYieldZero(t *testing.T) {
	ctx := context.Background()

	rec := &mockRecognizer{err: errors.New("tesseract crashed")}
	r := NewReader(rec, okPreparer, "")
	assert.Zero(t, r.ReadDuration(ctx, testFrame(), image.Point{}, Region{Size: image.Pt(4, 4)}))

	failing := func(vision.Frame, image.Rectangle) ([]byte, error) { return nil, errors.New("bad crop") }
	r = NewReader(&mockRecognizer{text: "01:00:00"}, failing, "")
	assert.Zero(t, r.ReadDuration(ctx, testFrame(), image.Point{}, Region{Size: image.Pt(4, 4)}))

	r = NewReader(&mockRecognizer{text: "01:00:00"}, okPreparer, "")
	assert.Empty(t, r.ReadText(ctx, vision.Frame{}, image.Rect(0, 0, 4, 4)))
}

func TestReader_WritesDebugImage(t *testing.T) {
	dir := t.TempDir()
	r := NewReader(&mockRecognizer{text: "1:00"}, okPreparer, dir)

	r.ReadText(context.Background(), testFrame(), image.Rect(0, 0, 1, 1))

	data, err := os.ReadFile(filepath.Join(dir, "ocr_debug.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}
