// Package vision locates known UI elements inside captured device frames.
//
// The Engine owns the search policy (thresholds, duplicate suppression,
// ordering) while the pixel work is delegated to a Matcher. The gocv-backed
// Matcher lives in the cv subpackage so this package stays free of cgo.
package vision

import (
	"image"
	"time"
)

// Frame is one captured screen image.
// Pix holds interleaved 8-bit samples in BGR or BGRA order, row-major.
// Consumers must treat a Frame as read-only.
type Frame struct {
	Width    int
	Height   int
	Channels int // 3 (BGR) or 4 (BGRA)
	Pix      []byte
	Captured time.Time
}

// Empty reports whether the frame carries no usable pixels.
// Transports return an empty frame on transient capture failures.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) == 0
}

// Bounds returns the frame rectangle in pixel coordinates.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Valid reports whether the pixel buffer length agrees with the declared geometry.
func (f Frame) Valid() bool {
	if f.Empty() {
		return false
	}
	if f.Channels != 1 && f.Channels != 3 && f.Channels != 4 {
		return false
	}
	return len(f.Pix) == f.Width*f.Height*f.Channels
}

// Match is one located target.
type Match struct {
	Target     TargetID
	Point      image.Point // template center in frame coordinates
	Confidence float64
}

// Target pairs a template identifier with the minimum accepted score.
type Target struct {
	ID        TargetID
	Threshold float64 // 0-1, normalized correlation
}
