package cv

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-rokbot/pkg/vision"
	"gocv.io/x/gocv"
)

// DecodeFrame decodes an encoded screenshot (PNG from screencap) into a
// 3-channel BGR frame.
func DecodeFrame(data []byte, captured time.Time) (vision.Frame, error) {
	if len(data) == 0 {
		return vision.Frame{}, vision.ErrEmptyFrame
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return vision.Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return vision.Frame{}, vision.ErrEmptyFrame
	}

	return vision.Frame{
		Width:    img.Cols(),
		Height:   img.Rows(),
		Channels: img.Channels(),
		Pix:      img.ToBytes(),
		Captured: captured,
	}, nil
}

// FrameToMat copies the frame pixels into a new BGR Mat owned by the caller.
// The frame itself is never modified.
func FrameToMat(frame vision.Frame) (gocv.Mat, error) {
	if !frame.Valid() {
		return gocv.NewMat(), vision.ErrEmptyFrame
	}

	var mt gocv.MatType
	switch frame.Channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	case 4:
		mt = gocv.MatTypeCV8UC4
	}

	view, err := gocv.NewMatFromBytes(frame.Height, frame.Width, mt, frame.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("frame to mat: %w", err)
	}
	defer view.Close()

	return toBGR(view)
}

// toBGR returns a new 3-channel copy of src.
func toBGR(src gocv.Mat) (gocv.Mat, error) {
	dst := gocv.NewMat()
	switch src.Channels() {
	case 3:
		src.CopyTo(&dst)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToBGR)
	case 1:
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	default:
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %d channels", vision.ErrChannelMismatch, src.Channels())
	}
	if dst.Empty() {
		dst.Close()
		return gocv.NewMat(), errors.New("vision: channel conversion failed")
	}
	return dst, nil
}
