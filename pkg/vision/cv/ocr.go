package cv

import (
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/go-rokbot/pkg/vision"
	"gocv.io/x/gocv"
)

// OCR preprocessing constants, tuned for the in-game timer font.
const (
	MinTextHeight  = 50  // Crops shorter than this are upscaled
	UpscaleFactor  = 3.0 // Cubic upscale factor for short crops
	BinaryCutoff   = 150 // Gray level separating glyphs from background
	TextBorderSize = 10  // White padding around the binarized crop
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// PrepareForOCR crops region from frame and turns it into a PNG of dark
// glyphs on a white background: grayscale, optional upscale, inverted
// binary threshold, white border. The region is clamped to the frame.
func PrepareForOCR(frame vision.Frame, region image.Rectangle) ([]byte, error) {
	region = region.Canon().Intersect(frame.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("ocr region outside frame: %v", region)
	}

	img, err := FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	crop := img.Region(region)
	defer crop.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)

	if gray.Rows() < MinTextHeight {
		scaled := gocv.NewMat()
		gocv.Resize(gray, &scaled, image.Point{}, UpscaleFactor, UpscaleFactor, gocv.InterpolationCubic)
		gray.Close()
		gray = scaled
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, BinaryCutoff, 255, gocv.ThresholdBinaryInv)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(binary, &padded,
		TextBorderSize, TextBorderSize, TextBorderSize, TextBorderSize,
		gocv.BorderConstant, white)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, padded)
	if err != nil {
		return nil, fmt.Errorf("encode ocr crop: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
