package cv

import (
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/go-rokbot/pkg/vision"
	"gocv.io/x/gocv"
)

var (
	anchorColor = color.RGBA{R: 255, A: 255}
	regionColor = color.RGBA{G: 255, A: 255}
)

// SaveAnnotated writes frame to path with the anchor marked by a red dot
// and region outlined in green. The format follows the path extension.
func SaveAnnotated(path string, frame vision.Frame, anchor image.Point, region image.Rectangle) error {
	img, err := FrameToMat(frame)
	if err != nil {
		return err
	}
	defer img.Close()

	gocv.Circle(&img, anchor, 5, anchorColor, -1)
	gocv.Rectangle(&img, region, regionColor, 2)

	if ok := gocv.IMWrite(path, img); !ok {
		return fmt.Errorf("write annotated frame %s", path)
	}
	return nil
}
