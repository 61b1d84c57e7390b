package impl

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/visionex-project/docrecon/pkg/utils"
	"github.com/visionex-project/docrecon/reconstruct/impl/inpaint"
)

// The CIEDE2000 distance under which a sampled ink counts as plain black, gray or silver.
// Scans soften black glyph edges into grays, so these inks are redrawn as black.
const grayscaleInkThreshold = 0.2

var black = colorful.Color{R: 0, G: 0, B: 0}

// sampleInk returns the colour of the text pixels inside rect: the per-channel median of
// the pixels the Otsu threshold classifies as text.
func sampleInk(img image.Image, rect image.Rectangle) colorful.Color {
	mask := inpaint.TextMask(img, rect)
	var channels [3][]uint8
	for y := mask.Rect.Min.Y; y < mask.Rect.Max.Y; y++ {
		for x := mask.Rect.Min.X; x < mask.Rect.Max.X; x++ {
			if !mask.At(x, y) {
				continue
			}
			r, g, b, _ := img.At(x, y).RGBA()
			channels[0] = append(channels[0], uint8(r>>8))
			channels[1] = append(channels[1], uint8(g>>8))
			channels[2] = append(channels[2], uint8(b>>8))
		}
	}
	if len(channels[0]) == 0 {
		return black
	}

	median := utils.Map(channels[:], utils.Median)
	ink, _ := colorful.MakeColor(color.RGBA{R: median[0], G: median[1], B: median[2], A: 255})
	if shouldTreatAsBlack(ink) {
		return black
	}
	return ink
}

func shouldTreatAsBlack(ink colorful.Color) bool {
	gray := colorful.Color{R: 0.5, G: 0.5, B: 0.5}
	silver := colorful.Color{R: 0.75, G: 0.75, B: 0.75}
	return ink.DistanceCIEDE2000(black) < grayscaleInkThreshold ||
		ink.DistanceCIEDE2000(gray) < grayscaleInkThreshold ||
		ink.DistanceCIEDE2000(silver) < grayscaleInkThreshold
}
