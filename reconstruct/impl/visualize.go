package impl

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/visionex-project/docrecon/pkg/utils"
	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

// Longest side of a visualization in pixels.
const maxVisualizationSize = 1024

var (
	highConfidence   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	mediumConfidence = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	lowConfidence    = color.RGBA{R: 220, G: 0, B: 0, A: 255}
)

// Visualize returns a PNG of the page with every located block outlined in a colour
// that encodes its OCR confidence.
func Visualize(page document.Page) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(page.Image))
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrPageDecode, page.Number, err)
	}

	bounds := img.Bounds()
	scale := min(1, float64(maxVisualizationSize)/float64(max(bounds.Dx(), bounds.Dy())))
	width := max(int(float64(bounds.Dx())*scale), 1)
	height := max(int(float64(bounds.Dy())*scale), 1)
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), img, bounds, xdraw.Src, nil)

	drawingContext := gg.NewContextForRGBA(canvas)
	drawingContext.SetLineWidth(2)
	for _, block := range utils.Filter(page.Blocks, document.Block.HasGeometry) {
		box := block.Geometry.BoundingBox
		drawingContext.DrawRectangle(box.Left*float64(width), box.Top*float64(height), box.Width*float64(width), box.Height*float64(height))
		drawingContext.SetColor(confidenceColor(block.Confidence))
		drawingContext.Stroke()
	}

	var buffer bytes.Buffer
	if err := drawingContext.EncodePNG(&buffer); err != nil {
		return nil, fmt.Errorf("failed to encode visualization of page %d: %w", page.Number, err)
	}
	return buffer.Bytes(), nil
}

func confidenceColor(confidence float64) color.Color {
	switch {
	case confidence > 0.9:
		return highConfidence
	case confidence > 0.5:
		return mediumConfidence
	default:
		return lowConfidence
	}
}
