package impl

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	ink   = color.RGBA{R: 20, G: 20, B: 20, A: 255}
)

// runeMeasurer renders every rune, spaces included, half as wide as the font size.
type runeMeasurer struct{}

func (runeMeasurer) MeasureString(text string, size float64) float64 {
	return float64(utf8.RuneCountInString(text)) * size * 0.5
}

func (runeMeasurer) Ascent(size float64) float64  { return size * 0.8 }
func (runeMeasurer) Descent(size float64) float64 { return size * 0.2 }

// constantMeasurer reports the same width whatever the text or size.
type constantMeasurer float64

func (m constantMeasurer) MeasureString(string, float64) float64 { return float64(m) }

func filledImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func paintRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// paintStrokes draws vertical bars across rect, a rough stand-in for a line of glyphs.
func paintStrokes(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for x := rect.Min.X + 2; x+3 <= rect.Max.X-2; x += 8 {
		paintRect(img, image.Rect(x, rect.Min.Y+4, x+3, rect.Max.Y-4), c)
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buffer bytes.Buffer
	require.NoError(t, png.Encode(&buffer, img))
	return buffer.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func block(text string, confidence float64, left, top, width, height float64) document.Block {
	return document.Block{Text: text, Confidence: confidence, Geometry: document.NewGeometry(left, top, width, height)}
}

func translated(b document.Block, text string) document.Block {
	b.TranslatedText = &text
	return b
}

// textPage returns a white page with strokes inside the pixel rectangle of every block.
func textPage(t *testing.T, width, height int, blocks ...document.Block) document.Page {
	t.Helper()
	img := filledImage(width, height, white)
	for _, b := range blocks {
		if b.HasGeometry() {
			paintStrokes(img, b.Geometry.BoundingBox.Pixels(width, height), ink)
		}
	}
	return document.Page{Number: 1, Image: encodePNG(t, img), Blocks: blocks}
}
