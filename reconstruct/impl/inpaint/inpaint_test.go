package inpaint

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func paint(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func render(kernel [][]bool) string {
	var rows []string
	for _, row := range kernel {
		var b strings.Builder
		for _, set := range row {
			if set {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		rows = append(rows, b.String())
	}
	return strings.Join(rows, "\n")
}

func TestEllipse(t *testing.T) {
	assert.Equal(t, ".#.\n###\n.#.", render(Ellipse(3)))
	assert.Equal(t,
		"....#....\n"+
			".#######.\n"+
			".#######.\n"+
			"#########\n"+
			"#########\n"+
			"#########\n"+
			".#######.\n"+
			".#######.\n"+
			"....#....",
		render(Ellipse(9)))
	assert.Equal(t, "#", render(Ellipse(1)))
}

func TestOtsuThresholdSplitsBimodalImage(t *testing.T) {
	img := filled(20, 20, color.RGBA{230, 230, 230, 255})
	paint(img, image.Rect(5, 5, 10, 15), color.RGBA{20, 20, 20, 255})

	threshold := OtsuThreshold(Grayscale(img, img.Bounds()))

	assert.GreaterOrEqual(t, threshold, uint8(20))
	assert.Less(t, threshold, uint8(230))
}

func TestOtsuThresholdUniformRegion(t *testing.T) {
	img := filled(10, 10, color.RGBA{255, 255, 255, 255})

	assert.Equal(t, uint8(0), OtsuThreshold(Grayscale(img, img.Bounds())))
	assert.Equal(t, 0, TextMask(img, img.Bounds()).Count())
}

func TestTextMaskMarksDarkPixels(t *testing.T) {
	img := filled(20, 20, color.RGBA{255, 255, 255, 255})
	paint(img, image.Rect(4, 4, 8, 6), color.RGBA{0, 0, 0, 255})

	mask := TextMask(img, image.Rect(2, 2, 12, 12))

	assert.Equal(t, image.Rect(2, 2, 12, 12), mask.Rect)
	assert.Equal(t, 8, mask.Count())
	assert.True(t, mask.At(4, 4))
	assert.False(t, mask.At(8, 4))
	assert.False(t, mask.At(0, 0), "outside the rectangle is never set")
}

func TestDilateStaysInsideRectangle(t *testing.T) {
	mask := NewMask(image.Rect(0, 0, 5, 5))
	mask.Set(0, 0, true)
	mask.Set(2, 2, true)

	dilated := Dilate(mask, Ellipse(3))

	// Corner pixel grows into 3 pixels, centre pixel into a 5 pixel cross.
	assert.Equal(t, 8, dilated.Count())
	assert.True(t, dilated.At(1, 0))
	assert.True(t, dilated.At(2, 1))
	assert.False(t, dilated.At(1, 1))
}

func TestMaskOr(t *testing.T) {
	page := NewMask(image.Rect(0, 0, 10, 10))
	block := NewMask(image.Rect(8, 8, 12, 12))
	block.Set(9, 9, true)
	block.Set(11, 11, true)

	page.Or(block)

	assert.Equal(t, 1, page.Count())
	assert.True(t, page.At(9, 9))
}

func TestTeleaFillsHoleWithSurroundingColour(t *testing.T) {
	background := color.RGBA{200, 180, 160, 255}
	img := filled(30, 30, background)
	hole := image.Rect(10, 10, 20, 14)
	paint(img, hole, color.RGBA{0, 0, 0, 255})
	mask := NewMask(image.Rect(5, 5, 25, 20))
	for y := hole.Min.Y; y < hole.Max.Y; y++ {
		for x := hole.Min.X; x < hole.Max.X; x++ {
			mask.Set(x, y, true)
		}
	}

	require.NoError(t, NewTelea(3).Inpaint(img, mask))

	for y := hole.Min.Y; y < hole.Max.Y; y++ {
		for x := hole.Min.X; x < hole.Max.X; x++ {
			assert.Equal(t, background, img.RGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestTeleaLeavesPixelsOutsideRegion(t *testing.T) {
	img := filled(20, 20, color.RGBA{255, 255, 255, 255})
	paint(img, image.Rect(0, 0, 20, 20), color.RGBA{10, 10, 10, 255})
	paint(img, image.Rect(4, 4, 16, 16), color.RGBA{240, 240, 240, 255})
	mask := NewMask(image.Rect(4, 4, 16, 16))
	mask.Set(10, 10, true)

	require.NoError(t, NewTelea(3).Inpaint(img, mask))

	assert.Equal(t, color.RGBA{240, 240, 240, 255}, img.RGBAAt(10, 10), "only pixels of the region are sampled")
	assert.Equal(t, color.RGBA{10, 10, 10, 255}, img.RGBAAt(3, 3))
}

func TestTeleaWithoutContext(t *testing.T) {
	img := filled(4, 4, color.RGBA{0, 0, 0, 255})
	mask := NewMask(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			mask.Set(x, y, true)
		}
	}

	assert.ErrorIs(t, NewTelea(3).Inpaint(img, mask), ErrNoContext)
	assert.NoError(t, NewTelea(3).Inpaint(img, NewMask(image.Rect(0, 0, 4, 4))), "empty mask is a no-op")
}

func TestMedianFillsOnlyMaskedPixels(t *testing.T) {
	img := filled(4, 1, color.RGBA{0, 0, 0, 255})
	img.SetRGBA(0, 0, color.RGBA{10, 100, 30, 255})
	img.SetRGBA(1, 0, color.RGBA{20, 120, 40, 255})
	img.SetRGBA(2, 0, color.RGBA{30, 140, 50, 255})
	mask := NewMask(img.Bounds())
	mask.Set(3, 0, true)

	require.NoError(t, NewMedian().Inpaint(img, mask))

	assert.Equal(t, color.RGBA{20, 120, 40, 255}, img.RGBAAt(3, 0))
	assert.Equal(t, color.RGBA{10, 100, 30, 255}, img.RGBAAt(0, 0))
}

func TestMedianWithoutContext(t *testing.T) {
	img := filled(2, 2, color.RGBA{0, 0, 0, 255})
	mask := NewMask(img.Bounds())
	mask.Set(0, 0, true)
	mask.Set(1, 0, true)
	mask.Set(0, 1, true)
	mask.Set(1, 1, true)

	assert.ErrorIs(t, NewMedian().Inpaint(img, mask), ErrNoContext)
}
