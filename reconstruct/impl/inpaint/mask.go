package inpaint

import (
	"image"
	"image/draw"
	"math"
)

// Mask is a binary image over a rectangle; set pixels are the ones to reconstruct.
type Mask struct {
	Rect image.Rectangle
	pix  []bool
}

func NewMask(rect image.Rectangle) *Mask {
	return &Mask{Rect: rect, pix: make([]bool, rect.Dx()*rect.Dy())}
}

func (m *Mask) offset(x, y int) int {
	return (y-m.Rect.Min.Y)*m.Rect.Dx() + (x - m.Rect.Min.X)
}

// At reports whether (x, y) is set. Points outside the rectangle are never set.
func (m *Mask) At(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(m.Rect) {
		return false
	}
	return m.pix[m.offset(x, y)]
}

func (m *Mask) Set(x, y int, value bool) {
	if !(image.Point{X: x, Y: y}).In(m.Rect) {
		return
	}
	m.pix[m.offset(x, y)] = value
}

func (m *Mask) Count() int {
	count := 0
	for _, set := range m.pix {
		if set {
			count++
		}
	}
	return count
}

// Or sets every pixel that is set in other, clipped to this mask's rectangle.
func (m *Mask) Or(other *Mask) {
	r := m.Rect.Intersect(other.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if other.At(x, y) {
				m.pix[m.offset(x, y)] = true
			}
		}
	}
}

// Grayscale converts the rectangle of img with ITU-R BT.601 luma weights.
func Grayscale(img image.Image, rect image.Rectangle) *image.Gray {
	rect = rect.Intersect(img.Bounds())
	gray := image.NewGray(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.Pix[gray.PixOffset(x, y)] = uint8(math.Min(255, math.Round(luma)))
		}
	}
	return gray
}

// OtsuThreshold returns the gray level that maximizes the between-class variance.
// A uniform region has no valid split and yields 0.
func OtsuThreshold(gray *image.Gray) uint8 {
	var histogram [256]float64
	total := 0
	rect := gray.Bounds()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			histogram[gray.Pix[gray.PixOffset(x, y)]]++
			total++
		}
	}
	if total == 0 {
		return 0
	}

	mean := 0.0
	for level, count := range histogram {
		histogram[level] = count / float64(total)
		mean += float64(level) * histogram[level]
	}

	const epsilon = 1.1920929e-07
	var (
		threshold   uint8
		maxVariance float64
		weight      float64
		weightedSum float64
	)
	for level, probability := range histogram {
		weight += probability
		weightedSum += float64(level) * probability
		background := 1 - weight
		if math.Min(weight, background) < epsilon || math.Max(weight, background) > 1-epsilon {
			continue
		}
		foregroundMean := weightedSum / weight
		backgroundMean := (mean - weightedSum) / background
		variance := weight * background * (foregroundMean - backgroundMean) * (foregroundMean - backgroundMean)
		if variance > maxVariance {
			maxVariance = variance
			threshold = uint8(level)
		}
	}
	return threshold
}

// TextMask marks the dark pixels of rect, i.e. gray <= Otsu threshold, as text.
func TextMask(img image.Image, rect image.Rectangle) *Mask {
	gray := Grayscale(img, rect)
	threshold := OtsuThreshold(gray)
	mask := NewMask(gray.Rect)
	for y := gray.Rect.Min.Y; y < gray.Rect.Max.Y; y++ {
		for x := gray.Rect.Min.X; x < gray.Rect.Max.X; x++ {
			if gray.Pix[gray.PixOffset(x, y)] <= threshold {
				mask.pix[mask.offset(x, y)] = true
			}
		}
	}
	return mask
}

// Ellipse builds a size x size elliptical structuring element the way OpenCV's getStructuringElement does.
// E.g., size 3 ->
// .#.
// ###
// .#.
func Ellipse(size int) [][]bool {
	kernel := make([][]bool, size)
	radius := size / 2
	center := float64(size / 2)
	inverseSquared := 0.0
	if radius > 0 {
		inverseSquared = 1 / float64(radius*radius)
	}
	for i := range kernel {
		kernel[i] = make([]bool, size)
		dy := i - radius
		start, end := 0, 0
		if abs(dy) <= radius {
			dx := int(math.Round(center * math.Sqrt(float64(radius*radius-dy*dy)*inverseSquared)))
			start = max(int(center)-dx, 0)
			end = min(int(center)+dx+1, size)
		}
		for j := start; j < end; j++ {
			kernel[i][j] = true
		}
	}
	return kernel
}

// Dilate grows the mask by the kernel, anchored at its center. The result never leaves m.Rect.
func Dilate(m *Mask, kernel [][]bool) *Mask {
	dilated := NewMask(m.Rect)
	anchor := len(kernel) / 2
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		for x := m.Rect.Min.X; x < m.Rect.Max.X; x++ {
			if !m.pix[m.offset(x, y)] {
				continue
			}
			for ky, row := range kernel {
				for kx, set := range row {
					if set {
						dilated.Set(x+kx-anchor, y+ky-anchor, true)
					}
				}
			}
		}
	}
	return dilated
}

// ToRGBA returns a copy of img that the inpainters are allowed to write into.
func ToRGBA(img image.Image) *image.RGBA {
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
