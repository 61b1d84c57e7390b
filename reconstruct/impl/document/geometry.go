package document

import (
	"encoding/json"
	"image"
	"math"
)

const (
	// Guards the IoU denominator so two empty boxes never divide by zero.
	iouEpsilon = 1e-9
	// Absorbs floating point noise when snapping normalized edges to pixels.
	pixelEpsilon = 1e-6
)

// BoundingBox is a rectangle in normalized page coordinates with the origin at the top-left.
// E.g., {Left: 0.1, Top: 0.1, Width: 0.3, Height: 0.05}
type BoundingBox struct {
	Left   float64 `json:"Left"`
	Top    float64 `json:"Top"`
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
}

// Point is a normalized polygon vertex.
type Point struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

// Geometry locates a block on its page.
// The bounding box always satisfies 0 <= Left,Top <= 1, Width <= 1-Left and Height <= 1-Top.
type Geometry struct {
	BoundingBox BoundingBox `json:"BoundingBox"`
	// Carried through untouched; the engine only works on the bounding box.
	Polygon []Point `json:"Polygon,omitempty"`
}

// NewGeometry returns a geometry whose bounding box is clamped into the unit square.
func NewGeometry(left, top, width, height float64) *Geometry {
	return &Geometry{BoundingBox: BoundingBox{
		Left:   left,
		Top:    top,
		Width:  width,
		Height: height,
	}.Clamped()}
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	type rawGeometry Geometry
	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw.BoundingBox = raw.BoundingBox.Clamped()
	*g = Geometry(raw)
	return nil
}

// Clamped returns the box restricted to the unit square.
func (b BoundingBox) Clamped() BoundingBox {
	left := clamp(b.Left, 0, 1)
	top := clamp(b.Top, 0, 1)
	return BoundingBox{
		Left:   left,
		Top:    top,
		Width:  clamp(b.Width, 0, 1-left),
		Height: clamp(b.Height, 0, 1-top),
	}
}

func (b BoundingBox) Right() float64 {
	return b.Left + b.Width
}

func (b BoundingBox) Bottom() float64 {
	return b.Top + b.Height
}

func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Padded grows the box by offset on every side, staying inside the unit square.
func (b BoundingBox) Padded(offset float64) BoundingBox {
	left := clamp(b.Left-offset, 0, 1)
	top := clamp(b.Top-offset, 0, 1)
	return BoundingBox{
		Left:   left,
		Top:    top,
		Width:  clamp(b.Width+2*offset, 0, 1-left),
		Height: clamp(b.Height+2*offset, 0, 1-top),
	}
}

// Pixels converts the box into a pixel rectangle of an image of the given size.
// The origin is floored and the size ceiled so partially covered pixels are included.
// E.g., {0.1, 0.1, 0.3, 0.05} on 1000x1000 -> (100,100)-(400,150)
func (b BoundingBox) Pixels(width, height int) image.Rectangle {
	x := int(math.Floor(b.Left*float64(width) + pixelEpsilon))
	y := int(math.Floor(b.Top*float64(height) + pixelEpsilon))
	w := int(math.Ceil(b.Width*float64(width) - pixelEpsilon))
	h := int(math.Ceil(b.Height*float64(height) - pixelEpsilon))
	return image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, width, height))
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b BoundingBox) float64 {
	interWidth := math.Max(0, math.Min(a.Right(), b.Right())-math.Max(a.Left, b.Left))
	interHeight := math.Max(0, math.Min(a.Bottom(), b.Bottom())-math.Max(a.Top, b.Top))
	intersection := interWidth * interHeight
	return intersection / (a.Area() + b.Area() - intersection + iouEpsilon)
}

func clamp(value, low, high float64) float64 {
	if math.IsNaN(value) {
		return low
	}
	return math.Min(math.Max(value, low), high)
}
