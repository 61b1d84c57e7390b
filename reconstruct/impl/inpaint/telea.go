package inpaint

import (
	"container/heap"
	"image"
	"math"
)

// Pixel states of the fast marching method.
const (
	known uint8 = iota
	band
	inside
)

// Distance assigned to pixels the front has not reached yet.
const unreached = 1e6

// Telea fills masked pixels by marching inward from the mask boundary and estimating each
// pixel from its already known neighbours within radius (A. Telea, 2004).
type Telea struct {
	Radius float64
}

func NewTelea(radius float64) *Telea {
	return &Telea{Radius: radius}
}

// Inpaint rewrites the masked pixels of img. Only pixels inside mask.Rect are read or written.
func (t *Telea) Inpaint(img *image.RGBA, mask *Mask) error {
	region := mask.Rect.Intersect(img.Bounds())
	if mask.Count() == 0 || region.Empty() {
		return nil
	}

	f := newField(img, mask, region)
	if f.narrowBand.Len() == 0 {
		return ErrNoContext
	}
	f.march(t.Radius)
	return nil
}

type field struct {
	img        *image.RGBA
	region     image.Rectangle
	width      int
	height     int
	flags      []uint8
	distance   []float64
	narrowBand *bandHeap
}

func newField(img *image.RGBA, mask *Mask, region image.Rectangle) *field {
	f := &field{
		img:        img,
		region:     region,
		width:      region.Dx(),
		height:     region.Dy(),
		flags:      make([]uint8, region.Dx()*region.Dy()),
		distance:   make([]float64, region.Dx()*region.Dy()),
		narrowBand: &bandHeap{},
	}
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			if mask.At(region.Min.X+x, region.Min.Y+y) {
				f.flags[f.index(x, y)] = inside
				f.distance[f.index(x, y)] = unreached
			}
		}
	}

	// The initial front is every known pixel touching the mask.
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			if f.flags[f.index(x, y)] != inside {
				continue
			}
			for _, n := range neighbours(x, y) {
				if !f.contains(n.X, n.Y) || f.flags[f.index(n.X, n.Y)] != known {
					continue
				}
				f.flags[f.index(n.X, n.Y)] = band
				heap.Push(f.narrowBand, bandItem{x: n.X, y: n.Y, distance: 0, order: f.narrowBand.next()})
			}
		}
	}
	return f
}

func (f *field) index(x, y int) int {
	return y*f.width + x
}

func (f *field) contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.width && y < f.height
}

// Pixels outside the region behave like unreached ones so the march never reads past it.
func (f *field) isInside(x, y int) bool {
	return !f.contains(x, y) || f.flags[f.index(x, y)] == inside
}

func (f *field) march(radius float64) {
	for f.narrowBand.Len() > 0 {
		current := heap.Pop(f.narrowBand).(bandItem)
		f.flags[f.index(current.x, current.y)] = known

		for _, n := range neighbours(current.x, current.y) {
			if !f.contains(n.X, n.Y) || f.flags[f.index(n.X, n.Y)] != inside {
				continue
			}
			distance := math.Min(
				math.Min(f.solve(n.X-1, n.Y, n.X, n.Y-1), f.solve(n.X+1, n.Y, n.X, n.Y-1)),
				math.Min(f.solve(n.X-1, n.Y, n.X, n.Y+1), f.solve(n.X+1, n.Y, n.X, n.Y+1)),
			)
			f.distance[f.index(n.X, n.Y)] = distance
			f.fill(n.X, n.Y, radius)
			f.flags[f.index(n.X, n.Y)] = band
			heap.Push(f.narrowBand, bandItem{x: n.X, y: n.Y, distance: distance, order: f.narrowBand.next()})
		}
	}
}

// solve is the first order upwind solution of |grad T| = 1 from two orthogonal neighbours.
func (f *field) solve(x1, y1, x2, y2 int) float64 {
	first, second := !f.isInside(x1, y1), !f.isInside(x2, y2)
	switch {
	case first && second:
		a, b := f.distance[f.index(x1, y1)], f.distance[f.index(x2, y2)]
		if math.Abs(a-b) >= 1 {
			return 1 + math.Min(a, b)
		}
		return (a + b + math.Sqrt(2-(a-b)*(a-b))) / 2
	case first:
		return 1 + f.distance[f.index(x1, y1)]
	case second:
		return 1 + f.distance[f.index(x2, y2)]
	default:
		return unreached
	}
}

// gradient returns the central (or one sided) difference of value around (x, y), skipping unknown pixels.
func (f *field) gradient(x, y int, value func(x, y int) float64) (float64, float64) {
	var gx, gy float64
	right, left := !f.isInside(x+1, y), !f.isInside(x-1, y)
	switch {
	case right && left:
		gx = (value(x+1, y) - value(x-1, y)) / 2
	case right:
		gx = value(x+1, y) - value(x, y)
	case left:
		gx = value(x, y) - value(x-1, y)
	}
	down, up := !f.isInside(x, y+1), !f.isInside(x, y-1)
	switch {
	case down && up:
		gy = (value(x, y+1) - value(x, y-1)) / 2
	case down:
		gy = value(x, y+1) - value(x, y)
	case up:
		gy = value(x, y) - value(x, y-1)
	}
	return gx, gy
}

// fill estimates the colour of (x, y) from known pixels q within radius as
// sum w(q) * (I(q) + grad I(q) . (p - q)) / sum w(q).
func (f *field) fill(x, y int, radius float64) {
	distanceAt := func(x, y int) float64 { return f.distance[f.index(x, y)] }
	gradTx, gradTy := f.gradient(x, y, distanceAt)
	reach := int(math.Ceil(radius))

	var sums [3]float64
	weightSum := 0.0
	for qy := y - reach; qy <= y+reach; qy++ {
		for qx := x - reach; qx <= x+reach; qx++ {
			if f.isInside(qx, qy) {
				continue
			}
			rx, ry := float64(x-qx), float64(y-qy)
			lengthSquared := rx*rx + ry*ry
			if lengthSquared == 0 || lengthSquared > radius*radius {
				continue
			}

			direction := math.Abs(rx*gradTx + ry*gradTy)
			if direction <= 0.01 {
				direction = 1e-6
			}
			dst := 1 / lengthSquared
			level := 1 / (1 + math.Abs(distanceAt(qx, qy)-distanceAt(x, y)))
			weight := direction * dst * level

			for channel := 0; channel < 3; channel++ {
				value := func(x, y int) float64 {
					return float64(f.img.Pix[f.img.PixOffset(f.region.Min.X+x, f.region.Min.Y+y)+channel])
				}
				gx, gy := f.gradient(qx, qy, value)
				sums[channel] += weight * (value(qx, qy) + gx*rx + gy*ry)
			}
			weightSum += weight
		}
	}
	if weightSum == 0 {
		return
	}

	offset := f.img.PixOffset(f.region.Min.X+x, f.region.Min.Y+y)
	for channel := 0; channel < 3; channel++ {
		f.img.Pix[offset+channel] = uint8(math.Max(0, math.Min(255, math.Round(sums[channel]/weightSum))))
	}
}

func neighbours(x, y int) [4]image.Point {
	return [4]image.Point{{X: x, Y: y - 1}, {X: x - 1, Y: y}, {X: x, Y: y + 1}, {X: x + 1, Y: y}}
}

type bandItem struct {
	x, y     int
	distance float64
	// Breaks distance ties in insertion order.
	order int
}

type bandHeap struct {
	items   []bandItem
	counter int
}

func (h *bandHeap) next() int {
	h.counter++
	return h.counter
}

func (h *bandHeap) Len() int { return len(h.items) }

func (h *bandHeap) Less(i, j int) bool {
	if h.items[i].distance != h.items[j].distance {
		return h.items[i].distance < h.items[j].distance
	}
	return h.items[i].order < h.items[j].order
}

func (h *bandHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *bandHeap) Push(x any) { h.items = append(h.items, x.(bandItem)) }

func (h *bandHeap) Pop() any {
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last
}
