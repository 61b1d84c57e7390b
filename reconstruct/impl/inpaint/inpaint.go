package inpaint

import (
	"errors"
	"image"

	"github.com/visionex-project/docrecon/pkg/utils"
)

// ErrNoContext is returned when a mask covers its whole region, leaving no pixels to sample from.
var ErrNoContext = errors.New("no unmasked pixels to sample from")

// Inpainter replaces the masked pixels of an image with a plausible background.
// Implementations must not touch pixels outside mask.Rect.
type Inpainter interface {
	Inpaint(img *image.RGBA, mask *Mask) error
}

// Median flat-fills every masked pixel with the per-channel median of the unmasked pixels of mask.Rect.
type Median struct{}

func NewMedian() *Median {
	return &Median{}
}

func (m *Median) Inpaint(img *image.RGBA, mask *Mask) error {
	region := mask.Rect.Intersect(img.Bounds())
	if mask.Count() == 0 || region.Empty() {
		return nil
	}

	var channels [3][]uint8
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if mask.At(x, y) {
				continue
			}
			offset := img.PixOffset(x, y)
			for c := range channels {
				channels[c] = append(channels[c], img.Pix[offset+c])
			}
		}
	}
	if len(channels[0]) == 0 {
		return ErrNoContext
	}

	fill := utils.Map(channels[:], utils.Median)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if !mask.At(x, y) {
				continue
			}
			offset := img.PixOffset(x, y)
			copy(img.Pix[offset:offset+3], fill)
		}
	}
	return nil
}
