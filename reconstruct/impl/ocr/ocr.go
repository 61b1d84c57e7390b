package ocr

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

// Provider detects the text lines of a single page image.
type Provider interface {
	Detect(ctx context.Context, image []byte) ([]document.Block, error)
}

// Annotate replaces the blocks of every page with the ones the provider detects.
// A page the provider fails on keeps its blocks; only a cancelled ctx aborts.
func Annotate(ctx context.Context, doc *document.Document, provider Provider) error {
	for i, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		blocks, err := provider.Detect(ctx, page.Image)
		if err != nil {
			log.Printf("Failed to detect text on page %d of %s: %v", page.Number, doc.URI, err)
			continue
		}
		doc.Pages[i] = page.WithBlocks(blocks)
	}
	return nil
}

// bounds accumulates the extent of a set of normalized points.
type bounds struct {
	left, top, right, bottom float64
}

func emptyBounds() bounds {
	return bounds{left: math.Inf(1), top: math.Inf(1), right: math.Inf(-1), bottom: math.Inf(-1)}
}

func (b bounds) extend(x, y float64) bounds {
	return bounds{
		left:   min(b.left, x),
		top:    min(b.top, y),
		right:  max(b.right, x),
		bottom: max(b.bottom, y),
	}
}

func (b bounds) isEmpty() bool {
	return b.left > b.right || b.top > b.bottom
}

// geometry returns the clamped box of b together with its corner polygon.
func (b bounds) geometry() *document.Geometry {
	geometry := document.NewGeometry(b.left, b.top, b.right-b.left, b.bottom-b.top)
	box := geometry.BoundingBox
	geometry.Polygon = []document.Point{
		{X: box.Left, Y: box.Top},
		{X: box.Right(), Y: box.Top},
		{X: box.Right(), Y: box.Bottom()},
		{X: box.Left, Y: box.Bottom()},
	}
	return geometry
}

func normalize(value, size float64) float64 {
	if size <= 0 {
		return 0
	}
	return value / size
}

func errDetect(provider string, err error) error {
	return fmt.Errorf("failed to detect text with %s: %w", provider, err)
}
