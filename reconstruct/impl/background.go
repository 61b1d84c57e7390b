package impl

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log"

	"github.com/visionex-project/docrecon/pkg/utils"
	"github.com/visionex-project/docrecon/reconstruct/impl/document"
	"github.com/visionex-project/docrecon/reconstruct/impl/inpaint"
)

// Structuring element sizes of the per-block and page-wide masks.
const (
	blockDilation = 3
	pageDilation  = 9
)

// Cleaner removes the original text pixels of a page.
type Cleaner interface {
	// Clean returns a new page whose image has the text under every located block replaced by background.
	// Region failures are returned in CleanResult.Warnings; the error is set only when the page
	// image cannot be decoded, in which case the caller keeps the original page.
	Clean(page document.Page) (CleanResult, error)
}

type CleanResult struct {
	Page     document.Page
	Warnings []error
}

func NewCleaner(options BackgroundOptions) Cleaner {
	switch options.Strategy {
	case StrategyPerBlock:
		return &perBlockCleaner{options: options, inpainter: inpaint.NewTelea(options.InpaintRadius)}
	case StrategyMedian:
		return &perBlockCleaner{options: options, inpainter: inpaint.NewMedian()}
	case StrategyNone:
		return &noopCleaner{}
	default:
		return &perPageCleaner{options: options, inpainter: inpaint.NewTelea(options.InpaintRadius)}
	}
}

type noopCleaner struct{}

func (c *noopCleaner) Clean(page document.Page) (CleanResult, error) {
	return CleanResult{Page: page}, nil
}

// perBlockCleaner inpaints each block inside its own padded rectangle, so the result
// only ever depends on pixels of that rectangle.
type perBlockCleaner struct {
	options   BackgroundOptions
	inpainter inpaint.Inpainter
}

func (c *perBlockCleaner) Clean(page document.Page) (CleanResult, error) {
	if !utils.Some(page.Blocks, document.Block.HasGeometry) {
		return CleanResult{Page: page}, nil
	}
	img, err := decodePage(page)
	if err != nil {
		return CleanResult{Page: page}, err
	}
	rects := blockRects(page.Blocks, img.Bounds(), c.options.MaskOffset)
	if len(rects) == 0 {
		return CleanResult{Page: page}, nil
	}

	kernel := inpaint.Ellipse(blockDilation)
	var warnings []error
	// Blocks run in order since padded rectangles may overlap.
	for i, rect := range rects {
		mask := inpaint.Dilate(inpaint.TextMask(img, rect), kernel)
		if err := c.inpainter.Inpaint(img, mask); err != nil {
			log.Printf("Failed to inpaint block %d on page %d: %v", i, page.Number, err)
			warnings = append(warnings, fmt.Errorf("%w: page %d block %d: %v", ErrInpaintFailure, page.Number, i, err))
		}
	}
	return encodePage(page, img, warnings)
}

// perPageCleaner unions the block masks and inpaints the page in a single pass.
type perPageCleaner struct {
	options   BackgroundOptions
	inpainter inpaint.Inpainter
}

func (c *perPageCleaner) Clean(page document.Page) (CleanResult, error) {
	if !utils.Some(page.Blocks, document.Block.HasGeometry) {
		return CleanResult{Page: page}, nil
	}
	img, err := decodePage(page)
	if err != nil {
		return CleanResult{Page: page}, err
	}
	rects := blockRects(page.Blocks, img.Bounds(), c.options.MaskOffset)
	if len(rects) == 0 {
		return CleanResult{Page: page}, nil
	}

	kernel := inpaint.Ellipse(pageDilation)
	pageMask := inpaint.NewMask(img.Bounds())
	for _, rect := range rects {
		pageMask.Or(inpaint.Dilate(inpaint.TextMask(img, rect), kernel))
	}

	var warnings []error
	if err := c.inpainter.Inpaint(img, pageMask); err != nil {
		log.Printf("Failed to inpaint page %d: %v", page.Number, err)
		warnings = append(warnings, fmt.Errorf("%w: page %d: %v", ErrInpaintFailure, page.Number, err))
	}
	return encodePage(page, img, warnings)
}

// blockRects returns the padded pixel rectangle of every located block, skipping empty ones.
func blockRects(blocks []document.Block, bounds image.Rectangle, offset float64) []image.Rectangle {
	located := utils.Filter(blocks, document.Block.HasGeometry)
	rects := utils.Map(located, func(block document.Block) image.Rectangle {
		return block.Geometry.BoundingBox.Padded(offset).Pixels(bounds.Dx(), bounds.Dy()).Add(bounds.Min)
	})
	return utils.Filter(rects, func(rect image.Rectangle) bool {
		return !rect.Empty()
	})
}

func decodePage(page document.Page) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(page.Image))
	if err != nil {
		log.Printf("Failed to decode page %d: %v", page.Number, err)
		return nil, fmt.Errorf("%w: page %d: %v", ErrPageDecode, page.Number, err)
	}
	return inpaint.ToRGBA(img), nil
}

func encodePage(page document.Page, img image.Image, warnings []error) (CleanResult, error) {
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return CleanResult{Page: page, Warnings: warnings}, fmt.Errorf("failed to encode page %d: %w", page.Number, err)
	}
	return CleanResult{Page: page.WithImage(buffer.Bytes()), Warnings: warnings}, nil
}
