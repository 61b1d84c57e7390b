package impl

import (
	"unicode/utf8"

	"github.com/visionex-project/docrecon/pkg/utils"
	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

// Texts at least this long are never treated as aspect noise.
const minTrustedTextLength = 20

// FilterRegions removes noisy and duplicated OCR blocks.
// Blocks with geometry come back ranked by confidence; blocks without geometry follow in input order.
func FilterRegions(blocks []document.Block, options FilterOptions) []document.Block {
	located, unlocated := utils.Partition(blocks, document.Block.HasGeometry)

	located = utils.Filter(located, func(block document.Block) bool {
		return !isAspectNoise(block, options)
	})
	ranked := utils.SortedBy(located, func(block document.Block) float64 {
		return block.Confidence
	})

	alive := make([]bool, len(ranked))
	for i := range alive {
		alive[i] = true
	}
	for i := range ranked {
		if !alive[i] {
			continue
		}
		for j := i + 1; j < len(ranked); j++ {
			if !alive[j] {
				continue
			}
			if ranked[j].Confidence < options.MinConfidence {
				alive[j] = false
				continue
			}
			if document.IoU(ranked[i].Geometry.BoundingBox, ranked[j].Geometry.BoundingBox) > options.MaxIoU {
				alive[i] = false
				alive[j] = false
				break
			}
		}
	}

	kept := make([]document.Block, 0, len(ranked)+len(unlocated))
	for i, block := range ranked {
		if alive[i] {
			kept = append(kept, block)
		}
	}
	return append(kept, unlocated...)
}

// A short text in a box too narrow to hold it is usually a misread rule or smudge.
// E.g., "lllll" in a square box
func isAspectNoise(block document.Block, options FilterOptions) bool {
	box := block.Geometry.BoundingBox
	length := utf8.RuneCountInString(block.Text)
	if length >= minTrustedTextLength {
		return false
	}
	if box.Width <= 0 {
		return true
	}
	if box.Height <= 0 {
		return false
	}

	aspect := box.Width / box.Height
	if options.PageWidth > 0 && options.PageHeight > 0 {
		aspect *= float64(options.PageWidth) / float64(options.PageHeight)
	}
	return float64(length)/aspect > options.MaxAspectDiscrepancy
}
