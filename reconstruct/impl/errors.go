package impl

import (
	"errors"

	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

var (
	// The source document cannot be read or has no pages. Aborts the job.
	ErrSourceUnavailable = document.ErrSourceUnavailable
	// A page image cannot be decoded. The page keeps its original bytes and gets no overlay.
	ErrPageDecode = errors.New("page image cannot be decoded")
	// A block has no geometry. It is skipped for masking and drawing.
	ErrGeometryMissing = errors.New("block has no geometry")
	// A region could not be inpainted. The region is left untouched.
	ErrInpaintFailure = errors.New("inpainting failed")
	// The text fitter hit its iteration cap. The last fit is used.
	ErrFitNotConverged = errors.New("text fit did not converge")
	// A translation dropped or added placeholders. The source text is drawn instead.
	ErrPlaceholderMismatch = errors.New("translation placeholder count mismatch")
)
