package impl

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"codeberg.org/go-pdf/fpdf"
	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/visionex-project/docrecon/reconstruct/impl/document"
	"github.com/visionex-project/docrecon/reconstruct/impl/font"
)

// PageComposer collects text boxes per page and renders them only when a page is exported or previewed.
// It is safe for concurrent use by page workers.
type PageComposer struct {
	fonts   *font.Resources
	options FitOptions

	mu       sync.Mutex
	sizes    map[int]pageSize
	pending  map[int][]textBox
	overlays map[int][]placedText
}

// Page size in points.
type pageSize struct {
	width, height float64
}

type textBox struct {
	text  string
	box   document.BoundingBox
	align Align
	ink   colorful.Color
}

type placedText struct {
	layout TextLayout
	ink    colorful.Color
}

func NewPageComposer(fonts *font.Resources, options FitOptions) *PageComposer {
	return &PageComposer{
		fonts:    fonts,
		options:  options,
		sizes:    map[int]pageSize{},
		pending:  map[int][]textBox{},
		overlays: map[int][]placedText{},
	}
}

// SetPageSize records the page size in points that normalized boxes are mapped onto.
func (c *PageComposer) SetPageSize(page int, width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizes[page] = pageSize{width: width, height: height}
}

// AddTextBox queues text for the given normalized box. Nothing is measured or drawn yet.
func (c *PageComposer) AddTextBox(page int, text string, box document.BoundingBox, align Align, ink colorful.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[page] = append(c.pending[page], textBox{text: text, box: box, align: align, ink: ink})
}

// Flush fits and lays out every queued box of the page into its overlay and clears the queue.
// Boxes whose fit hit the iteration cap are still placed and reported as warnings.
func (c *PageComposer) Flush(page int) []error {
	c.mu.Lock()
	boxes := c.pending[page]
	delete(c.pending, page)
	size, ok := c.sizes[page]
	c.mu.Unlock()
	if len(boxes) == 0 {
		return nil
	}
	if !ok {
		return []error{fmt.Errorf("page %d has queued text but no size", page)}
	}

	var warnings []error
	placed := make([]placedText, 0, len(boxes))
	for i, box := range boxes {
		rect := Rect{
			X:      box.box.Left * size.width,
			Y:      box.box.Top * size.height,
			Width:  box.box.Width * size.width,
			Height: box.box.Height * size.height,
		}
		fit := FitText(box.text, rect.Width, rect.Height, c.fonts, c.options)
		if fit.Exhausted {
			warnings = append(warnings, fmt.Errorf("%w: page %d box %d after %d iterations", ErrFitNotConverged, page, i, fit.Iterations))
		}
		placed = append(placed, placedText{
			layout: LayoutText(fit, rect, box.align, c.fonts, c.options.LineSpacing),
			ink:    box.ink,
		})
	}

	c.mu.Lock()
	c.overlays[page] = append(c.overlays[page], placed...)
	c.mu.Unlock()
	return warnings
}

func (c *PageComposer) overlay(page int) []placedText {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlays[page]
}

// Release drops the overlay of a page once it has been written.
func (c *PageComposer) Release(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.overlays, page)
	delete(c.sizes, page)
}

// Export flushes the page and draws its overlay onto the current PDF page as an optional content layer.
// The font must already be registered on pdf under the composer's font family.
func (c *PageComposer) Export(pdf *fpdf.Fpdf, page int, layerName string) []error {
	warnings := c.Flush(page)
	placed := c.overlay(page)
	if len(placed) == 0 {
		return warnings
	}

	layer := pdf.AddLayer(fmt.Sprintf("%s (Page %d)", layerName, page), true)
	pdf.BeginLayer(layer)
	for _, text := range placed {
		r, g, b := text.ink.RGB255()
		pdf.SetTextColor(int(r), int(g), int(b))
		pdf.SetFont(c.fonts.Family, "", text.layout.FontSize)
		for _, line := range text.layout.Lines {
			for _, span := range line.Spans {
				pdf.Text(span.X, line.Baseline, span.Text)
			}
		}
	}
	pdf.EndLayer()
	return warnings
}

// Preview flushes the page and rasterizes its overlay onto background, which is scaled from page points.
// A page without text returns a plain copy of background.
func (c *PageComposer) Preview(page int, background image.Image) (image.Image, []error) {
	warnings := c.Flush(page)
	placed := c.overlay(page)

	bounds := background.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), background, bounds.Min, draw.Src)
	if len(placed) == 0 {
		return canvas, warnings
	}

	c.mu.Lock()
	size := c.sizes[page]
	c.mu.Unlock()
	scale := 1.0
	if size.width > 0 {
		scale = float64(bounds.Dx()) / size.width
	}

	drawingContext := gg.NewContextForRGBA(canvas)
	for _, text := range placed {
		drawingContext.SetFontFace(c.fonts.Face(text.layout.FontSize * scale))
		drawingContext.SetColor(text.ink)
		for _, line := range text.layout.Lines {
			for _, span := range line.Spans {
				drawingContext.DrawString(span.Text, span.X*scale, line.Baseline*scale)
			}
		}
	}
	return drawingContext.Image(), warnings
}
