package impl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/sync/errgroup"

	"github.com/visionex-project/docrecon/pkg/utils"
	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

// A4 in points, used for pages whose image could not be read at all.
const (
	fallbackPageWidth  = 595.28
	fallbackPageHeight = 841.89
)

// PageReport describes what happened to one page.
type PageReport struct {
	Number int
	// Blocks on the page and the ones left after filtering that are drawn.
	Blocks int
	Kept   int
	// The background was reconstructed. False when the page image could not be decoded.
	Cleaned  bool
	Warnings []error
}

type Result struct {
	JobID string
	PDF   []byte
	// In page order.
	Pages []PageReport
	// At least one translation was discarded because its placeholders did not match the source.
	PlaceholderMismatch bool
	// Warnings of every page, plus output stage warnings.
	Warnings []error
}

type preparedPage struct {
	page   document.Page
	report PageReport
	// Page size in points. Zero when the page image could not be decoded.
	width, height float64
	mismatch      bool
}

// Reconstruct cleans every page, redraws its text and assembles the pages into one PDF.
// Only an unreadable source or a cancelled ctx aborts; everything else is reported per page.
func (e *Engine) Reconstruct(ctx context.Context, doc *document.Document) (*Result, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	result := &Result{JobID: uuid.NewString()}
	log.Printf("Reconstructing %s as job %s (%d pages)", doc.URI, result.JobID, len(doc.Pages))

	composer := NewPageComposer(e.fonts, e.config.Fit)
	prepared := make([]preparedPage, len(doc.Pages))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.config.Workers)
	for i, page := range doc.Pages {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			prepared[i] = e.preparePage(page, composer)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to reconstruct %s: %w", doc.URI, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to reconstruct %s: %w", doc.URI, err)
	}

	pdfBytes, err := e.writePDF(prepared, composer)
	if err != nil {
		return nil, err
	}
	result.PDF = pdfBytes

	for _, page := range prepared {
		result.Pages = append(result.Pages, page.report)
		result.Warnings = append(result.Warnings, page.report.Warnings...)
		result.PlaceholderMismatch = result.PlaceholderMismatch || page.mismatch
	}
	return result, nil
}

func validateDocument(doc *document.Document) error {
	if doc == nil || len(doc.Pages) == 0 {
		return fmt.Errorf("%w: document has no pages", ErrSourceUnavailable)
	}
	numbers := make(map[int]bool, len(doc.Pages))
	for _, page := range doc.Pages {
		if len(page.Image) == 0 {
			return fmt.Errorf("%w: page %d has no image", ErrSourceUnavailable, page.Number)
		}
		// Page overlays are keyed by number.
		if numbers[page.Number] {
			return fmt.Errorf("%w: page %d appears more than once", ErrSourceUnavailable, page.Number)
		}
		numbers[page.Number] = true
	}
	return nil
}

// preparePage runs filtering, ink sampling and background cleaning for one page and queues its text.
// The returned page owns the cleaned image; the input page is never written.
func (e *Engine) preparePage(page document.Page, composer *PageComposer) preparedPage {
	prepared := preparedPage{page: page, report: PageReport{Number: page.Number, Blocks: len(page.Blocks)}}
	report := &prepared.report

	// Mismatches are reported for every block, filtered out or not.
	blocks := make([]document.Block, len(page.Blocks))
	for i, block := range page.Blocks {
		text, mismatch := block.ResolvedText()
		if mismatch {
			log.Printf("Failed to use translation of block %d on page %d: placeholder count differs", i, page.Number)
			report.Warnings = append(report.Warnings, fmt.Errorf("%w: page %d block %d", ErrPlaceholderMismatch, page.Number, i))
			prepared.mismatch = true
		}
		block.TranslatedText = &text
		blocks[i] = block
	}
	if missing := len(blocks) - len(utils.Filter(blocks, document.Block.HasGeometry)); missing > 0 {
		report.Warnings = append(report.Warnings, fmt.Errorf("%w: %d blocks on page %d", ErrGeometryMissing, missing, page.Number))
	}

	img, _, err := image.Decode(bytes.NewReader(page.Image))
	if err != nil {
		log.Printf("Failed to decode page %d, keeping it as is: %v", page.Number, err)
		report.Warnings = append(report.Warnings, fmt.Errorf("%w: page %d: %v", ErrPageDecode, page.Number, err))
		return prepared
	}
	bounds := img.Bounds()

	filterOptions := e.config.Filter
	filterOptions.PageWidth, filterOptions.PageHeight = bounds.Dx(), bounds.Dy()
	kept := utils.Filter(FilterRegions(blocks, filterOptions), document.Block.HasGeometry)
	report.Kept = len(kept)

	inks := make([]colorful.Color, len(kept))
	for i, block := range kept {
		inks[i] = black
		if e.config.PreserveInkColor {
			rect := block.Geometry.BoundingBox.Pixels(bounds.Dx(), bounds.Dy()).Add(bounds.Min)
			inks[i] = sampleInk(img, rect)
		}
	}

	cleaned, err := e.cleaner.Clean(page.WithBlocks(kept))
	if err != nil {
		log.Printf("Failed to clean page %d, keeping original pixels: %v", page.Number, err)
		report.Warnings = append(report.Warnings, err)
		if errors.Is(err, ErrPageDecode) {
			return prepared
		}
	} else {
		prepared.page = page.WithImage(cleaned.Page.Image)
		report.Cleaned = true
	}
	report.Warnings = append(report.Warnings, cleaned.Warnings...)

	// Read from the source bytes; the cleaned PNG no longer carries the header.
	density := imageDensity(page.Image, e.config.Output.PageDPI)
	prepared.width = float64(bounds.Dx()) * 72 / density
	prepared.height = float64(bounds.Dy()) * 72 / density
	composer.SetPageSize(page.Number, prepared.width, prepared.height)
	for i, block := range kept {
		text := *block.TranslatedText
		if strings.TrimSpace(text) == "" {
			continue
		}
		composer.AddTextBox(page.Number, text, block.Geometry.BoundingBox, e.config.Align, inks[i])
	}
	return prepared
}

// writePDF adds the pages in order, each as its cleaned image with the text layer on top.
func (e *Engine) writePDF(pages []preparedPage, composer *PageComposer) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("docrecon", true)
	pdf.AddUTF8FontFromBytes(e.fonts.Family, "", e.fonts.TTF)

	for i := range pages {
		page := &pages[i]
		e.addPage(pdf, page)
		if page.width > 0 {
			page.report.Warnings = append(page.report.Warnings, composer.Export(pdf, page.page.Number, e.config.Output.LayerName)...)
		}
		composer.Release(page.page.Number)
		// The cleaned image is embedded now; drop it so only one page is held at a time.
		page.page.Image = nil
		if pdf.Err() {
			return nil, fmt.Errorf("failed to write page %d: %w", page.page.Number, pdf.Error())
		}
	}

	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	if !e.config.Output.Optimize {
		return buffer.Bytes(), nil
	}
	optimized, err := optimizePDF(buffer.Bytes())
	if err != nil {
		log.Printf("Failed to optimize PDF, keeping the unoptimized output: %v", err)
		return buffer.Bytes(), nil
	}
	return optimized, nil
}

// addPage starts a page sized to the page image and draws the image over it.
// A page whose image cannot be embedded becomes a blank page.
func (e *Engine) addPage(pdf *fpdf.Fpdf, page *preparedPage) {
	width, height := page.width, page.height
	if width == 0 {
		if config, _, err := image.DecodeConfig(bytes.NewReader(page.page.Image)); err == nil {
			density := imageDensity(page.page.Image, e.config.Output.PageDPI)
			width = float64(config.Width) * 72 / density
			height = float64(config.Height) * 72 / density
		} else {
			width, height = fallbackPageWidth, fallbackPageHeight
		}
	}
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})

	data, imageType, err := embeddableImage(page.page.Image, width, e.config.Output)
	if err != nil {
		log.Printf("Failed to embed image of page %d: %v", page.page.Number, err)
		page.report.Warnings = append(page.report.Warnings, fmt.Errorf("%w: page %d: %v", ErrPageDecode, page.page.Number, err))
		return
	}
	name := fmt.Sprintf("page-%d", page.page.Number)
	options := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(data))
	pdf.ImageOptions(name, 0, 0, width, height, false, options, 0, "")
}

// Preview renders a single reconstructed page as PNG, without building the PDF.
func (e *Engine) Preview(ctx context.Context, doc *document.Document, pageNumber int) ([]byte, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	index := -1
	for i, page := range doc.Pages {
		if page.Number == pageNumber {
			index = i
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("page %d not found in %s", pageNumber, doc.URI)
	}

	composer := NewPageComposer(e.fonts, e.config.Fit)
	prepared := e.preparePage(doc.Pages[index], composer)
	defer composer.Release(pageNumber)

	background, _, err := image.Decode(bytes.NewReader(prepared.page.Image))
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrPageDecode, pageNumber, err)
	}
	img, warnings := composer.Preview(pageNumber, background)
	for _, warning := range warnings {
		log.Printf("Failed to fit text on page %d: %v", pageNumber, warning)
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buffer.Bytes(), nil
}

// Save writes the reconstructed PDF to uri through the engine's storage client.
func (e *Engine) Save(ctx context.Context, result *Result, uri string) error {
	if e.storage == nil {
		return fmt.Errorf("no storage configured to save job %s", result.JobID)
	}
	if err := e.storage.Write(ctx, uri, result.PDF); err != nil {
		return fmt.Errorf("failed to save job %s to %s: %w", result.JobID, uri, err)
	}
	log.Printf("Saved job %s to %s", result.JobID, uri)
	return nil
}
