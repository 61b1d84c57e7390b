package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrSourceUnavailable is returned when a source URI cannot be read or decoded into pages.
var ErrSourceUnavailable = errors.New("source unavailable")

// Placeholder marks a span that translation must carry over verbatim. E.g., "Total: {} EUR"
const Placeholder = "{}"

// Document is an ordered list of pages loaded from a single source.
type Document struct {
	// E.g., file:///tmp/invoice.pdf, gs://bucket/scan.png
	URI string `json:"uri"`
	// Detected on load. E.g., png, jpeg, tiff, pdf
	FileFormat string `json:"file_format"`
	Pages      []Page `json:"pages"`
}

type Page struct {
	// 1-based.
	Number int `json:"page_number"`
	// Encoded raster bytes. Never serialized; reattached with Reload.
	Image  []byte  `json:"-"`
	Blocks []Block `json:"blocks"`
}

// Block is one detected text region together with its optional translation.
type Block struct {
	Text           string  `json:"text"`
	TranslatedText *string `json:"translated_text"`
	// In [0, 1].
	Confidence float64 `json:"confidence"`
	// Nil when the OCR provider returned no location; such blocks are never drawn or masked.
	Geometry *Geometry `json:"geometry"`
}

// WithImage returns a copy of the page that owns the given image bytes.
func (p Page) WithImage(image []byte) Page {
	p.Image = image
	return p
}

// WithBlocks returns a copy of the page carrying the given blocks.
func (p Page) WithBlocks(blocks []Block) Page {
	p.Blocks = blocks
	return p
}

// HasGeometry reports whether the block can take part in geometric operations.
func (b Block) HasGeometry() bool {
	return b.Geometry != nil
}

// ResolvedText returns the text to draw for the block. The translation is used when present
// and it preserves every placeholder of the source text; otherwise the source text is returned
// and mismatch reports whether a translation was rejected.
func (b Block) ResolvedText() (text string, mismatch bool) {
	if b.TranslatedText == nil {
		return b.Text, false
	}
	if strings.Count(*b.TranslatedText, Placeholder) != strings.Count(b.Text, Placeholder) {
		return b.Text, true
	}
	return *b.TranslatedText, false
}

// Marshal serializes the document without any image bytes.
func Marshal(document *Document) ([]byte, error) {
	data, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// Unmarshal parses a document produced by Marshal or by the OCR step. Pages come back without
// images; use Reload to attach them.
func Unmarshal(data []byte) (*Document, error) {
	var document Document
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	for i := range document.Pages {
		if document.Pages[i].Number == 0 {
			document.Pages[i].Number = i + 1
		}
	}
	return &document, nil
}

// Clone returns a deep copy of the document, translations and geometry included.
// Image bytes are shared since stages never write into them.
func (d *Document) Clone() *Document {
	clone := &Document{URI: d.URI, FileFormat: d.FileFormat, Pages: make([]Page, len(d.Pages))}
	for i, page := range d.Pages {
		blocks := make([]Block, len(page.Blocks))
		for j, block := range page.Blocks {
			if block.TranslatedText != nil {
				text := *block.TranslatedText
				block.TranslatedText = &text
			}
			if block.Geometry != nil {
				geometry := *block.Geometry
				geometry.Polygon = slices.Clone(geometry.Polygon)
				block.Geometry = &geometry
			}
			blocks[j] = block
		}
		clone.Pages[i] = page.WithBlocks(blocks)
	}
	return clone
}
