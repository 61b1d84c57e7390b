package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"net/url"

	// Decoders for the raster formats accepted as page images.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const FileFormatPDF = "pdf"

// Reader fetches the raw bytes behind a URI.
type Reader interface {
	Read(ctx context.Context, uri string) ([]byte, error)
}

// ValidateURI accepts file:// and gs:// URIs only.
// E.g., "/tmp/a.png" -> error, "s3://bucket/a.png" -> error
func ValidateURI(uri string) (*url.URL, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URI %q: %v", ErrSourceUnavailable, uri, err)
	}
	switch parsed.Scheme {
	case "file", "gs":
		return parsed, nil
	case "":
		return nil, fmt.Errorf("%w: URI %q has no scheme", ErrSourceUnavailable, uri)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrSourceUnavailable, parsed.Scheme)
	}
}

// Load reads the source behind uri and splits it into pages without any blocks.
func Load(ctx context.Context, uri string, reader Reader) (*Document, error) {
	if _, err := ValidateURI(uri); err != nil {
		return nil, err
	}
	data, err := reader.Read(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrSourceUnavailable, uri, err)
	}

	format, images, err := decodePages(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	document := &Document{URI: uri, FileFormat: format, Pages: make([]Page, len(images))}
	for i, img := range images {
		document.Pages[i] = Page{Number: i + 1, Image: img}
	}
	return document, nil
}

// Reload attaches page images to a document that was deserialized from JSON.
// Pages are matched by number; a page count mismatch is an error.
func Reload(ctx context.Context, document *Document, reader Reader) error {
	loaded, err := Load(ctx, document.URI, reader)
	if err != nil {
		return err
	}
	if len(loaded.Pages) != len(document.Pages) {
		return fmt.Errorf("%w: %s has %d pages, document has %d", ErrSourceUnavailable, document.URI, len(loaded.Pages), len(document.Pages))
	}

	images := make(map[int][]byte, len(loaded.Pages))
	for _, page := range loaded.Pages {
		images[page.Number] = page.Image
	}
	for i, page := range document.Pages {
		img, ok := images[page.Number]
		if !ok {
			return fmt.Errorf("%w: page %d not found in %s", ErrSourceUnavailable, page.Number, document.URI)
		}
		document.Pages[i].Image = img
	}
	if document.FileFormat == "" {
		document.FileFormat = loaded.FileFormat
	}
	return nil
}

func decodePages(data []byte) (string, [][]byte, error) {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		pages, err := pdfPages(data)
		if err != nil {
			return "", nil, err
		}
		return FileFormatPDF, pages, nil
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("failed to detect image format: %w", err)
	}
	return format, [][]byte{data}, nil
}

// Each PDF page is represented by its largest embedded raster, which is what a scanned document holds.
func pdfPages(data []byte) ([][]byte, error) {
	conf := PDFConfiguration()
	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to count PDF pages: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	extracted, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to extract PDF images: %w", err)
	}

	pages := make([][]byte, count)
	areas := make([]int, count)
	for _, imagesByObject := range extracted {
		for _, img := range imagesByObject {
			index := img.PageNr - 1
			if index < 0 || index >= count {
				continue
			}
			raw, err := io.ReadAll(img)
			if err != nil {
				log.Printf("Failed to read image on page %d: %v", img.PageNr, err)
				continue
			}
			encoded, area, err := normalizedRaster(raw)
			if err != nil {
				log.Printf("Failed to decode %s image on page %d: %v", img.FileType, img.PageNr, err)
				continue
			}
			if area > areas[index] {
				pages[index], areas[index] = encoded, area
			}
		}
	}

	for i, page := range pages {
		if page == nil {
			return nil, fmt.Errorf("PDF page %d has no raster image", i+1)
		}
	}
	return pages, nil
}

// Keeps formats the rest of the pipeline decodes natively and converts the others to PNG.
func normalizedRaster(raw []byte) ([]byte, int, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	area := config.Width * config.Height
	if format == "png" || format == "jpeg" {
		return raw, area, nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return nil, 0, err
	}
	return buffer.Bytes(), area, nil
}

// PDFConfiguration returns a relaxed pdfcpu configuration that never touches the user config directory.
func PDFConfiguration() *model.Configuration {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
