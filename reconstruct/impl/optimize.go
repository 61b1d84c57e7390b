package impl

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	xdraw "golang.org/x/image/draw"

	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

// embeddableImage returns page image bytes the PDF writer accepts, together with their fpdf type.
// Images whose resolution on a page of pageWidth points exceeds the threshold are downsampled
// and stored as JPEG; everything else is kept (JPEG) or re-encoded as 8-bit PNG.
// E.g., a 2480 px wide scan on a 595 pt page is 300 DPI -> resampled to 96 DPI
func embeddableImage(data []byte, pageWidth float64, options OutputOptions) ([]byte, string, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image config: %w", err)
	}

	dpi := float64(config.Width) / (pageWidth / 72)
	if options.DPIThreshold > 0 && dpi > options.DPIThreshold {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode image: %w", err)
		}
		scale := options.DPITarget / dpi
		width := max(int(math.Round(float64(config.Width)*scale)), 1)
		height := max(int(math.Round(float64(config.Height)*scale)), 1)
		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), xdraw.Src, nil)

		var buffer bytes.Buffer
		if err := jpeg.Encode(&buffer, resized, &jpeg.Options{Quality: options.JPEGQuality}); err != nil {
			return nil, "", fmt.Errorf("failed to encode JPEG: %w", err)
		}
		return buffer.Bytes(), "JPG", nil
	}

	if format == "jpeg" {
		return data, "JPG", nil
	}
	// The PDF writer rejects interlaced and 16-bit PNGs, so every other raster is normalized.
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, toNRGBA(img)); err != nil {
		return nil, "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buffer.Bytes(), "PNG", nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	bounds := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, xdraw.Src)
	return nrgba
}

// optimizePDF runs pdfcpu's optimizer (duplicate resources, unused objects) over a written PDF.
func optimizePDF(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &buffer, document.PDFConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to optimize PDF: %w", err)
	}
	return buffer.Bytes(), nil
}
