package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"

	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

// DocumentAIClient is an interface for the DocumentProcessorClient.
// Ref: https://pkg.go.dev/cloud.google.com/go/documentai
// This interface is used for mocking the documentai.DocumentProcessorClient in tests.
type DocumentAIClient interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
}

type ProcessorSpec struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

func (s ProcessorSpec) Name() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", s.ProjectID, s.Location, s.ProcessorID)
}

type documentAIProvider struct {
	client    DocumentAIClient
	processor ProcessorSpec
}

// NewDocumentAI returns a provider that turns every line of a Document AI OCR result into a block.
func NewDocumentAI(client DocumentAIClient, processor ProcessorSpec) Provider {
	return &documentAIProvider{client: client, processor: processor}
}

func (d *documentAIProvider) Detect(ctx context.Context, image []byte) ([]document.Block, error) {
	mimeType, err := mimeTypeOf(image)
	if err != nil {
		return nil, errDetect("Document AI", err)
	}
	request := &documentaipb.ProcessRequest{
		Name: d.processor.Name(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  image,
				MimeType: mimeType,
			},
		},
	}
	response, err := d.client.ProcessDocument(ctx, request)
	if err != nil {
		return nil, errDetect("Document AI", err)
	}
	return documentAIBlocks(response.GetDocument()), nil
}

func mimeTypeOf(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to detect image format: %w", err)
	}
	return "image/" + format, nil
}

// Document structure:
// Document (Text)
//
//	└── Pages []Document_Page (Dimension)
//	     └── Lines []Document_Page_Line
//	          └── Layout
//	               ├── TextAnchor
//	               │    └── TextSegments []TextAnchor_TextSegment (StartIndex, EndIndex)
//	               ├── Confidence
//	               └── BoundingPoly (NormalizedVertices, Vertices)
func documentAIBlocks(doc *documentaipb.Document) []document.Block {
	text := []rune(doc.GetText())
	var blocks []document.Block
	for _, page := range doc.GetPages() {
		width := float64(page.GetDimension().GetWidth())
		height := float64(page.GetDimension().GetHeight())
		for _, line := range page.GetLines() {
			layout := line.GetLayout()
			lineText := strings.TrimSpace(anchoredText(text, layout.GetTextAnchor()))
			if lineText == "" {
				continue
			}

			extent := emptyBounds()
			for _, vertex := range layout.GetBoundingPoly().GetNormalizedVertices() {
				extent = extent.extend(float64(vertex.GetX()), float64(vertex.GetY()))
			}
			if extent.isEmpty() {
				for _, vertex := range layout.GetBoundingPoly().GetVertices() {
					extent = extent.extend(normalize(float64(vertex.GetX()), width), normalize(float64(vertex.GetY()), height))
				}
			}

			block := document.Block{Text: lineText, Confidence: float64(layout.GetConfidence())}
			if !extent.isEmpty() {
				block.Geometry = extent.geometry()
			}
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func anchoredText(text []rune, anchor *documentaipb.Document_TextAnchor) string {
	var builder strings.Builder
	for _, segment := range anchor.GetTextSegments() {
		start, end := segment.GetStartIndex(), segment.GetEndIndex()
		if start < 0 || end > int64(len(text)) || start > end {
			continue
		}
		builder.WriteString(string(text[start:end]))
	}
	return builder.String()
}
