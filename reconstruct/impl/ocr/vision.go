package ocr

import (
	"context"
	"strings"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"

	"github.com/visionex-project/docrecon/pkg/utils"
	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

// VisionClient is an interface for the vision.ImageAnnotatorClient
// Ref: https://pkg.go.dev/cloud.google.com/go/vision/apiv1
// This interface is used for mocking the vision.ImageAnnotatorClient in unit tests.
type VisionClient interface {
	DetectDocumentText(ctx context.Context, image *visionpb.Image, imageContext *visionpb.ImageContext, opts ...gax.CallOption) (*visionpb.TextAnnotation, error)
}

type visionProvider struct {
	client VisionClient
	// E.g., ["uk"]
	languageHints []string
}

// NewVision returns a provider that groups the words Cloud Vision detects into lines.
func NewVision(client VisionClient, languageHints []string) Provider {
	return &visionProvider{client: client, languageHints: languageHints}
}

func (v *visionProvider) Detect(ctx context.Context, image []byte) ([]document.Block, error) {
	var imageContext *visionpb.ImageContext
	if len(v.languageHints) > 0 {
		imageContext = &visionpb.ImageContext{LanguageHints: v.languageHints}
	}
	annotation, err := v.client.DetectDocumentText(ctx, &visionpb.Image{Content: image}, imageContext)
	if err != nil {
		return nil, errDetect("Cloud Vision", err)
	}
	return visionBlocks(annotation), nil
}

// visionLine collects the words of one line until a break ends it.
type visionLine struct {
	text       strings.Builder
	confidence float64
	words      int
	extent     bounds
}

// visionBlocks turns every line of every paragraph into a block.
// Document structure:
// TextAnnotation
//
//	└── Pages []Page (Width, Height)
//	     └── Blocks []Block
//	          └── Paragraphs []Paragraph
//	               └── Words []Word (Confidence, BoundingBox)
//	                    └── Symbols []Symbol (Text, Property.DetectedBreak)
func visionBlocks(annotation *visionpb.TextAnnotation) []document.Block {
	var blocks []document.Block
	for _, page := range annotation.GetPages() {
		width, height := float64(page.GetWidth()), float64(page.GetHeight())
		paragraphs := utils.FlatMap(page.GetBlocks(), func(block *visionpb.Block) []*visionpb.Paragraph {
			return block.GetParagraphs()
		})
		for _, paragraph := range paragraphs {
			line := &visionLine{extent: emptyBounds()}
			for _, word := range paragraph.GetWords() {
				symbols := word.GetSymbols()
				if len(symbols) == 0 {
					continue
				}
				for _, symbol := range symbols {
					line.text.WriteString(symbol.GetText())
				}
				line.confidence += float64(word.GetConfidence())
				line.words++
				for _, vertex := range word.GetBoundingBox().GetVertices() {
					line.extent = line.extent.extend(normalize(float64(vertex.GetX()), width), normalize(float64(vertex.GetY()), height))
				}

				switch symbols[len(symbols)-1].GetProperty().GetDetectedBreak().GetType() {
				case visionpb.TextAnnotation_DetectedBreak_SPACE, visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
					line.text.WriteString(" ")
				case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
					blocks = appendLine(blocks, line)
					line = &visionLine{extent: emptyBounds()}
				}
			}
			// The end of a paragraph ends its last line.
			blocks = appendLine(blocks, line)
		}
	}
	return blocks
}

func appendLine(blocks []document.Block, line *visionLine) []document.Block {
	text := strings.TrimSpace(line.text.String())
	if line.words == 0 || text == "" {
		return blocks
	}
	block := document.Block{Text: text, Confidence: line.confidence / float64(line.words)}
	if !line.extent.isEmpty() {
		block.Geometry = line.extent.geometry()
	}
	return append(blocks, block)
}

