package font

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Widths are measured once at this size and scaled linearly, which holds because
// hinting is disabled for the reference face.
const referenceSize = 1000

// DefaultFamily is the family name the default face is registered under.
const DefaultFamily = "GoRegular"

// Bound of the advance width cache. The cache starts over once full.
const maxCachedWidths = 4096

// Resources is the font handle shared by text fitting, PDF export and previews.
// It is registered once at startup and is safe for concurrent use.
type Resources struct {
	// Name used when registering the font with a PDF writer. E.g., "SansSerif"
	Family string
	// Raw TTF bytes, embedded (and subset) into every produced PDF.
	TTF  []byte
	Font *truetype.Font

	mu     sync.Mutex
	face   font.Face
	widths map[string]float64
}

// New loads the regular face of the font family stored under basePath.
// An empty basePath selects the bundled Go Regular font.
// E.g., New("fonts", "SansSerif") reads fonts/SansSerif-Regular.ttf
func New(basePath string, family string) (*Resources, error) {
	if basePath == "" {
		return Default()
	}

	path := filepath.Join(basePath, family+"-Regular.ttf")
	ttf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s regular font: %w", family, err)
	}
	return parse(family, ttf)
}

// Default returns the bundled Go Regular font.
func Default() (*Resources, error) {
	return parse(DefaultFamily, goregular.TTF)
}

func parse(family string, ttf []byte) (*Resources, error) {
	parsed, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s font: %w", family, err)
	}
	return &Resources{
		Family: family,
		TTF:    ttf,
		Font:   parsed,
		face: truetype.NewFace(parsed, &truetype.Options{
			Size:    referenceSize,
			DPI:     72,
			Hinting: font.HintingNone,
		}),
		widths: map[string]float64{},
	}, nil
}

// MeasureString returns the advance width of text in points at the given size.
// Kerning is not applied, matching how the PDF writer places glyphs.
func (r *Resources) MeasureString(text string, size float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	width, ok := r.widths[text]
	if !ok {
		if len(r.widths) >= maxCachedWidths {
			clear(r.widths)
		}
		var advance fixed.Int26_6
		for _, char := range text {
			glyphAdvance, _ := r.face.GlyphAdvance(char)
			advance += glyphAdvance
		}
		width = float64(advance) / 64 / referenceSize
		r.widths[text] = width
	}
	return width * size
}

// Ascent returns the distance from the baseline to the top of the tallest glyphs at size.
func (r *Resources) Ascent(size float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.face.Metrics().Ascent) / 64 / referenceSize * size
}

// Descent returns the distance from the baseline to the bottom of the lowest glyphs at size.
func (r *Resources) Descent(size float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.face.Metrics().Descent) / 64 / referenceSize * size
}

// Face returns a new face for rasterizing at size. Faces are not safe for concurrent use.
func (r *Resources) Face(size float64) font.Face {
	return truetype.NewFace(r.Font, &truetype.Options{Size: size})
}
