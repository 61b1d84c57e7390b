package impl

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/visionex-project/docrecon/reconstruct/impl/font"
	"github.com/visionex-project/docrecon/reconstruct/impl/storage"
)

// Engine reconstructs documents: it removes the original text from each page image and
// draws the (translated) text back into the same regions.
type Engine struct {
	config Config

	// Registered once and shared by fitting, PDF export and previews.
	fonts *font.Resources

	// Removes the original text pixels according to config.Background.Strategy.
	cleaner Cleaner

	// Used by Save to persist results. May be nil when results are only kept in memory.
	storage storage.Client
}

type Config struct {
	Filter     FilterOptions     `yaml:"filter"`
	Background BackgroundOptions `yaml:"background"`
	Fit        FitOptions        `yaml:"fit"`
	Output     OutputOptions     `yaml:"output"`

	// Horizontal alignment of redrawn text. E.g., center
	Align Align `yaml:"align"`

	// Draws text in the colour sampled from the original ink instead of black.
	PreserveInkColor bool `yaml:"preserve_ink_color"`

	// Number of pages processed concurrently. E.g., 8
	Workers int `yaml:"workers"`
}

type FilterOptions struct {
	// Blocks ranked below a stronger block are dropped under this confidence. E.g., 0.8
	MinConfidence float64 `yaml:"min_confidence"`
	// Two blocks overlapping more than this are both dropped. E.g., 0.35
	MaxIoU float64 `yaml:"max_iou"`
	// Short texts whose length per unit of box aspect exceeds this are noise. E.g., 3
	MaxAspectDiscrepancy float64 `yaml:"max_aspect_discrepancy"`

	// Pixel size of the page, set per page so the aspect check works on the real box shape.
	PageWidth  int `yaml:"-"`
	PageHeight int `yaml:"-"`
}

type BackgroundOptions struct {
	Strategy Strategy `yaml:"strategy"`
	// Normalized padding added around every block before masking. E.g., 0.003
	MaskOffset float64 `yaml:"mask_offset"`
	// Neighbourhood radius of the Telea inpainting in pixels. E.g., 3
	InpaintRadius float64 `yaml:"inpaint_radius"`
}

type FitOptions struct {
	// Accepted rendered width as a fraction of the box width. E.g., 0.86 - 0.98
	MinRatio float64 `yaml:"min_ratio"`
	MaxRatio float64 `yaml:"max_ratio"`
	// Starting font size and step as fractions of the box height. E.g., 0.2, 0.05
	InitialRatio float64 `yaml:"initial_ratio"`
	StepRatio    float64 `yaml:"step_ratio"`
	// Above this fraction of the box height the fitter widens word spacing instead of the font. E.g., 1.1
	MaxFontRatio  float64 `yaml:"max_font_ratio"`
	MaxIterations int     `yaml:"max_iterations"`
	// Line height as a multiple of the font size. E.g., 1.2
	LineSpacing float64 `yaml:"line_spacing"`
}

type OutputOptions struct {
	// Resolution of page images whose header records none (PNG pHYs, JFIF, EXIF). 72 makes one pixel one point.
	PageDPI float64 `yaml:"page_dpi"`
	// Embedded images above this effective resolution are downsampled to DPITarget. E.g., 160, 96
	DPIThreshold float64 `yaml:"dpi_threshold"`
	DPITarget    float64 `yaml:"dpi_target"`
	JPEGQuality  int     `yaml:"jpeg_quality"`
	// Runs pdfcpu optimization on the written PDF.
	Optimize bool `yaml:"optimize"`
	// Prefix of the per-page optional content layer. E.g., "Translation" -> "Translation (Page 1)"
	LayerName string `yaml:"layer_name"`
}

type Strategy string

const (
	// Telea inpainting of every block inside its own sub-image.
	StrategyPerBlock Strategy = "per-block"
	// One Telea pass over the union of all block masks.
	StrategyPerPage Strategy = "per-page"
	// Flat fill with the median background colour of each block.
	StrategyMedian Strategy = "median"
	StrategyNone   Strategy = "none"
)

type Align string

const (
	AlignLeft    Align = "left"
	AlignRight   Align = "right"
	AlignCenter  Align = "center"
	AlignJustify Align = "justify"
)

func DefaultConfig() Config {
	return Config{
		Filter: FilterOptions{
			MinConfidence:        0.8,
			MaxIoU:               0.35,
			MaxAspectDiscrepancy: 3,
		},
		Background: BackgroundOptions{
			Strategy:      StrategyPerPage,
			MaskOffset:    0.003,
			InpaintRadius: 3,
		},
		Fit: FitOptions{
			MinRatio:      0.86,
			MaxRatio:      0.98,
			InitialRatio:  0.2,
			StepRatio:     0.05,
			MaxFontRatio:  1.1,
			MaxIterations: 1000,
			LineSpacing:   1.2,
		},
		Output: OutputOptions{
			PageDPI:      72,
			DPIThreshold: 160,
			DPITarget:    96,
			JPEGQuality:  80,
			Optimize:     true,
			LayerName:    "Translation",
		},
		Align:            AlignCenter,
		PreserveInkColor: true,
		Workers:          runtime.NumCPU(),
	}
}

// LoadConfigFile overlays the YAML file at path onto config. Keys missing from the file keep their value.
func LoadConfigFile(path string, config Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, config.Validate()
}

func (c Config) Validate() error {
	switch c.Background.Strategy {
	case StrategyPerBlock, StrategyPerPage, StrategyMedian, StrategyNone:
	default:
		return fmt.Errorf("unknown background strategy %q", c.Background.Strategy)
	}
	switch c.Align {
	case AlignLeft, AlignRight, AlignCenter, AlignJustify:
	default:
		return fmt.Errorf("unknown alignment %q", c.Align)
	}
	if c.Fit.MinRatio <= 0 || c.Fit.MinRatio > c.Fit.MaxRatio {
		return fmt.Errorf("invalid fit ratio window [%v, %v]", c.Fit.MinRatio, c.Fit.MaxRatio)
	}
	if c.Fit.StepRatio <= 0 || c.Fit.InitialRatio <= 0 {
		return fmt.Errorf("fit ratios must be positive")
	}
	if c.Fit.MaxIterations <= 0 {
		return fmt.Errorf("fit iteration cap must be positive, got %d", c.Fit.MaxIterations)
	}
	if c.Output.PageDPI <= 0 {
		return fmt.Errorf("page DPI must be positive, got %v", c.Output.PageDPI)
	}
	return nil
}

func New(config Config, fonts *font.Resources, storageClient storage.Client) *Engine {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Engine{
		config:  config,
		fonts:   fonts,
		cleaner: NewCleaner(config.Background),
		storage: storageClient,
	}
}
