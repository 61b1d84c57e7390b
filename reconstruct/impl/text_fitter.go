package impl

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/visionex-project/docrecon/pkg/utils"
)

// Fonts never shrink below this size in points.
const minFontSize = 1.0

// Measurer returns the rendered width of text at a font size, in the same unit as the size.
type Measurer interface {
	MeasureString(text string, size float64) float64
}

// TextMetrics adds the vertical font metrics needed to place baselines.
type TextMetrics interface {
	Measurer
	Ascent(size float64) float64
	Descent(size float64) float64
}

// Fit is the outcome of sizing a text for a box.
type Fit struct {
	FontSize float64
	// The text with words joined by Spacing spaces.
	Text    string
	Spacing int
	// Number of sizing steps taken. E.g., 23
	Iterations int
	// The rendered width landed inside the accepted window.
	Converged bool
	// The iteration cap was reached; the last state is used as is.
	Exhausted bool
}

// FitText grows the font from a fraction of the box height until the rendered width falls inside
// [MinRatio, MaxRatio] of the box width. Once the font outgrows the box height, word spacing is
// widened instead. Overflowing the window undoes one step and stops.
func FitText(text string, width, height float64, measurer Measurer, options FitOptions) Fit {
	text = norm.NFC.String(text)
	fit := Fit{FontSize: math.Max(height*options.InitialRatio, minFontSize), Text: text, Spacing: 1}
	if width <= 0 || height <= 0 {
		return fit
	}

	words := strings.Fields(text)
	step := height * options.StepRatio
	for fit.Iterations < options.MaxIterations {
		fit.Iterations++
		rendered := measurer.MeasureString(fit.Text, fit.FontSize)

		if rendered > width*options.MaxRatio {
			if fit.Spacing > 1 && len(words) > 1 {
				fit.Spacing--
				fit.Text = joinWords(words, fit.Spacing)
			} else {
				fit.FontSize = math.Max(fit.FontSize-step, minFontSize)
			}
			return fit
		}
		if rendered >= width*options.MinRatio {
			fit.Converged = true
			return fit
		}

		if fit.FontSize > height*options.MaxFontRatio {
			// A single word can only grow taller, which the box height does not allow.
			if len(words) <= 1 {
				return fit
			}
			fit.Spacing++
			fit.Text = joinWords(words, fit.Spacing)
		} else {
			fit.FontSize += step
		}
	}
	fit.Exhausted = true
	return fit
}

func joinWords(words []string, spacing int) string {
	return strings.Join(words, strings.Repeat(" ", spacing))
}

// Rect is a box in page points with the origin at the top-left.
type Rect struct {
	X, Y, Width, Height float64
}

// Span is a run of text drawn starting at X on its line's baseline.
type Span struct {
	Text string
	X    float64
}

type Line struct {
	Spans    []Span
	Baseline float64
}

// TextLayout is a fitted text broken into positioned lines.
type TextLayout struct {
	FontSize float64
	Lines    []Line
}

// LayoutText wraps the fitted text to the width of rect and centres the lines vertically.
// Justified text spreads its words over the full width on every line but the last.
func LayoutText(fit Fit, rect Rect, align Align, metrics TextMetrics, lineSpacing float64) TextLayout {
	layout := TextLayout{FontSize: fit.FontSize}
	words := strings.Fields(fit.Text)
	if len(words) == 0 {
		return layout
	}

	separator := strings.Repeat(" ", max(fit.Spacing, 1))
	measure := func(text string) float64 {
		return metrics.MeasureString(text, fit.FontSize)
	}
	lines := wrapWords(words, separator, rect.Width, measure)

	lineHeight := fit.FontSize * lineSpacing
	ascent := metrics.Ascent(fit.FontSize)
	glyphHeight := ascent + metrics.Descent(fit.FontSize)
	top := rect.Y + (rect.Height-lineHeight*float64(len(lines)))/2

	for i, lineWords := range lines {
		baseline := top + float64(i)*lineHeight + (lineHeight-glyphHeight)/2 + ascent
		text := strings.Join(lineWords, separator)
		width := measure(text)

		var spans []Span
		switch {
		case align == AlignJustify && i < len(lines)-1 && len(lineWords) > 1:
			wordsWidth := utils.Reduce(lineWords, func(total float64, word string) float64 {
				return total + measure(word)
			}, 0.0)
			gap := (rect.Width - wordsWidth) / float64(len(lineWords)-1)
			x := rect.X
			for _, word := range lineWords {
				spans = append(spans, Span{Text: word, X: x})
				x += measure(word) + gap
			}
		case align == AlignRight:
			spans = []Span{{Text: text, X: rect.X + rect.Width - width}}
		case align == AlignCenter:
			spans = []Span{{Text: text, X: rect.X + (rect.Width-width)/2}}
		default:
			spans = []Span{{Text: text, X: rect.X}}
		}
		layout.Lines = append(layout.Lines, Line{Spans: spans, Baseline: baseline})
	}
	return layout
}

// wrapWords greedily fills lines up to maxWidth. A word wider than maxWidth gets a line of its own.
func wrapWords(words []string, separator string, maxWidth float64, measure func(string) float64) [][]string {
	var lines [][]string
	var current []string
	for _, word := range words {
		candidate := append(append([]string{}, current...), word)
		if len(current) > 0 && measure(strings.Join(candidate, separator)) > maxWidth {
			lines = append(lines, current)
			current = []string{word}
			continue
		}
		current = candidate
	}
	return append(lines, current)
}
