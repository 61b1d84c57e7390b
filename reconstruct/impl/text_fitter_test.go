package impl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionex-project/docrecon/reconstruct/impl/font"
)

func TestFitTextHelloWorld(t *testing.T) {
	fonts, err := font.Default()
	require.NoError(t, err)

	fit := FitText("Hello World", 200, 40, fonts, DefaultConfig().Fit)

	require.True(t, fit.Converged)
	assert.False(t, fit.Exhausted)
	width := fonts.MeasureString(fit.Text, fit.FontSize)
	assert.GreaterOrEqual(t, width, 172.0)
	assert.LessOrEqual(t, width, 196.0)
}

func TestFitTextOverflowShrinksOnce(t *testing.T) {
	fit := FitText("Overflowing", 100, 40, constantMeasurer(1000), DefaultConfig().Fit)

	assert.Equal(t, 1, fit.Iterations)
	assert.False(t, fit.Converged)
	assert.InDelta(t, 6, fit.FontSize, 1e-9)
}

func TestFitTextNeverShrinksBelowMinimum(t *testing.T) {
	fit := FitText("Overflowing", 100, 2, constantMeasurer(1000), DefaultConfig().Fit)

	assert.Equal(t, minFontSize, fit.FontSize)
}

func TestFitTextSingleWordStopsAtHeight(t *testing.T) {
	fit := FitText("I", 200, 40, constantMeasurer(0), DefaultConfig().Fit)

	assert.False(t, fit.Converged)
	assert.False(t, fit.Exhausted)
	assert.Equal(t, 1, fit.Spacing)
	assert.InDelta(t, 46, fit.FontSize, 1e-9)
}

func TestFitTextWidensSpacing(t *testing.T) {
	options := DefaultConfig().Fit

	fit := FitText("a b", 200, 10, runeMeasurer{}, options)

	require.True(t, fit.Converged)
	assert.Greater(t, fit.Spacing, 1)
	assert.Equal(t, "a"+strings.Repeat(" ", fit.Spacing)+"b", fit.Text)
	assert.LessOrEqual(t, fit.FontSize, 10*options.MaxFontRatio+10*options.StepRatio)
	width := runeMeasurer{}.MeasureString(fit.Text, fit.FontSize)
	assert.GreaterOrEqual(t, width, 172.0)
	assert.LessOrEqual(t, width, 196.0)
}

func TestFitTextExhausted(t *testing.T) {
	options := DefaultConfig().Fit
	options.MaxIterations = 50

	fit := FitText("never wide enough", 200, 40, constantMeasurer(0), options)

	assert.True(t, fit.Exhausted)
	assert.False(t, fit.Converged)
	assert.Equal(t, 50, fit.Iterations)
}

func TestFitTextEmptyBox(t *testing.T) {
	fit := FitText("Hello", 0, 40, runeMeasurer{}, DefaultConfig().Fit)

	assert.Equal(t, 0, fit.Iterations)
	assert.False(t, fit.Converged)
	assert.Equal(t, "Hello", fit.Text)
}

func TestFitTextNormalizesText(t *testing.T) {
	fit := FitText("Cafe\u0301", 200, 40, runeMeasurer{}, DefaultConfig().Fit)

	assert.Equal(t, "Caf\u00e9", fit.Text)
}

func TestLayoutTextAlignment(t *testing.T) {
	rect := Rect{X: 10, Y: 20, Width: 100, Height: 40}
	fit := Fit{FontSize: 10, Text: "abcd", Spacing: 1}

	tests := []struct {
		align Align
		x     float64
	}{
		{AlignLeft, 10},
		{AlignCenter, 50},
		{AlignRight, 90},
		{AlignJustify, 10},
	}
	for _, tt := range tests {
		t.Run(string(tt.align), func(t *testing.T) {
			layout := LayoutText(fit, rect, tt.align, runeMeasurer{}, 1.2)

			require.Len(t, layout.Lines, 1)
			assert.Equal(t, []Span{{Text: "abcd", X: tt.x}}, layout.Lines[0].Spans)
			// Line box 12 centred in 40 starts at 34; the glyphs sit 1 below it with ascent 8.
			assert.InDelta(t, 43, layout.Lines[0].Baseline, 1e-9)
		})
	}
}

func TestLayoutTextJustifyWraps(t *testing.T) {
	rect := Rect{X: 10, Y: 0, Width: 40, Height: 100}
	fit := Fit{FontSize: 10, Text: "aa bb cc dd", Spacing: 1}

	layout := LayoutText(fit, rect, AlignJustify, runeMeasurer{}, 1.2)

	require.Len(t, layout.Lines, 2)
	assert.Equal(t, []Span{{Text: "aa", X: 10}, {Text: "bb", X: 25}, {Text: "cc", X: 40}}, layout.Lines[0].Spans)
	assert.Equal(t, []Span{{Text: "dd", X: 10}}, layout.Lines[1].Spans)
	assert.InDelta(t, 12, layout.Lines[1].Baseline-layout.Lines[0].Baseline, 1e-9)
}

func TestLayoutTextKeepsSpacing(t *testing.T) {
	rect := Rect{X: 0, Y: 0, Width: 200, Height: 20}
	fit := Fit{FontSize: 10, Text: "a   b", Spacing: 3}

	layout := LayoutText(fit, rect, AlignLeft, runeMeasurer{}, 1.2)

	require.Len(t, layout.Lines, 1)
	assert.Equal(t, "a   b", layout.Lines[0].Spans[0].Text)
}

func TestLayoutTextEmpty(t *testing.T) {
	layout := LayoutText(Fit{FontSize: 10, Text: "  "}, Rect{Width: 100, Height: 20}, AlignLeft, runeMeasurer{}, 1.2)

	assert.Empty(t, layout.Lines)
}
