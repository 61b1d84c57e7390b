package font

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func TestMeasureStringScalesLinearly(t *testing.T) {
	resources, err := Default()
	require.NoError(t, err)

	small := resources.MeasureString("Hello World", 10)
	large := resources.MeasureString("Hello World", 30)

	assert.Greater(t, small, 0.0)
	assert.InDelta(t, small*3, large, 1e-9)
	assert.Equal(t, 0.0, resources.MeasureString("", 12))
	assert.Greater(t, resources.MeasureString("Hello  World", 10), small, "extra spaces widen the text")
}

func TestMeasureStringCacheIsBounded(t *testing.T) {
	resources, err := Default()
	require.NoError(t, err)
	expected := resources.MeasureString("word 0", 10)

	for i := 0; i < 3*maxCachedWidths; i++ {
		resources.MeasureString("word "+strconv.Itoa(i), 10)
		require.LessOrEqual(t, len(resources.widths), maxCachedWidths)
	}

	assert.InDelta(t, expected, resources.MeasureString("word 0", 10), 1e-9)
}

func TestMetrics(t *testing.T) {
	resources, err := Default()
	require.NoError(t, err)

	ascent, descent := resources.Ascent(20), resources.Descent(20)

	assert.Greater(t, ascent, 10.0)
	assert.Less(t, ascent, 25.0)
	assert.Greater(t, descent, 0.0)
	assert.Less(t, descent, ascent)
}

func TestNewLoadsFamilyFromDirectory(t *testing.T) {
	directory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(directory, "SansSerif-Regular.ttf"), goregular.TTF, 0o644))

	resources, err := New(directory, "SansSerif")

	require.NoError(t, err)
	assert.Equal(t, "SansSerif", resources.Family)
	assert.Equal(t, goregular.TTF, resources.TTF)
}

func TestNewMissingFont(t *testing.T) {
	_, err := New(t.TempDir(), "Serif")

	assert.Error(t, err)
}

func TestNewWithoutDirectoryUsesDefault(t *testing.T) {
	resources, err := New("", "ignored")

	require.NoError(t, err)
	assert.Equal(t, DefaultFamily, resources.Family)
}
