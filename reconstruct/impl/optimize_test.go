package impl

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddableImageDownsamplesDenseScans(t *testing.T) {
	// 2000 px over a 595 pt page is about 242 DPI.
	data := encodePNG(t, filledImage(2000, 1000, white))

	embedded, imageType, err := embeddableImage(data, 595, DefaultConfig().Output)
	require.NoError(t, err)

	assert.Equal(t, "JPG", imageType)
	config, format, err := image.DecodeConfig(bytes.NewReader(embedded))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.InDelta(t, 793, config.Width, 1)
	assert.InDelta(t, 397, config.Height, 1)
}

func TestEmbeddableImageKeepsLowResolution(t *testing.T) {
	img := filledImage(300, 200, white)
	var jpegData bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegData, img, nil))

	embedded, imageType, err := embeddableImage(jpegData.Bytes(), 300, DefaultConfig().Output)
	require.NoError(t, err)
	assert.Equal(t, "JPG", imageType)
	assert.Equal(t, jpegData.Bytes(), embedded)

	embedded, imageType, err = embeddableImage(encodePNG(t, img), 300, DefaultConfig().Output)
	require.NoError(t, err)
	assert.Equal(t, "PNG", imageType)
	assert.Equal(t, img.Bounds(), decodePNG(t, embedded).Bounds())
}

func TestEmbeddableImageRejectsGarbage(t *testing.T) {
	_, _, err := embeddableImage([]byte("not an image"), 300, DefaultConfig().Output)
	assert.Error(t, err)
}
