package document

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader map[string][]byte

func (r mapReader) Read(ctx context.Context, uri string) ([]byte, error) {
	data, ok := r[uri]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func encodedPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buffer bytes.Buffer
	require.NoError(t, png.Encode(&buffer, img))
	return buffer.Bytes()
}

func TestNewGeometryClamps(t *testing.T) {
	testCases := []struct {
		name string
		in   BoundingBox
		want BoundingBox
	}{
		{"inside", BoundingBox{0.1, 0.2, 0.3, 0.4}, BoundingBox{0.1, 0.2, 0.3, 0.4}},
		{"negative origin", BoundingBox{-0.5, -1, 0.3, 0.4}, BoundingBox{0, 0, 0.3, 0.4}},
		{"overflowing size", BoundingBox{0.8, 0.9, 0.5, 0.5}, BoundingBox{0.8, 0.9, 0.2, 0.1}},
		{"negative size", BoundingBox{0.5, 0.5, -0.1, -0.2}, BoundingBox{0.5, 0.5, 0, 0}},
		{"origin past edge", BoundingBox{1.5, 2, 0.1, 0.1}, BoundingBox{1, 1, 0, 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			geometry := NewGeometry(tc.in.Left, tc.in.Top, tc.in.Width, tc.in.Height)
			assert.InDelta(t, tc.want.Left, geometry.BoundingBox.Left, 1e-12)
			assert.InDelta(t, tc.want.Top, geometry.BoundingBox.Top, 1e-12)
			assert.InDelta(t, tc.want.Width, geometry.BoundingBox.Width, 1e-12)
			assert.InDelta(t, tc.want.Height, geometry.BoundingBox.Height, 1e-12)
		})
	}
}

func TestGeometryUnmarshalClamps(t *testing.T) {
	var block Block
	err := unmarshalBlock(t, `{"text":"a","confidence":0.9,"geometry":{"BoundingBox":{"Left":0.9,"Top":-0.1,"Width":0.5,"Height":0.2}}}`, &block)

	require.NoError(t, err)
	require.NotNil(t, block.Geometry)
	assert.InDelta(t, 0.1, block.Geometry.BoundingBox.Width, 1e-12)
	assert.Equal(t, 0.0, block.Geometry.BoundingBox.Top)
}

func unmarshalBlock(t *testing.T, data string, block *Block) error {
	t.Helper()
	document, err := Unmarshal([]byte(`{"uri":"file:///a.png","pages":[{"page_number":1,"blocks":[` + data + `]}]}`))
	if err != nil {
		return err
	}
	*block = document.Pages[0].Blocks[0]
	return nil
}

func TestIoU(t *testing.T) {
	a := BoundingBox{0, 0, 0.2, 0.2}

	assert.InDelta(t, 1.0, IoU(a, a), 1e-6)
	assert.InDelta(t, 0.0, IoU(a, BoundingBox{0.5, 0.5, 0.1, 0.1}), 1e-12)
	// Half overlap along x: inter 0.02, union 0.06.
	assert.InDelta(t, 1.0/3.0, IoU(a, BoundingBox{0.1, 0, 0.2, 0.2}), 1e-6)
	assert.Equal(t, 0.0, IoU(BoundingBox{}, BoundingBox{}))
}

func TestPaddedPixels(t *testing.T) {
	box := BoundingBox{0.1, 0.1, 0.3, 0.05}

	assert.Equal(t, image.Rect(100, 100, 400, 150), box.Pixels(1000, 1000))
	assert.Equal(t, image.Rect(97, 97, 403, 153), box.Padded(0.003).Pixels(1000, 1000))
	assert.Equal(t, image.Rect(0, 0, 10, 10), BoundingBox{0, 0, 1, 1}.Padded(0.5).Pixels(10, 10))
}

func TestMarshalRoundTrip(t *testing.T) {
	translated := "Hallo {}"
	document := &Document{
		URI:        "file:///tmp/scan.png",
		FileFormat: "png",
		Pages: []Page{{
			Number: 1,
			Image:  []byte{1, 2, 3},
			Blocks: []Block{
				{Text: "Hello {}", TranslatedText: &translated, Confidence: 0.95, Geometry: NewGeometry(0.1, 0.2, 0.3, 0.04)},
				{Text: "floating", Confidence: 0.5},
			},
		}},
	}

	data, err := Marshal(document)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AQID", "image bytes must not be serialized")

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.Pages[0].Image)

	decoded.Pages[0].Image = document.Pages[0].Image
	assert.Equal(t, document, decoded)
}

func TestResolvedText(t *testing.T) {
	ok := "Summe: {} EUR"
	dropped := "Summe: EUR"

	text, mismatch := Block{Text: "Total: {} EUR", TranslatedText: &ok}.ResolvedText()
	assert.Equal(t, ok, text)
	assert.False(t, mismatch)

	text, mismatch = Block{Text: "Total: {} EUR", TranslatedText: &dropped}.ResolvedText()
	assert.Equal(t, "Total: {} EUR", text)
	assert.True(t, mismatch)

	text, mismatch = Block{Text: "Total"}.ResolvedText()
	assert.Equal(t, "Total", text)
	assert.False(t, mismatch)
}

func TestLoadRasterImage(t *testing.T) {
	data := encodedPNG(t, 20, 10)
	reader := mapReader{"file:///tmp/page.png": data}

	document, err := Load(context.Background(), "file:///tmp/page.png", reader)

	require.NoError(t, err)
	assert.Equal(t, "png", document.FileFormat)
	require.Len(t, document.Pages, 1)
	assert.Equal(t, 1, document.Pages[0].Number)
	assert.Equal(t, data, document.Pages[0].Image)
	assert.Empty(t, document.Pages[0].Blocks)
}

func TestLoadRejectsBadSources(t *testing.T) {
	reader := mapReader{"file:///tmp/text.txt": []byte("not an image")}

	testCases := []struct {
		name string
		uri  string
	}{
		{"bare path", "/tmp/page.png"},
		{"unsupported scheme", "s3://bucket/page.png"},
		{"missing object", "file:///tmp/missing.png"},
		{"undecodable", "file:///tmp/text.txt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), tc.uri, reader)
			assert.ErrorIs(t, err, ErrSourceUnavailable)
		})
	}
}

func TestReloadAttachesImages(t *testing.T) {
	data := encodedPNG(t, 8, 8)
	reader := mapReader{"gs://bucket/page.png": data}
	document, err := Unmarshal([]byte(`{"uri":"gs://bucket/page.png","pages":[{"page_number":1,"blocks":[]}]}`))
	require.NoError(t, err)

	require.NoError(t, Reload(context.Background(), document, reader))

	assert.Equal(t, data, document.Pages[0].Image)
	assert.Equal(t, "png", document.FileFormat)
}

func TestReloadPageCountMismatch(t *testing.T) {
	reader := mapReader{"file:///a.png": encodedPNG(t, 4, 4)}
	document := &Document{URI: "file:///a.png", Pages: []Page{{Number: 1}, {Number: 2}}}

	err := Reload(context.Background(), document, reader)

	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestClone(t *testing.T) {
	translation := "A"
	geometry := NewGeometry(0.1, 0.2, 0.3, 0.4)
	geometry.Polygon = []Point{{X: 0.1, Y: 0.2}}
	document := &Document{URI: "file:///a.png", Pages: []Page{{Number: 1, Blocks: []Block{
		{Text: "a", TranslatedText: &translation, Geometry: geometry},
		{Text: "no geometry"},
	}}}}

	clone := document.Clone()
	cloned := &clone.Pages[0].Blocks[0]
	cloned.Text = "b"
	*cloned.TranslatedText = "B"
	cloned.Geometry.BoundingBox.Left = 0.5
	cloned.Geometry.Polygon[0].X = 0.9

	original := document.Pages[0].Blocks[0]
	assert.Equal(t, "a", original.Text)
	assert.Equal(t, "A", *original.TranslatedText)
	assert.Equal(t, 0.1, original.Geometry.BoundingBox.Left)
	assert.Equal(t, 0.1, original.Geometry.Polygon[0].X)
	assert.Nil(t, clone.Pages[0].Blocks[1].TranslatedText)
	assert.Nil(t, clone.Pages[0].Blocks[1].Geometry)
}
