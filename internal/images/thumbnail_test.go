package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int, fill color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMakeThumbnailFitsWithinBounds(t *testing.T) {
	data := encodePNG(t, 1024, 768, color.NRGBA{R: 200, G: 30, B: 30, A: 255})

	thumb, err := MakeThumbnail(data)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)

	bounds := decoded.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), 256)
	assert.LessOrEqual(t, bounds.Dy(), 256)
	// Aspect ratio 4:3 preserved.
	assert.Equal(t, 256, bounds.Dx())
	assert.Equal(t, 192, bounds.Dy())
}

func TestMakeThumbnailFlattensTransparency(t *testing.T) {
	data := encodePNG(t, 64, 64, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	thumb, err := MakeThumbnail(data)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)

	// A fully transparent source lands on the white background.
	r, g, b, _ := decoded.At(10, 10).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestMakeThumbnailRejectsGarbage(t *testing.T) {
	_, err := MakeThumbnail([]byte("definitely not an image"))
	assert.Error(t, err)
}
