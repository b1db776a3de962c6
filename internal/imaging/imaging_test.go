package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	data, err := EncodePNG(img)
	require.NoError(t, err)
	return data
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestNormalizeForAPIKeepsSmallImage(t *testing.T) {
	data := solidPNG(t, 100, 50, color.White)
	out, err := NormalizeForAPI(data, 2200, 4_000_000)
	require.NoError(t, err)

	img, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestNormalizeForAPIDownscalesLongEdge(t *testing.T) {
	data := solidPNG(t, 400, 100, color.White)
	out, err := NormalizeForAPI(data, 200, 4_000_000)
	require.NoError(t, err)

	img, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestNormalizeForAPIPixelBudget(t *testing.T) {
	data := solidPNG(t, 200, 200, color.White)
	out, err := NormalizeForAPI(data, 0, 10_000)
	require.NoError(t, err)

	img, err := Decode(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx()*img.Bounds().Dy(), 10_000)
}

func TestDarkShare(t *testing.T) {
	black, err := Decode(solidPNG(t, 20, 20, color.Black))
	require.NoError(t, err)
	white, werr := Decode(solidPNG(t, 20, 20, color.White))
	require.NoError(t, werr)

	assert.Equal(t, 1.0, DarkShare(black, 60))
	assert.Equal(t, 0.0, DarkShare(white, 60))
}
