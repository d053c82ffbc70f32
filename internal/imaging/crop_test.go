package imaging

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropRectStretchIsProportional(t *testing.T) {
	g := Guide{PreviewWidth: 100, PreviewHeight: 200, X: 10, Y: 20, Width: 50, Height: 100, Mode: ScaleStretch}
	r, err := CropRect(g, 1000, 2000)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(100, 200, 600, 1200), r)
}

func TestCropRectCoverMatchesStretchOnSameAspect(t *testing.T) {
	g := Guide{PreviewWidth: 360, PreviewHeight: 640, X: 30, Y: 120, Width: 300, Height: 400}
	cover, err := CropRect(g, 1080, 1920)
	require.NoError(t, err)

	g.Mode = ScaleStretch
	stretch, err := CropRect(g, 1080, 1920)
	require.NoError(t, err)
	assert.Equal(t, stretch, cover)
}

func TestCropRectCoverTrimsOverflow(t *testing.T) {
	// A 4:3 landscape sensor frame shown full screen on a portrait preview:
	// the preview shows only the horizontal middle of the frame.
	g := Guide{PreviewWidth: 300, PreviewHeight: 600, X: 0, Y: 0, Width: 300, Height: 600}
	r, err := CropRect(g, 4000, 3000)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(1250, 0, 2750, 3000), r)
}

func TestCropRectClampsToBounds(t *testing.T) {
	g := Guide{PreviewWidth: 100, PreviewHeight: 100, X: -20, Y: 80, Width: 50, Height: 50, Mode: ScaleStretch}
	r, err := CropRect(g, 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 800, 300, 1000), r)
}

func TestCropRectErrors(t *testing.T) {
	_, err := CropRect(Guide{PreviewWidth: 0, PreviewHeight: 10}, 100, 100)
	assert.ErrorIs(t, err, ErrInvalidPreview)

	_, err = CropRect(Guide{PreviewWidth: 100, PreviewHeight: 100, X: 150, Y: 10, Width: 20, Height: 20}, 100, 100)
	assert.ErrorIs(t, err, ErrEmptyCrop)

	_, err = CropRect(Guide{PreviewWidth: 100, PreviewHeight: 100, Width: 20, Height: 20, Mode: "fisheye"}, 100, 100)
	assert.Error(t, err)

	bad := []Guide{
		{PreviewWidth: 100, PreviewHeight: 100, X: 60, Y: 10, Width: -40, Height: 50, Mode: ScaleStretch},
		{PreviewWidth: 100, PreviewHeight: 100, X: 10, Y: 60, Width: 40, Height: -50},
		{PreviewWidth: 100, PreviewHeight: 100, X: 10, Y: 10, Width: 0, Height: 50},
		{PreviewWidth: 100, PreviewHeight: 100, X: math.NaN(), Y: 10, Width: 40, Height: 50},
		{PreviewWidth: 100, PreviewHeight: 100, X: 10, Y: 10, Width: math.Inf(1), Height: 50},
		{PreviewWidth: math.Inf(1), PreviewHeight: 100, Width: 40, Height: 50},
	}
	for _, g := range bad {
		_, err := CropRect(g, 1000, 1000)
		assert.ErrorIs(t, err, ErrInvalidGuide, "%+v", g)
	}
}

func TestCropRectAlwaysInsideImage(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	modes := []ScaleMode{ScaleCover, ScaleStretch}
	for i := 0; i < 2000; i++ {
		imgW, imgH := 1+rng.Intn(5000), 1+rng.Intn(5000)
		g := Guide{
			PreviewWidth:  1 + rng.Float64()*1200,
			PreviewHeight: 1 + rng.Float64()*1200,
			X:             rng.Float64()*1600 - 200,
			Y:             rng.Float64()*1600 - 200,
			Width:         0.5 + rng.Float64()*1500,
			Height:        0.5 + rng.Float64()*1500,
			Mode:          modes[i%2],
		}
		r, err := CropRect(g, imgW, imgH)
		if err != nil {
			assert.ErrorIs(t, err, ErrEmptyCrop)
			continue
		}
		require.True(t, r.In(image.Rect(0, 0, imgW, imgH)), "%v outside %dx%d for %+v", r, imgW, imgH, g)
		require.False(t, r.Empty())
	}
}

func TestCropHonoursImageOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 110, 60))
	src.Set(20, 15, color.RGBA{R: 255, A: 255})

	out := Crop(src, image.Rect(10, 5, 20, 15))
	b := out.Bounds()
	assert.Equal(t, 10, b.Dx())
	assert.Equal(t, 10, b.Dy())
	r, _, _, _ := out.At(b.Min.X, b.Min.Y).RGBA()
	assert.NotZero(t, r)
}
