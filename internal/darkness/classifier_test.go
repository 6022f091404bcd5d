package darkness

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/imagebatch/internal/config"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func defaultClassifier() *GreyClassifier {
	return NewGreyClassifier(config.DefaultOperationSettings().Dark)
}

func TestGreyClassifier_DarkGreyImage(t *testing.T) {
	cls := defaultClassifier().ClassifyImage(solid(40, 30, color.RGBA{20, 20, 20, 255}))
	assert.True(t, cls.Dark)
	assert.False(t, cls.IsColor)
	assert.Equal(t, 1.0, cls.DarkFraction)
}

func TestGreyClassifier_BrightGreyImage(t *testing.T) {
	cls := defaultClassifier().ClassifyImage(solid(40, 30, color.RGBA{200, 200, 200, 255}))
	assert.False(t, cls.Dark)
	assert.False(t, cls.IsColor)
	assert.Equal(t, 0.0, cls.DarkFraction)
}

func TestGreyClassifier_ColorImageIsNeverDark(t *testing.T) {
	cls := defaultClassifier().ClassifyImage(solid(40, 30, color.RGBA{40, 0, 0, 255}))
	assert.False(t, cls.Dark)
	assert.True(t, cls.IsColor)
}

func TestGreyClassifier_SlightTintCountsAsGrey(t *testing.T) {
	// |r-g|+|g-b|+|b-r| = 10+0+10 = 20 <= 40
	cls := defaultClassifier().ClassifyImage(solid(10, 10, color.RGBA{30, 20, 20, 255}))
	assert.False(t, cls.IsColor)
	assert.True(t, cls.Dark)
}

func TestGreyClassifier_RatioThreshold(t *testing.T) {
	// top half dark, bottom half bright
	img := solid(10, 10, color.RGBA{200, 200, 200, 255})
	for y := 0; y < 5; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{10, 10, 10, 255})
		}
	}
	g := &GreyClassifier{PixelThreshold: 60, PixelRatio: 0.5, SampleStride: 1}
	cls := g.ClassifyImage(img)
	assert.InDelta(t, 0.5, cls.DarkFraction, 1e-9)
	assert.True(t, cls.Dark)

	g.PixelRatio = 0.6
	assert.False(t, g.ClassifyImage(img).Dark)
}

func TestGreyClassifier_EmptyImage(t *testing.T) {
	cls := defaultClassifier().ClassifyImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Equal(t, Classification{}, cls)
}

func TestNewGreyClassifier_StrideFloor(t *testing.T) {
	g := NewGreyClassifier(config.DarkSettings{PixelThreshold: 60, PixelRatio: 0.9, SampleStride: 0})
	assert.Equal(t, 1, g.SampleStride)
}

func TestDecode(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writePNG(t, good, solid(3, 3, color.Black))

	img, err := Decode(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	corrupt := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image"), 0o644))
	_, err = Decode(context.Background(), corrupt)
	assert.ErrorContains(t, err, "decode")

	_, err = Decode(context.Background(), filepath.Join(dir, "missing.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Decode(ctx, good)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache(t *testing.T) {
	c := NewCache(2)
	a := solid(1, 1, color.Black)
	b := solid(2, 2, color.Black)
	d := solid(3, 3, color.Black)

	c.Put(1, a)
	c.Put(2, b)
	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Same(t, a, got)

	c.Put(3, d)
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get(1)
	assert.False(t, ok, "oldest entry evicted")

	c.Invalidate(2)
	_, ok = c.Get(2)
	assert.False(t, ok)

	assert.Equal(t, DefaultCacheSize, NewCache(0).capacity)
}
