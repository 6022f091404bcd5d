// Package darkness classifies images as dark (night shots, lens covered)
// from a sample of their pixels.
package darkness

import (
	"context"
	"fmt"
	"image"
	_ "image/gif" // register decoders
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"github.com/dbsmedya/imagebatch/internal/config"
)

const (
	// greyscalePixelDelta is the largest |r-g|+|g-b|+|b-r| of a grey pixel.
	greyscalePixelDelta = 40

	// greyscaleImageRatio is the fraction of grey pixels that makes an
	// image greyscale. Colour images are never dark.
	greyscaleImageRatio = 0.9
)

// Classification is the verdict on one image.
type Classification struct {
	Dark         bool
	IsColor      bool
	DarkFraction float64
}

// Classifier classifies a decoded image.
type Classifier interface {
	ClassifyImage(img image.Image) Classification
}

// GreyClassifier implements the luminance rule: a greyscale image is dark
// when enough sampled pixels have a perceived luminance at or below the
// pixel threshold.
type GreyClassifier struct {
	PixelThreshold int
	PixelRatio     float64
	SampleStride   int
}

// NewGreyClassifier builds a classifier from the dark settings.
func NewGreyClassifier(s config.DarkSettings) *GreyClassifier {
	stride := s.SampleStride
	if stride <= 0 {
		stride = 1
	}
	return &GreyClassifier{
		PixelThreshold: s.PixelThreshold,
		PixelRatio:     s.PixelRatio,
		SampleStride:   stride,
	}
}

// ClassifyImage samples every SampleStride-th pixel in row-major order.
func (g *GreyClassifier) ClassifyImage(img image.Image) Classification {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	total := width * height
	if total == 0 {
		return Classification{}
	}

	stride := g.SampleStride
	if stride <= 0 {
		stride = 1
	}

	var dark, grey, counted int
	for idx := 0; idx < total; idx += stride {
		x := bounds.Min.X + idx%width
		y := bounds.Min.Y + idx/width
		r32, g32, b32, _ := img.At(x, y).RGBA()
		r, gr, b := int(r32>>8), int(g32>>8), int(b32>>8)

		luminance := int(math.Round(0.299*float64(r) + 0.5876*float64(gr) + 0.114*float64(b)))
		if luminance <= g.PixelThreshold {
			dark++
		}
		if abs(r-gr)+abs(gr-b)+abs(b-r) <= greyscalePixelDelta {
			grey++
		}
		counted++
	}

	greyFraction := float64(grey) / float64(counted)
	if greyFraction < greyscaleImageRatio {
		return Classification{IsColor: true, DarkFraction: 1 - greyFraction}
	}

	fraction := float64(dark) / float64(counted)
	return Classification{
		Dark:         fraction >= g.PixelRatio,
		DarkFraction: fraction,
	}
}

// Decode reads and decodes a JPEG, PNG or GIF file.
func Decode(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
