package session

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/imagebatch/internal/types"
)

func newFlagBatch(ids ...int64) *types.Batch {
	b := types.NewBatch()
	for _, id := range ids {
		b.Update(id, types.ColumnDeleteFlag, types.FlagTrue)
	}
	return b
}

// writeImage writes a solid grey PNG.
func writeImage(t *testing.T, path string, level uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}
