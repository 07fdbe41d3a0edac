package texture

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage has exactly representable 8-bit values so lossless round
// trips compare equal.
func gradientImage(t *testing.T, w, h int) *Image {
	t.Helper()
	img, err := NewImage(w, h)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y,
				float64((x*17)%256)/255.0,
				float64((y*29)%256)/255.0,
				float64((x+y)%256)/255.0,
			)
		}
	}
	return img
}

func TestNewImageRejectsEmpty(t *testing.T) {
	_, err := NewImage(0, 4)
	require.Error(t, err)
	_, err = NewImage(4, -1)
	require.Error(t, err)
}

func TestToNRGBAClamps(t *testing.T) {
	img, err := NewImage(2, 1)
	require.NoError(t, err)
	img.Set(0, 0, -0.5, 0.5, 1.5)
	img.Set(1, 0, 1, 0, 0.2)
	assert.False(t, img.InRange())

	out := img.ToNRGBA()
	c := out.NRGBAAt(0, 0)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(128), c.G)
	assert.Equal(t, uint8(255), c.B)
	assert.Equal(t, uint8(255), c.A)
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{path: "texture.png", want: FormatPNG, ok: true},
		{path: "TEXTURE.PNG", want: FormatPNG, ok: true},
		{path: "noext", want: FormatPNG, ok: true},
		{path: "a.tif", want: FormatTIFF, ok: true},
		{path: "a.tiff", want: FormatTIFF, ok: true},
		{path: "a.bmp", want: FormatBMP, ok: true},
		{path: "a.mbtiles", want: FormatMBTiles, ok: true},
		{path: "a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if !tt.ok {
				require.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	src := gradientImage(t, 33, 21)
	dir := t.TempDir()

	for _, name := range []string{"out.png", "out.tif", "out.tiff", "out.bmp", "out.mbtiles"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, src, ExportOptions{Seamless: true}))

			got, err := Load(path)
			require.NoError(t, err)
			require.Equal(t, src.W, got.W)
			require.Equal(t, src.H, got.H)
			for i := range src.R {
				assert.InDelta(t, src.R[i], got.R[i], 1e-9)
				assert.InDelta(t, src.G[i], got.G[i], 1e-9)
				assert.InDelta(t, src.B[i], got.B[i], 1e-9)
			}
		})
	}
}

func TestPNGCompressionLevels(t *testing.T) {
	src := gradientImage(t, 64, 64)

	sizes := map[string]int{}
	for _, level := range []string{"", CompressionDefault, CompressionSpeed, CompressionBest, CompressionNone} {
		var buf bytes.Buffer
		require.NoError(t, EncodePNG(&buf, src, ExportOptions{PNGCompression: level}), level)
		sizes[level] = buf.Len()
	}
	assert.Greater(t, sizes[CompressionNone], sizes[CompressionBest])

	var buf bytes.Buffer
	require.Error(t, EncodePNG(&buf, src, ExportOptions{PNGCompression: "extreme"}))
}

func TestWriteFileErrors(t *testing.T) {
	img := gradientImage(t, 4, 4)
	dir := t.TempDir()

	require.ErrorIs(t, WriteFile(filepath.Join(dir, "a.gif"), img, ExportOptions{}), ErrUnsupportedFormat)
	require.Error(t, WriteFile(filepath.Join(dir, "a.png"), nil, ExportOptions{}))
	require.Error(t, WriteFile(filepath.Join(dir, "missing", "a.png"), img, ExportOptions{}))

	_, err := os.Stat(filepath.Join(dir, "a.gif"))
	assert.True(t, os.IsNotExist(err))
}

func TestEncodeRejectsMBTilesStream(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, gradientImage(t, 2, 2), FormatMBTiles, ExportOptions{})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTileWrapsSource(t *testing.T) {
	src := gradientImage(t, 5, 3)

	out, err := Tile(src, 12, 7, -2, 4)
	require.NoError(t, err)

	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			sx := ((x-2)%5 + 5) % 5
			sy := (y + 4) % 3
			r, g, b := out.At(x, y)
			wr, wg, wb := src.At(sx, sy)
			require.Equal(t, []float64{wr, wg, wb}, []float64{r, g, b}, "pixel %d,%d", x, y)
		}
	}
}

func TestSeamError(t *testing.T) {
	flat, err := NewImage(8, 8)
	require.NoError(t, err)
	assert.Equal(t, 0.0, SeamError(flat))

	ramp := gradientImage(t, 8, 8)
	assert.Greater(t, SeamError(ramp), 0.0)
}
