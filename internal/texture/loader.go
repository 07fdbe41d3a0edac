package texture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/png" // Register PNG decoder

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
)

// Load reads a previously exported texture in any supported format.
func Load(path string) (*Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".mbtiles") {
		return loadMBTiles(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode texture %s: %w", path, err)
	}
	return FromImage(img), nil
}
