//go:build !(js && wasm)

package texture

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/noisetex/internal/mbtiles"
)

func writeMBTiles(path string, img *Image, opts ExportOptions) error {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img, opts); err != nil {
		return err
	}

	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	meta := mbtiles.Metadata{
		Name:        name,
		Description: "procedural noise texture",
		Type:        "baselayer",
		Version:     "1.0",
		Width:       img.W,
		Height:      img.H,
		Seamless:    opts.Seamless,
	}

	if err := mbtiles.WriteTexture(path, buf.Bytes(), meta); err != nil {
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	return nil
}

func loadMBTiles(path string) (*Image, error) {
	r, err := mbtiles.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture %s: %w", path, err)
	}
	defer r.Close()

	data, err := r.ReadTile(0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read texture %s: %w", path, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode texture %s: %w", path, err)
	}
	return FromImage(img), nil
}
