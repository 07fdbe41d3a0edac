//go:build js && wasm

package texture

import "fmt"

// The SQLite driver does not build for js/wasm.

func writeMBTiles(path string, img *Image, opts ExportOptions) error {
	return fmt.Errorf("%w: mbtiles is not available in the browser", ErrUnsupportedFormat)
}

func loadMBTiles(path string) (*Image, error) {
	return nil, fmt.Errorf("%w: mbtiles is not available in the browser", ErrUnsupportedFormat)
}
