package texture

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultFilename is offered when the caller has no destination yet.
const DefaultFilename = "texture.png"

// Format is a lossless export encoding.
type Format string

const (
	FormatPNG     Format = "png"
	FormatTIFF    Format = "tiff"
	FormatBMP     Format = "bmp"
	FormatMBTiles Format = "mbtiles"
)

// ErrUnsupportedFormat is returned for extensions with no encoder.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// PNG compression levels accepted by ExportOptions.PNGCompression.
const (
	CompressionDefault = "default"
	CompressionSpeed   = "speed"
	CompressionBest    = "best"
	CompressionNone    = "none"
)

// ExportOptions tunes encoders. The zero value is valid.
type ExportOptions struct {
	PNGCompression string
	Name           string // MBTiles metadata name; defaults to the file stem
	Seamless       bool   // recorded in MBTiles metadata
}

// FormatForPath picks the encoder from the file extension. A path without an
// extension is written as PNG.
func FormatForPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", "":
		return FormatPNG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".bmp":
		return FormatBMP, nil
	case ".mbtiles":
		return FormatMBTiles, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func pngEncoder(level string) (*png.Encoder, error) {
	enc := &png.Encoder{}
	switch level {
	case "", CompressionDefault:
		enc.CompressionLevel = png.DefaultCompression
	case CompressionSpeed:
		enc.CompressionLevel = png.BestSpeed
	case CompressionBest:
		enc.CompressionLevel = png.BestCompression
	case CompressionNone:
		enc.CompressionLevel = png.NoCompression
	default:
		return nil, fmt.Errorf("unknown png compression %q", level)
	}
	return enc, nil
}

// EncodePNG writes the image as an 8-bit PNG.
func EncodePNG(w io.Writer, img *Image, opts ExportOptions) error {
	enc, err := pngEncoder(opts.PNGCompression)
	if err != nil {
		return err
	}
	if err := enc.Encode(w, img.ToNRGBA()); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// Encode writes img to w in a stream format. MBTiles needs a file and is
// rejected here; use WriteFile.
func Encode(w io.Writer, img *Image, format Format, opts ExportOptions) error {
	if img == nil {
		return fmt.Errorf("no image to encode")
	}

	var src image.Image = img.ToNRGBA()
	switch format {
	case FormatPNG:
		return EncodePNG(w, img, opts)
	case FormatTIFF:
		if err := tiff.Encode(w, src, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
			return fmt.Errorf("failed to encode tiff: %w", err)
		}
	case FormatBMP:
		if err := bmp.Encode(w, src); err != nil {
			return fmt.Errorf("failed to encode bmp: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return nil
}

// WriteFile exports img to path with the encoder chosen by extension.
func WriteFile(path string, img *Image, opts ExportOptions) error {
	if img == nil {
		return fmt.Errorf("no image to export")
	}
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	if format == FormatMBTiles {
		return writeMBTiles(path, img, opts)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := Encode(file, img, format, opts); err != nil {
		file.Close()
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
