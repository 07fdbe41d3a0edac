package noise

import (
	"context"
	"fmt"
	"image"
	"math/rand"

	"github.com/MeKo-Tech/noisetex/internal/field"
	"github.com/disintegration/gift"
)

// Smoothed generates band-limited noise: uniform white noise convolved with a
// Gaussian kernel of standard deviation Layer.Sigma, then min-max normalized.
type Smoothed struct{}

// Generate implements Strategy.
func (Smoothed) Generate(ctx context.Context, width, height int, l Layer) (*field.Field, error) {
	if l.Kind != KindSmoothed {
		return nil, fmt.Errorf("%w: smoothed strategy cannot generate %q layers", ErrInvalidLayer, l.Kind)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("field dimensions must be positive, got %dx%d", width, height)
	}

	src := whiteNoise(width, height, l.Seed)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blurred := GaussianBlur(src, float32(l.Sigma))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return field.FromGray16(blurred).Normalize(), nil
}

// whiteNoise fills a 16-bit image with uniform values from a seeded source.
func whiteNoise(width, height int, seed int64) *image.Gray16 {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 2 {
		v := uint16(rng.Intn(0x10000))
		img.Pix[i] = uint8(v >> 8)
		img.Pix[i+1] = uint8(v)
	}
	return img
}

// GaussianBlur smooths a 16-bit field image. The sigma parameter controls the
// feature size (larger = smoother).
func GaussianBlur(src *image.Gray16, sigma float32) *image.Gray16 {
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray16(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}
