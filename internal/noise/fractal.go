package noise

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/MeKo-Tech/noisetex/internal/field"
	"github.com/MeKo-Tech/noisetex/internal/worker"
	"github.com/aquilax/go-perlin"
)

// FractalOffset maps the signed fBm range towards [0,1]. It is a fixed shift,
// not a min-max normalization, so the output need not span the full range.
const FractalOffset = 0.5

// Fractal generates coherent fractal (fBm) noise.
type Fractal struct {
	Backend worker.Backend
}

// Generate implements Strategy.
func (f Fractal) Generate(ctx context.Context, width, height int, l Layer) (*field.Field, error) {
	if l.Kind != KindFractal {
		return nil, fmt.Errorf("%w: fractal strategy cannot generate %q layers", ErrInvalidLayer, l.Kind)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	out, err := field.New(width, height)
	if err != nil {
		return nil, err
	}

	backend := f.Backend
	if backend == nil {
		backend = worker.Serial{}
	}

	s := newFractalSampler(width, height, l)
	err = backend.Rows(ctx, height, func(y int) {
		row := out.Row(y)
		fy := float64(y)
		for x := range row {
			row[x] = s.sample(float64(x), fy)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate fractal field: %w", err)
	}
	return out, nil
}

type octave struct {
	amp float64
	fx  float64 // lattice cells per pixel, horizontally
	fy  float64
	px  int // lattice period in cells
	py  int
}

type fractalSampler struct {
	lattice  *lattice
	perlin   *perlin.Perlin
	octaves  []octave
	ampSum   float64
	scale    float64
	seamless bool
}

func newFractalSampler(width, height int, l Layer) *fractalSampler {
	s := &fractalSampler{
		scale:    l.Scale,
		seamless: l.Seamless,
	}

	amp, freq := 1.0, 1.0
	for k := 0; k < l.Octaves; k++ {
		px := periodCells(width, freq, l.Scale)
		py := periodCells(height, freq, l.Scale)
		s.octaves = append(s.octaves, octave{
			amp: amp,
			fx:  float64(px) / float64(width),
			fy:  float64(py) / float64(height),
			px:  px,
			py:  py,
		})
		s.ampSum += amp
		amp *= l.Persistence
		freq *= l.Lacunarity
	}

	if l.Seamless {
		s.lattice = newLattice(l.Seed)
	} else {
		// go-perlin divides octave k by alpha^k, so alpha is 1/persistence.
		s.perlin = perlin.NewPerlin(1/l.Persistence, l.Lacunarity, int32(l.Octaves), l.Seed)
	}
	return s
}

// periodCells rounds size*freq/scale to a whole number of lattice cells so the
// octave repeats exactly once per field.
func periodCells(size int, freq, scale float64) int {
	n := int(math.Round(float64(size) * freq / scale))
	if n < 1 {
		return 1
	}
	return n
}

func (s *fractalSampler) sample(x, y float64) float64 {
	if !s.seamless {
		return s.perlin.Noise2D(x/s.scale, y/s.scale)/s.ampSum + FractalOffset
	}

	sum := 0.0
	for _, o := range s.octaves {
		sum += o.amp * s.lattice.periodic(x*o.fx, y*o.fy, o.px, o.py)
	}
	return sum/s.ampSum + FractalOffset
}

var grad2 = [8][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
}

// lattice is a seeded Perlin gradient lattice that can wrap at arbitrary periods.
type lattice struct {
	perm [512]uint8
}

func newLattice(seed int64) *lattice {
	l := &lattice{}
	r := rand.New(rand.NewSource(seed))
	p := make([]uint8, 256)
	for i := 0; i < 256; i++ {
		p[i] = uint8(i)
	}
	for i := 255; i > 0; i-- {
		j := r.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	for i := 0; i < 512; i++ {
		l.perm[i] = p[i&255]
	}
	return l
}

func (l *lattice) hash(i, j int) int {
	return int(l.perm[int(l.perm[i&255])+(j&255)])
}

func (l *lattice) grad(h int, x, y float64) float64 {
	g := grad2[h&7]
	return g[0]*x + g[1]*y
}

// periodic samples gradient noise at (x, y) with lattice periods px and py.
// The result lies roughly within [-1, 1] and is exactly 0 on lattice points.
func (l *lattice) periodic(x, y float64, px, py int) float64 {
	fx := math.Floor(x)
	fy := math.Floor(y)
	xi := wrapIndex(int(fx), px)
	yi := wrapIndex(int(fy), py)
	xi1 := (xi + 1) % px
	yi1 := (yi + 1) % py

	dx := x - fx
	dy := y - fy
	u := fade(dx)
	v := fade(dy)

	n00 := l.grad(l.hash(xi, yi), dx, dy)
	n10 := l.grad(l.hash(xi1, yi), dx-1, dy)
	n01 := l.grad(l.hash(xi, yi1), dx, dy-1)
	n11 := l.grad(l.hash(xi1, yi1), dx-1, dy-1)

	return lerp(lerp(n00, n10, u), lerp(n01, n11, u), v)
}

func fade(t float64) float64 { return t * t * t * (t*(t*6-15) + 10) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func wrapIndex(x, max int) int {
	x %= max
	if x < 0 {
		x += max
	}
	return x
}
