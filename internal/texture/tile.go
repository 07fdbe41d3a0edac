package texture

// Tile repeats src into a width x height canvas starting at (offsetX, offsetY)
// of the source grid. Tiling a seamless texture 2x2 exposes any seam along the
// centre lines.
func Tile(src *Image, width, height, offsetX, offsetY int) (*Image, error) {
	dst, err := NewImage(width, height)
	if err != nil {
		return nil, err
	}
	if src == nil || src.W == 0 || src.H == 0 {
		return dst, nil
	}

	mod := func(a, b int) int {
		r := a % b
		if r < 0 {
			r += b
		}
		return r
	}

	for y := 0; y < height; y++ {
		sy := mod(offsetY+y, src.H)
		for x := 0; x < width; x++ {
			sx := mod(offsetX+x, src.W)
			si := src.Index(sx, sy)
			di := dst.Index(x, y)
			dst.R[di] = src.R[si]
			dst.G[di] = src.G[si]
			dst.B[di] = src.B[si]
		}
	}

	return dst, nil
}

// SeamError returns the mean absolute channel difference across the wrap
// edges of img: column W-1 against column 0 and row H-1 against row 0.
func SeamError(img *Image) float64 {
	if img == nil || img.W < 2 || img.H < 2 {
		return 0
	}

	abs := func(v float64) float64 {
		if v < 0 {
			return -v
		}
		return v
	}
	diff := func(i, j int) float64 {
		return abs(img.R[i]-img.R[j]) + abs(img.G[i]-img.G[j]) + abs(img.B[i]-img.B[j])
	}

	sum := 0.0
	for y := 0; y < img.H; y++ {
		sum += diff(img.Index(img.W-1, y), img.Index(0, y))
	}
	for x := 0; x < img.W; x++ {
		sum += diff(img.Index(x, img.H-1), img.Index(x, 0))
	}
	return sum / float64(3*(img.W+img.H))
}
