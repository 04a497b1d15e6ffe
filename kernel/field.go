package kernel

// quadField stores one generation of the complex field in quadrant layout:
// the tile is split into four interleaved sub-grids by (row, column)
// parity, one real and one imaginary plane per parity pair. A vector lane
// running over one plane then touches four adjacent lattice sites at once.
//
// The split is a pure permutation: site (2i+pr, 2j+pc) of the tile lives at
// plane [pr][pc], index i*w2+j.
type quadField struct {
	w2, h2 int // quadrant plane extents, half the tile extents
	re     [2][2][]float64
	im     [2][2][]float64
}

// newQuadField allocates zeroed planes for a tile of the given extents.
// Both extents must be even.
func newQuadField(tileW, tileH int) *quadField {
	f := &quadField{w2: tileW / 2, h2: tileH / 2}
	n := f.w2 * f.h2
	for pr := 0; pr < 2; pr++ {
		for pc := 0; pc < 2; pc++ {
			f.re[pr][pc] = make([]float64, n)
			f.im[pr][pc] = make([]float64, n)
		}
	}
	return f
}

// fillFromFlat scatters a row-major field into the quadrant planes.
func (f *quadField) fillFromFlat(pReal, pImag []float64) {
	tileW := 2 * f.w2
	for i := 0; i < f.h2; i++ {
		for j := 0; j < f.w2; j++ {
			q := i*f.w2 + j
			f.re[0][0][q] = pReal[2*i*tileW+2*j]
			f.re[0][1][q] = pReal[2*i*tileW+2*j+1]
			f.re[1][0][q] = pReal[(2*i+1)*tileW+2*j]
			f.re[1][1][q] = pReal[(2*i+1)*tileW+2*j+1]
			f.im[0][0][q] = pImag[2*i*tileW+2*j]
			f.im[0][1][q] = pImag[2*i*tileW+2*j+1]
			f.im[1][0][q] = pImag[(2*i+1)*tileW+2*j]
			f.im[1][1][q] = pImag[(2*i+1)*tileW+2*j+1]
		}
	}
}

// sample gathers a width x height window at tile coordinate (x, y) back
// into flat row-major destination planes, destStride elements per row.
// Bounds are the caller's responsibility.
func (f *quadField) sample(destStride, x, y, width, height int, destReal, destImag []float64) {
	for dy := 0; dy < height; dy++ {
		sy := y + dy
		pr := sy & 1
		qi := (sy >> 1) * f.w2
		row := dy * destStride
		for dx := 0; dx < width; dx++ {
			sx := x + dx
			q := qi + (sx >> 1)
			destReal[row+dx] = f.re[pr][sx&1][q]
			destImag[row+dx] = f.im[pr][sx&1][q]
		}
	}
}

// scale multiplies every plane by s.
func (f *quadField) scale(s float64) {
	for pr := 0; pr < 2; pr++ {
		for pc := 0; pc < 2; pc++ {
			re, im := f.re[pr][pc], f.im[pr][pc]
			for q := range re {
				re[q] *= s
				im[q] *= s
			}
		}
	}
}

// squaredSum accumulates |psi|^2 over the tile window starting at column
// x0 and row y0 (tile coordinates, both even) spanning width x height.
func (f *quadField) squaredSum(x0, y0, width, height int) float64 {
	var sum float64
	for dy := 0; dy < height; dy++ {
		sy := y0 + dy
		pr := sy & 1
		qi := (sy >> 1) * f.w2
		for dx := 0; dx < width; dx++ {
			sx := x0 + dx
			q := qi + (sx >> 1)
			r := f.re[pr][sx&1][q]
			i := f.im[pr][sx&1][q]
			sum += r*r + i*i
		}
	}
	return sum
}

// copyPlane copies a width x rows window between two strided planes.
func copyPlane(dst []float64, dstStride int, src []float64, srcStride, width, rows int) {
	for r := 0; r < rows; r++ {
		copy(dst[r*dstStride:r*dstStride+width], src[r*srcStride:r*srcStride+width])
	}
}

// copyQuads copies a window of width2 x rows2 quadrant elements between
// two quadrant fields, one plane at a time. Offsets are plane indices into
// the respective fields.
func copyQuads(dst *quadField, dstOff int, src *quadField, srcOff, width2, rows2 int) {
	for pr := 0; pr < 2; pr++ {
		for pc := 0; pc < 2; pc++ {
			copyPlane(dst.re[pr][pc][dstOff:], dst.w2, src.re[pr][pc][srcOff:], src.w2, width2, rows2)
			copyPlane(dst.im[pr][pc][dstOff:], dst.w2, src.im[pr][pc][srcOff:], src.w2, width2, rows2)
		}
	}
}
