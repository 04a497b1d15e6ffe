// Package solver drives the time evolution of a quantum state on a 2D
// lattice: initial states, external potentials, the Hamiltonian, and the
// step driver that runs the stencil kernel with its halo exchange.
package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/bhan123/trotter2d/lattice"
)

// State is the wave function over one tile, halo included, as flat
// row-major real and imaginary planes.
type State struct {
	Lat  *lattice.Lattice
	Real []float64
	Imag []float64
}

// NewState builds a zero state over the tile.
func NewState(lat *lattice.Lattice) *State {
	n := lat.DimX * lat.DimY
	return &State{Lat: lat, Real: make([]float64, n), Imag: make([]float64, n)}
}

// Init fills the state from a wave function of the physical coordinates,
// halo region included.
func (s *State) Init(f func(x, y float64) (re, im float64)) {
	l := s.Lat
	for iy := 0; iy < l.DimY; iy++ {
		y := l.CoordY(iy)
		for ix := 0; ix < l.DimX; ix++ {
			re, im := f(l.CoordX(ix), y)
			s.Real[iy*l.DimX+ix] = re
			s.Imag[iy*l.DimX+ix] = im
		}
	}
}

// Imprint multiplies the state pointwise by a complex function of the
// physical coordinates, e.g. to stamp a phase pattern onto it.
func (s *State) Imprint(f func(x, y float64) (re, im float64)) {
	l := s.Lat
	for iy := 0; iy < l.DimY; iy++ {
		y := l.CoordY(iy)
		for ix := 0; ix < l.DimX; ix++ {
			fr, fi := f(l.CoordX(ix), y)
			i := iy*l.DimX + ix
			r, m := s.Real[i], s.Imag[i]
			s.Real[i] = fr*r - fi*m
			s.Imag[i] = fr*m + fi*r
		}
	}
}

// SquaredNorm integrates the squared magnitude over this tile's halo-free
// region.
func (s *State) SquaredNorm() float64 {
	l := s.Lat
	var sum float64
	for iy := l.InnerOffsetY(); iy < l.InnerOffsetY()+l.InnerHeight(); iy++ {
		row := iy*l.DimX + l.InnerOffsetX()
		re := s.Real[row : row+l.InnerWidth()]
		im := s.Imag[row : row+l.InnerWidth()]
		sum += floats.Dot(re, re) + floats.Dot(im, im)
	}
	return sum * l.DeltaX * l.DeltaY
}

// Normalize rescales the state so its squared norm becomes norm.
func (s *State) Normalize(norm float64) {
	cur := s.SquaredNorm()
	if cur == 0 {
		return
	}
	scale := math.Sqrt(norm / cur)
	floats.Scale(scale, s.Real)
	floats.Scale(scale, s.Imag)
}

// Density returns the particle density over the halo-free region,
// row-major InnerWidth x InnerHeight.
func (s *State) Density() []float64 {
	l := s.Lat
	w, h := l.InnerWidth(), l.InnerHeight()
	out := make([]float64, w*h)
	for iy := 0; iy < h; iy++ {
		for ix := 0; ix < w; ix++ {
			i := (iy+l.InnerOffsetY())*l.DimX + ix + l.InnerOffsetX()
			out[iy*w+ix] = s.Real[i]*s.Real[i] + s.Imag[i]*s.Imag[i]
		}
	}
	return out
}

// Phase returns the complex argument over the halo-free region.
func (s *State) Phase() []float64 {
	l := s.Lat
	w, h := l.InnerWidth(), l.InnerHeight()
	out := make([]float64, w*h)
	for iy := 0; iy < h; iy++ {
		for ix := 0; ix < w; ix++ {
			i := (iy+l.InnerOffsetY())*l.DimX + ix + l.InnerOffsetX()
			out[iy*w+ix] = math.Atan2(s.Imag[i], s.Real[i])
		}
	}
	return out
}

// moment integrates f(x, y)·|psi|² over the inner region, normalized by
// the squared norm.
func (s *State) moment(f func(x, y float64) float64) float64 {
	l := s.Lat
	var sum, norm float64
	for iy := l.InnerOffsetY(); iy < l.InnerOffsetY()+l.InnerHeight(); iy++ {
		y := l.CoordY(iy)
		for ix := l.InnerOffsetX(); ix < l.InnerOffsetX()+l.InnerWidth(); ix++ {
			i := iy*l.DimX + ix
			d := s.Real[i]*s.Real[i] + s.Imag[i]*s.Imag[i]
			sum += f(l.CoordX(ix), y) * d
			norm += d
		}
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// MeanX returns the expected value of the X operator.
func (s *State) MeanX() float64 { return s.moment(func(x, _ float64) float64 { return x }) }

// MeanXX returns the expected value of the X² operator.
func (s *State) MeanXX() float64 { return s.moment(func(x, _ float64) float64 { return x * x }) }

// MeanY returns the expected value of the Y operator.
func (s *State) MeanY() float64 { return s.moment(func(_, y float64) float64 { return y }) }

// MeanYY returns the expected value of the Y² operator.
func (s *State) MeanYY() float64 { return s.moment(func(_, y float64) float64 { return y * y }) }

// MeanPx returns the expected value of the momentum operator along x,
// by central differences over the inner region.
func (s *State) MeanPx() float64 { return s.meanMomentum(1, 0) }

// MeanPy returns the expected value of the momentum operator along y.
func (s *State) MeanPy() float64 { return s.meanMomentum(0, 1) }

func (s *State) meanMomentum(dx, dy int) float64 {
	l := s.Lat
	step := 2 * (float64(dx)*l.DeltaX + float64(dy)*l.DeltaY)
	var sum, norm float64
	x0, y0 := l.InnerOffsetX(), l.InnerOffsetY()
	for iy := y0; iy < y0+l.InnerHeight(); iy++ {
		for ix := x0; ix < x0+l.InnerWidth(); ix++ {
			if ix+dx >= l.DimX || ix-dx < 0 || iy+dy >= l.DimY || iy-dy < 0 {
				continue
			}
			i := iy*l.DimX + ix
			ip := (iy+dy)*l.DimX + ix + dx
			im := (iy-dy)*l.DimX + ix - dx
			dRe := (s.Real[ip] - s.Real[im]) / step
			dIm := (s.Imag[ip] - s.Imag[im]) / step
			// Im(conj(psi) * d psi)
			sum += s.Real[i]*dIm - s.Imag[i]*dRe
			norm += s.Real[i]*s.Real[i] + s.Imag[i]*s.Imag[i]
		}
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// NewGaussianState builds a normalized Gaussian packet centered on
// (meanX, meanY) with width parameter omega, squared norm norm, and a
// constant phase.
func NewGaussianState(lat *lattice.Lattice, omega, meanX, meanY, norm, phase float64) *State {
	s := NewState(lat)
	amp := math.Sqrt(norm * omega / math.Pi)
	cp, sp := math.Cos(phase), math.Sin(phase)
	s.Init(func(x, y float64) (float64, float64) {
		g := amp * math.Exp(-0.5*omega*((x-meanX)*(x-meanX)+(y-meanY)*(y-meanY)))
		return g * cp, g * sp
	})
	return s
}

// NewExponentialState builds a periodic plane wave with quantum numbers
// (nx, ny).
func NewExponentialState(lat *lattice.Lattice, nx, ny int, norm, phase float64) *State {
	s := NewState(lat)
	amp := math.Sqrt(norm / (lat.LengthX * lat.LengthY))
	kx := 2 * math.Pi * float64(nx) / lat.LengthX
	ky := 2 * math.Pi * float64(ny) / lat.LengthY
	s.Init(func(x, y float64) (float64, float64) {
		arg := kx*x + ky*y + phase
		return amp * math.Cos(arg), amp * math.Sin(arg)
	})
	return s
}

// NewSinusoidState builds a standing wave with quantum numbers (nx, ny),
// zero on the domain boundary.
func NewSinusoidState(lat *lattice.Lattice, nx, ny int, norm, phase float64) *State {
	s := NewState(lat)
	amp := 2 * math.Sqrt(norm/(lat.LengthX*lat.LengthY))
	kx := 2 * math.Pi * float64(nx) / lat.LengthX
	ky := 2 * math.Pi * float64(ny) / lat.LengthY
	cp, sp := math.Cos(phase), math.Sin(phase)
	s.Init(func(x, y float64) (float64, float64) {
		g := amp * math.Sin(kx*x) * math.Sin(ky*y)
		return g * cp, g * sp
	})
	return s
}
