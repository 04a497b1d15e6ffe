package solver

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/bhan123/trotter2d/lattice"
)

// SpectralEvolver is an FFT split-step propagator over a single periodic
// tile. It shares no code with the stencil kernel, which makes it a
// useful independent cross-check: both must relax to the same ground
// state and agree on conserved quantities.
type SpectralEvolver struct {
	lat    *lattice.Lattice
	ham    *Hamiltonian
	deltaT float64
	kSq    [][]float64
	pot    [][]float64
}

// NewSpectral builds the spectral propagator. The grid must be periodic
// along both axes and live on a single partition.
func NewSpectral(lat *lattice.Lattice, ham *Hamiltonian, deltaT float64) (*SpectralEvolver, error) {
	if !lat.PeriodicX || !lat.PeriodicY {
		return nil, errors.New("solver: spectral evolution needs a periodic grid")
	}
	if lat.Procs != 1 {
		return nil, errors.New("solver: spectral evolution runs on a single partition")
	}
	if ham == nil {
		return nil, errors.New("solver: nil hamiltonian")
	}
	e := &SpectralEvolver{lat: lat, ham: ham, deltaT: deltaT}
	w, h := lat.InnerWidth(), lat.InnerHeight()
	kx := waveNumbers(w, lat.DeltaX)
	ky := waveNumbers(h, lat.DeltaY)
	e.kSq = make([][]float64, h)
	e.pot = make([][]float64, h)
	for iy := 0; iy < h; iy++ {
		e.kSq[iy] = make([]float64, w)
		e.pot[iy] = make([]float64, w)
		y := lat.CoordY(iy + lat.InnerOffsetY())
		for ix := 0; ix < w; ix++ {
			e.kSq[iy][ix] = kx[ix]*kx[ix] + ky[iy]*ky[iy]
			e.pot[iy][ix] = ham.Potential.Value(lat.CoordX(ix+lat.InnerOffsetX()), y)
		}
	}
	return e, nil
}

// waveNumbers lists the angular wave numbers in FFT bin order:
// 0 and positive frequencies first, then the negative ones.
func waveNumbers(n int, d float64) []float64 {
	k := make([]float64, n)
	scale := 2 * math.Pi / (float64(n) * d)
	for i := 0; i < n; i++ {
		if i < (n+1)/2 {
			k[i] = float64(i) * scale
		} else {
			k[i] = float64(i-n) * scale
		}
	}
	return k
}

// Evolve advances the state with Strang splitting: half a potential step,
// a full kinetic step in momentum space, half a potential step.
// Imaginary time renormalizes to the initial norm after every iteration.
func (e *SpectralEvolver) Evolve(state *State, iterations int, imagTime bool) error {
	if state.Lat != e.lat {
		return errors.New("solver: state does not live on this evolver's lattice")
	}
	l := e.lat
	w, h := l.InnerWidth(), l.InnerHeight()
	x0, y0 := l.InnerOffsetX(), l.InnerOffsetY()
	psi := make([][]complex128, h)
	for iy := 0; iy < h; iy++ {
		psi[iy] = make([]complex128, w)
		for ix := 0; ix < w; ix++ {
			i := (iy+y0)*l.DimX + ix + x0
			psi[iy][ix] = complex(state.Real[i], state.Imag[i])
		}
	}
	norm0 := state.SquaredNorm()

	for it := 0; it < iterations; it++ {
		e.halfPotential(psi, imagTime)
		psi = fft.FFT2(psi)
		e.kinetic(psi, imagTime)
		psi = fft.IFFT2(psi)
		e.halfPotential(psi, imagTime)
		if imagTime {
			renormalize(psi, norm0, l.DeltaX*l.DeltaY)
		}
	}

	for iy := 0; iy < h; iy++ {
		for ix := 0; ix < w; ix++ {
			i := (iy+y0)*l.DimX + ix + x0
			state.Real[i] = real(psi[iy][ix])
			state.Imag[i] = imag(psi[iy][ix])
		}
	}
	wrapHalo(state)
	return nil
}

func (e *SpectralEvolver) halfPotential(psi [][]complex128, imagTime bool) {
	g := e.ham.Coupling
	for iy := range psi {
		for ix := range psi[iy] {
			v := e.pot[iy][ix]
			if g != 0 {
				d := real(psi[iy][ix])*real(psi[iy][ix]) + imag(psi[iy][ix])*imag(psi[iy][ix])
				v += g * d
			}
			arg := -0.5 * v * e.deltaT
			if imagTime {
				psi[iy][ix] *= complex(math.Exp(arg), 0)
			} else {
				psi[iy][ix] *= cmplx.Exp(complex(0, arg))
			}
		}
	}
}

func (e *SpectralEvolver) kinetic(psi [][]complex128, imagTime bool) {
	m := e.ham.Mass
	for iy := range psi {
		for ix := range psi[iy] {
			arg := -e.kSq[iy][ix] * e.deltaT / (2 * m)
			if imagTime {
				psi[iy][ix] *= complex(math.Exp(arg), 0)
			} else {
				psi[iy][ix] *= cmplx.Exp(complex(0, arg))
			}
		}
	}
}

func renormalize(psi [][]complex128, norm0, cellArea float64) {
	var sum float64
	for iy := range psi {
		for ix := range psi[iy] {
			sum += real(psi[iy][ix])*real(psi[iy][ix]) + imag(psi[iy][ix])*imag(psi[iy][ix])
		}
	}
	sum *= cellArea
	if sum == 0 {
		return
	}
	s := complex(math.Sqrt(norm0/sum), 0)
	for iy := range psi {
		for ix := range psi[iy] {
			psi[iy][ix] *= s
		}
	}
}

// wrapHalo refreshes the halo region of a single periodic tile from its
// inner region.
func wrapHalo(state *State) {
	l := state.Lat
	for iy := 0; iy < l.DimY; iy++ {
		gy := wrapIndex(l.StartY+iy, l.GlobalDimY)
		for ix := 0; ix < l.DimX; ix++ {
			if iy >= l.InnerOffsetY() && iy < l.InnerOffsetY()+l.InnerHeight() &&
				ix >= l.InnerOffsetX() && ix < l.InnerOffsetX()+l.InnerWidth() {
				continue
			}
			gx := wrapIndex(l.StartX+ix, l.GlobalDimX)
			src := (gy-l.InnerStartY+l.InnerOffsetY())*l.DimX + gx - l.InnerStartX + l.InnerOffsetX()
			dst := iy*l.DimX + ix
			state.Real[dst] = state.Real[src]
			state.Imag[dst] = state.Imag[src]
		}
	}
}

func wrapIndex(i, n int) int {
	return ((i % n) + n) % n
}
