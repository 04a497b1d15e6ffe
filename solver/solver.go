package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/bhan123/trotter2d/kernel"
	"github.com/bhan123/trotter2d/lattice"
)

// coordTolerance bounds the anisotropy the single-angle kinetic
// propagator tolerates between the two lattice spacings.
const coordTolerance = 1e-12

// Options selects the execution backend and its tuning knobs.
type Options struct {
	// Kernel names the backend: "cpu" (default) or "opencl".
	Kernel string
	// BlockWidth, BlockHeight override the cache-block extents.
	BlockWidth, BlockHeight int
	// Workers caps the CPU backend's band workers.
	Workers int
	// Mesh connects this solver to a multi-partition topology. Nil runs
	// a single partition with a loopback exchange.
	Mesh *lattice.Mesh
}

// Solver owns the per-iteration sequence: halo exchange around the
// interior update, boundary bands, then the global synchronization point.
// The kernel is rebuilt whenever the time direction flips, since the
// rotation coefficients and the potential phase both change form.
type Solver struct {
	lat   *lattice.Lattice
	state *State
	ham   *Hamiltonian

	deltaT float64
	opts   Options

	kern     kernel.Kernel
	imagTime bool

	potVals      []float64
	expRe, expIm []float64
	densRe       []float64
	densIm       []float64

	// CurrentEvolutionTime accumulates the physical time evolved so far.
	CurrentEvolutionTime float64
}

// New builds a solver over one tile. The state is evolved in place: after
// every Evolve call its planes hold the current wave function.
func New(lat *lattice.Lattice, state *State, ham *Hamiltonian, deltaT float64, opts Options) (*Solver, error) {
	if deltaT <= 0 {
		return nil, fmt.Errorf("solver: time step must be positive, got %g", deltaT)
	}
	if math.Abs(lat.DeltaX-lat.DeltaY) > coordTolerance*lat.DeltaX {
		return nil, fmt.Errorf("solver: anisotropic spacing %g x %g is not supported", lat.DeltaX, lat.DeltaY)
	}
	if ham == nil {
		return nil, errors.New("solver: nil hamiltonian")
	}
	if ham.Mass <= 0 {
		return nil, fmt.Errorf("solver: mass must be positive, got %g", ham.Mass)
	}
	if state == nil || state.Lat != lat {
		return nil, errors.New("solver: state does not live on the given lattice")
	}
	s := &Solver{
		lat:    lat,
		state:  state,
		ham:    ham,
		deltaT: deltaT,
		opts:   opts,
	}
	n := lat.DimX * lat.DimY
	s.potVals = make([]float64, n)
	s.expRe = make([]float64, n)
	s.expIm = make([]float64, n)
	for iy := 0; iy < lat.DimY; iy++ {
		y := lat.CoordY(iy)
		for ix := 0; ix < lat.DimX; ix++ {
			s.potVals[iy*lat.DimX+ix] = ham.Potential.Value(lat.CoordX(ix), y)
		}
	}
	return s, nil
}

// expPotential fills the exponential potential planes for the given
// effective potential: exp(-i·V·dt) in real time, exp(-V·dt) in
// imaginary time.
func (s *Solver) expPotential(veff []float64, imagTime bool) {
	if imagTime {
		for i, v := range veff {
			s.expRe[i] = math.Exp(-v * s.deltaT)
			s.expIm[i] = 0
		}
		return
	}
	for i, v := range veff {
		s.expRe[i] = math.Cos(v * s.deltaT)
		s.expIm[i] = -math.Sin(v * s.deltaT)
	}
}

// effectivePotential is the external potential plus the mean-field term
// of the current density when the coupling is non-zero.
func (s *Solver) effectivePotential(pReal, pImag []float64) []float64 {
	if s.ham.Coupling == 0 {
		return s.potVals
	}
	veff := make([]float64, len(s.potVals))
	for i := range veff {
		d := pReal[i]*pReal[i] + pImag[i]*pImag[i]
		veff[i] = s.potVals[i] + s.ham.Coupling*d
	}
	return veff
}

// rebuildKernel constructs the backend for the given time direction from
// the current state.
func (s *Solver) rebuildKernel(imagTime bool) error {
	if s.kern != nil {
		s.kern.Close()
		s.kern = nil
	}
	theta := s.deltaT / (4 * s.ham.Mass * s.lat.DeltaX * s.lat.DeltaX)
	cfg := kernel.Config{
		ImagTime:    imagTime,
		BlockWidth:  s.opts.BlockWidth,
		BlockHeight: s.opts.BlockHeight,
		Workers:     s.opts.Workers,
	}
	if imagTime {
		cfg.A, cfg.B = math.Cosh(theta), math.Sinh(theta)
	} else {
		cfg.A, cfg.B = math.Cos(theta), math.Sin(theta)
	}
	s.expPotential(s.effectivePotential(s.state.Real, s.state.Imag), imagTime)
	cfg.ExpPotReal = append([]float64(nil), s.expRe...)
	cfg.ExpPotImag = append([]float64(nil), s.expIm...)

	var ex kernel.Exchanger
	if s.opts.Mesh != nil {
		ex = kernel.NewMeshExchanger(s.opts.Mesh, s.lat)
	} else {
		ex = kernel.NewLoopback(s.lat)
	}
	kern, err := kernel.New(s.opts.Kernel, s.lat, ex, s.state.Real, s.state.Imag, cfg)
	if err != nil {
		return err
	}
	s.kern = kern
	s.imagTime = imagTime
	return nil
}

// Evolve advances the state by the given number of time steps. Each step
// runs the fixed sequence: start the vertical halo exchange, advance the
// interior bands, finish the exchange, advance the boundary bands (which
// flips the generation), then synchronize globally. Imaginary time
// renormalizes the state every step.
func (s *Solver) Evolve(iterations int, imagTime bool) error {
	if iterations <= 0 {
		return nil
	}
	if s.kern == nil || s.imagTime != imagTime {
		if err := s.rebuildKernel(imagTime); err != nil {
			return err
		}
	}
	nonlinear := s.ham.Coupling != 0
	if nonlinear && s.densRe == nil {
		n := s.lat.DimX * s.lat.DimY
		s.densRe = make([]float64, n)
		s.densIm = make([]float64, n)
	}
	for i := 0; i < iterations; i++ {
		if nonlinear && i > 0 {
			s.kern.GetSample(s.lat.DimX, 0, 0, s.lat.DimX, s.lat.DimY, s.densRe, s.densIm)
			s.expPotential(s.effectivePotential(s.densRe, s.densIm), imagTime)
			if err := s.kern.UpdatePotential(s.expRe, s.expIm); err != nil {
				return err
			}
		}
		s.kern.StartHaloExchange()
		s.kern.RunKernel()
		s.kern.FinishHaloExchange()
		s.kern.RunKernelOnHalo()
		s.kern.WaitForCompletion()
	}
	s.kern.GetSample(s.lat.DimX, 0, 0, s.lat.DimX, s.lat.DimY, s.state.Real, s.state.Imag)
	s.CurrentEvolutionTime += float64(iterations) * s.deltaT
	return nil
}

// KernelName reports the backend in use, or the configured name before
// the first Evolve call.
func (s *Solver) KernelName() string {
	if s.kern != nil {
		return s.kern.Name()
	}
	if s.opts.Kernel == "" {
		return "cpu"
	}
	return s.opts.Kernel
}

// SquaredNorm returns the squared norm of the current state on this tile.
func (s *Solver) SquaredNorm() float64 {
	return s.state.SquaredNorm()
}

// KineticEnergy integrates |grad psi|²/2m over the inner region,
// normalized by the squared norm.
func (s *Solver) KineticEnergy() float64 {
	l := s.lat
	var sum, norm float64
	x0, y0 := l.InnerOffsetX(), l.InnerOffsetY()
	for iy := y0; iy < y0+l.InnerHeight(); iy++ {
		for ix := x0; ix < x0+l.InnerWidth(); ix++ {
			if ix == 0 || ix == l.DimX-1 || iy == 0 || iy == l.DimY-1 {
				continue
			}
			i := iy*l.DimX + ix
			dxRe := (s.state.Real[i+1] - s.state.Real[i-1]) / (2 * l.DeltaX)
			dxIm := (s.state.Imag[i+1] - s.state.Imag[i-1]) / (2 * l.DeltaX)
			dyRe := (s.state.Real[i+l.DimX] - s.state.Real[i-l.DimX]) / (2 * l.DeltaY)
			dyIm := (s.state.Imag[i+l.DimX] - s.state.Imag[i-l.DimX]) / (2 * l.DeltaY)
			sum += dxRe*dxRe + dxIm*dxIm + dyRe*dyRe + dyIm*dyIm
			norm += s.state.Real[i]*s.state.Real[i] + s.state.Imag[i]*s.state.Imag[i]
		}
	}
	if norm == 0 {
		return 0
	}
	return sum / (2 * s.ham.Mass * norm)
}

// PotentialEnergy integrates the external potential against the density,
// normalized by the squared norm.
func (s *Solver) PotentialEnergy() float64 {
	l := s.lat
	var sum, norm float64
	x0, y0 := l.InnerOffsetX(), l.InnerOffsetY()
	for iy := y0; iy < y0+l.InnerHeight(); iy++ {
		for ix := x0; ix < x0+l.InnerWidth(); ix++ {
			i := iy*l.DimX + ix
			d := s.state.Real[i]*s.state.Real[i] + s.state.Imag[i]*s.state.Imag[i]
			sum += s.potVals[i] * d
			norm += d
		}
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// IntraSpeciesEnergy is the mean-field self-interaction term
// (g/2)·∫|psi|⁴, normalized by the squared norm.
func (s *Solver) IntraSpeciesEnergy() float64 {
	if s.ham.Coupling == 0 {
		return 0
	}
	l := s.lat
	var sum, norm float64
	x0, y0 := l.InnerOffsetX(), l.InnerOffsetY()
	for iy := y0; iy < y0+l.InnerHeight(); iy++ {
		for ix := x0; ix < x0+l.InnerWidth(); ix++ {
			i := iy*l.DimX + ix
			d := s.state.Real[i]*s.state.Real[i] + s.state.Imag[i]*s.state.Imag[i]
			sum += 0.5 * s.ham.Coupling * d * d
			norm += d
		}
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// TotalEnergy is the sum of the kinetic, external potential, and
// self-interaction terms.
func (s *Solver) TotalEnergy() float64 {
	return s.KineticEnergy() + s.PotentialEnergy() + s.IntraSpeciesEnergy()
}

// Close releases the backend.
func (s *Solver) Close() {
	if s.kern != nil {
		s.kern.Close()
		s.kern = nil
	}
}
