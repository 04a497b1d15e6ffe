package solver

import (
	"math"
	"testing"

	"github.com/bhan123/trotter2d/lattice"
)

// trapLattice is a periodic square grid large enough that a trapped
// ground state decays to nothing at the boundary.
func trapLattice(t *testing.T, dim int, length float64) *lattice.Lattice {
	t.Helper()
	lat, err := lattice.New(lattice.Config{
		DimX: dim, DimY: dim,
		LengthX: length, LengthY: length,
		PeriodicX: true, PeriodicY: true,
	})
	if err != nil {
		t.Fatalf("building lattice: %v", err)
	}
	return lat
}

func TestGaussianStateNorm(t *testing.T) {
	lat := trapLattice(t, 64, 12)
	s := NewGaussianState(lat, 1, 0, 0, 1, 0)
	if norm := s.SquaredNorm(); math.Abs(norm-1) > 1e-6 {
		t.Fatalf("gaussian squared norm: got %g want 1", norm)
	}
}

func TestGaussianStateMoments(t *testing.T) {
	lat := trapLattice(t, 64, 12)
	s := NewGaussianState(lat, 1, 0, 0, 1, 0)
	if m := s.MeanX(); math.Abs(m) > 1e-9 {
		t.Fatalf("mean x: got %g want 0", m)
	}
	// <x^2> of exp(-omega x^2) density is 1/(2 omega).
	if m := s.MeanXX(); math.Abs(m-0.5) > 1e-3 {
		t.Fatalf("mean x^2: got %g want 0.5", m)
	}
	if p := s.MeanPx(); math.Abs(p) > 1e-9 {
		t.Fatalf("mean px: got %g want 0", p)
	}
}

func TestExponentialStateMomentum(t *testing.T) {
	lat := trapLattice(t, 64, 16)
	s := NewExponentialState(lat, 2, 0, 1, 0)
	want := 2 * 2 * math.Pi / lat.LengthX
	if p := s.MeanPx(); math.Abs(p-want) > 1e-2*want {
		t.Fatalf("plane wave momentum: got %g want %g", p, want)
	}
	if norm := s.SquaredNorm(); math.Abs(norm-1) > 1e-9 {
		t.Fatalf("plane wave squared norm: got %g want 1", norm)
	}
}

func TestEvolveConservesNorm(t *testing.T) {
	lat := trapLattice(t, 64, 12)
	s := NewGaussianState(lat, 1, 0, 0, 1, 0)
	ham := NewHamiltonian(1, NewHarmonicPotential(1, 1), 0)
	sv, err := New(lat, s, ham, 1e-3, Options{})
	if err != nil {
		t.Fatalf("building solver: %v", err)
	}
	defer sv.Close()

	if err := sv.Evolve(50, false); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if norm := s.SquaredNorm(); math.Abs(norm-1) > 1e-8 {
		t.Fatalf("norm after real-time evolution: got %g want 1", norm)
	}
}

// Imaginary-time evolution in a harmonic trap must relax toward the
// ground state, whose energy is (omegaX + omegaY) / 2.
func TestImaginaryTimeRelaxation(t *testing.T) {
	lat := trapLattice(t, 64, 12)
	// Start well away from the ground state.
	s := NewGaussianState(lat, 0.3, 0.8, -0.5, 1, 0)
	ham := NewHamiltonian(1, NewHarmonicPotential(1, 1), 0)
	sv, err := New(lat, s, ham, 1e-2, Options{})
	if err != nil {
		t.Fatalf("building solver: %v", err)
	}
	defer sv.Close()

	// Renormalization targets the discrete norm the run started with,
	// which differs from the analytic 1 by the grid truncation of the
	// Gaussian tail.
	startNorm := s.SquaredNorm()

	if err := sv.Evolve(400, true); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if norm := s.SquaredNorm(); math.Abs(norm-startNorm) > 1e-6 {
		t.Fatalf("norm after renormalized evolution: got %g want %g", norm, startNorm)
	}
	if e := sv.TotalEnergy(); math.Abs(e-1) > 0.05 {
		t.Fatalf("ground state energy: got %g want 1", e)
	}
	if m := s.MeanX(); math.Abs(m) > 0.05 {
		t.Fatalf("ground state mean x: got %g want 0", m)
	}
}

// Switching time direction mid-run rebuilds the kernel; the state must
// carry over seamlessly.
func TestEvolveDirectionSwitch(t *testing.T) {
	lat := trapLattice(t, 32, 10)
	s := NewGaussianState(lat, 1, 0, 0, 1, 0)
	ham := NewHamiltonian(1, NewHarmonicPotential(1, 1), 0)
	sv, err := New(lat, s, ham, 1e-3, Options{})
	if err != nil {
		t.Fatalf("building solver: %v", err)
	}
	defer sv.Close()

	if err := sv.Evolve(10, true); err != nil {
		t.Fatalf("imaginary evolve: %v", err)
	}
	if err := sv.Evolve(10, false); err != nil {
		t.Fatalf("real evolve: %v", err)
	}
	if norm := s.SquaredNorm(); math.Abs(norm-1) > 1e-6 {
		t.Fatalf("norm after direction switch: got %g want 1", norm)
	}
}

// The stencil kernel and the spectral propagator share no code; both must
// relax to the same harmonic ground state density.
func TestSpectralCrossCheck(t *testing.T) {
	lat1 := trapLattice(t, 32, 10)
	lat2 := trapLattice(t, 32, 10)
	ham := NewHamiltonian(1, NewHarmonicPotential(1, 1), 0)

	s1 := NewGaussianState(lat1, 0.5, 0.3, 0, 1, 0)
	sv, err := New(lat1, s1, ham, 1e-2, Options{})
	if err != nil {
		t.Fatalf("building solver: %v", err)
	}
	defer sv.Close()
	if err := sv.Evolve(800, true); err != nil {
		t.Fatalf("kernel evolve: %v", err)
	}

	s2 := NewGaussianState(lat2, 0.5, 0.3, 0, 1, 0)
	sp, err := NewSpectral(lat2, ham, 1e-2)
	if err != nil {
		t.Fatalf("building spectral evolver: %v", err)
	}
	if err := sp.Evolve(s2, 800, true); err != nil {
		t.Fatalf("spectral evolve: %v", err)
	}

	d1 := s1.Density()
	d2 := s2.Density()
	var maxDiff float64
	for i := range d1 {
		if diff := math.Abs(d1[i] - d2[i]); diff > maxDiff {
			maxDiff = diff
		}
	}
	if maxDiff > 1e-2 {
		t.Fatalf("propagators disagree on the ground state density by %g", maxDiff)
	}
}

func TestSolverRejectsBadConfig(t *testing.T) {
	lat := trapLattice(t, 32, 10)
	s := NewGaussianState(lat, 1, 0, 0, 1, 0)
	ham := NewHamiltonian(1, nil, 0)
	if _, err := New(lat, s, ham, 0, Options{}); err == nil {
		t.Fatal("expected error for zero time step")
	}
	if _, err := New(lat, s, NewHamiltonian(-1, nil, 0), 1e-3, Options{}); err == nil {
		t.Fatal("expected error for non-positive mass")
	}
	if _, err := New(lat, nil, ham, 1e-3, Options{}); err == nil {
		t.Fatal("expected error for nil state")
	}
}
