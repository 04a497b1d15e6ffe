package solver

// Potential is a static external potential evaluated at physical
// coordinates.
type Potential interface {
	Value(x, y float64) float64
}

// PotentialFunc adapts a plain function to the Potential interface.
type PotentialFunc func(x, y float64) float64

func (f PotentialFunc) Value(x, y float64) float64 { return f(x, y) }

// ZeroPotential is free space.
var ZeroPotential Potential = PotentialFunc(func(x, y float64) float64 { return 0 })

// HarmonicPotential is the anisotropic harmonic trap
// V(x, y) = (omegaX²·x² + omegaY²·y²) / 2.
type HarmonicPotential struct {
	OmegaX, OmegaY float64
}

// NewHarmonicPotential builds the trap with the given angular frequencies.
func NewHarmonicPotential(omegaX, omegaY float64) *HarmonicPotential {
	return &HarmonicPotential{OmegaX: omegaX, OmegaY: omegaY}
}

func (p *HarmonicPotential) Value(x, y float64) float64 {
	return 0.5 * (p.OmegaX*p.OmegaX*x*x + p.OmegaY*p.OmegaY*y*y)
}

// Hamiltonian bundles the terms of the evolution: kinetic (mass),
// external potential, and the mean-field self-interaction coupling of
// the Gross-Pitaevskii nonlinearity.
type Hamiltonian struct {
	Mass      float64
	Potential Potential
	Coupling  float64
}

// NewHamiltonian builds a Hamiltonian; a nil potential means free space.
func NewHamiltonian(mass float64, pot Potential, coupling float64) *Hamiltonian {
	if pot == nil {
		pot = ZeroPotential
	}
	return &Hamiltonian{Mass: mass, Potential: pot, Coupling: coupling}
}
