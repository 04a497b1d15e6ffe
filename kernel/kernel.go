// Package kernel evolves a 2D complex field by one Trotter-Suzuki time step
// at a time: a pointwise potential phase followed by the kinetic operator,
// applied as a palindromic sequence of nearest-neighbor rotations over a
// parity-split (quadrant) field layout.
//
// The kernel owns the double-buffered field of one partition tile. Halo
// strips are imported from neighboring tiles through an Exchanger before
// the boundary bands are advanced, so the tile always computes against
// up-to-date neighbor data.
package kernel

import (
	"fmt"
	"math"

	"github.com/bhan123/trotter2d/lattice"
)

// Default cache-block extents for the tiled update.
const (
	DefaultBlockWidth  = 128
	DefaultBlockHeight = 128
)

// coefficientTolerance bounds how far the rotation coefficients may drift
// from the unit constraint before construction is rejected.
const coefficientTolerance = 1e-9

// Kernel is the capability set every execution backend implements. The
// step driver is written against this interface only and never branches
// on the concrete backend.
//
// The per-iteration call sequence is fixed: StartHaloExchange, RunKernel,
// FinishHaloExchange, RunKernelOnHalo (which ends with the generation
// flip), then WaitForCompletion whenever global synchronization or
// renormalization is due.
type Kernel interface {
	// RunKernel advances the bands of the tile that need no imported
	// halo data, writing the next generation. It may overlap with an
	// in-flight halo exchange.
	RunKernel()
	// RunKernelOnHalo advances the boundary-dependent bands and then
	// flips the generation; afterwards the new state is current.
	RunKernelOnHalo()
	// StartHaloExchange issues the vertical strip exchange without
	// blocking.
	StartHaloExchange()
	// FinishHaloExchange waits for the vertical phase, then performs
	// the horizontal phase to completion.
	FinishHaloExchange()
	// WaitForCompletion synchronizes the whole topology. In imaginary
	// time it also renormalizes the state to the construction-time norm.
	WaitForCompletion()
	// GetSample copies a width x height window of the current state at
	// tile coordinate (x, y) into destReal and destImag, destStride
	// elements per row. The window must lie within the tile.
	GetSample(destStride, x, y, width, height int, destReal, destImag []float64)
	// UpdatePotential replaces the exponential potential planes, e.g.
	// when a density-dependent term changes between iterations. The
	// planes are flat row-major over the tile, halo included.
	UpdatePotential(expReal, expImag []float64) error
	// Normalization rescales the field by the square root of norm; a
	// non-positive norm means the current global squared norm. It
	// returns the squared norm that was used.
	Normalization(norm float64) float64
	// SquaredNorm returns the global squared norm of the current state.
	SquaredNorm() float64
	// Name identifies the backend.
	Name() string
	// RunsInPlace reports whether the backend updates its buffers in
	// place instead of double-buffering.
	RunsInPlace() bool
	// Close releases backend resources. The kernel must not be used
	// afterwards.
	Close()
}

// errFieldSize reports initial planes that do not cover the tile.
func errFieldSize(lat *lattice.Lattice, nReal, nImag int) error {
	return fmt.Errorf("kernel: initial planes are %d/%d elements, tile needs %d", nReal, nImag, lat.DimX*lat.DimY)
}

// Config carries the construction parameters shared by all backends.
type Config struct {
	// A, B are the rotation coefficients of the two-point kinetic
	// propagator: a²+b²=1 for real time, a²-b²=1 for imaginary time.
	A, B float64
	// ImagTime selects imaginary-time (relaxation) evolution.
	ImagTime bool
	// ExpPotReal, ExpPotImag hold the pointwise exponential of the
	// potential term over the tile (row-major, halo included). Nil
	// means free evolution.
	ExpPotReal, ExpPotImag []float64
	// BlockWidth, BlockHeight set the cache-block extents; zero picks
	// the defaults. Tiling is a locality parameter only and never
	// changes results.
	BlockWidth, BlockHeight int
	// Workers caps the band worker goroutines used by the CPU backend.
	// Zero means one per available CPU.
	Workers int
}

// New selects a backend by name and builds it over the given tile.
// The initial field is copied out of pReal/pImag into the internal
// quadrant layout; the slices are not retained.
func New(name string, lat *lattice.Lattice, ex Exchanger, pReal, pImag []float64, cfg Config) (Kernel, error) {
	switch name {
	case "", "cpu":
		return NewCPU(lat, ex, pReal, pImag, cfg)
	case "opencl":
		return NewOpenCL(lat, ex, pReal, pImag, cfg)
	default:
		return nil, fmt.Errorf("kernel: unknown backend %q", name)
	}
}

// validate checks the structural preconditions the quadrant layout and
// block tiling depend on. Violations are configuration errors; nothing is
// checked again in the hot path.
func (cfg *Config) validate(lat *lattice.Lattice) error {
	if lat.DimX <= 0 || lat.DimY <= 0 {
		return fmt.Errorf("kernel: tile dimensions must be positive, got %dx%d", lat.DimX, lat.DimY)
	}
	if lat.DimX%2 != 0 || lat.DimY%2 != 0 {
		return fmt.Errorf("kernel: tile dimensions must be even, got %dx%d", lat.DimX, lat.DimY)
	}
	unit := cfg.A*cfg.A + cfg.B*cfg.B
	if cfg.ImagTime {
		unit = cfg.A*cfg.A - cfg.B*cfg.B
	}
	if math.Abs(unit-1) > coefficientTolerance {
		return fmt.Errorf("kernel: rotation coefficients a=%g b=%g break the unit constraint", cfg.A, cfg.B)
	}
	if cfg.ExpPotReal != nil && len(cfg.ExpPotReal) != lat.DimX*lat.DimY {
		return fmt.Errorf("kernel: potential plane is %d elements, tile needs %d", len(cfg.ExpPotReal), lat.DimX*lat.DimY)
	}
	if cfg.ExpPotImag != nil && len(cfg.ExpPotImag) != lat.DimX*lat.DimY {
		return fmt.Errorf("kernel: potential plane is %d elements, tile needs %d", len(cfg.ExpPotImag), lat.DimX*lat.DimY)
	}
	return nil
}

// blockSpans resolves the configured block extents against the tile: a
// zero-halo axis takes the whole tile in one span, and a block never
// marches with a non-positive stride.
func (cfg *Config) blockSpans(lat *lattice.Lattice) (blockW, blockH int, err error) {
	blockW, blockH = cfg.BlockWidth, cfg.BlockHeight
	if blockW == 0 {
		blockW = DefaultBlockWidth
	}
	if blockH == 0 {
		blockH = DefaultBlockHeight
	}
	if blockW%2 != 0 || blockH%2 != 0 {
		return 0, 0, fmt.Errorf("kernel: block extents must be even, got %dx%d", blockW, blockH)
	}
	if lat.HaloX == 0 || blockW > lat.DimX {
		blockW = lat.DimX
	}
	if lat.HaloY == 0 || blockH > lat.DimY {
		blockH = lat.DimY
	}
	if lat.DimX > blockW && blockW <= 2*lat.HaloX {
		return 0, 0, fmt.Errorf("kernel: block width %d cannot march over halo %d", blockW, lat.HaloX)
	}
	if lat.DimY > blockH && blockH <= 2*lat.HaloY {
		return 0, 0, fmt.Errorf("kernel: block height %d cannot march over halo %d", blockH, lat.HaloY)
	}
	return blockW, blockH, nil
}
