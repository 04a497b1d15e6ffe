// Package lattice describes the rectangular grid a wave function lives on
// and how that grid is cut into tiles across parallel partitions.
//
// A Lattice is the view of one partition: the tile it owns, the halo strips
// it mirrors from its neighbors, and its position inside the partition
// topology. A Mesh is the topology itself plus the in-process message
// fabric the partitions use to exchange halo strips and to reduce global
// sums.
package lattice

import (
	"fmt"
)

// Neighbor directions, in the order halo traffic is addressed.
const (
	Up = iota
	Down
	Left
	Right
)

// DefaultHalo is the halo thickness used when the caller does not pick one.
// It covers the reach of the full kinetic pass sequence with margin.
const DefaultHalo = 4

// NoNeighbor marks a closed boundary in a neighbor table.
const NoNeighbor = -1

// Config carries the construction parameters for a lattice.
type Config struct {
	// DimX, DimY are the global grid dimensions, excluding any halo.
	DimX, DimY int
	// LengthX, LengthY are the physical extents of the grid.
	LengthX, LengthY float64
	// PeriodicX, PeriodicY select periodic instead of closed boundaries.
	PeriodicX, PeriodicY bool
	// HaloX, HaloY override the halo thickness per axis. Zero means
	// derive it: DefaultHalo where a halo is needed, none otherwise.
	HaloX, HaloY int
}

// Lattice is one partition's tile geometry inside the global grid.
//
// Start/End delimit the tile including its halo, InnerStart/InnerEnd the
// halo-free region this partition owns authoritatively. All four are global
// grid coordinates; the tile buffer itself is indexed locally from Start.
type Lattice struct {
	LengthX, LengthY float64
	DeltaX, DeltaY   float64

	// DimX, DimY are the local tile dimensions including the halo.
	DimX, DimY int
	// GlobalDimX, GlobalDimY are the global grid dimensions without halo.
	GlobalDimX, GlobalDimY int

	PeriodicX, PeriodicY bool
	HaloX, HaloY         int

	StartX, EndX           int
	StartY, EndY           int
	InnerStartX, InnerEndX int
	InnerStartY, InnerEndY int

	// Coords is this partition's position in the topology; Dims the
	// topology extents. Rank is the flattened position, Procs the total
	// partition count. A single-partition lattice has rank 0 of 1.
	Coords [2]int
	Dims   [2]int
	Rank   int
	Procs  int
}

// New builds a single-partition lattice covering the whole grid.
func New(cfg Config) (*Lattice, error) {
	m, err := NewMesh(cfg, 1, 1)
	if err != nil {
		return nil, err
	}
	return m.Tile(0), nil
}

// validate rejects construction parameters the tiled layout cannot carry.
func (cfg *Config) validate() error {
	if cfg.DimX <= 0 || cfg.DimY <= 0 {
		return fmt.Errorf("lattice: grid dimensions must be positive, got %dx%d", cfg.DimX, cfg.DimY)
	}
	if cfg.DimX%2 != 0 || cfg.DimY%2 != 0 {
		return fmt.Errorf("lattice: grid dimensions must be even, got %dx%d", cfg.DimX, cfg.DimY)
	}
	if cfg.LengthX <= 0 || cfg.LengthY <= 0 {
		return fmt.Errorf("lattice: physical extents must be positive, got %gx%g", cfg.LengthX, cfg.LengthY)
	}
	if cfg.HaloX < 0 || cfg.HaloY < 0 || cfg.HaloX%2 != 0 || cfg.HaloY%2 != 0 {
		return fmt.Errorf("lattice: halo thickness must be even and non-negative, got %d,%d", cfg.HaloX, cfg.HaloY)
	}
	return nil
}

// halo picks the per-axis halo thickness: the configured override when
// present, none on a closed single-partition axis, DefaultHalo otherwise.
func halo(override, procs int, periodic bool) int {
	if override > 0 {
		return override
	}
	if procs == 1 && !periodic {
		return 0
	}
	return DefaultHalo
}

// borders computes the tile extents of one partition along one axis.
// The inner region splits the axis as evenly as possible; the halo extends
// it on each side, clamped at closed grid edges.
func borders(coord, procs, length, halo int, periodic bool) (start, end, innerStart, innerEnd int) {
	inner := (length + procs - 1) / procs
	innerStart = coord * inner
	innerEnd = innerStart + inner
	if innerEnd > length {
		innerEnd = length
	}
	start = innerStart - halo
	end = innerEnd + halo
	if !periodic {
		if start < 0 {
			start = 0
		}
		if end > length {
			end = length
		}
	}
	return start, end, innerStart, innerEnd
}

// CoordX returns the physical x coordinate of local tile column ix,
// measured from the grid center. Halo columns wrap on periodic axes.
func (l *Lattice) CoordX(ix int) float64 {
	g := l.StartX + ix
	if l.PeriodicX {
		g = ((g % l.GlobalDimX) + l.GlobalDimX) % l.GlobalDimX
	}
	return -l.LengthX/2 + (float64(g)+0.5)*l.DeltaX
}

// CoordY returns the physical y coordinate of local tile row iy.
func (l *Lattice) CoordY(iy int) float64 {
	g := l.StartY + iy
	if l.PeriodicY {
		g = ((g % l.GlobalDimY) + l.GlobalDimY) % l.GlobalDimY
	}
	return -l.LengthY/2 + (float64(g)+0.5)*l.DeltaY
}

// InnerWidth returns the width of the halo-free region in grid points.
func (l *Lattice) InnerWidth() int { return l.InnerEndX - l.InnerStartX }

// InnerHeight returns the height of the halo-free region in grid points.
func (l *Lattice) InnerHeight() int { return l.InnerEndY - l.InnerStartY }

// InnerOffsetX returns the local column where the halo-free region begins.
func (l *Lattice) InnerOffsetX() int { return l.InnerStartX - l.StartX }

// InnerOffsetY returns the local row where the halo-free region begins.
func (l *Lattice) InnerOffsetY() int { return l.InnerStartY - l.StartY }
