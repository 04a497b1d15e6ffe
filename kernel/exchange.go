package kernel

import (
	"github.com/bhan123/trotter2d/lattice"
)

// Exchanger moves halo strips between a tile and its neighbors and
// carries the global reduction the step driver synchronizes on.
//
// The exchange is two-phase: Start issues the vertical strips (left and
// right columns, inner rows only), Finish resolves them and then runs the
// horizontal strips (top and bottom rows, full width). Corners reach the
// diagonal neighbors because the horizontal strips include the columns
// the vertical phase just filled.
type Exchanger interface {
	Start(f *quadField)
	Finish(f *quadField)
	// ReduceSum adds v across every partition of the topology and
	// returns the total; with one partition it returns v. It doubles
	// as the synchronization barrier.
	ReduceSum(v float64) float64
}

// gatherRect copies a rectangle of the field into 8 freshly allocated
// quadrant planes (4 real, 4 imaginary). All coordinates are in grid
// points and must be even, which the even-tile and even-halo invariants
// guarantee for every strip.
func gatherRect(f *quadField, x0, y0, w, h int) [][]float64 {
	w2, h2 := w/2, h/2
	planes := make([][]float64, 8)
	for i := range planes {
		planes[i] = make([]float64, w2*h2)
	}
	for pr := 0; pr < 2; pr++ {
		for pc := 0; pc < 2; pc++ {
			re := planes[pr*2+pc]
			im := planes[4+pr*2+pc]
			src := y0/2*f.w2 + x0/2
			for row := 0; row < h2; row++ {
				copy(re[row*w2:(row+1)*w2], f.re[pr][pc][src:src+w2])
				copy(im[row*w2:(row+1)*w2], f.im[pr][pc][src:src+w2])
				src += f.w2
			}
		}
	}
	return planes
}

// scatterRect writes 8 quadrant planes back into a rectangle of the field.
func scatterRect(f *quadField, planes [][]float64, x0, y0, w, h int) {
	w2, h2 := w/2, h/2
	for pr := 0; pr < 2; pr++ {
		for pc := 0; pc < 2; pc++ {
			re := planes[pr*2+pc]
			im := planes[4+pr*2+pc]
			dst := y0/2*f.w2 + x0/2
			for row := 0; row < h2; row++ {
				copy(f.re[pr][pc][dst:dst+w2], re[row*w2:(row+1)*w2])
				copy(f.im[pr][pc][dst:dst+w2], im[row*w2:(row+1)*w2])
				dst += f.w2
			}
		}
	}
}

// copyRect copies a rectangle within one field, used for the periodic
// wrap of a single partition.
func copyRect(f *quadField, dstX, dstY, srcX, srcY, w, h int) {
	w2, h2 := w/2, h/2
	for pr := 0; pr < 2; pr++ {
		for pc := 0; pc < 2; pc++ {
			src := srcY/2*f.w2 + srcX/2
			dst := dstY/2*f.w2 + dstX/2
			for row := 0; row < h2; row++ {
				copy(f.re[pr][pc][dst:dst+w2], f.re[pr][pc][src:src+w2])
				copy(f.im[pr][pc][dst:dst+w2], f.im[pr][pc][src:src+w2])
				src += f.w2
				dst += f.w2
			}
		}
	}
}

// Loopback satisfies Exchanger for a single partition. A periodic axis
// wraps the tile onto itself with local copies; a closed axis has a zero
// halo and nothing to move.
type Loopback struct {
	lat *lattice.Lattice
}

// NewLoopback builds the single-partition exchanger.
func NewLoopback(lat *lattice.Lattice) *Loopback {
	return &Loopback{lat: lat}
}

// Start wraps the vertical halo columns.
func (e *Loopback) Start(f *quadField) {
	l := e.lat
	hx := l.HaloX
	if hx == 0 {
		return
	}
	y0, h := l.InnerOffsetY(), l.InnerHeight()
	copyRect(f, 0, y0, l.DimX-2*hx, y0, hx, h)
	copyRect(f, l.DimX-hx, y0, hx, y0, hx, h)
}

// Finish wraps the horizontal halo rows across the full width.
func (e *Loopback) Finish(f *quadField) {
	l := e.lat
	hy := l.HaloY
	if hy == 0 {
		return
	}
	copyRect(f, 0, 0, 0, l.DimY-2*hy, l.DimX, hy)
	copyRect(f, 0, l.DimY-hy, 0, hy, l.DimX, hy)
}

// ReduceSum is the identity for a single partition.
func (e *Loopback) ReduceSum(v float64) float64 { return v }

// MeshExchanger moves halo strips over a lattice.Mesh mailbox fabric.
// Sends are buffered one deep, so Start never blocks; Finish blocks on
// the matching receives, which bounds neighbor skew to a single step.
type MeshExchanger struct {
	mesh *lattice.Mesh
	lat  *lattice.Lattice
	rank int
	nbr  [4]int
}

// NewMeshExchanger builds the exchanger for one partition of the mesh.
func NewMeshExchanger(mesh *lattice.Mesh, lat *lattice.Lattice) *MeshExchanger {
	return &MeshExchanger{
		mesh: mesh,
		lat:  lat,
		rank: lat.Rank,
		nbr:  mesh.Neighbors(lat.Rank),
	}
}

// Start posts the vertical strips toward both horizontal neighbors.
// A strip posted to the left neighbor lands in that neighbor's Right
// mailbox, since this partition sits to its right.
func (e *MeshExchanger) Start(f *quadField) {
	l := e.lat
	hx := l.HaloX
	if hx == 0 {
		return
	}
	y0, h := l.InnerOffsetY(), l.InnerHeight()
	if to := e.nbr[lattice.Left]; to != lattice.NoNeighbor {
		e.mesh.Send(to, lattice.Right, gatherRect(f, hx, y0, hx, h))
	}
	if to := e.nbr[lattice.Right]; to != lattice.NoNeighbor {
		e.mesh.Send(to, lattice.Left, gatherRect(f, l.DimX-2*hx, y0, hx, h))
	}
}

// Finish lands the vertical strips, then runs the horizontal phase to
// completion. The horizontal strips span the full tile width so that the
// freshly filled vertical halo columns propagate to the diagonals.
func (e *MeshExchanger) Finish(f *quadField) {
	l := e.lat
	hx, hy := l.HaloX, l.HaloY
	if hx > 0 {
		y0, h := l.InnerOffsetY(), l.InnerHeight()
		if e.nbr[lattice.Left] != lattice.NoNeighbor {
			scatterRect(f, e.mesh.Recv(e.rank, lattice.Left), 0, y0, hx, h)
		}
		if e.nbr[lattice.Right] != lattice.NoNeighbor {
			scatterRect(f, e.mesh.Recv(e.rank, lattice.Right), l.DimX-hx, y0, hx, h)
		}
	}
	if hy == 0 {
		return
	}
	if to := e.nbr[lattice.Up]; to != lattice.NoNeighbor {
		e.mesh.Send(to, lattice.Down, gatherRect(f, 0, hy, l.DimX, hy))
	}
	if to := e.nbr[lattice.Down]; to != lattice.NoNeighbor {
		e.mesh.Send(to, lattice.Up, gatherRect(f, 0, l.DimY-2*hy, l.DimX, hy))
	}
	if e.nbr[lattice.Up] != lattice.NoNeighbor {
		scatterRect(f, e.mesh.Recv(e.rank, lattice.Up), 0, 0, l.DimX, hy)
	}
	if e.nbr[lattice.Down] != lattice.NoNeighbor {
		scatterRect(f, e.mesh.Recv(e.rank, lattice.Down), 0, l.DimY-hy, l.DimX, hy)
	}
}

// ReduceSum runs the mesh-wide all-reduce.
func (e *MeshExchanger) ReduceSum(v float64) float64 {
	return e.mesh.ReduceSum(v)
}
