package lattice

import (
	"fmt"
	"sync"
)

// Mesh is a fixed 2D grid of partitions running inside one process.
//
// It owns the topology (who neighbors whom, with periodic wrap where the
// grid is periodic), a mailbox fabric for halo strips, and a global sum
// reducer. Partitions run as goroutines; the mesh assumes all of them stay
// alive for the lifetime of the run, so there is no failure recovery.
type Mesh struct {
	cfg    Config
	procsX int
	procsY int
	haloX  int
	haloY  int

	// inbox[rank][dir] receives the strips sent toward rank from the
	// neighbor in direction dir. Capacity one keeps sends non-blocking
	// up to one step of skew between neighbors.
	inbox [][4]chan [][]float64

	red reducer
}

// NewMesh builds the topology for procsX by procsY partitions over the
// grid described by cfg.
func NewMesh(cfg Config, procsX, procsY int) (*Mesh, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if procsX <= 0 || procsY <= 0 {
		return nil, fmt.Errorf("lattice: partition grid must be positive, got %dx%d", procsX, procsY)
	}
	if cfg.DimX%(2*procsX) != 0 || cfg.DimY%(2*procsY) != 0 {
		return nil, fmt.Errorf("lattice: %dx%d grid does not split into even tiles over %dx%d partitions",
			cfg.DimX, cfg.DimY, procsX, procsY)
	}
	// A closed axis with a single partition has no neighbor to mirror, so
	// there are no halo cells for an override to describe.
	if cfg.HaloX > 0 && procsX == 1 && !cfg.PeriodicX {
		return nil, fmt.Errorf("lattice: halo override %d on a closed x axis with a single partition", cfg.HaloX)
	}
	if cfg.HaloY > 0 && procsY == 1 && !cfg.PeriodicY {
		return nil, fmt.Errorf("lattice: halo override %d on a closed y axis with a single partition", cfg.HaloY)
	}
	m := &Mesh{
		cfg:    cfg,
		procsX: procsX,
		procsY: procsY,
		haloX:  halo(cfg.HaloX, procsX, cfg.PeriodicX),
		haloY:  halo(cfg.HaloY, procsY, cfg.PeriodicY),
	}
	n := procsX * procsY
	m.inbox = make([][4]chan [][]float64, n)
	for r := 0; r < n; r++ {
		for d := 0; d < 4; d++ {
			m.inbox[r][d] = make(chan [][]float64, 1)
		}
	}
	m.red.cond = sync.NewCond(&m.red.mu)
	m.red.procs = n
	return m, nil
}

// Procs returns the number of partitions in the mesh.
func (m *Mesh) Procs() int { return m.procsX * m.procsY }

// Tile returns the lattice view of the partition with the given rank.
func (m *Mesh) Tile(rank int) *Lattice {
	cx := rank % m.procsX
	cy := rank / m.procsX
	l := &Lattice{
		LengthX:    m.cfg.LengthX,
		LengthY:    m.cfg.LengthY,
		DeltaX:     m.cfg.LengthX / float64(m.cfg.DimX),
		DeltaY:     m.cfg.LengthY / float64(m.cfg.DimY),
		GlobalDimX: m.cfg.DimX,
		GlobalDimY: m.cfg.DimY,
		PeriodicX:  m.cfg.PeriodicX,
		PeriodicY:  m.cfg.PeriodicY,
		HaloX:      m.haloX,
		HaloY:      m.haloY,
		Coords:     [2]int{cx, cy},
		Dims:       [2]int{m.procsX, m.procsY},
		Rank:       rank,
		Procs:      m.procsX * m.procsY,
	}
	l.StartX, l.EndX, l.InnerStartX, l.InnerEndX = borders(cx, m.procsX, m.cfg.DimX, m.haloX, m.cfg.PeriodicX)
	l.StartY, l.EndY, l.InnerStartY, l.InnerEndY = borders(cy, m.procsY, m.cfg.DimY, m.haloY, m.cfg.PeriodicY)
	l.DimX = l.EndX - l.StartX
	l.DimY = l.EndY - l.StartY
	return l
}

// Neighbors returns the ranks adjacent to rank in the four directions,
// NoNeighbor where the boundary is closed. On a periodic axis with a
// single partition the neighbor is the partition itself.
func (m *Mesh) Neighbors(rank int) [4]int {
	cx := rank % m.procsX
	cy := rank / m.procsX
	n := [4]int{NoNeighbor, NoNeighbor, NoNeighbor, NoNeighbor}
	if cy > 0 {
		n[Up] = rank - m.procsX
	} else if m.cfg.PeriodicY {
		n[Up] = (m.procsY-1)*m.procsX + cx
	}
	if cy < m.procsY-1 {
		n[Down] = rank + m.procsX
	} else if m.cfg.PeriodicY {
		n[Down] = cx
	}
	if cx > 0 {
		n[Left] = rank - 1
	} else if m.cfg.PeriodicX {
		n[Left] = cy*m.procsX + m.procsX - 1
	}
	if cx < m.procsX-1 {
		n[Right] = rank + 1
	} else if m.cfg.PeriodicX {
		n[Right] = cy * m.procsX
	}
	return n
}

// Send delivers halo planes to the given rank's mailbox for direction dir.
// dir names the slot on the receiver side: a partition sending strips to
// its right neighbor posts them into that neighbor's Left mailbox.
func (m *Mesh) Send(to, dir int, planes [][]float64) {
	m.inbox[to][dir] <- planes
}

// Recv blocks until the strips addressed to rank from direction dir arrive.
func (m *Mesh) Recv(rank, dir int) [][]float64 {
	return <-m.inbox[rank][dir]
}

// reducer implements a reusable all-reduce barrier over the mesh.
type reducer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	procs  int
	gen    uint64
	count  int
	acc    float64
	result float64
}

// ReduceSum adds v across all partitions and hands every caller the total.
// Every partition must call it the same number of times; it doubles as the
// per-step synchronization barrier.
func (m *Mesh) ReduceSum(v float64) float64 {
	r := &m.red
	r.mu.Lock()
	defer r.mu.Unlock()
	gen := r.gen
	r.acc += v
	r.count++
	if r.count == r.procs {
		r.result = r.acc
		r.acc = 0
		r.count = 0
		r.gen++
		r.cond.Broadcast()
		return r.result
	}
	for r.gen == gen {
		r.cond.Wait()
	}
	return r.result
}

// Barrier blocks until every partition has reached it.
func (m *Mesh) Barrier() {
	m.ReduceSum(0)
}
