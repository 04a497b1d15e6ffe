package kernel

import (
	"math"
	"runtime"
	"sync"

	"github.com/bhan123/trotter2d/lattice"
)

// CPUKernel is the block-tiled CPU backend. The tile is double-buffered in
// quadrant layout; interior bands are advanced by persistent worker
// goroutines while the halo exchange is in flight, and the boundary bands
// follow once the exchange has resolved.
type CPUKernel struct {
	lat *lattice.Lattice
	ex  Exchanger

	a, b     float64
	imagTime bool

	blockW, blockH int

	cur, next *quadField
	pot       *quadField

	normTarget float64

	innerBands []band

	workerCount    int
	workersStarted bool
	workerMu       sync.Mutex
	workerCond     *sync.Cond
	workerStep     int
	workerPending  int
	workerPass     bandPass
	closed         bool

	haloScratch *quadField
}

// NewCPU builds the CPU backend over one tile. The initial field is given
// as flat row-major planes covering the tile including its halo.
func NewCPU(lat *lattice.Lattice, ex Exchanger, pReal, pImag []float64, cfg Config) (*CPUKernel, error) {
	if err := cfg.validate(lat); err != nil {
		return nil, err
	}
	blockW, blockH, err := cfg.blockSpans(lat)
	if err != nil {
		return nil, err
	}
	if len(pReal) != lat.DimX*lat.DimY || len(pImag) != lat.DimX*lat.DimY {
		return nil, errFieldSize(lat, len(pReal), len(pImag))
	}

	k := &CPUKernel{
		lat:         lat,
		ex:          ex,
		a:           cfg.A,
		b:           cfg.B,
		imagTime:    cfg.ImagTime,
		blockW:      blockW,
		blockH:      blockH,
		cur:         newQuadField(lat.DimX, lat.DimY),
		next:        newQuadField(lat.DimX, lat.DimY),
		haloScratch: newQuadField(blockW, blockH),
		workerCount: cfg.Workers,
	}
	if k.workerCount < 1 {
		k.workerCount = runtime.GOMAXPROCS(0)
	}
	k.workerCond = sync.NewCond(&k.workerMu)
	k.cur.fillFromFlat(pReal, pImag)
	if cfg.ExpPotReal != nil || cfg.ExpPotImag != nil {
		k.pot = newQuadField(lat.DimX, lat.DimY)
		re := cfg.ExpPotReal
		im := cfg.ExpPotImag
		if re == nil {
			re = make([]float64, lat.DimX*lat.DimY)
		}
		if im == nil {
			im = make([]float64, lat.DimX*lat.DimY)
		}
		k.pot.fillFromFlat(re, im)
	}

	// Interior bands are fixed for the kernel's lifetime.
	if lat.DimY > blockH {
		for blockStart := blockH - 2*lat.HaloY; blockStart < lat.DimY-blockH; blockStart += blockH - 2*lat.HaloY {
			k.innerBands = append(k.innerBands, band{blockStart, blockH, lat.HaloY, blockH - 2*lat.HaloY})
		}
	}

	k.normTarget = k.SquaredNorm()
	return k, nil
}

// Name identifies the backend.
func (k *CPUKernel) Name() string { return "cpu" }

// RunsInPlace reports that this backend double-buffers.
func (k *CPUKernel) RunsInPlace() bool { return false }

// StartHaloExchange issues the vertical halo phase on the current buffer.
func (k *CPUKernel) StartHaloExchange() { k.ex.Start(k.cur) }

// FinishHaloExchange resolves the vertical phase and runs the horizontal one.
func (k *CPUKernel) FinishHaloExchange() { k.ex.Finish(k.cur) }

// pass builds the per-step band geometry bound to the current buffers.
func (k *CPUKernel) pass() bandPass {
	return bandPass{
		tileW:  k.lat.DimX,
		blockW: k.blockW,
		haloX:  k.lat.HaloX,
		a:      k.a,
		b:      k.b,
		imag:   k.imagTime,
		src:    k.cur,
		next:   k.next,
		pot:    k.pot,
	}
}

// RunKernel advances the interior bands, one band per worker at a time.
// Bands write disjoint rows of the next buffer, so no locking is needed
// beyond the step hand-off.
func (k *CPUKernel) RunKernel() {
	if len(k.innerBands) == 0 {
		return
	}
	k.startWorkers()
	k.workerMu.Lock()
	k.workerPass = k.pass()
	k.workerPending = k.workerCount
	k.workerStep++
	k.workerCond.Broadcast()
	for k.workerPending > 0 {
		k.workerCond.Wait()
	}
	k.workerMu.Unlock()
}

// startWorkers launches the persistent band workers on first use.
func (k *CPUKernel) startWorkers() {
	if k.workersStarted {
		return
	}
	k.workersStarted = true
	for i := 0; i < k.workerCount; i++ {
		go k.bandWorkerLoop(i)
	}
}

// bandWorkerLoop executes the interior bands assigned to one worker.
func (k *CPUKernel) bandWorkerLoop(index int) {
	scratch := newQuadField(k.blockW, k.blockH)
	lastStep := 0
	k.workerMu.Lock()
	for {
		for k.workerStep == lastStep && !k.closed {
			k.workerCond.Wait()
		}
		if k.closed {
			k.workerMu.Unlock()
			return
		}
		lastStep = k.workerStep
		bp := k.workerPass
		k.workerMu.Unlock()

		for i := index; i < len(k.innerBands); i += k.workerCount {
			bp.processBand(scratch, k.innerBands[i], true, false)
		}

		k.workerMu.Lock()
		k.workerPending--
		if k.workerPending == 0 {
			k.workerCond.Broadcast()
		}
	}
}

// RunKernelOnHalo advances the boundary-dependent bands and flips the
// generation. The flip is the only moment ownership of "current" moves.
func (k *CPUKernel) RunKernelOnHalo() {
	bp := k.pass()
	tileH, blockH, haloY := k.lat.DimY, k.blockH, k.lat.HaloY
	if tileH <= blockH {
		// One band covers the tile.
		bp.processBand(k.haloScratch, band{0, tileH, 0, tileH}, true, true)
	} else {
		// Left and right edges of the interior bands.
		var blockStart int
		for blockStart = blockH - 2*haloY; blockStart < tileH-blockH; blockStart += blockH - 2*haloY {
			bp.processBand(k.haloScratch, band{blockStart, blockH, haloY, blockH - 2*haloY}, false, true)
		}
		// Top band.
		bp.processBand(k.haloScratch, band{0, blockH, 0, blockH - haloY}, true, true)
		// Bottom band, including the remainder rows.
		bp.processBand(k.haloScratch, band{blockStart, tileH - blockStart, haloY, tileH - blockStart - haloY}, true, true)
	}
	k.cur, k.next = k.next, k.cur
}

// WaitForCompletion synchronizes all partitions. Imaginary-time evolution
// additionally renormalizes the new state to the construction-time norm.
func (k *CPUKernel) WaitForCompletion() {
	if !k.imagTime {
		k.ex.ReduceSum(0)
		return
	}
	tot := k.SquaredNorm()
	if tot > 0 {
		k.cur.scale(math.Sqrt(k.normTarget / tot))
	}
}

// SquaredNorm returns the global squared norm of the current state,
// accumulated over the halo-free inner region of every partition.
func (k *CPUKernel) SquaredNorm() float64 {
	local := k.cur.squaredSum(k.lat.InnerOffsetX(), k.lat.InnerOffsetY(), k.lat.InnerWidth(), k.lat.InnerHeight())
	return k.ex.ReduceSum(local * k.lat.DeltaX * k.lat.DeltaY)
}

// Normalization divides the field by the square root of norm; a
// non-positive norm means the current global squared norm. Returns the
// squared norm used.
func (k *CPUKernel) Normalization(norm float64) float64 {
	if norm <= 0 {
		norm = k.SquaredNorm()
	}
	if norm > 0 {
		k.cur.scale(1 / math.Sqrt(norm))
		k.normTarget /= norm
	}
	return norm
}

// GetSample de-interleaves a window of the current buffer into flat
// row-major destination planes.
func (k *CPUKernel) GetSample(destStride, x, y, width, height int, destReal, destImag []float64) {
	k.cur.sample(destStride, x, y, width, height, destReal, destImag)
}

// UpdatePotential replaces the exponential potential planes.
func (k *CPUKernel) UpdatePotential(expReal, expImag []float64) error {
	n := k.lat.DimX * k.lat.DimY
	if len(expReal) != n || len(expImag) != n {
		return errFieldSize(k.lat, len(expReal), len(expImag))
	}
	if k.pot == nil {
		k.pot = newQuadField(k.lat.DimX, k.lat.DimY)
	}
	k.pot.fillFromFlat(expReal, expImag)
	return nil
}

// Close stops the band workers. The kernel must not be used afterwards.
func (k *CPUKernel) Close() {
	k.workerMu.Lock()
	k.closed = true
	k.workerCond.Broadcast()
	k.workerMu.Unlock()
}
