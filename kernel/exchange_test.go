package kernel

import (
	"math"
	"sync"
	"testing"

	"github.com/bhan123/trotter2d/lattice"
)

// Splitting the grid over two partitions must reproduce the single-tile
// evolution exactly on every interior point.
func TestMeshExchangeMatchesSingleTile(t *testing.T) {
	cfg := lattice.Config{
		DimX: 16, DimY: 8,
		LengthX: 16, LengthY: 8,
		PeriodicX: true, PeriodicY: true,
		HaloX: 4, HaloY: 4,
	}
	theta := 0.03
	kcfg := Config{A: math.Cos(theta), B: math.Sin(theta), Workers: 1}
	const steps = 3
	field := smoothField(cfg.DimX, cfg.DimY)

	// Reference run on one periodic tile.
	refLat, err := lattice.New(cfg)
	if err != nil {
		t.Fatalf("building reference lattice: %v", err)
	}
	re, im := buildPlanes(refLat, field)
	ref, err := NewCPU(refLat, NewLoopback(refLat), re, im, kcfg)
	if err != nil {
		t.Fatalf("building reference kernel: %v", err)
	}
	defer ref.Close()
	for i := 0; i < steps; i++ {
		stepOnce(ref)
	}
	refRe := make([]float64, cfg.DimX*cfg.DimY)
	refIm := make([]float64, cfg.DimX*cfg.DimY)
	ref.GetSample(cfg.DimX, refLat.InnerOffsetX(), refLat.InnerOffsetY(), cfg.DimX, cfg.DimY, refRe, refIm)

	// The same grid split into a 2x1 partition ring.
	mesh, err := lattice.NewMesh(cfg, 2, 1)
	if err != nil {
		t.Fatalf("building mesh: %v", err)
	}
	type tileResult struct {
		lat    *lattice.Lattice
		re, im []float64
		err    error
	}
	results := make([]tileResult, mesh.Procs())
	var wg sync.WaitGroup
	for rank := 0; rank < mesh.Procs(); rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			lat := mesh.Tile(rank)
			pre, pim := buildPlanes(lat, field)
			k, kerr := NewCPU(lat, NewMeshExchanger(mesh, lat), pre, pim, kcfg)
			if kerr != nil {
				results[rank].err = kerr
				return
			}
			defer k.Close()
			for i := 0; i < steps; i++ {
				stepOnce(k)
			}
			w, h := lat.InnerWidth(), lat.InnerHeight()
			gotRe := make([]float64, w*h)
			gotIm := make([]float64, w*h)
			k.GetSample(w, lat.InnerOffsetX(), lat.InnerOffsetY(), w, h, gotRe, gotIm)
			results[rank] = tileResult{lat: lat, re: gotRe, im: gotIm}
		}(rank)
	}
	wg.Wait()

	for rank, res := range results {
		if res.err != nil {
			t.Fatalf("rank %d: %v", rank, res.err)
		}
		lat := res.lat
		w := lat.InnerWidth()
		for y := 0; y < lat.InnerHeight(); y++ {
			for x := 0; x < w; x++ {
				gx := lat.InnerStartX + x
				gy := lat.InnerStartY + y
				wantRe := refRe[gy*cfg.DimX+gx]
				wantIm := refIm[gy*cfg.DimX+gx]
				if res.re[y*w+x] != wantRe || res.im[y*w+x] != wantIm {
					t.Fatalf("rank %d point (%d,%d): got (%g,%g) want (%g,%g)",
						rank, gx, gy, res.re[y*w+x], res.im[y*w+x], wantRe, wantIm)
				}
			}
		}
	}
}

// The loopback wrap must land each opposite edge in the facing halo.
func TestLoopbackWrap(t *testing.T) {
	lat := testLattice(t, 8, 8, 2)
	f := newQuadField(lat.DimX, lat.DimY)
	re := make([]float64, lat.DimX*lat.DimY)
	im := make([]float64, lat.DimX*lat.DimY)
	for y := 0; y < lat.DimY; y++ {
		for x := 0; x < lat.DimX; x++ {
			re[y*lat.DimX+x] = float64(y*lat.DimX + x)
		}
	}
	f.fillFromFlat(re, im)

	ex := NewLoopback(lat)
	ex.Start(f)
	ex.Finish(f)

	got := make([]float64, lat.DimX*lat.DimY)
	gotIm := make([]float64, lat.DimX*lat.DimY)
	f.sample(lat.DimX, 0, 0, lat.DimX, lat.DimY, got, gotIm)
	hx, hy := lat.HaloX, lat.HaloY
	for y := hy; y < lat.DimY-hy; y++ {
		for x := 0; x < hx; x++ {
			if got[y*lat.DimX+x] != re[y*lat.DimX+lat.DimX-2*hx+x] {
				t.Fatalf("left halo (%d,%d) not wrapped", x, y)
			}
			rx := lat.DimX - hx + x
			if got[y*lat.DimX+rx] != re[y*lat.DimX+hx+x] {
				t.Fatalf("right halo (%d,%d) not wrapped", rx, y)
			}
		}
	}
	for y := 0; y < hy; y++ {
		for x := 0; x < lat.DimX; x++ {
			if got[y*lat.DimX+x] != got[(lat.DimY-2*hy+y)*lat.DimX+x] {
				t.Fatalf("top halo (%d,%d) not wrapped", x, y)
			}
			if got[(lat.DimY-hy+y)*lat.DimX+x] != got[(hy+y)*lat.DimX+x] {
				t.Fatalf("bottom halo (%d,%d) not wrapped", x, y)
			}
		}
	}
}
