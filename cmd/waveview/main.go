// Command waveview shows a live view of a wave packet evolving in a
// harmonic trap: density as brightness, phase as hue.
package main

import (
	"flag"
	"log"
	"math"

	"github.com/crazy3lf/colorconv"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/bhan123/trotter2d/lattice"
	"github.com/bhan123/trotter2d/solver"
)

var (
	dimFlag     = flag.Int("dim", 256, "grid points per axis")
	lengthFlag  = flag.Float64("length", 20, "physical box edge length")
	deltaTFlag  = flag.Float64("dt", 5e-4, "time step")
	stepsFlag   = flag.Int("steps", 4, "evolution steps per frame")
	omegaFlag   = flag.Float64("omega", 1, "trap frequency (0 = free packet)")
	kickFlag    = flag.Float64("kick", 6, "initial momentum kick along x")
	kernelFlag  = flag.String("kernel", "cpu", "execution backend: cpu or opencl")
	workersFlag = flag.Int("workers", 0, "band worker goroutines (0 = all CPUs)")
	scaleFlag   = flag.Int("scale", 3, "window pixels per grid point")
	profileFlag = flag.String("cpuprofile", "", "write a CPU profile to this file")
)

// viewer advances the solver a few steps per frame and redraws the
// density/phase image.
type viewer struct {
	sv     *solver.Solver
	state  *solver.State
	pixels []byte
	paused bool
	// phaseOnly switches the palette from density-brightness to a pure
	// phase wheel.
	phaseOnly bool
}

func newViewer() (*viewer, error) {
	lat, err := lattice.New(lattice.Config{
		DimX: *dimFlag, DimY: *dimFlag,
		LengthX: *lengthFlag, LengthY: *lengthFlag,
		PeriodicX: true, PeriodicY: true,
	})
	if err != nil {
		return nil, err
	}
	state := solver.NewGaussianState(lat, 1, -*lengthFlag/6, 0, 1, 0)
	if *kickFlag != 0 {
		k := *kickFlag
		state.Imprint(func(x, y float64) (float64, float64) {
			return math.Cos(k * x), math.Sin(k * x)
		})
	}
	var pot solver.Potential
	if *omegaFlag != 0 {
		pot = solver.NewHarmonicPotential(*omegaFlag, *omegaFlag)
	}
	sv, err := solver.New(lat, state, solver.NewHamiltonian(1, pot, 0), *deltaTFlag, solver.Options{
		Kernel:  *kernelFlag,
		Workers: *workersFlag,
	})
	if err != nil {
		return nil, err
	}
	w, h := lat.InnerWidth(), lat.InnerHeight()
	return &viewer{
		sv:     sv,
		state:  state,
		pixels: make([]byte, w*h*4),
	}, nil
}

func (v *viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		v.paused = !v.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		v.phaseOnly = !v.phaseOnly
	}
	if v.paused {
		return nil
	}
	return v.sv.Evolve(*stepsFlag, false)
}

func (v *viewer) Draw(screen *ebiten.Image) {
	density := v.state.Density()
	phase := v.state.Phase()
	peak := 0.0
	for _, d := range density {
		if d > peak {
			peak = d
		}
	}
	if peak == 0 {
		peak = 1
	}
	for i := range density {
		hue := (phase[i] + math.Pi) / (2 * math.Pi) * 360
		value := 1.0
		if !v.phaseOnly {
			value = math.Sqrt(density[i] / peak)
		}
		r, g, b, _ := colorconv.HSVToRGB(hue, 1, value)
		v.pixels[i*4] = r
		v.pixels[i*4+1] = g
		v.pixels[i*4+2] = b
		v.pixels[i*4+3] = 255
	}
	screen.WritePixels(v.pixels)
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return *dimFlag, *dimFlag
}

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *profileFlag != "" {
		stop, err := startCPUProfile(*profileFlag)
		if err != nil {
			log.Fatalf("cpu profile: %v", err)
		}
		defer stop()
	}

	v, err := newViewer()
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	defer v.sv.Close()
	log.Printf("running on %s backend, space pauses, tab toggles the phase wheel", v.sv.KernelName())

	ebiten.SetWindowSize(*dimFlag**scaleFlag, *dimFlag**scaleFlag)
	ebiten.SetWindowTitle("waveview")
	if err := ebiten.RunGame(v); err != nil {
		log.Fatalf("run: %v", err)
	}
}
