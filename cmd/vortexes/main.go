// Command vortexes relaxes a self-interacting condensate in a harmonic
// trap with imaginary-time evolution, writing periodic density and phase
// snapshots plus an energy log.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/bhan123/trotter2d/lattice"
	"github.com/bhan123/trotter2d/solver"
)

const (
	defaultDim       = 200
	defaultLength    = 25.0
	defaultParticles = 1e6
	// 2D mean-field coupling for the default particle number.
	defaultCoupling = 7.116007999594e-4
)

var (
	dimFlag        = flag.Int("dim", defaultDim, "grid points per axis")
	lengthFlag     = flag.Float64("length", defaultLength, "physical box edge length")
	deltaTFlag     = flag.Float64("dt", 2e-4, "imaginary time step")
	iterationsFlag = flag.Int("iterations", 100, "evolution steps per snapshot")
	snapshotsFlag  = flag.Int("snapshots", 60, "number of snapshots")
	snapStampFlag  = flag.Int("snap-per-stamp", 3, "write matrices every n-th snapshot")
	couplingFlag   = flag.Float64("coupling", defaultCoupling, "mean-field coupling constant")
	particlesFlag  = flag.Float64("particles", defaultParticles, "particle number (squared norm)")
	kernelFlag     = flag.String("kernel", "cpu", "execution backend: cpu or opencl")
	workersFlag    = flag.Int("workers", 0, "band worker goroutines (0 = all CPUs)")
	outDirFlag     = flag.String("out", "vortexesdir", "output directory")
	pngFlag        = flag.Bool("png", false, "also render density snapshots as PNG heatmaps")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	lat, err := lattice.New(lattice.Config{
		DimX: *dimFlag, DimY: *dimFlag,
		LengthX: *lengthFlag, LengthY: *lengthFlag,
	})
	if err != nil {
		log.Fatalf("lattice: %v", err)
	}

	state := solver.NewGaussianState(lat, 0.2, 0, 0, *particlesFlag, 0)
	ham := solver.NewHamiltonian(1, solver.NewHarmonicPotential(1, 1), *couplingFlag)
	sv, err := solver.New(lat, state, ham, *deltaTFlag, solver.Options{
		Kernel:  *kernelFlag,
		Workers: *workersFlag,
	})
	if err != nil {
		log.Fatalf("solver: %v", err)
	}
	defer sv.Close()

	if err := os.MkdirAll(*outDirFlag, 0o755); err != nil {
		log.Fatalf("creating %s: %v", *outDirFlag, err)
	}
	info, err := os.Create(filepath.Join(*outDirFlag, "file_info.txt"))
	if err != nil {
		log.Fatalf("creating energy log: %v", err)
	}
	defer info.Close()

	writeEnergies := func(iteration int) {
		fmt.Fprintf(info, "%d\t%g\t%g\t%g\t%g\n",
			iteration, sv.KineticEnergy(), sv.PotentialEnergy(), sv.TotalEnergy(), state.SquaredNorm())
	}
	fmt.Fprintln(info, "iterations\tkin energy\tpot energy\ttotal energy\tnorm2")
	writeEnergies(0)

	stamp := func(iteration int) {
		prefix := filepath.Join(*outDirFlag, fmt.Sprintf("%d", iteration))
		if err := state.WriteParticleDensity(prefix + "-density"); err != nil {
			log.Fatalf("writing density: %v", err)
		}
		if err := state.WritePhase(prefix + "-phase"); err != nil {
			log.Fatalf("writing phase: %v", err)
		}
		if *pngFlag {
			if err := solver.SaveHeatmapPNG(state, state.Density(), "density", prefix+"-density.png"); err != nil {
				log.Fatalf("rendering density: %v", err)
			}
		}
	}
	stamp(0)

	log.Printf("relaxing %dx%d grid on %s backend", *dimFlag, *dimFlag, sv.KernelName())
	for snap := 0; snap < *snapshotsFlag; snap++ {
		if err := sv.Evolve(*iterationsFlag, true); err != nil {
			log.Fatalf("evolve: %v", err)
		}
		iteration := (snap + 1) * *iterationsFlag
		writeEnergies(iteration)
		if snap%*snapStampFlag == 0 {
			stamp(iteration)
		}
	}

	final := filepath.Join(*outDirFlag, fmt.Sprintf("1-%d", *snapshotsFlag**iterationsFlag))
	if err := state.WriteToFile(final); err != nil {
		log.Fatalf("writing final state: %v", err)
	}
	log.Printf("done: total energy %g, norm %g", sv.TotalEnergy(), state.SquaredNorm())
}
