//go:build !opencl

package kernel

import (
	"errors"

	"github.com/bhan123/trotter2d/lattice"
)

// OpenCLKernel is unavailable without the opencl build tag.
type OpenCLKernel struct{}

func NewOpenCL(lat *lattice.Lattice, ex Exchanger, pReal, pImag []float64, cfg Config) (*OpenCLKernel, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl")
}

func (k *OpenCLKernel) RunKernel()             {}
func (k *OpenCLKernel) RunKernelOnHalo()       {}
func (k *OpenCLKernel) StartHaloExchange()     {}
func (k *OpenCLKernel) FinishHaloExchange()    {}
func (k *OpenCLKernel) WaitForCompletion()     {}
func (k *OpenCLKernel) Normalization(float64) float64 { return 0 }
func (k *OpenCLKernel) UpdatePotential(expReal, expImag []float64) error {
	return errors.New("OpenCL solver unavailable")
}
func (k *OpenCLKernel) SquaredNorm() float64   { return 0 }
func (k *OpenCLKernel) Name() string           { return "opencl" }
func (k *OpenCLKernel) RunsInPlace() bool      { return true }
func (k *OpenCLKernel) Close()                 {}

func (k *OpenCLKernel) GetSample(destStride, x, y, width, height int, destReal, destImag []float64) {
}
