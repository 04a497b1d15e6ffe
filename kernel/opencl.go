//go:build opencl

package kernel

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"github.com/bhan123/trotter2d/lattice"
)

// The device works on flat row-major planes; the parity bookkeeping of the
// host layout collapses into the row/column offsets each pass is enqueued
// with. Pairs are disjoint per work item, so every pass runs in place.
const trotterKernelSource = `#pragma OPENCL EXTENSION cl_khr_fp64 : enable

__kernel void rotate_rows(
    const int width,
    const int height,
    const int row_offset,
    const int col_parity,
    const double a,
    const double b,
    __global double* re,
    __global double* im)
{
    int x = 2 * get_global_id(0) + col_parity;
    int y1 = row_offset + 2 * get_global_id(1);
    int y2 = y1 + 1;
    if (x >= width || y2 >= height) {
        return;
    }
    int i1 = y1 * width + x;
    int i2 = y2 * width + x;
    double r1 = re[i1];
    double r2 = re[i2];
    double s1 = im[i1];
    double s2 = im[i2];
    re[i1] = a * r1 - b * s2;
    im[i1] = a * s1 + b * r2;
    re[i2] = a * r2 - b * s1;
    im[i2] = a * s2 + b * r1;
}

__kernel void rotate_cols(
    const int width,
    const int height,
    const int col_offset,
    const int row_parity,
    const double a,
    const double b,
    __global double* re,
    __global double* im)
{
    int y = 2 * get_global_id(1) + row_parity;
    int x1 = col_offset + 2 * get_global_id(0);
    int x2 = x1 + 1;
    if (y >= height || x2 >= width) {
        return;
    }
    int i1 = y * width + x1;
    int i2 = y * width + x2;
    double r1 = re[i1];
    double r2 = re[i2];
    double s1 = im[i1];
    double s2 = im[i2];
    re[i1] = a * r1 - b * s2;
    im[i1] = a * s1 + b * r2;
    re[i2] = a * r2 - b * s1;
    im[i2] = a * s2 + b * r1;
}

__kernel void rotate_rows_imaginary(
    const int width,
    const int height,
    const int row_offset,
    const int col_parity,
    const double a,
    const double b,
    __global double* re,
    __global double* im)
{
    int x = 2 * get_global_id(0) + col_parity;
    int y1 = row_offset + 2 * get_global_id(1);
    int y2 = y1 + 1;
    if (x >= width || y2 >= height) {
        return;
    }
    int i1 = y1 * width + x;
    int i2 = y2 * width + x;
    double r1 = re[i1];
    double r2 = re[i2];
    double s1 = im[i1];
    double s2 = im[i2];
    re[i1] = a * r1 + b * r2;
    im[i1] = a * s1 + b * s2;
    re[i2] = b * r1 + a * r2;
    im[i2] = b * s1 + a * s2;
}

__kernel void rotate_cols_imaginary(
    const int width,
    const int height,
    const int col_offset,
    const int row_parity,
    const double a,
    const double b,
    __global double* re,
    __global double* im)
{
    int y = 2 * get_global_id(1) + row_parity;
    int x1 = col_offset + 2 * get_global_id(0);
    int x2 = x1 + 1;
    if (y >= height || x2 >= width) {
        return;
    }
    int i1 = y * width + x1;
    int i2 = y * width + x2;
    double r1 = re[i1];
    double r2 = re[i2];
    double s1 = im[i1];
    double s2 = im[i2];
    re[i1] = a * r1 + b * r2;
    im[i1] = a * s1 + b * s2;
    re[i2] = b * r1 + a * r2;
    im[i2] = b * s1 + a * s2;
}

__kernel void apply_potential(
    const int size,
    __global const double* pot_re,
    __global const double* pot_im,
    __global double* re,
    __global double* im)
{
    int idx = get_global_id(0);
    if (idx >= size) {
        return;
    }
    double r = re[idx];
    double s = im[idx];
    re[idx] = pot_re[idx] * r - pot_im[idx] * s;
    im[idx] = pot_re[idx] * s + pot_im[idx] * r;
}

__kernel void wrap_cols(
    const int width,
    const int halo,
    const int row_start,
    const int row_count,
    __global double* re,
    __global double* im)
{
    int h = get_global_id(0);
    int y = row_start + get_global_id(1);
    if (h >= halo || y >= row_start + row_count) {
        return;
    }
    int row = y * width;
    re[row + h] = re[row + width - 2 * halo + h];
    im[row + h] = im[row + width - 2 * halo + h];
    re[row + width - halo + h] = re[row + halo + h];
    im[row + width - halo + h] = im[row + halo + h];
}

__kernel void wrap_rows(
    const int width,
    const int height,
    const int halo,
    __global double* re,
    __global double* im)
{
    int x = get_global_id(0);
    int h = get_global_id(1);
    if (x >= width || h >= halo) {
        return;
    }
    int top = h * width + x;
    int bottom = (height - halo + h) * width + x;
    re[top] = re[(height - 2 * halo + h) * width + x];
    im[top] = im[(height - 2 * halo + h) * width + x];
    re[bottom] = re[(halo + h) * width + x];
    im[bottom] = im[(halo + h) * width + x];
}`

// OpenCLKernel runs the full tile on one device per step. It drives a
// single partition only; multi-partition runs use the CPU backend.
type OpenCLKernel struct {
	lat *lattice.Lattice
	ex  Exchanger

	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program

	rotRows     *cl.Kernel
	rotCols     *cl.Kernel
	rotRowsImag *cl.Kernel
	rotColsImag *cl.Kernel
	potK        *cl.Kernel
	wrapC       *cl.Kernel
	wrapR       *cl.Kernel

	// re[0]/im[0] and re[1]/im[1] are the two generations; cur indexes
	// the one holding the current state.
	re, im [2]*cl.MemObject
	potRe  *cl.MemObject
	potIm  *cl.MemObject
	cur    int
	hasPot bool

	a, b       float64
	imagTime   bool
	normTarget float64

	hostRe, hostIm []float64
	deviceName     string
}

// NewOpenCL builds the device backend over a single-partition tile.
func NewOpenCL(lat *lattice.Lattice, ex Exchanger, pReal, pImag []float64, cfg Config) (*OpenCLKernel, error) {
	if err := cfg.validate(lat); err != nil {
		return nil, err
	}
	if lat.Procs != 1 {
		return nil, errors.New("kernel: opencl backend drives a single partition")
	}
	if len(pReal) != lat.DimX*lat.DimY || len(pImag) != lat.DimX*lat.DimY {
		return nil, errFieldSize(lat, len(pReal), len(pImag))
	}
	device, err := pickDevice()
	if err != nil {
		return nil, err
	}
	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	k := &OpenCLKernel{
		lat:        lat,
		ex:         ex,
		a:          cfg.A,
		b:          cfg.B,
		imagTime:   cfg.ImagTime,
		context:    context,
		deviceName: device.Name(),
		hostRe:     make([]float64, lat.DimX*lat.DimY),
		hostIm:     make([]float64, lat.DimX*lat.DimY),
	}
	if err := k.setup(device, cfg); err != nil {
		k.Close()
		return nil, err
	}
	if err := k.upload(pReal, pImag, cfg); err != nil {
		k.Close()
		return nil, err
	}
	k.normTarget = k.SquaredNorm()
	return k, nil
}

func pickDevice() (*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	for _, types := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(types)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				return devices[0], nil
			}
		}
	}
	return nil, errors.New("no suitable OpenCL devices found")
}

func (k *OpenCLKernel) setup(device *cl.Device, cfg Config) error {
	var err error
	if k.queue, err = k.context.CreateCommandQueue(device, 0); err != nil {
		return fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	if k.program, err = k.context.CreateProgramWithSource([]string{trotterKernelSource}); err != nil {
		return fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err = k.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		if buildErr, ok := err.(cl.BuildError); ok {
			return fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return fmt.Errorf("building OpenCL program: %w", err)
	}
	for _, item := range []struct {
		name string
		dst  **cl.Kernel
	}{
		{"rotate_rows", &k.rotRows},
		{"rotate_cols", &k.rotCols},
		{"rotate_rows_imaginary", &k.rotRowsImag},
		{"rotate_cols_imaginary", &k.rotColsImag},
		{"apply_potential", &k.potK},
		{"wrap_cols", &k.wrapC},
		{"wrap_rows", &k.wrapR},
	} {
		if *item.dst, err = k.program.CreateKernel(item.name); err != nil {
			return fmt.Errorf("creating %s kernel: %w", item.name, err)
		}
	}
	byteSize := k.lat.DimX * k.lat.DimY * int(unsafe.Sizeof(float64(0)))
	for gen := 0; gen < 2; gen++ {
		if k.re[gen], err = k.context.CreateEmptyBuffer(cl.MemReadWrite, byteSize); err != nil {
			return fmt.Errorf("allocating field buffer: %w", err)
		}
		if k.im[gen], err = k.context.CreateEmptyBuffer(cl.MemReadWrite, byteSize); err != nil {
			return fmt.Errorf("allocating field buffer: %w", err)
		}
	}
	if cfg.ExpPotReal != nil || cfg.ExpPotImag != nil {
		if k.potRe, err = k.context.CreateEmptyBuffer(cl.MemReadOnly, byteSize); err != nil {
			return fmt.Errorf("allocating potential buffer: %w", err)
		}
		if k.potIm, err = k.context.CreateEmptyBuffer(cl.MemReadOnly, byteSize); err != nil {
			return fmt.Errorf("allocating potential buffer: %w", err)
		}
		k.hasPot = true
	}
	return nil
}

func (k *OpenCLKernel) writeFloat64(buf *cl.MemObject, data []float64) error {
	byteLen := len(data) * int(unsafe.Sizeof(float64(0)))
	_, err := k.queue.EnqueueWriteBuffer(buf, true, 0, byteLen, unsafe.Pointer(&data[0]), nil)
	return err
}

func (k *OpenCLKernel) readFloat64(buf *cl.MemObject, data []float64) error {
	byteLen := len(data) * int(unsafe.Sizeof(float64(0)))
	_, err := k.queue.EnqueueReadBuffer(buf, true, 0, byteLen, unsafe.Pointer(&data[0]), nil)
	return err
}

func (k *OpenCLKernel) upload(pReal, pImag []float64, cfg Config) error {
	if err := k.writeFloat64(k.re[0], pReal); err != nil {
		return fmt.Errorf("writing field buffer: %w", err)
	}
	if err := k.writeFloat64(k.im[0], pImag); err != nil {
		return fmt.Errorf("writing field buffer: %w", err)
	}
	if k.hasPot {
		size := k.lat.DimX * k.lat.DimY
		re, im := cfg.ExpPotReal, cfg.ExpPotImag
		if re == nil {
			re = make([]float64, size)
		}
		if im == nil {
			im = make([]float64, size)
		}
		if err := k.writeFloat64(k.potRe, re); err != nil {
			return fmt.Errorf("writing potential buffer: %w", err)
		}
		if err := k.writeFloat64(k.potIm, im); err != nil {
			return fmt.Errorf("writing potential buffer: %w", err)
		}
	}
	return nil
}

// Name identifies the backend and the device it bound.
func (k *OpenCLKernel) Name() string { return "opencl (" + k.deviceName + ")" }

// RunsInPlace reports that the pass sequence updates its buffers in place.
func (k *OpenCLKernel) RunsInPlace() bool { return true }

// StartHaloExchange wraps the periodic halo columns on the device.
func (k *OpenCLKernel) StartHaloExchange() {
	l := k.lat
	if l.HaloX == 0 {
		return
	}
	k.wrapC.SetArgs(int32(l.DimX), int32(l.HaloX),
		int32(l.InnerOffsetY()), int32(l.InnerHeight()),
		k.re[k.cur], k.im[k.cur])
	k.queue.EnqueueNDRangeKernel(k.wrapC, nil, []int{l.HaloX, l.InnerHeight()}, nil, nil)
}

// FinishHaloExchange wraps the periodic halo rows on the device.
func (k *OpenCLKernel) FinishHaloExchange() {
	l := k.lat
	if l.HaloY == 0 {
		return
	}
	k.wrapR.SetArgs(int32(l.DimX), int32(l.DimY), int32(l.HaloY),
		k.re[k.cur], k.im[k.cur])
	k.queue.EnqueueNDRangeKernel(k.wrapR, nil, []int{l.DimX, l.HaloY}, nil, nil)
}

// RunKernel is a no-op: the device advances the whole tile in one go once
// the halo has wrapped, so all work happens in RunKernelOnHalo.
func (k *OpenCLKernel) RunKernel() {}

// RunKernelOnHalo copies the current generation, applies the potential
// phase and the full rotation sequence in place, and flips the generation.
func (k *OpenCLKernel) RunKernelOnHalo() {
	l := k.lat
	size := l.DimX * l.DimY
	next := 1 - k.cur
	byteLen := size * int(unsafe.Sizeof(float64(0)))
	k.queue.EnqueueCopyBuffer(k.re[k.cur], k.re[next], 0, 0, byteLen, nil)
	k.queue.EnqueueCopyBuffer(k.im[k.cur], k.im[next], 0, 0, byteLen, nil)
	if k.hasPot {
		k.potK.SetArgs(int32(size), k.potRe, k.potIm, k.re[next], k.im[next])
		k.queue.EnqueueNDRangeKernel(k.potK, nil, []int{size}, nil, nil)
	}
	for _, p := range fullStepPasses {
		k.enqueuePass(p, next)
	}
	k.cur = next
}

// enqueuePass maps one parity-indexed pass to a flat-layout launch: the
// first plane's parity bits become the starting offset along the pass
// axis and the fixed parity across it. Imaginary time launches the
// hyperbolic kernel variants.
func (k *OpenCLKernel) enqueuePass(p passSpec, gen int) {
	l := k.lat
	pairsX, pairsY := l.DimX/2, l.DimY/2
	if p.vertical {
		rot := k.rotRows
		if k.imagTime {
			rot = k.rotRowsImag
		}
		rot.SetArgs(int32(l.DimX), int32(l.DimY),
			int32(p.p1[0]), int32(p.p1[1]), k.a, k.b,
			k.re[gen], k.im[gen])
		k.queue.EnqueueNDRangeKernel(rot, nil, []int{pairsX, pairsY}, nil, nil)
		return
	}
	rot := k.rotCols
	if k.imagTime {
		rot = k.rotColsImag
	}
	rot.SetArgs(int32(l.DimX), int32(l.DimY),
		int32(p.p1[1]), int32(p.p1[0]), k.a, k.b,
		k.re[gen], k.im[gen])
	k.queue.EnqueueNDRangeKernel(rot, nil, []int{pairsX, pairsY}, nil, nil)
}

// WaitForCompletion drains the queue; imaginary-time evolution also
// renormalizes to the construction-time norm.
func (k *OpenCLKernel) WaitForCompletion() {
	k.queue.Finish()
	if !k.imagTime {
		return
	}
	tot := k.SquaredNorm()
	if tot > 0 {
		k.scale(math.Sqrt(k.normTarget / tot))
	}
}

// download mirrors the current generation into the host scratch planes.
func (k *OpenCLKernel) download() {
	k.queue.Finish()
	k.readFloat64(k.re[k.cur], k.hostRe)
	k.readFloat64(k.im[k.cur], k.hostIm)
}

func (k *OpenCLKernel) scale(s float64) {
	k.download()
	for i := range k.hostRe {
		k.hostRe[i] *= s
		k.hostIm[i] *= s
	}
	k.writeFloat64(k.re[k.cur], k.hostRe)
	k.writeFloat64(k.im[k.cur], k.hostIm)
}

// SquaredNorm integrates the squared magnitude over the halo-free region.
func (k *OpenCLKernel) SquaredNorm() float64 {
	l := k.lat
	k.download()
	var sum float64
	x0, y0 := l.InnerOffsetX(), l.InnerOffsetY()
	for y := y0; y < y0+l.InnerHeight(); y++ {
		row := y * l.DimX
		for x := x0; x < x0+l.InnerWidth(); x++ {
			sum += k.hostRe[row+x]*k.hostRe[row+x] + k.hostIm[row+x]*k.hostIm[row+x]
		}
	}
	return k.ex.ReduceSum(sum * l.DeltaX * l.DeltaY)
}

// Normalization rescales the field by the square root of norm; a
// non-positive norm means the current global squared norm.
func (k *OpenCLKernel) Normalization(norm float64) float64 {
	if norm <= 0 {
		norm = k.SquaredNorm()
	}
	if norm > 0 {
		k.scale(1 / math.Sqrt(norm))
		k.normTarget /= norm
	}
	return norm
}

// GetSample copies a window of the current state into flat host planes.
func (k *OpenCLKernel) GetSample(destStride, x, y, width, height int, destReal, destImag []float64) {
	k.download()
	for row := 0; row < height; row++ {
		src := (y+row)*k.lat.DimX + x
		copy(destReal[row*destStride:row*destStride+width], k.hostRe[src:src+width])
		copy(destImag[row*destStride:row*destStride+width], k.hostIm[src:src+width])
	}
}

// UpdatePotential replaces the exponential potential planes on the device.
func (k *OpenCLKernel) UpdatePotential(expReal, expImag []float64) error {
	n := k.lat.DimX * k.lat.DimY
	if len(expReal) != n || len(expImag) != n {
		return errFieldSize(k.lat, len(expReal), len(expImag))
	}
	if !k.hasPot {
		byteSize := n * int(unsafe.Sizeof(float64(0)))
		var err error
		if k.potRe, err = k.context.CreateEmptyBuffer(cl.MemReadOnly, byteSize); err != nil {
			return fmt.Errorf("allocating potential buffer: %w", err)
		}
		if k.potIm, err = k.context.CreateEmptyBuffer(cl.MemReadOnly, byteSize); err != nil {
			return fmt.Errorf("allocating potential buffer: %w", err)
		}
		k.hasPot = true
	}
	if err := k.writeFloat64(k.potRe, expReal); err != nil {
		return fmt.Errorf("writing potential buffer: %w", err)
	}
	if err := k.writeFloat64(k.potIm, expImag); err != nil {
		return fmt.Errorf("writing potential buffer: %w", err)
	}
	return nil
}

// Close releases every device object that was created.
func (k *OpenCLKernel) Close() {
	for _, kn := range []*cl.Kernel{k.rotRows, k.rotCols, k.rotRowsImag, k.rotColsImag, k.potK, k.wrapC, k.wrapR} {
		if kn != nil {
			kn.Release()
		}
	}
	for _, buf := range []*cl.MemObject{k.re[0], k.im[0], k.re[1], k.im[1], k.potRe, k.potIm} {
		if buf != nil {
			buf.Release()
		}
	}
	if k.program != nil {
		k.program.Release()
	}
	if k.queue != nil {
		k.queue.Release()
	}
	if k.context != nil {
		k.context.Release()
	}
}
