//go:build opencl

package device

import (
	"fmt"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

const openclBackendName = "opencl"

// The opencl backend enumerates the platforms exposed by the system ICD
// loader.
type openclBackend struct{}

func (openclBackend) Name() string {
	return openclBackendName
}

func (openclBackend) Platforms() ([]PlatformInfo, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("could not query opencl platforms: %v", err)
	}

	infoList := make([]PlatformInfo, 0, len(platforms))
	for _, p := range platforms {
		info := PlatformInfo{
			Backend:    openclBackendName,
			Profile:    p.Profile(),
			Version:    p.Version(),
			Name:       p.Name(),
			Vendor:     p.Vendor(),
			Extensions: p.Extensions(),
		}

		clDevices, err := p.GetDevices(cl.DeviceTypeAll)
		if err != nil && err != cl.ErrDeviceNotFound {
			return nil, fmt.Errorf("could not enumerate devices for platform %s: %v", info.Name, err)
		}

		for _, clDev := range clDevices {
			d := &Device{
				Name:         clDev.Name(),
				Platform:     info.Name,
				Backend:      openclBackendName,
				Type:         clDeviceType(clDev.Type()),
				MaxAllocSize: clDev.MaxMemAllocSize(),
				drv:          &openclDriver{device: clDev},
			}
			d.setSpeed(uint32(clDev.MaxComputeUnits()), uint32(clDev.MaxClockFrequency()))
			info.Devices = append(info.Devices, d)
		}
		infoList = append(infoList, info)
	}

	return infoList, nil
}

func init() {
	registerBackend(openclBackend{})
}

func clDeviceType(t cl.DeviceType) DeviceType {
	switch {
	case t&cl.DeviceTypeGPU != 0:
		return GpuDevice
	case t&cl.DeviceTypeCPU != 0:
		return CpuDevice
	}
	return OtherDevice
}

type openclDriver struct {
	device  *cl.Device
	ctx     *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
}

func (od *openclDriver) build(source string, _ map[string]Signature) error {
	var err error

	// Create context
	od.ctx, err = cl.CreateContext([]*cl.Device{od.device})
	if err != nil {
		return fmt.Errorf("could not create opencl context: %v: %w", err, ErrSetup)
	}

	// Create an in-order command queue
	od.queue, err = od.ctx.CreateCommandQueue(od.device, 0)
	if err != nil {
		return fmt.Errorf("could not create opencl command queue: %v: %w", err, ErrSetup)
	}

	// Create and build program
	od.program, err = od.ctx.CreateProgramWithSource([]string{source})
	if err != nil {
		return fmt.Errorf("could not create program: %v: %w", err, ErrSetup)
	}

	if err = od.program.BuildProgram([]*cl.Device{od.device}, ""); err != nil {
		if buildErr, ok := err.(cl.BuildError); ok {
			return &BuildError{Log: string(buildErr)}
		}
		return &BuildError{Log: err.Error()}
	}

	return nil
}

func (od *openclDriver) release() error {
	if od.program != nil {
		od.program.Release()
		od.program = nil
	}

	if od.queue != nil {
		od.queue.Release()
		od.queue = nil
	}

	if od.ctx != nil {
		od.ctx.Release()
		od.ctx = nil
	}
	return nil
}

func (od *openclDriver) kernel(sig Signature) (kernelDriver, error) {
	k, err := od.program.CreateKernel(sig.Kernel)
	if err != nil {
		return nil, err
	}
	return &openclKernel{kernel: k, queue: od.queue}, nil
}

func (od *openclDriver) allocate(name string, size int, flags MemFlags) (bufferDriver, error) {
	clFlags := cl.MemReadWrite
	switch flags {
	case MemReadOnly:
		clFlags = cl.MemReadOnly
	case MemWriteOnly:
		clFlags = cl.MemWriteOnly
	}

	mem, err := od.ctx.CreateEmptyBuffer(clFlags, size)
	if err != nil {
		return nil, err
	}
	return &openclBuffer{mem: mem, queue: od.queue}, nil
}

func (od *openclDriver) finish() error {
	return od.queue.Finish()
}

type openclBuffer struct {
	mem   *cl.MemObject
	queue *cl.CommandQueue
}

func (b *openclBuffer) write(offset int, data []byte, blocking bool) error {
	event, err := b.queue.EnqueueWriteBuffer(b.mem, blocking, offset, len(data), unsafe.Pointer(&data[0]), nil)
	if err != nil {
		return err
	}
	event.Release()
	return nil
}

func (b *openclBuffer) read(offset int, data []byte) error {
	event, err := b.queue.EnqueueReadBuffer(b.mem, true, offset, len(data), unsafe.Pointer(&data[0]), nil)
	if err != nil {
		return err
	}
	event.Release()
	return nil
}

// Fill is implemented as a blocking write of the repeated pattern so it only
// depends on OpenCL 1.1 entry points.
func (b *openclBuffer) fill(pattern []byte, offset, size int) error {
	expanded := make([]byte, size)
	for i := 0; i < size; i += len(pattern) {
		copy(expanded[i:], pattern)
	}
	return b.write(offset, expanded, true)
}

func (b *openclBuffer) release() error {
	if b.mem != nil {
		b.mem.Release()
		b.mem = nil
	}
	return nil
}

type openclKernel struct {
	kernel *cl.Kernel
	queue  *cl.CommandQueue
}

func (k *openclKernel) setScalar(arg ArgSpec, value []byte) error {
	return k.kernel.SetArgUnsafe(arg.Index, len(value), unsafe.Pointer(&value[0]))
}

func (k *openclKernel) setBuffer(arg ArgSpec, buf bufferDriver) error {
	ob, ok := buf.(*openclBuffer)
	if !ok {
		return fmt.Errorf("buffer %T does not belong to the opencl backend", buf)
	}
	return k.kernel.SetArgBuffer(arg.Index, ob.mem)
}

func (k *openclKernel) exec1D(globalWorkSize int) error {
	event, err := k.queue.EnqueueNDRangeKernel(k.kernel, nil, []int{globalWorkSize}, nil, nil)
	if err != nil {
		return err
	}
	event.Release()
	return nil
}

func (k *openclKernel) release() error {
	if k.kernel != nil {
		k.kernel.Release()
		k.kernel = nil
	}
	return nil
}
