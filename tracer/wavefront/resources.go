package wavefront

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/device"
)

// A container that stores handles to the tracer kernels, the allocated
// device buffers and the ray list pair built on top of them.
type deviceResources struct {
	// The allocated device buffers.
	buffers *bufferPool

	// The ping-pong ray lists.
	lists *rayLists

	// The set of kernels.
	kernels []*device.Kernel

	// If set, every dispatch waits for completion so stage timings
	// reflect device execution time.
	profile bool
}

// Using the supplied (initialized) device as a target, load all kernels,
// validate their argument sets and allocate buffers.
func newDeviceResources(dev *device.Device, frameW, frameH uint32, sc *scene.Scene, profile bool) (*deviceResources, error) {
	var err error

	if dev == nil {
		return nil, fmt.Errorf("device resources: invalid device handle")
	}

	dr := &deviceResources{profile: profile}

	// Load all kernels
	dr.kernels = make([]*device.Kernel, numKernels)
	var kType kernelType
	for kType = 0; kType < numKernels; kType++ {
		dr.kernels[kType], err = dev.Kernel(kType.String())
		if err == nil {
			err = dr.kernels[kType].Validate(kType.argsType())
		}
		if err != nil {
			dr.Close()
			return nil, err
		}
	}

	// Allocate buffers
	dr.buffers, err = newBufferPool(dev, frameW, frameH, sc)
	if err != nil {
		dr.Close()
		return nil, err
	}
	dr.lists = newRayLists(dr.buffers)

	return dr, nil
}

// Release all allocated resources. Calling Close more than once is a no-op.
func (dr *deviceResources) Close() error {
	var errs []error
	if dr.buffers != nil {
		if err := dr.buffers.ReleaseAll(); err != nil {
			errs = append(errs, err)
		}
		dr.buffers = nil
		dr.lists = nil
	}

	if dr.kernels != nil {
		for _, kernel := range dr.kernels {
			if kernel == nil {
				continue
			}
			if err := kernel.Release(); err != nil {
				errs = append(errs, err)
			}
		}
		dr.kernels = nil
	}

	return errors.Join(errs...)
}

// Submit a kernel. Unless profiling is enabled the call returns as soon as
// the kernel is enqueued.
func (dr *deviceResources) dispatch(kType kernelType, args interface{}, workSize int) (time.Duration, error) {
	d := dr.kernels[kType].Dispatch().Args(args)
	if dr.profile {
		return d.Exec1D(workSize)
	}

	tick := time.Now()
	err := d.Enqueue1D(workSize)
	return time.Since(tick), err
}
