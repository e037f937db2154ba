package device

import (
	"sync/atomic"
	"testing"
)

const testProgram = `
// Kernels used by the device package tests.
__kernel void scale(global float *values, const float factor) {
	values[get_global_id(0)] *= factor;
}

__kernel void appendSlots(
	global const uint *selector,
	global uint *slots,
	global uint *count
) {
	int gid = get_global_id(0);
	if (selector[gid] != 0) {
		slots[atomic_inc(count)] = gid;
	}
}

__kernel void explode(global int *values) {
	values[get_global_id(0)] = 1 / 0;
}
`

func init() {
	RegisterHostKernel("scale", func(args *HostArgs) (func(int), error) {
		values := args.Float32s("values")
		factor := args.Float32("factor")
		return func(gid int) {
			values[gid] *= factor
		}, nil
	})

	RegisterHostKernel("appendSlots", func(args *HostArgs) (func(int), error) {
		selector := args.Uint32s("selector")
		slots := args.Uint32s("slots")
		count := args.Uint32s("count")
		return func(gid int) {
			if selector[gid] != 0 {
				slots[atomic.AddUint32(&count[0], 1)-1] = uint32(gid)
			}
		}, nil
	})

	RegisterHostKernel("explode", func(args *HostArgs) (func(int), error) {
		values := args.Int32s("values")
		return func(gid int) {
			values[gid+len(values)] = 1
		}, nil
	})
}

type scaleArgs struct {
	Values *Buffer
	Factor float32
}

type appendSlotsArgs struct {
	Selector *Buffer
	Slots    *Buffer
	Count    *Buffer
}

func createHostTestDevice(t *testing.T) *Device {
	dev := NewHostDevice(4)
	if err := dev.Init(testProgram); err != nil {
		t.Fatal(err)
	}
	return dev
}
