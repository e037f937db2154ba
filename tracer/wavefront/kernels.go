package wavefront

import (
	"fmt"
	"reflect"

	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/types"
)

type kernelType uint8

// The list of kernels that implement the tracer.
const (
	// camera kernels
	generateRays kernelType = iota
	// pt kernels
	intersect
	shade
	accumulate
	// hdr kernels
	tonemap
	//
	numKernels
)

// Implements Stringer; map kernel type to the kernel name as defined in the CL source files.
func (kt kernelType) String() string {
	switch kt {
	case generateRays:
		return "generateRays"
	case intersect:
		return "intersect"
	case shade:
		return "shade"
	case accumulate:
		return "accumulate"
	case tonemap:
		return "tonemap"
	default:
		panic(fmt.Sprintf("Unsupported kernel type: %d", kt))
	}
}

// Get the argument struct type that binds to this kernel.
func (kt kernelType) argsType() reflect.Type {
	switch kt {
	case generateRays:
		return reflect.TypeOf(generateRaysArgs{})
	case intersect:
		return reflect.TypeOf(intersectArgs{})
	case shade:
		return reflect.TypeOf(shadeArgs{})
	case accumulate:
		return reflect.TypeOf(accumulateArgs{})
	case tonemap:
		return reflect.TypeOf(tonemapArgs{})
	default:
		panic(fmt.Sprintf("Unsupported kernel type: %d", kt))
	}
}

// Kernel argument sets. Field order and names follow the kernel parameter
// lists in CL/kernels.cl.

type generateRaysArgs struct {
	RayOrigins    *device.Buffer
	RayDirections *device.Buffer
	Accumulator   *device.Buffer
	Mask          *device.Buffer
	RayList       *device.Buffer
	NumRays       *device.Buffer
	Seeds         *device.Buffer
	Width         uint32
	Height        uint32
	CameraPos     types.Vec4
	Fov           float32
	Jitter        float32
}

type intersectArgs struct {
	RayOrigins    *device.Buffer
	RayDirections *device.Buffer
	RayList       *device.Buffer
	NumRays       *device.Buffer
	SphereCenters *device.Buffer
	SphereRadii   *device.Buffer
	NumSpheres    uint32
	HitMaterial   *device.Buffer
	HitPoint      *device.Buffer
	HitNormal     *device.Buffer
	NextRayList   *device.Buffer
	NextNumRays   *device.Buffer
}

type shadeArgs struct {
	RayOrigins     *device.Buffer
	RayDirections  *device.Buffer
	RayList        *device.Buffer
	NumRays        *device.Buffer
	HitMaterial    *device.Buffer
	HitPoint       *device.Buffer
	HitNormal      *device.Buffer
	SphereAlbedo   *device.Buffer
	SphereEmission *device.Buffer
	SkyHorizon     types.Vec4
	SkyZenith      types.Vec4
	Mask           *device.Buffer
	Accumulator    *device.Buffer
	Seeds          *device.Buffer
	Bounce         uint32
	RRMinBounce    uint32
}

type accumulateArgs struct {
	Accumulator *device.Buffer
	Radiance    *device.Buffer
	NumPixels   uint32
}

type tonemapArgs struct {
	Radiance    *device.Buffer
	FrameBuffer *device.Buffer
	NumPixels   uint32
	SampleCount uint32
	Exposure    float32
}
