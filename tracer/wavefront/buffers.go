package wavefront

import (
	"errors"
	"fmt"

	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/device"
)

// Size of buffer elements in bytes.
const (
	sizeofFloat3  = 16 // float3 takes the same space as float4
	sizeofFloat   = 4
	sizeofInt     = 4
	sizeofUint    = 4
	sizeofSeed    = 8 // ulong
	sizeofPixel   = 4 // packed RGBA8
	sizeofCounter = 4 // uint
)

// The set of device buffers used by the tracer. Every buffer is registered
// with the pool before it is allocated so a partially constructed pool can
// always be released.
type bufferPool struct {
	device *device.Device
	all    []*device.Buffer

	// Per-path ray state.
	RayOrigins    *device.Buffer
	RayDirections *device.Buffer

	// Intersection results.
	HitMaterial *device.Buffer
	HitPoint    *device.Buffer
	HitNormal   *device.Buffer

	// Ping-pong ray lists and their counters.
	RayLists  [2]*device.Buffer
	RayCounts [2]*device.Buffer

	// Path throughput, per-sample radiance and the running radiance sum.
	Mask        *device.Buffer
	Accumulator *device.Buffer
	Radiance    *device.Buffer

	// Per-pixel random generator state.
	Seeds *device.Buffer

	// Output frame buffer.
	FrameBuffer *device.Buffer

	// Scene data
	SphereCenters  *device.Buffer
	SphereRadii    *device.Buffer
	SphereAlbedo   *device.Buffer
	SphereEmission *device.Buffer
}

// Allocate all per-pixel buffers for the given frame dimensions and upload
// the scene geometry. On failure, any buffers allocated so far are released.
func newBufferPool(dev *device.Device, frameW, frameH uint32, sc *scene.Scene) (*bufferPool, error) {
	var err error
	bp := &bufferPool{device: dev}
	pixels := int(frameW) * int(frameH)

	allocations := []struct {
		target   **device.Buffer
		name     string
		elemSize int
		count    int
	}{
		{&bp.RayOrigins, "rayOrigins", sizeofFloat3, pixels},
		{&bp.RayDirections, "rayDirections", sizeofFloat3, pixels},
		{&bp.HitMaterial, "hitMaterial", sizeofInt, pixels},
		{&bp.HitPoint, "hitPoint", sizeofFloat3, pixels},
		{&bp.HitNormal, "hitNormal", sizeofFloat3, pixels},
		{&bp.RayLists[0], "rayList0", sizeofUint, pixels},
		{&bp.RayLists[1], "rayList1", sizeofUint, pixels},
		{&bp.RayCounts[0], "numRays0", sizeofCounter, 1},
		{&bp.RayCounts[1], "numRays1", sizeofCounter, 1},
		{&bp.Mask, "mask", sizeofFloat3, pixels},
		{&bp.Accumulator, "accumulator", sizeofFloat3, pixels},
		{&bp.Radiance, "radiance", sizeofFloat3, pixels},
		{&bp.Seeds, "seeds", sizeofSeed, pixels},
		{&bp.FrameBuffer, "frameBuffer", sizeofPixel, pixels},
	}
	for _, alloc := range allocations {
		*alloc.target, err = bp.create(alloc.name, alloc.elemSize*alloc.count, device.MemReadWrite, nil)
		if err != nil {
			bp.ReleaseAll()
			return nil, err
		}
	}

	if err = bp.UploadSceneData(sc); err != nil {
		bp.ReleaseAll()
		return nil, err
	}

	return bp, nil
}

// Register and allocate a new buffer. If data is not nil, the buffer is
// sized to fit it and data is uploaded; size is ignored in that case.
func (bp *bufferPool) create(name string, size int, flags device.MemFlags, data interface{}) (*device.Buffer, error) {
	buf := bp.device.Buffer(name)
	bp.all = append(bp.all, buf)

	var err error
	if data != nil {
		err = buf.AllocateAndWriteData(data, flags)
	} else {
		err = buf.Allocate(size, flags)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Upload the sphere lists. Device buffers cannot be empty so an empty scene
// gets a single placeholder element; the kernels never read it as the sphere
// count is zero.
func (bp *bufferPool) UploadSceneData(sc *scene.Scene) error {
	centers, radii := sc.SphereCenters(), sc.SphereRadii()
	albedos, emissions := sc.SphereAlbedos(), sc.SphereEmissions()
	if sc.SphereCount() == 0 {
		centers = make([]float32, sizeofFloat3/sizeofFloat)
		radii = make([]float32, 1)
		albedos = make([]float32, sizeofFloat3/sizeofFloat)
		emissions = make([]float32, sizeofFloat3/sizeofFloat)
	}

	var err error
	targets := []struct {
		target **device.Buffer
		name   string
		data   []float32
	}{
		{&bp.SphereCenters, "sphereCenters", centers},
		{&bp.SphereRadii, "sphereRadii", radii},
		{&bp.SphereAlbedo, "sphereAlbedo", albedos},
		{&bp.SphereEmission, "sphereEmission", emissions},
	}
	for _, t := range targets {
		*t.target, err = bp.create(t.name, 0, device.MemReadOnly, t.data)
		if err != nil {
			return err
		}
	}
	return nil
}

// Get the total number of allocated bytes.
func (bp *bufferPool) TotalSize() int {
	total := 0
	for _, buf := range bp.all {
		total += buf.Size()
	}
	return total
}

// Release all buffers. Calling ReleaseAll more than once is a no-op.
func (bp *bufferPool) ReleaseAll() error {
	var errs []error
	for _, buf := range bp.all {
		if err := buf.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	bp.all = nil

	if len(errs) != 0 {
		return fmt.Errorf("buffer pool: %w", errors.Join(errs...))
	}
	return nil
}
