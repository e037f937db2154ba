package wavefront

import (
	"time"

	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/types"
)

// Zero the running radiance sum.
func (dr *deviceResources) ClearRadiance() (time.Duration, error) {
	tick := time.Now()
	err := dr.buffers.Radiance.Fill(types.Vec4{}, 0, 0)
	return time.Since(tick), err
}

// Upload a new per-pixel seed table.
func (dr *deviceResources) UploadSeeds(seeds []uint64) (time.Duration, error) {
	tick := time.Now()
	err := dr.buffers.Seeds.WriteData(seeds, 0)
	return time.Since(tick), err
}

// Generate one primary ray per pixel into the current ray list.
func (dr *deviceResources) GenerateRays(frameW, frameH uint32, camera *scene.Camera, jitter float32) (time.Duration, error) {
	bp := dr.buffers
	cur := dr.lists.Current()
	args := generateRaysArgs{
		RayOrigins:    bp.RayOrigins,
		RayDirections: bp.RayDirections,
		Accumulator:   bp.Accumulator,
		Mask:          bp.Mask,
		RayList:       cur.Indices,
		NumRays:       cur.Count,
		Seeds:         bp.Seeds,
		Width:         frameW,
		Height:        frameH,
		CameraPos:     camera.Position.Vec4(0),
		Fov:           camera.FOV,
		Jitter:        jitter,
	}
	return dr.dispatch(generateRays, &args, int(frameW*frameH))
}

// Intersect the rays in the current list with the scene and append the hits
// to the next list.
func (dr *deviceResources) Intersect(numSpheres uint32, workSize int) (time.Duration, error) {
	bp := dr.buffers
	cur, next := dr.lists.Current(), dr.lists.Next()
	args := intersectArgs{
		RayOrigins:    bp.RayOrigins,
		RayDirections: bp.RayDirections,
		RayList:       cur.Indices,
		NumRays:       cur.Count,
		SphereCenters: bp.SphereCenters,
		SphereRadii:   bp.SphereRadii,
		NumSpheres:    numSpheres,
		HitMaterial:   bp.HitMaterial,
		HitPoint:      bp.HitPoint,
		HitNormal:     bp.HitNormal,
		NextRayList:   next.Indices,
		NextNumRays:   next.Count,
	}
	return dr.dispatch(intersect, &args, workSize)
}

// Shade the rays in the current list.
func (dr *deviceResources) Shade(sky scene.Sky, bounce, rrMinBounce uint32, workSize int) (time.Duration, error) {
	bp := dr.buffers
	cur := dr.lists.Current()
	args := shadeArgs{
		RayOrigins:     bp.RayOrigins,
		RayDirections:  bp.RayDirections,
		RayList:        cur.Indices,
		NumRays:        cur.Count,
		HitMaterial:    bp.HitMaterial,
		HitPoint:       bp.HitPoint,
		HitNormal:      bp.HitNormal,
		SphereAlbedo:   bp.SphereAlbedo,
		SphereEmission: bp.SphereEmission,
		SkyHorizon:     sky.Horizon.Vec4(0),
		SkyZenith:      sky.Zenith.Vec4(0),
		Mask:           bp.Mask,
		Accumulator:    bp.Accumulator,
		Seeds:          bp.Seeds,
		Bounce:         bounce,
		RRMinBounce:    rrMinBounce,
	}
	return dr.dispatch(shade, &args, workSize)
}

// Add the per-sample accumulator to the radiance sum.
func (dr *deviceResources) Accumulate(numPixels uint32) (time.Duration, error) {
	args := accumulateArgs{
		Accumulator: dr.buffers.Accumulator,
		Radiance:    dr.buffers.Radiance,
		NumPixels:   numPixels,
	}
	return dr.dispatch(accumulate, &args, int(numPixels))
}

// Normalize the radiance sum and write the tonemapped frame buffer.
func (dr *deviceResources) Tonemap(numPixels, sampleCount uint32, exposure float32) (time.Duration, error) {
	args := tonemapArgs{
		Radiance:    dr.buffers.Radiance,
		FrameBuffer: dr.buffers.FrameBuffer,
		NumPixels:   numPixels,
		SampleCount: sampleCount,
		Exposure:    exposure,
	}
	return dr.dispatch(tonemap, &args, int(numPixels))
}

// Copy the frame buffer to a host RGBA pixel slice. This call blocks until
// all enqueued work has completed.
func (dr *deviceResources) ReadFrameBuffer(pix []uint8) (time.Duration, error) {
	tick := time.Now()
	err := dr.buffers.FrameBuffer.ReadData(0, 0, 0, pix)
	return time.Since(tick), err
}
