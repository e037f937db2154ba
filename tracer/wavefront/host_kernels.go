package wavefront

import (
	"fmt"
	"sync/atomic"

	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/types"
	"github.com/chewxy/math32"
)

// Constants shared with CL/kernels.cl.
const (
	missMaterial     int32   = -1
	intersectEpsilon float32 = 1e-4
	originEpsilon    float32 = 1e-3
	rrMinSurvival    float32 = 0.05
	gamma            float32 = 1 / 2.2
)

var unitMask = types.Vec4{1, 1, 1, 0}

// Host implementations of the tracer kernels. Each one resolves its bound
// arguments once per dispatch and returns the per work item function.
func init() {
	device.RegisterHostKernel(generateRays.String(), hostGenerateRays)
	device.RegisterHostKernel(intersect.String(), hostIntersect)
	device.RegisterHostKernel(shade.String(), hostShade)
	device.RegisterHostKernel(accumulate.String(), hostAccumulate)
	device.RegisterHostKernel(tonemap.String(), hostTonemap)
}

// xorshift64* generator; returns a float in [0, 1).
func randFloat(state *uint64) float32 {
	s := *state
	s ^= s >> 12
	s ^= s << 25
	s ^= s >> 27
	*state = s
	return float32((s*2685821657736338717)>>40) / 16777216
}

func hostGenerateRays(args *device.HostArgs) (func(int), error) {
	origins := args.Vec4s("rayOrigins")
	dirs := args.Vec4s("rayDirections")
	acc := args.Vec4s("accumulator")
	mask := args.Vec4s("mask")
	list := args.Uint32s("rayList")
	numRays := args.Uint32s("numRays")
	seeds := args.Uint64s("seeds")
	width := args.Uint32("width")
	height := args.Uint32("height")
	cameraPos := args.Vec4("cameraPos")
	fov := args.Float32("fov")
	jitter := args.Float32("jitter")
	if err := args.Err(); err != nil {
		return nil, err
	}

	numPixels := int(width) * int(height)
	return func(gid int) {
		if gid >= numPixels {
			return
		}
		if gid == 0 {
			numRays[0] = uint32(numPixels)
		}

		seed := seeds[gid]
		jx := (randFloat(&seed) - 0.5) * jitter
		jy := (randFloat(&seed) - 0.5) * jitter
		seeds[gid] = seed

		sx := float32(gid%int(width)) + 0.5 + jx
		sy := float32(gid/int(width)) + 0.5 + jy

		origins[gid] = cameraPos
		dirs[gid] = scene.PrimaryRayDirection(sx, sy, width, height, fov).Vec4(0)
		acc[gid] = types.Vec4{}
		mask[gid] = unitMask
		list[gid] = uint32(gid)
	}, nil
}

func hostIntersect(args *device.HostArgs) (func(int), error) {
	origins := args.Vec4s("rayOrigins")
	dirs := args.Vec4s("rayDirections")
	list := args.Uint32s("rayList")
	numRays := args.Uint32s("numRays")
	centers := args.Vec4s("sphereCenters")
	radii := args.Float32s("sphereRadii")
	numSpheres := args.Uint32("numSpheres")
	hitMaterial := args.Int32s("hitMaterial")
	hitPoint := args.Vec4s("hitPoint")
	hitNormal := args.Vec4s("hitNormal")
	nextList := args.Uint32s("nextRayList")
	nextNumRays := args.Uint32s("nextNumRays")
	if err := args.Err(); err != nil {
		return nil, err
	}
	if int(numSpheres) > len(centers) || int(numSpheres) > len(radii) {
		return nil, fmt.Errorf("kernel %s: sphere count %d exceeds sphere buffers: %w", args.Kernel(), numSpheres, device.ErrBufferTooSmall)
	}

	spheres := make([]scene.Sphere, numSpheres)
	for i := range spheres {
		spheres[i] = scene.Sphere{Center: centers[i].Vec3(), Radius: radii[i]}
	}

	n := int(numRays[0])
	return func(gid int) {
		if gid >= n {
			return
		}

		slot := list[gid]
		if dirs[slot].IsZero() {
			hitMaterial[slot] = missMaterial
			return
		}

		origin, dir := origins[slot].Vec3(), dirs[slot].Vec3()
		closest, tClosest := missMaterial, math32.Inf(1)
		for i, sphere := range spheres {
			if t, hit := sphere.Intersect(origin, dir, intersectEpsilon); hit && t < tClosest {
				closest, tClosest = int32(i), t
			}
		}

		if closest == missMaterial {
			hitMaterial[slot] = missMaterial
			return
		}

		point := origin.Add(dir.Mul(tClosest))
		normal := point.Sub(spheres[closest].Center).Normalize()
		if normal.Dot(dir) > 0 {
			normal = normal.Mul(-1)
		}

		hitMaterial[slot] = closest
		hitPoint[slot] = point.Vec4(0)
		hitNormal[slot] = normal.Vec4(0)
		nextList[atomic.AddUint32(&nextNumRays[0], 1)-1] = slot
	}, nil
}

func hostShade(args *device.HostArgs) (func(int), error) {
	origins := args.Vec4s("rayOrigins")
	dirs := args.Vec4s("rayDirections")
	list := args.Uint32s("rayList")
	numRays := args.Uint32s("numRays")
	hitMaterial := args.Int32s("hitMaterial")
	hitPoint := args.Vec4s("hitPoint")
	hitNormal := args.Vec4s("hitNormal")
	albedo := args.Vec4s("sphereAlbedo")
	emission := args.Vec4s("sphereEmission")
	sky := scene.Sky{
		Horizon: args.Vec4("skyHorizon").Vec3(),
		Zenith:  args.Vec4("skyZenith").Vec3(),
	}
	mask := args.Vec4s("mask")
	acc := args.Vec4s("accumulator")
	seeds := args.Uint64s("seeds")
	bounce := args.Uint32("bounce")
	rrMinBounce := args.Uint32("rrMinBounce")
	if err := args.Err(); err != nil {
		return nil, err
	}

	n := int(numRays[0])
	return func(gid int) {
		if gid >= n {
			return
		}

		slot := list[gid]
		mat := hitMaterial[slot]
		m := mask[slot]

		if mat == missMaterial {
			// Paths terminated by russian roulette carry a zero direction
			if dirs[slot].IsZero() {
				return
			}
			acc[slot] = acc[slot].Add(m.Mul(sky.Radiance(dirs[slot].Vec3()).Vec4(0)))
			return
		}

		acc[slot] = acc[slot].Add(m.Mul(emission[mat]))
		m = m.Mul(albedo[mat])

		seed := seeds[slot]
		if bounce >= rrMinBounce {
			p := math32.Min(math32.Max(m.MaxComponent(), rrMinSurvival), 1)
			if randFloat(&seed) >= p {
				seeds[slot] = seed
				mask[slot] = types.Vec4{}
				dirs[slot] = types.Vec4{}
				return
			}
			m = m.Scale(1 / p)
		}

		normal := hitNormal[slot].Vec3()
		r1 := 2 * math32.Pi * randFloat(&seed)
		r2 := randFloat(&seed)
		r2s := math32.Sqrt(r2)
		seeds[slot] = seed

		axis := types.Vec3{1, 0, 0}
		if math32.Abs(normal[0]) > 0.1 {
			axis = types.Vec3{0, 1, 0}
		}
		u := axis.Cross(normal).Normalize()
		v := normal.Cross(u)
		dir := u.Mul(math32.Cos(r1) * r2s).
			Add(v.Mul(math32.Sin(r1) * r2s)).
			Add(normal.Mul(math32.Sqrt(1 - r2))).
			Normalize()

		origins[slot] = hitPoint[slot].Vec3().Add(normal.Mul(originEpsilon)).Vec4(0)
		dirs[slot] = dir.Vec4(0)
		mask[slot] = m
	}, nil
}

func hostAccumulate(args *device.HostArgs) (func(int), error) {
	acc := args.Vec4s("accumulator")
	radiance := args.Vec4s("radiance")
	numPixels := int(args.Uint32("numPixels"))
	if err := args.Err(); err != nil {
		return nil, err
	}

	return func(gid int) {
		if gid >= numPixels {
			return
		}
		radiance[gid] = radiance[gid].Add(acc[gid])
	}, nil
}

func hostTonemap(args *device.HostArgs) (func(int), error) {
	radiance := args.Vec4s("radiance")
	frameBuffer := args.Uint32s("frameBuffer")
	numPixels := int(args.Uint32("numPixels"))
	sampleCount := args.Uint32("sampleCount")
	exposure := args.Float32("exposure")
	if err := args.Err(); err != nil {
		return nil, err
	}
	if sampleCount == 0 {
		return nil, fmt.Errorf("kernel %s: sample count must be > 0: %w", args.Kernel(), device.ErrDispatch)
	}

	scale := 1 / float32(sampleCount)
	return func(gid int) {
		if gid >= numPixels {
			return
		}
		frameBuffer[gid] = tonemapPixel(radiance[gid].Scale(scale), exposure)
	}, nil
}

// Map a mean radiance value to a packed RGBA8 pixel.
func tonemapPixel(c types.Vec4, exposure float32) uint32 {
	var rgb [3]uint32
	for i := 0; i < 3; i++ {
		v := 1 - math32.Exp(-c[i]*exposure)
		v = math32.Pow(math32.Min(math32.Max(v, 0), 1), gamma)
		rgb[i] = uint32(v*255 + 0.5)
	}
	return rgb[0] | rgb[1]<<8 | rgb[2]<<16 | 255<<24
}
