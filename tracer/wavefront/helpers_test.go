package wavefront

import (
	"testing"

	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/types"
)

const testLanes = 4

// A scene with a single sphere straddling the view axis.
func singleSphereScene(albedo, emission types.Vec3) *scene.Scene {
	sc := scene.New()
	sc.Add(scene.Sphere{
		Center:   types.Vec3{0, 0, -3},
		Radius:   1,
		Albedo:   albedo,
		Emission: emission,
	})
	return sc
}

func newTestResources(t *testing.T, frameW, frameH uint32, sc *scene.Scene) *deviceResources {
	dev := device.NewHostDevice(testLanes)
	if err := dev.Init(kernelSource); err != nil {
		t.Fatal(err)
	}

	res, err := newDeviceResources(dev, frameW, frameH, sc, false)
	if err != nil {
		dev.Close()
		t.Fatal(err)
	}

	seeds := make([]uint64, frameW*frameH)
	for index := range seeds {
		seeds[index] = uint64(index)*0x9E3779B97F4A7C15 | 1
	}
	if _, err = res.UploadSeeds(seeds); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		res.Close()
		dev.Close()
	})
	return res
}

func newTestTracer(t *testing.T, sc *scene.Scene, frameW, frameH uint32, opts Options, pipeline *Pipeline) *Tracer {
	tr, err := NewTracer(device.NewHostDevice(testLanes), sc, frameW, frameH, opts, pipeline)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func testOptions() Options {
	return Options{
		SamplesPerPixel: 1,
		NumBounces:      3,
		MinBouncesForRR: 3,
		Exposure:        1,
		EarlyExit:       true,
		Seed:            42,
		ReseedPerRender: true,
	}
}

func readVec4s(t *testing.T, buf *device.Buffer, count int) []types.Vec4 {
	out := make([]types.Vec4, count)
	if err := buf.ReadData(0, 0, count*sizeofFloat3, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func readUint32s(t *testing.T, buf *device.Buffer, count int) []uint32 {
	out := make([]uint32, count)
	if err := buf.ReadData(0, 0, count*sizeofUint, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func readInt32s(t *testing.T, buf *device.Buffer, count int) []int32 {
	out := make([]int32, count)
	if err := buf.ReadData(0, 0, count*sizeofInt, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func vec4ApproxEqual(a, b types.Vec4, epsilon float32) bool {
	return a.Vec3().ApproxEqual(b.Vec3(), epsilon)
}
