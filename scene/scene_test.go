package scene

import (
	"testing"

	"github.com/achilleasa/wavefront/types"
)

func TestSphereIntersect(t *testing.T) {
	sphere := NewSphere(types.XYZ(0, 0, -5), 1)

	specs := []struct {
		origin types.Vec3
		dir    types.Vec3
		expHit bool
		expT   float32
	}{
		{types.XYZ(0, 0, 0), types.XYZ(0, 0, -1), true, 4},
		{types.XYZ(0, 0, 0), types.XYZ(0, 0, 1), false, 0},
		{types.XYZ(0, 3, 0), types.XYZ(0, 0, -1), false, 0},
		// Origin inside the sphere hits the far side
		{types.XYZ(0, 0, -5), types.XYZ(0, 0, -1), true, 1},
	}

	for index, spec := range specs {
		tHit, hit := sphere.Intersect(spec.origin, spec.dir, 1e-3)
		if hit != spec.expHit {
			t.Errorf("[spec %d] expected hit to be %t; got %t", index, spec.expHit, hit)
			continue
		}
		if hit && (tHit < spec.expT-1e-4 || tHit > spec.expT+1e-4) {
			t.Errorf("[spec %d] expected t to be %f; got %f", index, spec.expT, tHit)
		}
	}
}

func TestScenePacking(t *testing.T) {
	sc := New()
	sc.Add(
		Sphere{Center: types.XYZ(1, 2, 3), Radius: 0.5, Albedo: types.XYZ(0.1, 0.2, 0.3)},
		Sphere{Center: types.XYZ(4, 5, 6), Radius: 2, Emission: types.XYZ(7, 8, 9)},
	)

	if sc.SphereCount() != 2 {
		t.Fatalf("expected 2 spheres; got %d", sc.SphereCount())
	}

	expCenters := []float32{1, 2, 3, 0, 4, 5, 6, 0}
	centers := sc.SphereCenters()
	if len(centers) != len(expCenters) {
		t.Fatalf("expected %d center floats; got %d", len(expCenters), len(centers))
	}
	for i := range expCenters {
		if centers[i] != expCenters[i] {
			t.Fatalf("expected centers %v; got %v", expCenters, centers)
		}
	}

	radii := sc.SphereRadii()
	if radii[0] != 0.5 || radii[1] != 2 {
		t.Fatalf("expected radii [0.5 2]; got %v", radii)
	}

	if em := sc.SphereEmissions(); em[4] != 7 || em[7] != 0 {
		t.Fatalf("expected packed emissions; got %v", em)
	}
	if al := sc.SphereAlbedos(); al[2] != 0.3 {
		t.Fatalf("expected packed albedos; got %v", al)
	}
}

func TestSceneValidate(t *testing.T) {
	sc := New()
	if err := sc.Validate(); err != nil {
		t.Fatalf("expected empty scene to be valid; got %v", err)
	}

	sc.Add(NewSphere(types.XYZ(0, 0, 0), 0))
	if err := sc.Validate(); err == nil {
		t.Fatal("expected zero-radius sphere to be rejected")
	}

	sc = New()
	sc.Camera.FOV = 180
	if err := sc.Validate(); err == nil {
		t.Fatal("expected 180 degree fov to be rejected")
	}
}

func TestPrimaryRayDirection(t *testing.T) {
	cam := NewCamera(DefaultFOV)

	// The frame center looks straight down -Z
	dir := cam.RayDirection(2, 2, 4, 4)
	if !dir.ApproxEqual(types.XYZ(0, 0, -1), 1e-5) {
		t.Fatalf("expected center ray to point down -Z; got %v", dir)
	}

	// Top-left pixels point up and to the left
	dir = cam.RayDirection(0.5, 0.5, 4, 4)
	if dir[0] >= 0 || dir[1] <= 0 {
		t.Fatalf("expected top-left ray to have -x and +y components; got %v", dir)
	}

	if l := dir.Len(); l < 0.9999 || l > 1.0001 {
		t.Fatalf("expected normalized direction; got length %f", l)
	}
}

func TestSkyRadiance(t *testing.T) {
	sky := DefaultSky
	if out := sky.Radiance(types.XYZ(0, 1, 0)); out != sky.Zenith {
		t.Fatalf("expected zenith color looking up; got %v", out)
	}
	if out := sky.Radiance(types.XYZ(0, -1, 0)); out != sky.Horizon {
		t.Fatalf("expected horizon color looking down; got %v", out)
	}
}
