package scene

import (
	"fmt"

	"github.com/achilleasa/wavefront/types"
	"github.com/chewxy/math32"
)

// Reflectance assigned to spheres that do not specify one.
var DefaultAlbedo = types.Vec3{0.75, 0.75, 0.75}

// A sphere with a diffuse material.
type Sphere struct {
	Center types.Vec3
	Radius float32

	// Diffuse reflectance.
	Albedo types.Vec3

	// Emitted radiance.
	Emission types.Vec3
}

// Create a sphere using the default albedo and no emission.
func NewSphere(center types.Vec3, radius float32) Sphere {
	return Sphere{
		Center: center,
		Radius: radius,
		Albedo: DefaultAlbedo,
	}
}

// Intersect a ray with the sphere. Returns the smallest distance along dir
// that is greater than tMin and a flag indicating whether such a hit exists.
// dir must be normalized.
func (s Sphere) Intersect(origin, dir types.Vec3, tMin float32) (float32, bool) {
	oc := origin.Sub(s.Center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}

	sqrtDisc := math32.Sqrt(disc)
	if t := -b - sqrtDisc; t > tMin {
		return t, true
	}
	if t := -b + sqrtDisc; t > tMin {
		return t, true
	}
	return 0, false
}

// Background radiance modelled as a vertical gradient.
type Sky struct {
	Horizon types.Vec3
	Zenith  types.Vec3
}

// Evaluate the sky radiance for a normalized direction.
func (s Sky) Radiance(dir types.Vec3) types.Vec3 {
	t := 0.5 * (dir[1] + 1)
	return s.Horizon.Mul(1 - t).Add(s.Zenith.Mul(t))
}

var DefaultSky = Sky{
	Horizon: types.Vec3{1, 1, 1},
	Zenith:  types.Vec3{0.5, 0.7, 1.0},
}

// The scene is a flat list of spheres, a sky and a camera.
type Scene struct {
	Spheres []Sphere
	Sky     Sky
	Camera  *Camera
}

// Create an empty scene with the default sky and camera.
func New() *Scene {
	return &Scene{
		Sky:    DefaultSky,
		Camera: NewCamera(DefaultFOV),
	}
}

// Append spheres to the scene.
func (s *Scene) Add(spheres ...Sphere) {
	s.Spheres = append(s.Spheres, spheres...)
}

// Check that all scene elements are usable.
func (s *Scene) Validate() error {
	if s.Camera == nil {
		return fmt.Errorf("scene: no camera defined")
	}
	if err := s.Camera.Validate(); err != nil {
		return err
	}
	for index, sphere := range s.Spheres {
		if !(sphere.Radius > 0) {
			return fmt.Errorf("scene: sphere %d has invalid radius %f", index, sphere.Radius)
		}
	}
	return nil
}

// Get the number of spheres.
func (s *Scene) SphereCount() int {
	return len(s.Spheres)
}

// Get sphere centers as 4 floats per sphere (w = 0), matching the device
// float3 layout.
func (s *Scene) SphereCenters() []float32 {
	return s.packVec3(func(sp Sphere) types.Vec3 { return sp.Center })
}

// Get sphere radii as 1 float per sphere.
func (s *Scene) SphereRadii() []float32 {
	out := make([]float32, len(s.Spheres))
	for i, sphere := range s.Spheres {
		out[i] = sphere.Radius
	}
	return out
}

// Get sphere albedos as 4 floats per sphere.
func (s *Scene) SphereAlbedos() []float32 {
	return s.packVec3(func(sp Sphere) types.Vec3 { return sp.Albedo })
}

// Get sphere emissions as 4 floats per sphere.
func (s *Scene) SphereEmissions() []float32 {
	return s.packVec3(func(sp Sphere) types.Vec3 { return sp.Emission })
}

func (s *Scene) packVec3(field func(Sphere) types.Vec3) []float32 {
	out := make([]float32, 4*len(s.Spheres))
	for i, sphere := range s.Spheres {
		v := field(sphere)
		copy(out[4*i:], v[:])
	}
	return out
}
