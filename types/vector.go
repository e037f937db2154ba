package types

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Tolerance used by approximate float comparisons.
const floatCmpEpsilon = 1e-5

type Vec2 f32.Vec2
type Vec3 f32.Vec3

// Vec4 matches the layout of an OpenCL float3/float4 (16 bytes). The tracer
// stores every 3-component device quantity as a Vec4 with w used as padding.
type Vec4 f32.Vec4

// Define a 3 component vector.
func XYZ(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// Define a 4 component vector.
func XYZW(x, y, z, w float32) Vec4 {
	return Vec4{x, y, z, w}
}

// Expand a 3 component vector to a Vec4.
func (v Vec3) Vec4(w float32) Vec4 {
	return Vec4{v[0], v[1], v[2], w}
}

// Add a vector.
func (v Vec3) Add(v2 Vec3) Vec3 {
	return Vec3{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2]}
}

// Subtract a vector.
func (v Vec3) Sub(v2 Vec3) Vec3 {
	return Vec3{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2]}
}

// Multiply a 3 component vector with a scalar.
func (v Vec3) Mul(s float32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Get 3 component vector length.
func (v Vec3) Len() float32 {
	return math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Normalize 3 component vector. Zero-length vectors are returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < floatCmpEpsilon {
		return Vec3{}
	}
	l = 1.0 / l
	return Vec3{v[0] * l, v[1] * l, v[2] * l}
}

// Calculate dot product of 2 vectors
func (v Vec3) Dot(v2 Vec3) float32 {
	return v[0]*v2[0] + v[1]*v2[1] + v[2]*v2[2]
}

// Calculate cross product of 2 vectors
func (v Vec3) Cross(v2 Vec3) Vec3 {
	return Vec3{
		v[1]*v2[2] - v[2]*v2[1],
		v[2]*v2[0] - v[0]*v2[2],
		v[0]*v2[1] - v[1]*v2[0],
	}
}

// Return true if all components of v and v2 differ by less than epsilon.
func (v Vec3) ApproxEqual(v2 Vec3, epsilon float32) bool {
	for i := 0; i < 3; i++ {
		if math32.Abs(v[i]-v2[i]) > epsilon {
			return false
		}
	}
	return true
}

// Drop the w component.
func (v Vec4) Vec3() Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

// Component-wise addition of the xyz components; w is cleared.
func (v Vec4) Add(v2 Vec4) Vec4 {
	return Vec4{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2], 0}
}

// Component-wise multiplication of the xyz components; w is cleared.
func (v Vec4) Mul(v2 Vec4) Vec4 {
	return Vec4{v[0] * v2[0], v[1] * v2[1], v[2] * v2[2], 0}
}

// Scale the xyz components; w is cleared.
func (v Vec4) Scale(s float32) Vec4 {
	return Vec4{v[0] * s, v[1] * s, v[2] * s, 0}
}

// Return the largest of the xyz components.
func (v Vec4) MaxComponent() float32 {
	return math32.Max(v[0], math32.Max(v[1], v[2]))
}

// Return true if the xyz components are all zero.
func (v Vec4) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}
