package scene

import (
	"fmt"

	"github.com/achilleasa/wavefront/types"
	"github.com/chewxy/math32"
)

// Default vertical field of view in degrees.
const DefaultFOV float32 = 60

// The camera is a pinhole camera at Position looking down -Z with +Y up.
type Camera struct {
	Position types.Vec3

	// Vertical field of view in degrees.
	FOV float32
}

func NewCamera(fov float32) *Camera {
	return &Camera{
		Position: types.Vec3{0, 0, 0},
		FOV:      fov,
	}
}

// Implements Stringer.
func (c *Camera) String() string {
	return fmt.Sprintf("Camera at (%3.3f, %3.3f, %3.3f) with %3.1f deg FOV", c.Position[0], c.Position[1], c.Position[2], c.FOV)
}

// Check that the camera parameters are usable.
func (c *Camera) Validate() error {
	if c.FOV <= 0 || c.FOV >= 180 {
		return fmt.Errorf("camera: fov must be in (0, 180) degrees; got %f", c.FOV)
	}
	return nil
}

// Get the normalized direction of the ray passing through film position
// (sx, sy), measured in pixels from the top-left corner of the frame.
func (c *Camera) RayDirection(sx, sy float32, frameW, frameH uint32) types.Vec3 {
	return PrimaryRayDirection(sx, sy, frameW, frameH, c.FOV)
}

// Map a film position to a normalized camera-space ray direction. The pixel
// at (x, y) is sampled at its center when (sx, sy) = (x + 0.5, y + 0.5).
func PrimaryRayDirection(sx, sy float32, frameW, frameH uint32, fov float32) types.Vec3 {
	w, h := float32(frameW), float32(frameH)
	tanHalfFOV := math32.Tan(fov * math32.Pi / 360)
	aspect := w / h

	px := (2*sx/w - 1) * aspect * tanHalfFOV
	py := (1 - 2*sy/h) * tanHalfFOV
	return types.Vec3{px, py, -1}.Normalize()
}
