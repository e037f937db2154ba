package reader

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/types"
)

// Maximum include depth; guards against include cycles.
const maxIncludeDepth = 16

type sceneReader struct {
	logger log.Logger

	// The parsed scene.
	scene *scene.Scene

	// An error stack that provides additional error information when
	// scene files include other files.
	errStack []string
}

// Read a scene description from a local file or an http(s) URL.
//
// Scene files are line oriented; '#' starts a comment. Supported directives:
//
//	camera x y z fov              camera position and vertical fov (degrees)
//	sky hr hg hb zr zg zb         horizon and zenith sky radiance
//	sphere cx cy cz radius        append a sphere with the default material
//	albedo r g b                  set the diffuse albedo of the last sphere
//	emission r g b                set the emitted radiance of the last sphere
//	include path                  parse another scene file (relative paths
//	                              resolve against the including file)
func ReadScene(pathToScene string) (*scene.Scene, error) {
	res, err := newResource(pathToScene, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	r := &sceneReader{
		logger: log.New("scene reader"),
		scene:  scene.New(),
	}

	r.logger.Noticef("parsing scene from %s", res.Path())
	start := time.Now()

	if err = r.parse(res, 0); err != nil {
		return nil, err
	}

	if err = r.scene.Validate(); err != nil {
		return nil, err
	}

	r.logger.Infof("parsed %d spheres in %d ms", r.scene.SphereCount(), time.Since(start).Nanoseconds()/1000000)
	return r.scene, nil
}

// Generate an error message that also includes any data in the error stack.
func (r *sceneReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)
	return fmt.Errorf("%s", strings.Trim(
		fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n")),
		"\n",
	))
}

// Push a frame to the error stack.
func (r *sceneReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *sceneReader) popFrame() {
	r.errStack = r.errStack[1:]
}

func (r *sceneReader) lastSphere() *scene.Sphere {
	if len(r.scene.Spheres) == 0 {
		return nil
	}
	return &r.scene.Spheres[len(r.scene.Spheres)-1]
}

func (r *sceneReader) parse(res *resource, depth int) error {
	lineNum := 0

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx != -1 {
			line = line[:idx]
		}
		lineTokens := strings.Fields(line)
		if len(lineTokens) == 0 {
			continue
		}

		switch lineTokens[0] {
		case "include":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for 'include'; expected 1 argument; got %d", len(lineTokens)-1)
			}
			if depth+1 > maxIncludeDepth {
				return r.emitError(res.Path(), lineNum, "max include depth (%d) exceeded", maxIncludeDepth)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [include]", res.Path(), lineNum))
			incRes, err := newResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			err = r.parse(incRes, depth+1)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "camera":
			vals, err := parseFloats(lineTokens, 4)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.scene.Camera.Position = types.XYZ(vals[0], vals[1], vals[2])
			r.scene.Camera.FOV = vals[3]
		case "sky":
			vals, err := parseFloats(lineTokens, 6)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.scene.Sky = scene.Sky{
				Horizon: types.XYZ(vals[0], vals[1], vals[2]),
				Zenith:  types.XYZ(vals[3], vals[4], vals[5]),
			}
		case "sphere":
			vals, err := parseFloats(lineTokens, 4)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			if vals[3] <= 0 {
				return r.emitError(res.Path(), lineNum, "sphere radius must be positive; got %f", vals[3])
			}
			r.scene.Add(scene.NewSphere(types.XYZ(vals[0], vals[1], vals[2]), vals[3]))
		case "albedo", "emission":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			sphere := r.lastSphere()
			if sphere == nil {
				return r.emitError(res.Path(), lineNum, "'%s' must follow a sphere definition", lineTokens[0])
			}
			if lineTokens[0] == "albedo" {
				sphere.Albedo = v
			} else {
				sphere.Emission = v
			}
		default:
			return r.emitError(res.Path(), lineNum, "unknown directive '%s'", lineTokens[0])
		}
	}

	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err.Error())
	}
	return nil
}

func parseFloats(lineTokens []string, count int) ([]float32, error) {
	if len(lineTokens) != count+1 {
		return nil, fmt.Errorf("unsupported syntax for '%s'; expected %d arguments; got %d", lineTokens[0], count, len(lineTokens)-1)
	}

	out := make([]float32, count)
	for i := 0; i < count; i++ {
		val, err := strconv.ParseFloat(lineTokens[i+1], 32)
		if err != nil {
			return nil, fmt.Errorf("could not parse argument %d of '%s': %s", i+1, lineTokens[0], err.Error())
		}
		out[i] = float32(val)
	}
	return out, nil
}

func parseVec3(lineTokens []string) (types.Vec3, error) {
	vals, err := parseFloats(lineTokens, 3)
	if err != nil {
		return types.Vec3{}, err
	}
	return types.XYZ(vals[0], vals[1], vals[2]), nil
}
