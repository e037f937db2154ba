package wavefront

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"
)

// An alias for functions that can be used as part of the rendering pipeline.
type PipelineStage func(tr *Tracer) (time.Duration, error)

// The list of pluggable of stages that are used to render the scene.
type Pipeline struct {
	// Reset the tracer state. This stage is executed once at the start
	// of every rendered frame.
	Reset PipelineStage

	// This stage is executed whenever the tracer generates a new set of
	// primary rays. It is invoked once per sample.
	PrimaryRayGenerator PipelineStage

	// This stage implements an integrator function to trace the primary
	// rays and add their contribution into the radiance buffer.
	Integrator PipelineStage

	// A set of post-processing stages that are executed after all samples
	// have been traced.
	PostProcess []PipelineStage
}

func DefaultPipeline() *Pipeline {
	return &Pipeline{
		Reset:               ClearRadiance(),
		PrimaryRayGenerator: PerspectiveCamera(),
		Integrator:          MonteCarloIntegrator(),
		PostProcess: []PipelineStage{
			Tonemap(),
		},
	}
}

// Clear the radiance buffer and, if requested, upload a fresh seed table.
func ClearRadiance() PipelineStage {
	return func(tr *Tracer) (time.Duration, error) {
		start := time.Now()
		if tr.opts.ReseedPerRender {
			d, err := tr.resources.UploadSeeds(tr.newSeedTable())
			tr.stats.AddStageTime("reseed", d)
			if err != nil {
				return time.Since(start), err
			}
		}

		d, err := tr.resources.ClearRadiance()
		tr.stats.AddStageTime("clearRadiance", d)
		return time.Since(start), err
	}
}

// Use a perspective pinhole camera for the primary ray generation stage.
func PerspectiveCamera() PipelineStage {
	return func(tr *Tracer) (time.Duration, error) {
		d, err := tr.resources.GenerateRays(tr.frameW, tr.frameH, tr.scene.Camera, tr.opts.Jitter)
		tr.stats.AddStageTime(generateRays.String(), d)
		return d, err
	}
}

// Use a montecarlo pathtracer implementation. Each bounce intersects and
// shades the current ray list while the intersection kernel compacts the
// surviving paths into the next list. The primary hit is always shaded and
// is followed by up to NumBounces indirect bounces. The sample's
// contribution is added to the radiance buffer once the bounce loop ends.
func MonteCarloIntegrator() PipelineStage {
	return func(tr *Tracer) (time.Duration, error) {
		var err error
		var d time.Duration

		start := time.Now()
		res := tr.resources
		numPixels := tr.frameW * tr.frameH
		numSpheres := uint32(tr.scene.SphereCount())

		live := numPixels
		if tr.opts.EarlyExit {
			tr.stats.LiveRays = tr.stats.LiveRays[:0]
		}

		var bounce uint32
		for bounce = 0; bounce <= tr.opts.NumBounces; bounce++ {
			if err = res.lists.ResetCounter(); err != nil {
				return time.Since(start), err
			}

			// Without a known live count, dispatch over every pixel and
			// let the kernels drop lanes past the list length.
			workSize := int(numPixels)
			if tr.opts.EarlyExit {
				workSize = int(live)
			}

			d, err = res.Intersect(numSpheres, workSize)
			tr.stats.AddStageTime(intersect.String(), d)
			if err != nil {
				return time.Since(start), err
			}

			d, err = res.Shade(tr.scene.Sky, bounce, tr.opts.MinBouncesForRR, workSize)
			tr.stats.AddStageTime(shade.String(), d)
			if err != nil {
				return time.Since(start), err
			}

			if tr.opts.EarlyExit {
				if live, err = res.lists.ReadCount(); err != nil {
					return time.Since(start), err
				}
				tr.stats.LiveRays = append(tr.stats.LiveRays, live)
			}

			res.lists.Swap()
			if tr.opts.EarlyExit && live == 0 {
				tr.logger.Debugf("all paths terminated after %d bounce(s)", bounce+1)
				bounce++
				break
			}
		}
		tr.stats.Bounces = append(tr.stats.Bounces, bounce)

		d, err = res.Accumulate(numPixels)
		tr.stats.AddStageTime(accumulate.String(), d)
		return time.Since(start), err
	}
}

// Normalize the radiance sum, apply exposure/gamma correction and write the
// frame buffer.
func Tonemap() PipelineStage {
	return func(tr *Tracer) (time.Duration, error) {
		d, err := tr.resources.Tonemap(tr.frameW*tr.frameH, tr.opts.SamplesPerPixel, tr.opts.Exposure)
		tr.stats.AddStageTime(tonemap.String(), d)
		return d, err
	}
}

// Write a copy of the RGBA framebuffer to a png file. This stage must run
// after Tonemap.
func SaveFrameBuffer(imgFile string) PipelineStage {
	return func(tr *Tracer) (time.Duration, error) {
		start := time.Now()

		im := image.NewRGBA(image.Rect(0, 0, int(tr.frameW), int(tr.frameH)))
		if _, err := tr.resources.ReadFrameBuffer(im.Pix); err != nil {
			return 0, err
		}

		f, err := os.Create(imgFile)
		if err != nil {
			return 0, fmt.Errorf("wavefront tracer: could not save frame buffer: %w", err)
		}
		defer f.Close()

		if err = png.Encode(f, im); err != nil {
			return 0, fmt.Errorf("wavefront tracer: could not encode frame buffer: %w", err)
		}
		tr.logger.Infof("wrote frame buffer to %s", imgFile)
		return time.Since(start), nil
	}
}
