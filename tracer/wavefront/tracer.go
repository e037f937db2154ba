package wavefront

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/device"
)

//go:embed CL/kernels.cl
var kernelSource string

// Tracer options.
type Options struct {
	// Number of samples per pixel.
	SamplesPerPixel uint32

	// Max number of indirect bounces per path. The primary hit is always
	// shaded so 0 renders direct emission and sky only.
	NumBounces uint32

	// Russian roulette is applied to paths at bounces >= MinBouncesForRR.
	// Setting this to a value >= NumBounces disables it.
	MinBouncesForRR uint32

	// Exposure for tonemapping.
	Exposure float32

	// Read back the live ray count after each bounce, size dispatches to
	// it and stop the bounce loop once all paths have terminated.
	EarlyExit bool

	// Sub-pixel jitter amplitude in pixels; 0 samples pixel centers.
	Jitter float32

	// Seed for the per-pixel seed table. A zero value seeds from the
	// current time.
	Seed int64

	// Upload a fresh seed table at the start of each render.
	ReseedPerRender bool

	// Wait for each kernel to complete so stage timings reflect device
	// execution time.
	Profile bool
}

// A wavefront path tracer bound to a single device.
type Tracer struct {
	logger log.Logger

	mu sync.Mutex

	// The device associated with this tracer instance.
	device *device.Device

	// The allocated device resources.
	resources *deviceResources

	// The tracer rendering pipeline.
	pipeline *Pipeline

	// The uploaded scene.
	scene *scene.Scene

	frameW uint32
	frameH uint32
	opts   Options

	// Source for seed tables.
	rng *rand.Rand

	// Statistics for last rendered frame.
	stats tracer.Stats

	// Frame readback buffer for output images with padded rows.
	scratch []uint8

	closed bool
}

// Create a new tracer that renders sc on dev at the given frame size. The
// tracer takes ownership of dev: it initializes the device, compiles the
// kernels and uploads the scene, and Close shuts the device down. If
// pipeline is nil, the default pipeline is used.
func NewTracer(dev *device.Device, sc *scene.Scene, frameW, frameH uint32, opts Options, pipeline *Pipeline) (*Tracer, error) {
	if dev == nil {
		return nil, fmt.Errorf("wavefront tracer: invalid device handle")
	}
	if sc == nil {
		return nil, fmt.Errorf("wavefront tracer: no scene defined")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if frameW == 0 || frameH == 0 {
		return nil, fmt.Errorf("frame dimensions must be > 0; got %dx%d: %w", frameW, frameH, ErrInvalidOptions)
	}
	if opts.SamplesPerPixel == 0 {
		return nil, fmt.Errorf("samples per pixel must be > 0: %w", ErrInvalidOptions)
	}
	if pipeline == nil {
		pipeline = DefaultPipeline()
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	tr := &Tracer{
		logger:   log.New(fmt.Sprintf("wavefront tracer (%s)", dev.Name)),
		device:   dev,
		pipeline: pipeline,
		scene:    sc,
		frameW:   frameW,
		frameH:   frameH,
		opts:     opts,
		rng:      rand.New(rand.NewSource(seed)),
	}

	var err error
	start := time.Now()
	if err = dev.Init(kernelSource); err != nil {
		tr.cleanup()
		return nil, err
	}

	if tr.resources, err = newDeviceResources(dev, frameW, frameH, sc, opts.Profile); err != nil {
		tr.cleanup()
		return nil, err
	}

	if _, err = tr.resources.UploadSeeds(tr.newSeedTable()); err != nil {
		tr.cleanup()
		return nil, err
	}

	tr.logger.Infof(
		"compiled kernels and allocated %d bytes for a %dx%d frame with %d sphere(s) in %s",
		tr.resources.buffers.TotalSize(), frameW, frameH, sc.SphereCount(), time.Since(start),
	)
	return tr, nil
}

// Get the frame dimensions.
func (tr *Tracer) FrameSize() (uint32, uint32) {
	return tr.frameW, tr.frameH
}

// Render a frame into out. The output image bounds must match the tracer
// frame dimensions. Its contents are undefined if rendering fails.
func (tr *Tracer) Render(out *image.RGBA) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.closed {
		return ErrTracerClosed
	}
	if out == nil || out.Rect.Dx() != int(tr.frameW) || out.Rect.Dy() != int(tr.frameH) {
		return fmt.Errorf("%w: expected %dx%d", ErrFrameSizeMismatch, tr.frameW, tr.frameH)
	}
	rowBytes := int(tr.frameW) * sizeofPixel
	if out.Stride < rowBytes || len(out.Pix) < out.PixOffset(out.Rect.Min.X, out.Rect.Max.Y-1)+rowBytes {
		return fmt.Errorf("%w: pixel buffer too small for a %dx%d frame", ErrFrameSizeMismatch, tr.frameW, tr.frameH)
	}

	tr.stats = tracer.Stats{
		Device:          tr.device.Name,
		FrameW:          tr.frameW,
		FrameH:          tr.frameH,
		SamplesPerPixel: tr.opts.SamplesPerPixel,
		AllocatedBytes:  tr.resources.buffers.TotalSize(),
	}

	start := time.Now()
	if err := tr.runStage("reset", tr.pipeline.Reset); err != nil {
		return err
	}

	var sample uint32
	for sample = 0; sample < tr.opts.SamplesPerPixel; sample++ {
		if err := tr.runStage("primary ray generator", tr.pipeline.PrimaryRayGenerator); err != nil {
			return err
		}
		if err := tr.runStage("integrator", tr.pipeline.Integrator); err != nil {
			return err
		}
	}

	for index, stage := range tr.pipeline.PostProcess {
		if err := tr.runStage(fmt.Sprintf("post-process %d", index), stage); err != nil {
			return err
		}
	}

	if err := tr.readFrame(out); err != nil {
		return fmt.Errorf("wavefront tracer: could not read frame buffer: %w", err)
	}

	tr.stats.RenderTime = time.Since(start)
	tr.logger.Infof("rendered %dx%d frame at %d spp in %s", tr.frameW, tr.frameH, tr.opts.SamplesPerPixel, tr.stats.RenderTime)
	return nil
}

// Copy the packed device frame buffer into out. Images whose rows are not
// contiguous (e.g. obtained via SubImage) are filled row by row from a
// scratch copy.
func (tr *Tracer) readFrame(out *image.RGBA) error {
	rowBytes := int(tr.frameW) * sizeofPixel
	frameBytes := rowBytes * int(tr.frameH)
	origin := out.PixOffset(out.Rect.Min.X, out.Rect.Min.Y)

	if out.Stride == rowBytes {
		d, err := tr.resources.ReadFrameBuffer(out.Pix[origin : origin+frameBytes])
		tr.stats.AddStageTime("readFrameBuffer", d)
		return err
	}

	if len(tr.scratch) != frameBytes {
		tr.scratch = make([]uint8, frameBytes)
	}
	d, err := tr.resources.ReadFrameBuffer(tr.scratch)
	tr.stats.AddStageTime("readFrameBuffer", d)
	if err != nil {
		return err
	}
	for y := 0; y < int(tr.frameH); y++ {
		offset := origin + y*out.Stride
		copy(out.Pix[offset:offset+rowBytes], tr.scratch[y*rowBytes:(y+1)*rowBytes])
	}
	return nil
}

func (tr *Tracer) runStage(name string, stage PipelineStage) error {
	if stage == nil {
		return nil
	}
	if _, err := stage(tr); err != nil {
		return fmt.Errorf("wavefront tracer: %s stage failed: %w", name, err)
	}
	return nil
}

// Retrieve last frame statistics.
func (tr *Tracer) Stats() tracer.Stats {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.stats.Clone()
}

// Shutdown and cleanup tracer. Calling Close more than once is a no-op.
func (tr *Tracer) Close() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.closed {
		return nil
	}
	tr.closed = true
	return tr.cleanup()
}

// Release device resources and shut down the device. This method is meant
// to be called while holding tr.mu.
func (tr *Tracer) cleanup() error {
	var errs []error
	if tr.resources != nil {
		if err := tr.resources.Close(); err != nil {
			tr.logger.Warningf("error releasing device resources: %v", err)
			errs = append(errs, err)
		}
		tr.resources = nil
	}

	if tr.device != nil {
		if err := tr.device.Close(); err != nil {
			tr.logger.Warningf("error closing device: %v", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Generate a per-pixel seed table. Seeds are never zero as zero is a fixed
// point of the xorshift generator.
func (tr *Tracer) newSeedTable() []uint64 {
	seeds := make([]uint64, tr.frameW*tr.frameH)
	for index := range seeds {
		seeds[index] = tr.rng.Uint64() | 1
	}
	return seeds
}
