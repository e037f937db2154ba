package renderer

import (
	"fmt"
	"image"
	"time"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/tracer/wavefront"
)

type FrameStats struct {
	// Statistics reported by the tracer.
	Tracer tracer.Stats

	// Total render time for entire frame, including readback.
	RenderTime time.Duration
}

type Renderer interface {
	// Render frame.
	Render() (*image.RGBA, error)

	// Shutdown renderer and any attached tracer.
	Close() error

	// Get render statistics.
	Stats() FrameStats
}

type defaultRenderer struct {
	logger log.Logger

	tracer tracer.Tracer
	frame  *image.RGBA
	stats  FrameStats
}

// Select a device according to the device selection options, create a
// wavefront tracer for it and bind it to a new renderer. If pipeline is nil
// the default tracer pipeline is used.
func NewDefault(sc *scene.Scene, pipeline *wavefront.Pipeline, opts Options) (Renderer, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if sc.Camera == nil {
		return nil, ErrCameraNotDefined
	}
	if opts.FrameW == 0 || opts.FrameH == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, opts.FrameW, opts.FrameH)
	}

	logger := log.New("renderer")

	dev, err := device.SelectDevice(
		device.WithBackend(opts.Backend),
		device.Blacklist(opts.BlackListedDevices...),
		device.MatchName(opts.ForceDevice),
		device.Fastest(),
	)
	if err != nil {
		return nil, err
	}
	logger.Noticef("selected device %q (%s backend)", dev.Name, dev.Backend)

	tr, err := wavefront.NewTracer(dev, sc, opts.FrameW, opts.FrameH, opts.tracerOptions(), pipeline)
	if err != nil {
		return nil, err
	}

	return &defaultRenderer{
		logger: logger,
		tracer: tr,
		frame:  image.NewRGBA(image.Rect(0, 0, int(opts.FrameW), int(opts.FrameH))),
	}, nil
}

// Render frame. The returned image is reused by subsequent calls.
func (r *defaultRenderer) Render() (*image.RGBA, error) {
	if r.tracer == nil {
		return nil, ErrClosed
	}

	start := time.Now()
	if err := r.tracer.Render(r.frame); err != nil {
		return nil, err
	}

	r.stats = FrameStats{
		Tracer:     r.tracer.Stats(),
		RenderTime: time.Since(start),
	}
	r.logger.Infof("frame rendered in %s", r.stats.RenderTime)
	return r.frame, nil
}

// Shutdown renderer and the attached tracer.
func (r *defaultRenderer) Close() error {
	if r.tracer == nil {
		return nil
	}
	err := r.tracer.Close()
	r.tracer = nil
	return err
}

// Get render statistics.
func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}
