package renderer

import "github.com/achilleasa/wavefront/tracer/wavefront"

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Number of indirect bounces.
	NumBounces uint32

	// Min bounces before applying russian roulette for path elimination.
	// A value of 0 or a value >= NumBounces disables russian roulette.
	MinBouncesForRR uint32

	// Number of samples.
	SamplesPerPixel uint32

	// Exposure for tonemapping.
	Exposure float32

	// Stop tracing a sample once all its paths have terminated.
	EarlyExit bool

	// Jitter primary rays within each pixel.
	Jitter bool

	// Seed for the per-pixel random generators; 0 seeds from the clock.
	Seed int64

	// Generate fresh per-pixel seeds for every rendered frame.
	ReseedPerRender bool

	// Collect per-kernel device execution times.
	Profile bool

	// Device selection.
	Backend            string
	BlackListedDevices []string
	ForceDevice        string
}

// Get the default render options.
func DefaultOptions() Options {
	return Options{
		FrameW:          512,
		FrameH:          512,
		NumBounces:      5,
		SamplesPerPixel: 25,
		Exposure:        1.0,
		EarlyExit:       true,
		Jitter:          true,
		ReseedPerRender: true,
	}
}

// Map renderer options to tracer options.
func (opts Options) tracerOptions() wavefront.Options {
	trOpts := wavefront.Options{
		SamplesPerPixel: opts.SamplesPerPixel,
		NumBounces:      opts.NumBounces,
		MinBouncesForRR: opts.MinBouncesForRR,
		Exposure:        opts.Exposure,
		EarlyExit:       opts.EarlyExit,
		Seed:            opts.Seed,
		ReseedPerRender: opts.ReseedPerRender,
		Profile:         opts.Profile,
	}

	if opts.MinBouncesForRR == 0 || opts.MinBouncesForRR >= opts.NumBounces {
		trOpts.MinBouncesForRR = opts.NumBounces
	}
	if opts.Jitter {
		trOpts.Jitter = 1
	}
	return trOpts
}
