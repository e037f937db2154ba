package tracer

import (
	"image"
	"time"
)

// Timing information for a pipeline stage.
type StageStats struct {
	// The stage (kernel) name.
	Name string

	// Number of times the stage was executed.
	Calls int

	// Total time spent in the stage.
	Time time.Duration
}

// Tracer statistics for the last rendered frame.
type Stats struct {
	// The device that rendered the frame.
	Device string

	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Number of samples per pixel.
	SamplesPerPixel uint32

	// Per-stage timings in order of first execution.
	Stages []StageStats

	// Number of intersect/shade passes executed by each sample, counting
	// the primary pass. With early exit enabled a sample may stop before
	// reaching the bounce limit.
	Bounces []uint32

	// Number of live rays after each bounce of the last sample. Only
	// populated when early exit is enabled.
	LiveRays []uint32

	// Total device memory allocated by the tracer (in bytes).
	AllocatedBytes int

	// The time for rendering the frame.
	RenderTime time.Duration
}

// Add the time spent in a stage invocation.
func (s *Stats) AddStageTime(name string, d time.Duration) {
	for index := range s.Stages {
		if s.Stages[index].Name == name {
			s.Stages[index].Calls++
			s.Stages[index].Time += d
			return
		}
	}
	s.Stages = append(s.Stages, StageStats{Name: name, Calls: 1, Time: d})
}

// Get the average number of bounces per sample.
func (s *Stats) BouncesPerSample() float32 {
	if len(s.Bounces) == 0 {
		return 0
	}
	var total uint32
	for _, b := range s.Bounces {
		total += b
	}
	return float32(total) / float32(len(s.Bounces))
}

// Return a deep copy of the stats.
func (s *Stats) Clone() Stats {
	out := *s
	out.Stages = append([]StageStats(nil), s.Stages...)
	out.Bounces = append([]uint32(nil), s.Bounces...)
	out.LiveRays = append([]uint32(nil), s.LiveRays...)
	return out
}

type Tracer interface {
	// Render a frame into out. The image bounds must match the frame
	// dimensions the tracer was created with.
	Render(out *image.RGBA) error

	// Retrieve last frame statistics.
	Stats() Stats

	// Shutdown and cleanup tracer. Calling Close more than once is a no-op.
	Close() error
}
