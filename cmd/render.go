package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/scene/reader"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/wavefront"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Render a still frame.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	opts, err := renderOptions(ctx)
	if err != nil {
		return err
	}
	if opts.MinBouncesForRR == 0 || opts.MinBouncesForRR >= opts.NumBounces {
		logger.Notice("disabling RR for path elimination")
	}

	// Load scene
	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	sc, err := reader.ReadScene(ctx.Args().First())
	if err != nil {
		return err
	}

	// Setup tracing pipeline
	pipeline := wavefront.DefaultPipeline()
	pipeline.PostProcess = append(pipeline.PostProcess, wavefront.SaveFrameBuffer(ctx.String("out")))

	// Create renderer
	r, err := renderer.NewDefault(sc, pipeline, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	if _, err = r.Render(); err != nil {
		return err
	}

	// Display stats
	logger.Noticef("frame statistics\n%s", frameStatsTable(r.Stats()))
	return nil
}

// Map command line flags to renderer options.
func renderOptions(ctx *cli.Context) (renderer.Options, error) {
	var opts renderer.Options
	uintFlags := []struct {
		name string
		dst  *uint32
	}{
		{"width", &opts.FrameW},
		{"height", &opts.FrameH},
		{"spp", &opts.SamplesPerPixel},
		{"num-bounces", &opts.NumBounces},
		{"rr-bounces", &opts.MinBouncesForRR},
	}
	for _, flag := range uintFlags {
		val := ctx.Int(flag.name)
		if val < 0 {
			return opts, fmt.Errorf("invalid value %d for --%s: must not be negative", val, flag.name)
		}
		*flag.dst = uint32(val)
	}

	opts.Exposure = float32(ctx.Float64("exposure"))
	opts.EarlyExit = !ctx.Bool("no-early-exit")
	opts.Jitter = !ctx.Bool("no-jitter")
	opts.Seed = ctx.Int64("seed")
	opts.ReseedPerRender = true
	opts.Profile = ctx.Bool("profile")
	//
	opts.Backend = ctx.String("backend")
	opts.BlackListedDevices = ctx.StringSlice("blacklist")
	opts.ForceDevice = ctx.String("device")
	return opts, nil
}

func frameStatsTable(stats renderer.FrameStats) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Calls", "Time", "% of frame"})

	trStats := stats.Tracer
	for _, stage := range trStats.Stages {
		table.Append([]string{
			stage.Name,
			fmt.Sprintf("%d", stage.Calls),
			fmt.Sprintf("%s", stage.Time),
			fmt.Sprintf("%02.1f %%", percentOf(stage, trStats)),
		})
	}
	table.SetFooter([]string{"TOTAL", "", fmt.Sprintf("%s", stats.RenderTime), ""})
	table.Render()

	fmt.Fprintf(&buf, "device: %s\n", trStats.Device)
	fmt.Fprintf(&buf, "frame: %dx%d at %d spp\n", trStats.FrameW, trStats.FrameH, trStats.SamplesPerPixel)
	fmt.Fprintf(&buf, "bounces per sample: %.2f\n", trStats.BouncesPerSample())
	if len(trStats.LiveRays) != 0 {
		fmt.Fprintf(&buf, "live rays per bounce (last sample): %v\n", trStats.LiveRays)
	}
	fmt.Fprintf(&buf, "device memory: %d bytes\n", trStats.AllocatedBytes)
	return buf.String()
}

func percentOf(stage tracer.StageStats, stats tracer.Stats) float64 {
	if stats.RenderTime <= 0 {
		return 0
	}
	return 100 * float64(stage.Time) / float64(stats.RenderTime)
}
