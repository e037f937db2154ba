package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/wavefront/cmd"
	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	defaults := renderer.DefaultOptions()

	app := cli.NewApp()
	app.Name = "wavefront"
	app.Usage = "render sphere scenes using a wavefront path tracer"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "set log level (debug, info, notice, warning, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "list-devices",
			Usage:  "list available compute devices",
			Action: cmd.ListDevices,
		},
		{
			Name:      "scene-info",
			Usage:     "parse a scene file and display its contents",
			ArgsUsage: "scene_file",
			Action:    cmd.ShowSceneInfo,
		},
		{
			Name:  "render",
			Usage: "render single frame",
			Description: `
Render a single frame of the supplied scene and write it to a png file. The
scene file may be a local path or an http(s) URL.`,
			ArgsUsage: "scene_file",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: int(defaults.FrameW),
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: int(defaults.FrameH),
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "spp",
					Value: int(defaults.SamplesPerPixel),
					Usage: "samples per pixel",
				},
				cli.IntFlag{
					Name:  "num-bounces",
					Value: int(defaults.NumBounces),
					Usage: "max number of indirect bounces per path (0 shades primary hits only)",
				},
				cli.IntFlag{
					Name:  "rr-bounces",
					Value: int(defaults.MinBouncesForRR),
					Usage: "min bounces before applying russian roulette for path elimination (0 disables it)",
				},
				cli.Float64Flag{
					Name:  "exposure",
					Value: float64(defaults.Exposure),
					Usage: "camera exposure for tone-mapping",
				},
				cli.Int64Flag{
					Name:  "seed",
					Usage: "seed for the per-pixel random generators (0 seeds from the clock)",
				},
				cli.BoolFlag{
					Name:  "no-early-exit",
					Usage: "always run every bounce instead of stopping once all paths terminate",
				},
				cli.BoolFlag{
					Name:  "no-jitter",
					Usage: "sample pixel centers instead of jittering primary rays",
				},
				cli.BoolFlag{
					Name:  "profile",
					Usage: "wait for every kernel to complete so stage timings reflect device time",
				},
				cli.StringFlag{
					Name:  "backend",
					Usage: fmt.Sprintf("only use devices from this compute backend (%v)", device.Backends()),
				},
				cli.StringFlag{
					Name:  "device, d",
					Usage: "use the device whose name contains this value",
				},
				cli.StringSliceFlag{
					Name:  "blacklist, b",
					Value: &cli.StringSlice{},
					Usage: "blacklist devices whose names contain this value",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			},
			Action: cmd.RenderFrame,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
