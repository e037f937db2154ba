package cmd

import (
	"flag"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/achilleasa/wavefront/renderer"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/types"
	"github.com/urfave/cli"
)

func TestFrameStatsTable(t *testing.T) {
	stats := renderer.FrameStats{
		Tracer: tracer.Stats{
			Device:          "test device",
			FrameW:          64,
			FrameH:          32,
			SamplesPerPixel: 4,
			Stages: []tracer.StageStats{
				{Name: "intersect", Calls: 20, Time: 30 * time.Millisecond},
				{Name: "shade", Calls: 20, Time: 10 * time.Millisecond},
			},
			Bounces:    []uint32{5, 5, 4, 2},
			LiveRays:   []uint32{100, 10, 0},
			RenderTime: 100 * time.Millisecond,
		},
		RenderTime: 120 * time.Millisecond,
	}

	out := frameStatsTable(stats)
	for _, exp := range []string{"intersect", "shade", "30.0 %", "test device", "64x32 at 4 spp", "bounces per sample: 4.00", "[100 10 0]"} {
		if !strings.Contains(out, exp) {
			t.Fatalf("expected stats table to contain %q; got:\n%s", exp, out)
		}
	}
}

func TestDeviceTable(t *testing.T) {
	platforms, err := device.GetPlatformInfo()
	if err != nil {
		t.Fatal(err)
	}

	out := deviceTable(platforms)
	if !strings.Contains(out, "Go host") || !strings.Contains(out, "host") {
		t.Fatalf("expected device table to list the host device; got:\n%s", out)
	}
}

func TestSceneTable(t *testing.T) {
	sc := scene.New()
	sc.Add(scene.NewSphere(types.Vec3{1, 2, 3}, 0.5))

	out := sceneTable(sc)
	for _, exp := range []string{"(1.000, 2.000, 3.000)", "0.500", "(0.750, 0.750, 0.750)", "60.0 deg FOV"} {
		if !strings.Contains(out, exp) {
			t.Fatalf("expected scene table to contain %q; got:\n%s", exp, out)
		}
	}
}

func TestRenderOptionsRejectNegativeValues(t *testing.T) {
	newContext := func(overrides map[string]int) *cli.Context {
		set := flag.NewFlagSet("render", flag.ContinueOnError)
		for _, name := range []string{"width", "height", "spp", "num-bounces", "rr-bounces"} {
			set.Int(name, 1, "")
		}
		set.Float64("exposure", 1, "")
		for name, val := range overrides {
			if err := set.Set(name, strconv.Itoa(val)); err != nil {
				t.Fatal(err)
			}
		}
		return cli.NewContext(cli.NewApp(), set, nil)
	}

	opts, err := renderOptions(newContext(map[string]int{"width": 64, "height": 32, "num-bounces": 0}))
	if err != nil {
		t.Fatal(err)
	}
	if opts.FrameW != 64 || opts.FrameH != 32 || opts.NumBounces != 0 || opts.SamplesPerPixel != 1 {
		t.Fatalf("unexpected options: %+v", opts)
	}

	for _, name := range []string{"width", "height", "spp", "num-bounces", "rr-bounces"} {
		_, err = renderOptions(newContext(map[string]int{name: -1}))
		if err == nil || !strings.Contains(err.Error(), "--"+name) {
			t.Fatalf("expected negative --%s to be rejected; got %v", name, err)
		}
	}
}
