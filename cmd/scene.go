package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/scene/reader"
	"github.com/achilleasa/wavefront/types"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Display scene info.
func ShowSceneInfo(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	sc, err := reader.ReadScene(ctx.Args().First())
	if err != nil {
		return err
	}

	logger.Noticef("scene information:\n%s", sceneTable(sc))
	return nil
}

func sceneTable(sc *scene.Scene) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", sc.Camera)
	fmt.Fprintf(&buf, "Sky horizon %s, zenith %s\n", fmtVec3(sc.Sky.Horizon), fmtVec3(sc.Sky.Zenith))

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Center", "Radius", "Albedo", "Emission"})
	for index, sphere := range sc.Spheres {
		table.Append([]string{
			fmt.Sprintf("%d", index),
			fmtVec3(sphere.Center),
			fmt.Sprintf("%3.3f", sphere.Radius),
			fmtVec3(sphere.Albedo),
			fmtVec3(sphere.Emission),
		})
	}
	table.SetFooter([]string{"", "", "", "TOTAL", fmt.Sprintf("%d", sc.SphereCount())})
	table.Render()

	return buf.String()
}

func fmtVec3(v types.Vec3) string {
	return fmt.Sprintf("(%3.3f, %3.3f, %3.3f)", v[0], v[1], v[2])
}
