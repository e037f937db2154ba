package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// List available compute devices.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	platforms, err := device.GetPlatformInfo()
	if err != nil {
		return err
	}

	logger.Noticef("system provides %d compute platform(s)\n%s", len(platforms), deviceTable(platforms))
	return nil
}

func deviceTable(platforms []device.PlatformInfo) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Backend", "Platform", "Version", "Device", "Type", "Speed", "Max alloc"})

	for _, platformInfo := range platforms {
		for _, dev := range platformInfo.Devices {
			table.Append([]string{
				platformInfo.Backend,
				platformInfo.Name,
				platformInfo.Version,
				dev.Name,
				dev.Type.String(),
				fmt.Sprintf("%d", dev.Speed),
				fmt.Sprintf("%d MB", dev.MaxAllocSize/(1024*1024)),
			})
		}
	}

	table.Render()
	return buf.String()
}
