// Command obs-agent keeps a live delivery stance for one device and serves it
// over HTTP, WebSocket and Prometheus text exposition.
//
//	obs-agent run -config agent.yaml
//	obs-agent classify -rtt 120 -downlink 3.5 -battery-level 0.4
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "obs-agent",
		Usage: "derive a rich/cautious/lite delivery stance from network and battery signals",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the reactive engine and serve the state",
				Flags:  runFlags(),
				Action: RunAction,
			},
			{
				Name:   "classify",
				Usage:  "classify one set of readings and print the state as JSON",
				Flags:  classifyFlags,
				Action: ClassifyAction,
			},
		},
		Flags:  runFlags(),
		Action: RunAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "obs-agent:", err)
		os.Exit(1)
	}
}
