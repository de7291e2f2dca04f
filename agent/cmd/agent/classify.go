package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

var classifyFlags = []cli.Flag{
	&cli.Float64Flag{Name: "rtt", Value: math.NaN(), Usage: "round-trip time in ms (omit for unknown)"},
	&cli.Float64Flag{Name: "downlink", Value: math.NaN(), Usage: "downlink estimate in Mbps (omit for unknown)"},
	&cli.BoolFlag{Name: "save-data", Usage: "user requested reduced data usage"},
	&cli.Float64Flag{Name: "battery-level", Value: math.NaN(), Usage: "battery level in [0, 1] (omit for no battery)"},
	&cli.BoolFlag{Name: "charging", Usage: "battery is charging"},
	&cli.BoolFlag{Name: "no-network", Usage: "treat the network channel as unavailable"},
	&cli.IntFlag{Name: "bandwidth-high", Value: stance.DefaultHighBandwidthMbps, Usage: "high bandwidth threshold in Mbps"},
	&cli.IntFlag{Name: "bandwidth-low", Value: stance.DefaultLowBandwidthMbps, Usage: "low bandwidth threshold in Mbps"},
	&cli.Float64Flag{Name: "battery-low", Value: stance.DefaultBatteryLow, Usage: "low battery threshold"},
	&cli.Float64Flag{Name: "battery-critical", Value: stance.DefaultBatteryCritical, Usage: "critical battery threshold"},
}

// classifyOutput is what the classify subcommand prints.
type classifyOutput struct {
	State   types.State `json:"state"`
	Classes []string    `json:"classes"`
}

// ClassifyAction runs one normalization and fusion pass over the flag values
// and prints the resulting State and class list.
func ClassifyAction(c *cli.Context) error {
	th := stance.Thresholds{
		HighBandwidthMbps: c.Int("bandwidth-high"),
		LowBandwidthMbps:  c.Int("bandwidth-low"),
		BatteryLow:        c.Float64("battery-low"),
		BatteryCritical:   c.Float64("battery-critical"),
	}
	if err := th.Validate(); err != nil {
		return err
	}

	var net *stance.NetworkReading
	if !c.Bool("no-network") {
		net = &stance.NetworkReading{
			SaveData: c.Bool("save-data"),
			RTT:      c.Float64("rtt"),
			Downlink: c.Float64("downlink"),
		}
	}

	var bat *stance.BatteryReading
	if level := c.Float64("battery-level"); !math.IsNaN(level) {
		if level < 0 || level > 1 {
			return fmt.Errorf("battery-level %v outside [0, 1]", level)
		}
		bat = &stance.BatteryReading{Level: level, Charging: c.Bool("charging")}
	}

	out := classify(net, bat, th)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func classify(net *stance.NetworkReading, bat *stance.BatteryReading, th stance.Thresholds) classifyOutput {
	s := stance.Evaluate(net, bat, th)
	return classifyOutput{State: s, Classes: stance.Classes(s, th)}
}
