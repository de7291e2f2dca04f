package main

import (
	"math"
	"slices"
	"testing"

	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

func TestClassify(t *testing.T) {
	th := stance.DefaultThresholds()
	tests := []struct {
		name    string
		net     *stance.NetworkReading
		bat     *stance.BatteryReading
		want    types.DeliveryMode
		classes []string
	}{
		{
			name:    "fast network, no battery",
			net:     &stance.NetworkReading{RTT: 40, Downlink: 12},
			want:    types.DeliveryRich,
			classes: []string{"has-latency-low", stance.ClassBandwidthHigh},
		},
		{
			name:    "save-data on a fast network",
			net:     &stance.NetworkReading{SaveData: true, RTT: 40, Downlink: 12},
			want:    types.DeliveryLite,
			classes: []string{stance.ClassDataSaver, "has-conservation-preference-conserve"},
		},
		{
			name:    "unknown network and charging battery",
			net:     &stance.NetworkReading{RTT: math.NaN(), Downlink: math.NaN()},
			bat:     &stance.BatteryReading{Level: 0.9, Charging: true},
			want:    types.DeliveryCautious,
			classes: []string{stance.ClassBatteryCharging},
		},
		{
			name: "no channels",
			want: types.DeliveryCautious,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(tt.net, tt.bat, th)
			if out.State.DeliveryMode != tt.want {
				t.Errorf("DeliveryMode: got %q, want %q", out.State.DeliveryMode, tt.want)
			}
			if !slices.Contains(out.Classes, stance.DeliveryClass(tt.want)) {
				t.Errorf("delivery class missing: %v", out.Classes)
			}
			for _, c := range tt.classes {
				if !slices.Contains(out.Classes, c) {
					t.Errorf("class %q missing: %v", c, out.Classes)
				}
			}
			if !slices.IsSorted(out.Classes) {
				t.Errorf("classes not sorted: %v", out.Classes)
			}
		})
	}
}
